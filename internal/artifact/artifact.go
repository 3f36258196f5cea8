// Package artifact keeps one reference image per enrolled identity.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/extractor"
)

// Store writes reference images under a directory as {id}_{slug}.jpg.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Init creates the image directory.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	return nil
}

// Path returns the reference image path for an identity.
func (s *Store) Path(id int64, name string) string {
	return filepath.Join(s.dir, strconv.FormatInt(id, 10)+"_"+Slug(name)+".jpg")
}

// Save re-encodes img as JPEG and writes it atomically, replacing any
// previous image of the identity.
func (s *Store) Save(id int64, name string, img []byte) (string, error) {
	decoded, err := extractor.Decode(img)
	if err != nil {
		return "", err
	}
	encoded, err := extractor.EncodeJPEG(decoded, constants.ReferenceJPEGQuality)
	if err != nil {
		return "", err
	}

	if err := s.Init(); err != nil {
		return "", err
	}
	if _, err := s.Remove(id); err != nil {
		return "", err
	}

	path := s.Path(id, name)
	if err := writeFileAtomic(path, encoded); err != nil {
		return "", err
	}
	return path, nil
}

// Find returns the stored image paths for an identity.
func (s *Store) Find(id int64) ([]string, error) {
	pattern := filepath.Join(s.dir, strconv.FormatInt(id, 10)+"_*.jpg")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob reference images: %w", err)
	}
	return matches, nil
}

// Remove deletes all images of an identity and reports how many were removed.
func (s *Store) Remove(id int64) (int, error) {
	matches, err := s.Find(id)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove reference image: %w", err)
		}
		removed++
	}
	return removed, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".facegate-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
