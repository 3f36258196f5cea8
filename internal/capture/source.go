package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Frame is a single encoded image from a frame source.
type Frame struct {
	Index int
	Data  []byte
	At    time.Time
}

// FrameSource produces frames for a capture session. Next blocks until a
// frame is available and returns io.EOF once the source is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// FuncSource adapts a function to FrameSource.
type FuncSource func(ctx context.Context) (Frame, error)

// Next implements FrameSource.
func (f FuncSource) Next(ctx context.Context) (Frame, error) {
	return f(ctx)
}

// frameExtensions lists the image files DirSource picks up.
var frameExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// IsFrameFile reports whether the file name has a supported image extension.
func IsFrameFile(name string) bool {
	return slices.Contains(frameExtensions, strings.ToLower(filepath.Ext(name)))
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DirSource replays image files from a directory in lexical order, one per
// interval. It returns io.EOF after the last file, which a session that has
// not yet terminated reports as a lost source.
type DirSource struct {
	files    []string
	interval time.Duration
	next     int
}

// NewDirSource lists the frame files in dir.
func NewDirSource(dir string, interval time.Duration) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsFrameFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return &DirSource{files: files, interval: interval}, nil
}

// Len returns the number of frames in the directory.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Next implements FrameSource.
func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if s.next >= len(s.files) {
		return Frame{}, io.EOF
	}
	if s.next > 0 {
		if err := wait(ctx, s.interval); err != nil {
			return Frame{}, err
		}
	}

	data, err := os.ReadFile(s.files[s.next])
	if err != nil {
		return Frame{}, fmt.Errorf("reading frame %s: %w", s.files[s.next], err)
	}
	frame := Frame{Index: s.next, Data: data, At: time.Now()}
	s.next++
	return frame, nil
}

// StillSource yields the same image every interval until ctx ends.
type StillSource struct {
	data     []byte
	interval time.Duration
	count    int
}

// NewStillSource returns a source that repeats data.
func NewStillSource(data []byte, interval time.Duration) *StillSource {
	return &StillSource{data: data, interval: interval}
}

// Next implements FrameSource.
func (s *StillSource) Next(ctx context.Context) (Frame, error) {
	if s.count > 0 {
		if err := wait(ctx, s.interval); err != nil {
			return Frame{}, err
		}
	}
	frame := Frame{Index: s.count, Data: s.data, At: time.Now()}
	s.count++
	return frame, nil
}
