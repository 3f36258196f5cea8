package artifact

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/facegate/internal/extractor"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Alice", "alice"},
		{"Jiří Novák", "jiri_novak"},
		{"  Mary-Jane  O'Neil ", "mary_jane_o_neil"},
		{"Łukasz", "ukasz"},
		{"???", "unnamed"},
		{"", "unnamed"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Slug(tc.in); got != tc.want {
				t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSaveAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	store := NewStore(dir)

	path, err := store.Save(42, "Alice", pngBytes(t))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "42_alice.jpg"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) < 3 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("stored image is not a JPEG")
	}

	// Saving again under a new name replaces the old file.
	if _, err := store.Save(42, "Alice Smith", pngBytes(t)); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	matches, err := store.Find(42)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(matches) != 1 || filepath.Base(matches[0]) != "42_alice_smith.jpg" {
		t.Errorf("Find = %v, want only 42_alice_smith.jpg", matches)
	}

	removed, err := store.Remove(42)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestRemoveDoesNotTouchOtherIDs(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Save(4, "four", pngBytes(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(42, "forty two", pngBytes(t)); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Remove(4); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	matches, _ := store.Find(42)
	if len(matches) != 1 {
		t.Errorf("identity 42 images = %v, want 1", matches)
	}
}

func TestSaveRejectsGarbage(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Save(1, "x", []byte("nope")); !errors.Is(err, extractor.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}
