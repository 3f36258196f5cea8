// Package extractor turns face images into fixed-length descriptors.
package extractor

import (
	"context"
	"errors"
)

var (
	// ErrNoFace is returned when the image contains no detectable face.
	ErrNoFace = errors.New("no face found in image")
	// ErrInvalidImage is returned when the image cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
)

// Extractor computes a face descriptor from an encoded image.
type Extractor interface {
	Extract(ctx context.Context, img []byte) ([]float32, error)
}

// Func adapts a plain function to Extractor.
type Func func(ctx context.Context, img []byte) ([]float32, error)

// Extract implements Extractor.
func (f Func) Extract(ctx context.Context, img []byte) ([]float32, error) {
	return f(ctx, img)
}
