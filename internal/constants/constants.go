// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching constants
const (
	// DefaultMatchThreshold is the maximum cosine distance accepted as the same person.
	// Lower values = stricter matching
	DefaultMatchThreshold = 0.35

	// DefaultNearestLimit is the default number of identities returned by nearest-match ranking
	DefaultNearestLimit = 5
)

// Descriptor constants
const (
	// DefaultDescriptorDim is the descriptor length produced by the face embedding model
	DefaultDescriptorDim = 512
)

// Capture constants
const (
	// DefaultCaptureBudget is how long a capture session runs before the current frame is taken
	DefaultCaptureBudget = 5 * time.Second

	// ScanStep is how far the scan indicator moves per frame, in pixels
	ScanStep = 5

	// DefaultFrameInterval is the delay between frames read from a directory source
	DefaultFrameInterval = 100 * time.Millisecond
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for bulk enrollment
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1920

	// ReferenceJPEGQuality is the JPEG quality used for stored reference images
	ReferenceJPEGQuality = 90
)
