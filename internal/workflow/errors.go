package workflow

import "errors"

var (
	// ErrNoFaceDetected means extraction found no face. It is neither admit nor deny.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrCaptureFailed means the frame source died before the session terminated.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrInvalidRequest means the request was missing an id, name or image.
	ErrInvalidRequest = errors.New("invalid request")
)
