package constants

import "time"

// Web constants
const (
	// MaxUploadSize is the maximum accepted multipart body for enroll/verify uploads (32 MB)
	MaxUploadSize = 32 << 20

	// MaxNearestLimit caps the k accepted by the nearest endpoint
	MaxNearestLimit = 50

	// RequestTimeout bounds a single API request, including a full capture budget
	RequestTimeout = time.Minute

	// ShutdownTimeout is how long serve waits for in-flight requests on exit
	ShutdownTimeout = 10 * time.Second
)
