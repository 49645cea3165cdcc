package detection

import (
	"fmt"

	"github.com/ironsheep/face-count-mcp/internal/imaging"
)

// ImageReadError is returned by Detect when the image file cannot be opened
// or decoded. It is the same type the imaging package produces.
type ImageReadError = imaging.ImageReadError

// ModelUnavailableError reports that no detection model could be
// constructed: the artifact is missing, malformed, or its server is not
// reachable. It is returned only from construction.
type ModelUnavailableError struct {
	// Model names what was being loaded (a cascade path or a server URL).
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("detection model unavailable: %v", e.Err)
	}
	return fmt.Sprintf("detection model %s unavailable: %v", e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// InferenceError reports that the model failed while processing an image.
// No partial detections accompany it.
type InferenceError struct {
	Model string
	Path  string
	Err   error
}

func (e *InferenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("inference with %s failed: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("inference with %s failed on %q: %v", e.Model, e.Path, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
