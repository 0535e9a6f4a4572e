// Package vision turns a face image into an embedding vector. It wraps
// ONNX Runtime sessions for RetinaFace detection and ArcFace embedding.
package vision

import (
	"context"
	"errors"

	"github.com/your-org/facegate/internal/embedding"
)

var (
	// ErrNoFaceDetected means the detector found no face above the
	// configured confidence. A bad image will not improve on retry
	// without user action, so callers surface this and never retry
	// automatically.
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrMultipleFaces means the image is ambiguous for identity
	// purposes: more than one confident face was found.
	ErrMultipleFaces = errors.New("multiple faces detected in image")
)

// Provider extracts a face embedding from raw image bytes. The second
// return value is the detector's confidence for the chosen face.
// Failures use the taxonomy above, or a wrapped provider error for
// decode/inference problems.
type Provider interface {
	Embed(ctx context.Context, imageData []byte) (embedding.Vector, float32, error)
}
