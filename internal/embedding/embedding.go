// Package embedding defines the face embedding vector type and its
// distance operations. All functions are pure: identical inputs always
// produce identical outputs.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// Vector is a fixed-dimension face embedding. The dimension is a
// deployment constant carried in config; this package only checks that
// the two operands of a distance computation agree.
type Vector []float32

var (
	// ErrDimensionMismatch is returned when two vectors of different
	// length are compared, or a vector does not have the configured
	// dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDegenerateVector is returned for zero-norm vectors. A zero
	// vector has no cosine direction, so a distance against it is
	// undefined and must never be silently produced.
	ErrDegenerateVector = errors.New("degenerate zero-norm embedding")
)

// Distance computes the cosine distance 1 - (a·b)/(‖a‖·‖b‖).
// The result keeps the raw cosine-distance range [0, 2]; it is not
// clipped to [0, 1]. Accumulation happens in float64 to keep the result
// stable for high-dimensional vectors.
func Distance(a, b Vector) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, ErrDegenerateVector
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] against floating point drift.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}

	return 1 - sim, nil
}

// Similarity is 1 - Distance. Identical direction yields 1, opposite
// direction yields -1.
func Similarity(a, b Vector) (float64, error) {
	d, err := Distance(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - d, nil
}

// Validate checks that v has exactly dim components and a non-zero norm.
// Used at enrollment time and on query vectors before matching.
func Validate(v Vector, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: got %d components, want %d", ErrDimensionMismatch, len(v), dim)
	}
	for _, x := range v {
		if x != 0 {
			return nil
		}
	}
	return ErrDegenerateVector
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left
// untouched.
func Normalize(v Vector) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
