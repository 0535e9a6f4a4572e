package embedding

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDistance_Identity(t *testing.T) {
	vectors := []Vector{
		{1, 0, 0, 0},
		{0.5, -0.25, 3.75, 12},
		{-1, -1, -1, -1},
	}

	for _, v := range vectors {
		d, err := Distance(v, v)
		if err != nil {
			t.Fatalf("Distance(v, v) failed: %v", err)
		}
		if !almostEqual(d, 0) {
			t.Errorf("Distance(%v, %v) = %v, want 0", v, v, d)
		}
	}
}

func TestDistance_Symmetry(t *testing.T) {
	a := Vector{0.3, -1.2, 4.5, 0.01}
	b := Vector{2.2, 0.8, -0.5, 1.1}

	dab, err := Distance(a, b)
	if err != nil {
		t.Fatalf("Distance(a, b) failed: %v", err)
	}
	dba, err := Distance(b, a)
	if err != nil {
		t.Fatalf("Distance(b, a) failed: %v", err)
	}
	if dab != dba {
		t.Errorf("Distance not symmetric: %v vs %v", dab, dba)
	}
}

func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"orthogonal", Vector{1, 0}, Vector{0, 1}, 1},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, 2},
		{"parallel scaled", Vector{1, 2, 3}, Vector{2, 4, 6}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Distance failed: %v", err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Distance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDistance_DimensionMismatch(t *testing.T) {
	_, err := Distance(Vector{1, 2, 3}, Vector{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	_, err = Distance(Vector{}, Vector{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for empty vectors, got %v", err)
	}
}

func TestDistance_DegenerateVector(t *testing.T) {
	zero := Vector{0, 0, 0}
	ones := Vector{1, 1, 1}

	if _, err := Distance(zero, ones); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("expected ErrDegenerateVector for zero lhs, got %v", err)
	}
	if _, err := Distance(ones, zero); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("expected ErrDegenerateVector for zero rhs, got %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	a := Vector{1, 2, 3}

	s, err := Similarity(a, a)
	if err != nil {
		t.Fatalf("Similarity failed: %v", err)
	}
	if !almostEqual(s, 1) {
		t.Errorf("self similarity = %v, want 1", s)
	}

	s, err = Similarity(Vector{1, 0}, Vector{-1, 0})
	if err != nil {
		t.Fatalf("Similarity failed: %v", err)
	}
	if !almostEqual(s, -1) {
		t.Errorf("opposite similarity = %v, want -1", s)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		v       Vector
		dim     int
		wantErr error
	}{
		{"valid", Vector{1, 2, 3, 4}, 4, nil},
		{"wrong dimension", Vector{1, 2, 3}, 4, ErrDimensionMismatch},
		{"empty", Vector{}, 4, ErrDimensionMismatch},
		{"all zeros", Vector{0, 0, 0, 0}, 4, ErrDegenerateVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.v, tt.dim)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate(%v, %d) = %v, want nil", tt.v, tt.dim, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate(%v, %d) = %v, want %v", tt.v, tt.dim, err, tt.wantErr)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Vector{3, 4}
	Normalize(v)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("norm after Normalize = %v, want 1", math.Sqrt(sum))
	}

	zero := Vector{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("Normalize mutated zero vector: %v", zero)
	}
}
