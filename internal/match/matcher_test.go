package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/embedding"
)

func candidate(userSeed byte, vec embedding.Vector) Candidate {
	var uid, iid [16]byte
	uid[0] = userSeed
	iid[0] = userSeed
	iid[15] = 1
	return Candidate{
		IdentityID: uuid.UUID(iid),
		UserID:     uuid.UUID(uid),
		Embedding:  vec,
	}
}

func TestFindBestMatch_EmptyGallery(t *testing.T) {
	res, err := FindBestMatch(context.Background(), embedding.Vector{1, 0}, FromSlice(nil), 2, 0.5)
	if err != nil {
		t.Fatalf("empty gallery must not error: %v", err)
	}
	if res.Matched {
		t.Error("empty gallery must not match")
	}
	if res.IdentityID != uuid.Nil {
		t.Error("empty gallery must not report a candidate")
	}
}

func TestFindBestMatch_SelfMatch(t *testing.T) {
	e1 := embedding.Vector{0.1, 0.5, -0.3, 0.8}
	c := candidate(1, e1)

	res, err := FindBestMatch(context.Background(), e1, FromSlice([]Candidate{c}), 4, 0.3)
	if err != nil {
		t.Fatalf("FindBestMatch failed: %v", err)
	}
	if !res.Matched {
		t.Fatal("literal self-match must match")
	}
	if res.UserID != c.UserID {
		t.Errorf("matched user = %v, want %v", res.UserID, c.UserID)
	}
	if math.Abs(res.Similarity-1) > 1e-6 {
		t.Errorf("self similarity = %v, want ~1", res.Similarity)
	}
	if math.Abs(res.Distance) > 1e-6 {
		t.Errorf("self distance = %v, want ~0", res.Distance)
	}
}

func TestFindBestMatch_ThresholdMonotonic(t *testing.T) {
	query := embedding.Vector{1, 0.2}
	cands := []Candidate{candidate(1, embedding.Vector{1, 0})}

	thresholds := []float64{0.1, 0.5, 0.9, 0.99, 1.0}
	prevMatched := true
	for _, th := range thresholds {
		res, err := FindBestMatch(context.Background(), query, FromSlice(cands), 2, th)
		if err != nil {
			t.Fatalf("threshold %v: %v", th, err)
		}
		// Raising the threshold may only turn matched into not matched.
		if res.Matched && !prevMatched {
			t.Fatalf("decision not monotonic at threshold %v", th)
		}
		prevMatched = res.Matched
	}
}

func TestFindBestMatch_BelowThresholdReportsScore(t *testing.T) {
	res, err := FindBestMatch(context.Background(),
		embedding.Vector{1, 0},
		FromSlice([]Candidate{candidate(1, embedding.Vector{0, 1})}),
		2, 0.9)
	if err != nil {
		t.Fatalf("FindBestMatch failed: %v", err)
	}
	if res.Matched {
		t.Fatal("orthogonal vectors must not match at threshold 0.9")
	}
	if math.Abs(res.Similarity) > 1e-6 {
		t.Errorf("best similarity = %v, want ~0 reported despite rejection", res.Similarity)
	}
	if res.IdentityID != uuid.Nil {
		t.Error("rejected result must not carry a candidate id")
	}
}

func TestFindBestMatch_TieBreakFirstWins(t *testing.T) {
	query := embedding.Vector{1, 1}
	first := candidate(1, embedding.Vector{2, 2})
	second := candidate(2, embedding.Vector{3, 3}) // same direction, same similarity

	res, err := FindBestMatch(context.Background(), query, FromSlice([]Candidate{first, second}), 2, 0.5)
	if err != nil {
		t.Fatalf("FindBestMatch failed: %v", err)
	}
	if res.UserID != first.UserID {
		t.Errorf("tie broke to %v, want first candidate %v", res.UserID, first.UserID)
	}
}

func TestFindBestMatch_SkipsMalformedCandidate(t *testing.T) {
	good := candidate(1, embedding.Vector{1, 0})
	tests := []struct {
		name string
		bad  Candidate
	}{
		{"zero vector", candidate(2, embedding.Vector{0, 0})},
		{"wrong dimension", candidate(3, embedding.Vector{1, 0, 0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := FindBestMatch(context.Background(),
				embedding.Vector{1, 0},
				FromSlice([]Candidate{tt.bad, good}), 2, 0.5)
			if err != nil {
				t.Fatalf("malformed candidate must not abort scan: %v", err)
			}
			if !res.Matched || res.UserID != good.UserID {
				t.Errorf("expected match on surviving candidate, got %+v", res)
			}
			if res.Skipped != 1 {
				t.Errorf("Skipped = %d, want 1", res.Skipped)
			}
		})
	}
}

func TestFindBestMatch_DegenerateQuery(t *testing.T) {
	cands := []Candidate{candidate(1, embedding.Vector{1, 1})}

	_, err := FindBestMatch(context.Background(), embedding.Vector{0, 0}, FromSlice(cands), 2, 0.5)
	if !errors.Is(err, embedding.ErrDegenerateVector) {
		t.Errorf("zero query must fail with ErrDegenerateVector, got %v", err)
	}

	_, err = FindBestMatch(context.Background(), nil, FromSlice(cands), 2, 0.5)
	if !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Errorf("empty query must fail with ErrDimensionMismatch, got %v", err)
	}
}

func TestFindBestMatch_WrongDimensionQuery(t *testing.T) {
	// A query from a differently-sized model must be an input error
	// before the scan starts, never a clean rejection with every
	// candidate skipped.
	cands := []Candidate{candidate(1, embedding.Vector{1, 0})}

	res, err := FindBestMatch(context.Background(), embedding.Vector{1, 0, 0}, FromSlice(cands), 2, 0.5)
	if !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Fatalf("wrong-dimension query = %v, want ErrDimensionMismatch", err)
	}
	if res.Scanned != 0 || res.Skipped != 0 {
		t.Errorf("scan must not start on a malformed query, got %+v", res)
	}
}

func TestFindBestMatch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands := []Candidate{candidate(1, embedding.Vector{1, 0}), candidate(2, embedding.Vector{0, 1})}
	_, err := FindBestMatch(ctx, embedding.Vector{1, 0}, FromSlice(cands), 2, 0.5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFindBestMatch_EnumerationError(t *testing.T) {
	boom := errors.New("connection reset")
	failing := Candidates(func(yield func(Candidate, error) bool) {
		if !yield(candidate(1, embedding.Vector{1, 0}), nil) {
			return
		}
		yield(Candidate{}, fmt.Errorf("read row: %w", boom))
	})

	_, err := FindBestMatch(context.Background(), embedding.Vector{1, 0}, failing, 2, 0.5)
	if !errors.Is(err, boom) {
		t.Errorf("storage error must propagate, got %v", err)
	}
}

func TestFindBestMatch_PicksHighestSimilarity(t *testing.T) {
	query := embedding.Vector{1, 0}
	far := candidate(1, embedding.Vector{0, 1})
	near := candidate(2, embedding.Vector{0.9, 0.1})

	res, err := FindBestMatch(context.Background(), query, FromSlice([]Candidate{far, near}), 2, 0.3)
	if err != nil {
		t.Fatalf("FindBestMatch failed: %v", err)
	}
	if res.UserID != near.UserID {
		t.Errorf("matched %v, want nearest candidate %v", res.UserID, near.UserID)
	}
	if res.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2", res.Scanned)
	}
}
