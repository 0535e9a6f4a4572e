// Package match implements the face matching decision: a linear scan
// over the enrolled gallery with exact cosine similarity. Galleries are
// small (a handful of embeddings per user), so an exact scan beats any
// approximate index at this scale.
package match

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/embedding"
	"github.com/your-org/facegate/internal/observability"
)

// Candidate is one enrolled embedding eligible for matching.
type Candidate struct {
	IdentityID uuid.UUID
	UserID     uuid.UUID
	Embedding  embedding.Vector
}

// Candidates is a lazy candidate sequence, typically streamed straight
// from storage rows. The second value carries enumeration errors.
type Candidates = iter.Seq2[Candidate, error]

// Result is the outcome of one matching scan. It is transient: built
// per login attempt and discarded once the caller acted on it.
// When Matched is false but Scanned > 0, Similarity still holds the
// best value seen, for observability.
type Result struct {
	Matched    bool
	IdentityID uuid.UUID
	UserID     uuid.UUID
	Similarity float64
	Distance   float64
	Scanned    int
	Skipped    int
}

// FindBestMatch scans every candidate once and returns the one with the
// highest similarity to query, matched when that similarity reaches
// threshold. Dim is the deployment's embedding dimension; threshold is
// a similarity lower bound in [0, 1] and the decision is monotonic in
// it.
//
// An empty gallery is not an error: the result is simply not matched
// with no candidate. A malformed candidate (wrong dimension, zero norm)
// is skipped with a warning so one corrupt record cannot deny service
// to every login. Exact similarity ties keep the first candidate in
// enumeration order.
//
// The query itself must be well-formed: a query that is empty,
// degenerate, or not of dimension dim is an input error, not a
// "no match".
func FindBestMatch(ctx context.Context, query embedding.Vector, candidates Candidates, dim int, threshold float64) (Result, error) {
	if err := embedding.Validate(query, dim); err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}

	var res Result
	best := -1.0

	for cand, err := range candidates {
		if err != nil {
			return Result{}, fmt.Errorf("enumerate candidates: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		sim, err := embedding.Similarity(query, cand.Embedding)
		if err != nil {
			// Query is already validated, so this is a corrupt
			// stored record. Skip it rather than fail the scan.
			slog.Warn("skipping malformed gallery candidate",
				"identity_id", cand.IdentityID,
				"user_id", cand.UserID,
				"error", err,
			)
			observability.CandidatesSkipped.Inc()
			res.Skipped++
			continue
		}

		res.Scanned++
		if sim > best {
			best = sim
			res.IdentityID = cand.IdentityID
			res.UserID = cand.UserID
			res.Similarity = sim
			res.Distance = 1 - sim
		}
	}

	if res.Scanned == 0 {
		return res, nil
	}

	res.Matched = res.Similarity >= threshold
	if !res.Matched {
		// Keep identity/user cleared on rejection; the score alone
		// is reported.
		res.IdentityID = uuid.Nil
		res.UserID = uuid.Nil
	}
	return res, nil
}

// FromSlice adapts an in-memory candidate list to the lazy Candidates
// form. Used by tests.
func FromSlice(list []Candidate) Candidates {
	return func(yield func(Candidate, error) bool) {
		for _, c := range list {
			if !yield(c, nil) {
				return
			}
		}
	}
}
