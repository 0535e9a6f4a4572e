// Package auth exposes the two authentication paths: face matching
// against the full enrolled gallery, and the password fallback.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/your-org/facegate/internal/embedding"
	"github.com/your-org/facegate/internal/match"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
)

// ErrInvalidCredentials covers unknown username, wrong password, and
// inactive account alike, so the response does not reveal which.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CandidateSource enumerates the matchable gallery.
type CandidateSource interface {
	AllCandidates(ctx context.Context) match.Candidates
}

// UserStore resolves matched and named users. Both lookups return
// (nil, nil) when no such user exists.
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service makes authentication decisions. It is stateless apart from
// its collaborators, so concurrent login attempts need no
// coordination.
type Service struct {
	gallery   CandidateSource
	users     UserStore
	dim       int
	threshold float64
}

func NewService(gallery CandidateSource, users UserStore, dim int, threshold float64) *Service {
	return &Service{gallery: gallery, users: users, dim: dim, threshold: threshold}
}

// AuthenticateByFace matches query against every enrolled embedding.
// On a confident match it resolves and returns the owning user; an
// unconfident best candidate yields a not-matched result with the
// score still filled in. Input errors (degenerate or mis-sized query)
// are returned as errors, never as a "no match".
func (s *Service) AuthenticateByFace(ctx context.Context, query embedding.Vector) (match.Result, *models.User, error) {
	start := time.Now()
	res, err := match.FindBestMatch(ctx, query, s.gallery.AllCandidates(ctx), s.dim, s.threshold)
	observability.MatchScanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.LoginAttempts.WithLabelValues("face", "error").Inc()
		return match.Result{}, nil, err
	}

	if !res.Matched {
		observability.LoginAttempts.WithLabelValues("face", "rejected").Inc()
		return res, nil, nil
	}

	user, err := s.users.GetUser(ctx, res.UserID)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("face", "error").Inc()
		return match.Result{}, nil, fmt.Errorf("resolve matched user: %w", err)
	}
	if user == nil || !user.Active {
		// The embedding matched but its owner is gone or disabled.
		// Report a plain rejection, keeping the score.
		observability.LoginAttempts.WithLabelValues("face", "rejected").Inc()
		res.Matched = false
		res.IdentityID = uuid.Nil
		res.UserID = uuid.Nil
		return res, nil, nil
	}

	observability.LoginAttempts.WithLabelValues("face", "matched").Inc()
	return res, user, nil
}

// dummyHash is compared against when the username is unknown, so the
// two rejection paths take similar time.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// AuthenticateByPassword is the fallback path. It fails with
// ErrInvalidCredentials for unknown users, wrong passwords and
// inactive accounts alike.
func (s *Service) AuthenticateByPassword(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("password", "error").Inc()
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user == nil || user.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		observability.LoginAttempts.WithLabelValues("password", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		observability.LoginAttempts.WithLabelValues("password", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		observability.LoginAttempts.WithLabelValues("password", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	observability.LoginAttempts.WithLabelValues("password", "matched").Inc()
	return user, nil
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
