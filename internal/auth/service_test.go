package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/embedding"
	"github.com/your-org/facegate/internal/match"
	"github.com/your-org/facegate/internal/models"
)

type fakeGallery struct {
	candidates []match.Candidate
}

func (g *fakeGallery) AllCandidates(context.Context) match.Candidates {
	return match.FromSlice(g.candidates)
}

type fakeUsers struct {
	byID   map[uuid.UUID]*models.User
	byName map[string]*models.User
}

func (u *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	return u.byID[id], nil
}

func (u *fakeUsers) GetUserByUsername(_ context.Context, name string) (*models.User, error) {
	return u.byName[name], nil
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*models.User{}, byName: map[string]*models.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
		f.byName[u.Username] = u
	}
	return f
}

func TestAuthenticateByFace_Match(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "alice", Active: true}
	vec := embedding.Vector{0.2, 0.4, 0.6, 0.8}
	gallery := &fakeGallery{candidates: []match.Candidate{
		{IdentityID: uuid.New(), UserID: user.ID, Embedding: vec},
	}}

	svc := NewService(gallery, newFakeUsers(user), 4, 0.7)

	res, got, err := svc.AuthenticateByFace(context.Background(), vec)
	if err != nil {
		t.Fatalf("AuthenticateByFace failed: %v", err)
	}
	if !res.Matched {
		t.Fatal("expected a match")
	}
	if got == nil || got.ID != user.ID {
		t.Errorf("resolved user = %v, want %v", got, user)
	}
}

func TestAuthenticateByFace_NoMatchBelowThreshold(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "alice", Active: true}
	gallery := &fakeGallery{candidates: []match.Candidate{
		{IdentityID: uuid.New(), UserID: user.ID, Embedding: embedding.Vector{0, 1}},
	}}

	svc := NewService(gallery, newFakeUsers(user), 2, 0.7)

	res, got, err := svc.AuthenticateByFace(context.Background(), embedding.Vector{1, 0})
	if err != nil {
		t.Fatalf("AuthenticateByFace failed: %v", err)
	}
	if res.Matched || got != nil {
		t.Errorf("orthogonal query must not match, got res=%+v user=%v", res, got)
	}
}

func TestAuthenticateByFace_EmptyGallery(t *testing.T) {
	svc := NewService(&fakeGallery{}, newFakeUsers(), 2, 0.7)

	res, got, err := svc.AuthenticateByFace(context.Background(), embedding.Vector{1, 0})
	if err != nil {
		t.Fatalf("empty gallery must not error: %v", err)
	}
	if res.Matched || got != nil {
		t.Error("empty gallery must reject")
	}
}

func TestAuthenticateByFace_DegenerateQuery(t *testing.T) {
	svc := NewService(&fakeGallery{}, newFakeUsers(), 2, 0.7)

	_, _, err := svc.AuthenticateByFace(context.Background(), embedding.Vector{0, 0})
	if !errors.Is(err, embedding.ErrDegenerateVector) {
		t.Errorf("zero query = %v, want ErrDegenerateVector", err)
	}
}

func TestAuthenticateByFace_WrongDimensionQuery(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "alice", Active: true}
	gallery := &fakeGallery{candidates: []match.Candidate{
		{IdentityID: uuid.New(), UserID: user.ID, Embedding: embedding.Vector{1, 0, 0, 0}},
	}}

	svc := NewService(gallery, newFakeUsers(user), 4, 0.7)

	// A query sized for a different model must surface as an input
	// error, not as a rejection with every candidate skipped.
	res, got, err := svc.AuthenticateByFace(context.Background(), embedding.Vector{1, 0})
	if !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Fatalf("wrong-dimension query = %v, want ErrDimensionMismatch", err)
	}
	if res.Matched || got != nil {
		t.Errorf("wrong-dimension query must not produce a decision, got res=%+v user=%v", res, got)
	}
}

func TestAuthenticateByFace_InactiveOwnerRejected(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "alice", Active: false}
	vec := embedding.Vector{1, 2, 3}
	gallery := &fakeGallery{candidates: []match.Candidate{
		{IdentityID: uuid.New(), UserID: user.ID, Embedding: vec},
	}}

	svc := NewService(gallery, newFakeUsers(user), 3, 0.7)

	res, got, err := svc.AuthenticateByFace(context.Background(), vec)
	if err != nil {
		t.Fatalf("AuthenticateByFace failed: %v", err)
	}
	if res.Matched || got != nil {
		t.Error("inactive account must not log in by face")
	}
	if res.Similarity < 0.99 {
		t.Errorf("similarity = %v, want the score still reported", res.Similarity)
	}
}

func TestAuthenticateByPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := &models.User{ID: uuid.New(), Username: "alice", PasswordHash: hash, Active: true}
	svc := NewService(&fakeGallery{}, newFakeUsers(user), 2, 0.7)

	t.Run("correct password", func(t *testing.T) {
		got, err := svc.AuthenticateByPassword(context.Background(), "alice", "s3cret")
		if err != nil {
			t.Fatalf("AuthenticateByPassword failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("user = %v, want %v", got.ID, user.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.AuthenticateByPassword(context.Background(), "alice", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("err = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.AuthenticateByPassword(context.Background(), "mallory", "s3cret")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("err = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestAuthenticateByPassword_NoHashEnrolledOnlyAccount(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "camera-only", Active: true}
	svc := NewService(&fakeGallery{}, newFakeUsers(user), 2, 0.7)

	_, err := svc.AuthenticateByPassword(context.Background(), "camera-only", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("account without password hash must reject, got %v", err)
	}
}
