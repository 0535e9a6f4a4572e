// Package enroll governs how embeddings enter and leave a user's face
// gallery: capacity, slot numbering, and embedding validation at write
// time.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/embedding"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
)

var (
	// ErrCapacityExceeded means the user already holds the maximum
	// number of enrolled faces. An expected business condition, not a
	// system fault.
	ErrCapacityExceeded = errors.New("face slots full for user")

	// ErrInvalidEmbedding means the vector failed dimension or
	// degeneracy validation.
	ErrInvalidEmbedding = errors.New("invalid face embedding")

	// ErrIdentityNotFound covers both a missing identity and one owned
	// by a different user, so a caller cannot probe whether a record
	// exists for someone else.
	ErrIdentityNotFound = errors.New("face identity not found")
)

// Store is the persistence seam for identity records. All mutations for
// one user happen inside WithUserLock, which must serialize callers for
// the same user while letting different users proceed concurrently.
type Store interface {
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error
	CountIdentities(ctx context.Context, userID uuid.UUID) (int, error)
	InsertIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
	IdentitiesForUser(ctx context.Context, userID uuid.UUID) ([]models.Identity, error)
	UpdateSlotNumber(ctx context.Context, id uuid.UUID, slot int) error
}

// BlobStore holds the enrollment images associated with identities.
// DeleteUserImages removes a user's whole image prefix in one batch.
type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	DeleteUserImages(ctx context.Context, userID string) error
}

// Manager enforces the gallery invariants: at most MaxSlotsPerUser
// records per user, slot numbers exactly {1..count} with no gaps.
type Manager struct {
	store    Store
	blobs    BlobStore
	dim      int
	maxSlots int
}

func NewManager(store Store, blobs BlobStore, dim, maxSlots int) *Manager {
	return &Manager{store: store, blobs: blobs, dim: dim, maxSlots: maxSlots}
}

// Enroll validates vec, stores the source image, and creates an
// identity record in the next free slot. Fails with ErrCapacityExceeded
// when the user's gallery is full and ErrInvalidEmbedding when the
// vector is malformed.
func (m *Manager) Enroll(ctx context.Context, userID uuid.UUID, vec embedding.Vector, image []byte, contentType string) (*models.Identity, error) {
	if err := embedding.Validate(vec, m.dim); err != nil {
		observability.EnrollmentOps.WithLabelValues("enroll", "invalid").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidEmbedding, err)
	}

	identity := &models.Identity{
		ID:        uuid.New(),
		UserID:    userID,
		Embedding: vec,
	}
	identity.ImageKey = imageKey(userID, identity.ID, contentType)

	err := m.store.WithUserLock(ctx, userID, func(ctx context.Context) error {
		count, err := m.store.CountIdentities(ctx, userID)
		if err != nil {
			return fmt.Errorf("count identities: %w", err)
		}
		if count >= m.maxSlots {
			return ErrCapacityExceeded
		}
		identity.SlotNumber = count + 1

		if len(image) > 0 {
			if err := m.blobs.PutObject(ctx, identity.ImageKey, image, contentType); err != nil {
				return fmt.Errorf("store face image: %w", err)
			}
		} else {
			identity.ImageKey = ""
		}

		if err := m.store.InsertIdentity(ctx, identity); err != nil {
			if identity.ImageKey != "" {
				if delErr := m.blobs.DeleteObject(ctx, identity.ImageKey); delErr != nil {
					slog.Warn("orphaned face image after failed insert",
						"key", identity.ImageKey, "error", delErr)
				}
			}
			return fmt.Errorf("insert identity: %w", err)
		}
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrCapacityExceeded) {
			outcome = "capacity"
		}
		observability.EnrollmentOps.WithLabelValues("enroll", outcome).Inc()
		return nil, err
	}

	observability.EnrollmentOps.WithLabelValues("enroll", "ok").Inc()
	return identity, nil
}

// Remove deletes one identity owned by userID, removes its stored
// image, and renumbers the user's remaining records to 1..count. The
// gallery is never observably gapped once Remove returns.
func (m *Manager) Remove(ctx context.Context, identityID, userID uuid.UUID) error {
	err := m.store.WithUserLock(ctx, userID, func(ctx context.Context) error {
		identity, err := m.store.GetIdentity(ctx, identityID)
		if err != nil {
			return fmt.Errorf("get identity: %w", err)
		}
		if identity == nil || identity.UserID != userID {
			return ErrIdentityNotFound
		}

		if identity.ImageKey != "" {
			if err := m.blobs.DeleteObject(ctx, identity.ImageKey); err != nil {
				// The record deletion still proceeds; an orphaned
				// blob is recoverable, a gapped gallery is not.
				slog.Warn("delete face image", "key", identity.ImageKey, "error", err)
			}
		}

		if err := m.store.DeleteIdentity(ctx, identityID); err != nil {
			return fmt.Errorf("delete identity: %w", err)
		}

		remaining, err := m.store.IdentitiesForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list remaining identities: %w", err)
		}
		for i, rec := range remaining {
			if rec.SlotNumber != i+1 {
				if err := m.store.UpdateSlotNumber(ctx, rec.ID, i+1); err != nil {
					return fmt.Errorf("renumber slot %d: %w", i+1, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrIdentityNotFound) {
			outcome = "not_found"
		}
		observability.EnrollmentOps.WithLabelValues("remove", outcome).Inc()
		return err
	}

	observability.EnrollmentOps.WithLabelValues("remove", "ok").Inc()
	return nil
}

// Clear empties a user's gallery: every identity record is deleted and
// the stored images are removed in one batch. A user with no enrolled
// faces clears successfully.
func (m *Manager) Clear(ctx context.Context, userID uuid.UUID) error {
	err := m.store.WithUserLock(ctx, userID, func(ctx context.Context) error {
		existing, err := m.store.IdentitiesForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list identities: %w", err)
		}
		for _, rec := range existing {
			if err := m.store.DeleteIdentity(ctx, rec.ID); err != nil {
				return fmt.Errorf("delete identity %s: %w", rec.ID, err)
			}
		}
		if err := m.blobs.DeleteUserImages(ctx, userID.String()); err != nil {
			// Orphaned blobs are recoverable; the records are gone.
			slog.Warn("batch delete face images", "user_id", userID, "error", err)
		}
		return nil
	})
	if err != nil {
		observability.EnrollmentOps.WithLabelValues("clear", "error").Inc()
		return err
	}

	observability.EnrollmentOps.WithLabelValues("clear", "ok").Inc()
	return nil
}

// List returns the user's gallery in slot order.
func (m *Manager) List(ctx context.Context, userID uuid.UUID) ([]models.Identity, error) {
	return m.store.IdentitiesForUser(ctx, userID)
}

// imageKey builds the blob key for an enrollment image, with an
// extension derived from the upload's content type.
func imageKey(userID, identityID uuid.UUID, contentType string) string {
	ext := ".jpg"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}
	return path.Join("faces", "user_"+userID.String(), identityID.String()+ext)
}
