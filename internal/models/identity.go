package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/embedding"
)

// Identity is one enrolled face sample for one user. Slot numbers are
// user-local, 1-based and gap-free: for every user they are exactly
// {1..count}. The enrollment manager maintains that invariant.
type Identity struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	UserID     uuid.UUID        `json:"user_id" db:"user_id"`
	SlotNumber int              `json:"slot_number" db:"slot_number"`
	Embedding  embedding.Vector `json:"-" db:"embedding"`
	ImageKey   string           `json:"image_key" db:"image_key"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}
