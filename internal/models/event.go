package models

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds published to the AUTH_EVENTS stream.
const (
	EventFaceLogin     = "face_login"
	EventPasswordLogin = "password_login"
	EventEnroll        = "enroll"
	EventRemove        = "remove"
)

// Event outcomes.
const (
	OutcomeMatched  = "matched"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeOK       = "ok"
)

// AuthEvent is an audit record of a login attempt or a gallery change.
// Events flow through NATS before landing in the auth_events table and
// the live WebSocket feed.
type AuthEvent struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Kind       string     `json:"kind" db:"kind"`
	Outcome    string     `json:"outcome" db:"outcome"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	Similarity float64    `json:"similarity" db:"similarity"`
	Reason     string     `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
