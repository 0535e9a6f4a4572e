package dto

import "github.com/google/uuid"

type AuthEventResponse struct {
	ID         uuid.UUID  `json:"id"`
	Kind       string     `json:"kind"`
	Outcome    string     `json:"outcome"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty"`
	Similarity float64    `json:"similarity"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  string     `json:"created_at"`
}

// WSEvent is the envelope broadcast over the live feed.
type WSEvent struct {
	Type string            `json:"type"`
	Data AuthEventResponse `json:"data"`
}
