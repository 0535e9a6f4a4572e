package dto

import "github.com/google/uuid"

type FaceResponse struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	SlotNumber int       `json:"slot_number"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  string    `json:"created_at"`
}
