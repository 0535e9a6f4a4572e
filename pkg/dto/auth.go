package dto

import "github.com/google/uuid"

type PasswordLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse reports a successful authentication. For face logins
// Similarity/Distance carry the matching scores; for password logins
// they are zero.
type LoginResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	Method     string    `json:"method"`
	Similarity float64   `json:"similarity,omitempty"`
	Distance   float64   `json:"distance,omitempty"`
}

// RejectionResponse reports a failed face login, keeping the best
// score seen for observability without naming a candidate.
type RejectionResponse struct {
	Error          string  `json:"error"`
	BestSimilarity float64 `json:"best_similarity"`
}
