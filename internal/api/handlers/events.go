package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/pkg/dto"
)

type EventHandler struct {
	db *storage.PostgresStore
}

func NewEventHandler(db *storage.PostgresStore) *EventHandler {
	return &EventHandler{db: db}
}

// List returns the most recent auth events, newest first.
func (h *EventHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := h.db.ListAuthEvents(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AuthEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, dto.AuthEventResponse{
			ID:         ev.ID,
			Kind:       ev.Kind,
			Outcome:    ev.Outcome,
			UserID:     ev.UserID,
			IdentityID: ev.IdentityID,
			Similarity: ev.Similarity,
			Reason:     ev.Reason,
			CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"events": resp, "total": len(resp)})
}
