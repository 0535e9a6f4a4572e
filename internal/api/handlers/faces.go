package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/enroll"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/internal/vision"
	"github.com/your-org/facegate/pkg/dto"
)

type FaceHandler struct {
	manager  *enroll.Manager
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer EventPublisher
	// Provider extracts a face embedding from image bytes. Nil until
	// the vision pipeline is initialized.
	Provider vision.Provider
}

func NewFaceHandler(manager *enroll.Manager, db *storage.PostgresStore, minio *storage.MinIOStore, producer EventPublisher) *FaceHandler {
	return &FaceHandler{manager: manager, db: db, minio: minio, producer: producer}
}

// Enroll accepts a multipart image upload, extracts the face embedding,
// and adds it to the user's gallery in the next free slot.
func (h *FaceHandler) Enroll(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	if h.Provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision pipeline not initialized"})
		return
	}

	vec, _, err := h.Provider.Embed(c.Request.Context(), imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	identity, err := h.manager.Enroll(c.Request.Context(), userID, vec, imageData, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, enroll.ErrCapacityExceeded):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, enroll.ErrInvalidEmbedding):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.publishEvent(c, &models.AuthEvent{
				Kind:    models.EventEnroll,
				Outcome: models.OutcomeError,
				UserID:  &userID,
				Reason:  err.Error(),
			})
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.publishEvent(c, &models.AuthEvent{
		Kind:       models.EventEnroll,
		Outcome:    models.OutcomeOK,
		UserID:     &userID,
		IdentityID: &identity.ID,
	})

	c.JSON(http.StatusCreated, faceResponse(identity))
}

// List returns the user's gallery in slot order.
func (h *FaceHandler) List(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	identities, err := h.manager.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.FaceResponse, 0, len(identities))
	for i := range identities {
		resp = append(resp, faceResponse(&identities[i]))
	}

	c.JSON(http.StatusOK, gin.H{"faces": resp, "total": len(resp)})
}

// Image proxies the stored enrollment image from MinIO.
func (h *FaceHandler) Image(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	faceID, err := uuid.Parse(c.Param("faceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	identity, err := h.db.GetIdentity(c.Request.Context(), faceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if identity == nil || identity.UserID != userID || identity.ImageKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "face image not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), identity.ImageKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "face image not found"})
		return
	}

	c.Data(http.StatusOK, imageContentType(identity.ImageKey), data)
}

// Delete removes one enrolled face and renumbers the user's remaining
// slots. Missing and not-owned records are indistinguishable: both 404.
func (h *FaceHandler) Delete(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	faceID, err := uuid.Parse(c.Param("faceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	if err := h.manager.Remove(c.Request.Context(), faceID, userID); err != nil {
		if errors.Is(err, enroll.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.publishEvent(c, &models.AuthEvent{
		Kind:       models.EventRemove,
		Outcome:    models.OutcomeOK,
		UserID:     &userID,
		IdentityID: &faceID,
	})

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *FaceHandler) publishEvent(c *gin.Context, ev *models.AuthEvent) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishAuthEvent(c.Request.Context(), ev); err != nil {
		slog.Warn("publish auth event", "kind", ev.Kind, "error", err)
	}
}

func faceResponse(identity *models.Identity) dto.FaceResponse {
	r := dto.FaceResponse{
		ID:         identity.ID,
		UserID:     identity.UserID,
		SlotNumber: identity.SlotNumber,
		CreatedAt:  identity.CreatedAt.Format(time.RFC3339),
	}
	if identity.ImageKey != "" {
		r.ImageURL = "/v1/users/" + identity.UserID.String() + "/faces/" + identity.ID.String() + "/image"
	}
	return r
}

func imageContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
