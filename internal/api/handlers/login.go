package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/auth"
	"github.com/your-org/facegate/internal/embedding"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/vision"
	"github.com/your-org/facegate/pkg/dto"
)

// EventPublisher pushes audit events onto the event bus. Satisfied by
// queue.Producer.
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, ev *models.AuthEvent) error
}

type LoginHandler struct {
	auth     *auth.Service
	producer EventPublisher
	// Provider extracts a face embedding from image bytes. Nil until
	// the vision pipeline is initialized.
	Provider vision.Provider
}

func NewLoginHandler(authSvc *auth.Service, producer EventPublisher) *LoginHandler {
	return &LoginHandler{auth: authSvc, producer: producer}
}

// FaceLogin accepts a multipart image upload and authenticates the face
// in it against the full enrolled gallery.
func (h *LoginHandler) FaceLogin(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
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
		if errors.Is(err, vision.ErrNoFaceDetected) || errors.Is(err, vision.ErrMultipleFaces) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	res, user, err := h.auth.AuthenticateByFace(c.Request.Context(), vec)
	if err != nil {
		h.publishEvent(c, &models.AuthEvent{
			Kind:    models.EventFaceLogin,
			Outcome: models.OutcomeError,
			Reason:  err.Error(),
		})
		if errors.Is(err, embedding.ErrDimensionMismatch) || errors.Is(err, embedding.ErrDegenerateVector) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if user == nil {
		h.publishEvent(c, &models.AuthEvent{
			Kind:       models.EventFaceLogin,
			Outcome:    models.OutcomeRejected,
			Similarity: res.Similarity,
			Reason:     "no confident match",
		})
		c.JSON(http.StatusUnauthorized, dto.RejectionResponse{
			Error:          "face not recognized",
			BestSimilarity: res.Similarity,
		})
		return
	}

	h.publishEvent(c, &models.AuthEvent{
		Kind:       models.EventFaceLogin,
		Outcome:    models.OutcomeMatched,
		UserID:     &user.ID,
		IdentityID: &res.IdentityID,
		Similarity: res.Similarity,
	})

	c.JSON(http.StatusOK, dto.LoginResponse{
		UserID:     user.ID,
		Username:   user.Username,
		Method:     "face",
		Similarity: res.Similarity,
		Distance:   res.Distance,
	})
}

// PasswordLogin is the fallback path for users whose face cannot be
// matched.
func (h *LoginHandler) PasswordLogin(c *gin.Context) {
	var req dto.PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.AuthenticateByPassword(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.publishEvent(c, &models.AuthEvent{
				Kind:    models.EventPasswordLogin,
				Outcome: models.OutcomeRejected,
				Reason:  "invalid credentials",
			})
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.publishEvent(c, &models.AuthEvent{
			Kind:    models.EventPasswordLogin,
			Outcome: models.OutcomeError,
			Reason:  err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.publishEvent(c, &models.AuthEvent{
		Kind:    models.EventPasswordLogin,
		Outcome: models.OutcomeMatched,
		UserID:  &user.ID,
	})

	c.JSON(http.StatusOK, dto.LoginResponse{
		UserID:   user.ID,
		Username: user.Username,
		Method:   "password",
	})
}

// publishEvent is best-effort; a broken event bus must not fail logins.
func (h *LoginHandler) publishEvent(c *gin.Context, ev *models.AuthEvent) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishAuthEvent(c.Request.Context(), ev); err != nil {
		slog.Warn("publish auth event", "kind", ev.Kind, "error", err)
	}
}
