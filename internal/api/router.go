package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facegate/internal/api/handlers"
	"github.com/your-org/facegate/internal/api/ws"
	"github.com/your-org/facegate/internal/auth"
	"github.com/your-org/facegate/internal/enroll"
	"github.com/your-org/facegate/internal/queue"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/internal/vision"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
	Auth     *auth.Service
	Enroll   *enroll.Manager
	// Provider extracts face embeddings (from vision pipeline). May be
	// nil, in which case face endpoints answer 503.
	Provider vision.Provider
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Login
	loginH := handlers.NewLoginHandler(cfg.Auth, cfg.Producer)
	loginH.Provider = cfg.Provider
	v1.POST("/login/face", loginH.FaceLogin)
	v1.POST("/login/password", loginH.PasswordLogin)

	// Enrollment
	faceH := handlers.NewFaceHandler(cfg.Enroll, cfg.DB, cfg.MinIO, cfg.Producer)
	faceH.Provider = cfg.Provider
	v1.POST("/users/:id/faces", faceH.Enroll)
	v1.GET("/users/:id/faces", faceH.List)
	v1.GET("/users/:id/faces/:faceId/image", faceH.Image)
	v1.DELETE("/users/:id/faces/:faceId", faceH.Delete)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB)
	v1.GET("/events", eventH.List)

	return r
}
