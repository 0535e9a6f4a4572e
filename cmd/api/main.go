package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facegate/internal/api"
	"github.com/your-org/facegate/internal/api/ws"
	"github.com/your-org/facegate/internal/auth"
	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/enroll"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/queue"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/internal/vision"
	"github.com/your-org/facegate/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facegate API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database, cfg.Face.EmbeddingDim)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume auth events: persist to DB, then broadcast over WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeAuthEvents(ctx, "api-auth-events", func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.AuthEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return err
		}

		if err := db.InsertAuthEvent(ctx, &ev); err != nil {
			slog.Error("store auth event", "error", err)
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type: ev.Kind,
			Data: dto.AuthEventResponse{
				ID:         ev.ID,
				Kind:       ev.Kind,
				Outcome:    ev.Outcome,
				UserID:     ev.UserID,
				IdentityID: ev.IdentityID,
				Similarity: ev.Similarity,
				Reason:     ev.Reason,
				CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
			},
		})

		return nil
	})
	if err != nil {
		slog.Warn("start auth event consumer", "error", err)
	}

	// Initialize ONNX Runtime for face embedding. Without it the
	// password login and gallery management still work; face endpoints
	// answer 503.
	var provider vision.Provider

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed — face endpoints will be unavailable", "error", err)
	} else {
		pipeline, err := vision.NewPipeline(cfg.Face)
		if err != nil {
			slog.Warn("vision pipeline init failed — face endpoints will be unavailable", "error", err)
		} else {
			provider = pipeline
			defer pipeline.Close()
			defer ort.DestroyEnvironment()
			slog.Info("vision pipeline ready", "embedding_dim", cfg.Face.EmbeddingDim)
		}
	}

	authSvc := auth.NewService(db, db, cfg.Face.EmbeddingDim, cfg.Face.SimilarityThreshold)
	manager := enroll.NewManager(db, minioStore, cfg.Face.EmbeddingDim, cfg.Face.MaxSlotsPerUser)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
		Auth:     authSvc,
		Enroll:   manager,
		Provider: provider,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
