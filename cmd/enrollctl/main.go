package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/enroll"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/internal/vision"
)

// enrollctl bulk-enrolls faces from a directory tree laid out as
// <root>/<username>/*.{jpg,jpeg,png}. Missing users are created
// (without a password); the per-user slot cap applies, so extra images
// in a directory are skipped.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	dir := flag.String("dir", "", "root of the image tree (<root>/<username>/*.jpg)")
	clear := flag.Bool("clear", false, "remove each user's existing faces before enrolling")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: enrollctl -dir <image-tree> [-clear] [-config <path>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	db, err := storage.NewPostgresStore(cfg.Database, cfg.Face.EmbeddingDim)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	pipeline, err := vision.NewPipeline(cfg.Face)
	if err != nil {
		slog.Error("vision pipeline init", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	manager := enroll.NewManager(db, minioStore, cfg.Face.EmbeddingDim, cfg.Face.MaxSlotsPerUser)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		slog.Error("read image tree", "dir", *dir, "error", err)
		os.Exit(1)
	}

	var enrolled, skipped, failed int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		username := entry.Name()

		user, err := getOrCreateUser(ctx, db, username)
		if err != nil {
			slog.Error("resolve user", "username", username, "error", err)
			failed++
			continue
		}

		if *clear {
			if err := manager.Clear(ctx, user.ID); err != nil {
				slog.Error("clear existing faces", "username", username, "error", err)
				failed++
				continue
			}
		}

		userDir := filepath.Join(*dir, username)
		images, err := os.ReadDir(userDir)
		if err != nil {
			slog.Error("read user directory", "dir", userDir, "error", err)
			failed++
			continue
		}

		for _, img := range images {
			if img.IsDir() || !isImageFile(img.Name()) {
				continue
			}
			path := filepath.Join(userDir, img.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				slog.Error("read image", "path", path, "error", err)
				failed++
				continue
			}

			vec, _, err := pipeline.Embed(ctx, data)
			if err != nil {
				slog.Warn("extract face", "path", path, "error", err)
				failed++
				continue
			}

			identity, err := manager.Enroll(ctx, user.ID, vec, data, contentTypeFor(img.Name()))
			if err != nil {
				if errors.Is(err, enroll.ErrCapacityExceeded) {
					slog.Info("slot cap reached, skipping remaining images",
						"username", username, "skipped", path)
					skipped++
					break
				}
				slog.Error("enroll face", "path", path, "error", err)
				failed++
				continue
			}

			slog.Info("enrolled face", "username", username,
				"slot", identity.SlotNumber, "path", path)
			enrolled++
		}
	}

	slog.Info("bulk enrollment finished",
		"enrolled", enrolled, "skipped", skipped, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func getOrCreateUser(ctx context.Context, db *storage.PostgresStore, username string) (*models.User, error) {
	user, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user, err = db.CreateUser(ctx, username, "")
	if err != nil {
		return nil, err
	}
	slog.Info("created user", "username", username, "id", user.ID)
	return user, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func contentTypeFor(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".png") {
		return "image/png"
	}
	return "image/jpeg"
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
