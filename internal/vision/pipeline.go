package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/embedding"
	"github.com/your-org/facegate/internal/observability"
)

// Pipeline implements Provider: decode → detect → crop → embed.
type Pipeline struct {
	detector *Detector
	embedder *Embedder
}

// NewPipeline loads both ONNX models from cfg.ModelsDir and verifies
// the model's embedding dimension against the configured one, so a
// mismatched deployment fails at startup instead of corrupting the
// gallery.
func NewPipeline(cfg config.FaceConfig) (*Pipeline, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	if emb.Dim() != cfg.EmbeddingDim {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("model embedding dimension %d does not match configured %d",
			emb.Dim(), cfg.EmbeddingDim)
	}

	slog.Info("vision pipeline ready", "embedding_dim", emb.Dim())
	return &Pipeline{detector: det, embedder: emb}, nil
}

// Embed extracts an embedding from a standalone image. Exactly one
// confident face must be present: zero faces fail with
// ErrNoFaceDetected, more than one with ErrMultipleFaces.
func (p *Pipeline) Embed(ctx context.Context, imageData []byte) (embedding.Vector, float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start := time.Now()
	detInput := preprocessForDetection(img, p.detector.inputW, p.detector.inputH)
	detections, err := p.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, 0, fmt.Errorf("detect: %w", err)
	}
	observability.EmbedDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	switch {
	case len(detections) == 0:
		return nil, 0, ErrNoFaceDetected
	case len(detections) > 1:
		return nil, 0, ErrMultipleFaces
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	face := detections[0]
	faceCrop := cropFace(img, face.BBox)
	if faceCrop == nil {
		return nil, 0, ErrNoFaceDetected
	}

	start = time.Now()
	embInput := preprocessForEmbedding(faceCrop, p.embedder.inputW, p.embedder.inputH)
	vec, err := p.embedder.Extract(embInput)
	if err != nil {
		return nil, 0, fmt.Errorf("embed: %w", err)
	}
	observability.EmbedDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	return vec, face.Confidence, nil
}

// Close releases both ONNX sessions.
func (p *Pipeline) Close() {
	if p.detector != nil {
		p.detector.Close()
	}
	if p.embedder != nil {
		p.embedder.Close()
	}
}
