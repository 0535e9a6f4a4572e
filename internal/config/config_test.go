package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  host: localhost\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Face.EmbeddingDim != 512 {
		t.Errorf("default embedding_dim = %d, want 512", cfg.Face.EmbeddingDim)
	}
	if cfg.Face.MaxSlotsPerUser != 4 {
		t.Errorf("default max_slots_per_user = %d, want 4", cfg.Face.MaxSlotsPerUser)
	}
	if cfg.Face.SimilarityThreshold != 0.7 {
		t.Errorf("default similarity_threshold = %v, want 0.7", cfg.Face.SimilarityThreshold)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default logging format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_ZeroThresholdMeansDefault(t *testing.T) {
	// An explicit zero is indistinguishable from an absent key and is
	// replaced by the default; 0 itself is not a usable threshold.
	cfg, err := Load(writeConfig(t, "face:\n  similarity_threshold: 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Face.SimilarityThreshold != 0.7 {
		t.Errorf("zero threshold = %v, want the 0.7 default applied", cfg.Face.SimilarityThreshold)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FACEGATE_SIMILARITY_THRESHOLD", "0.85")
	t.Setenv("FACEGATE_MAX_SLOTS_PER_USER", "2")

	cfg, err := Load(writeConfig(t, "face:\n  similarity_threshold: 0.5\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Face.SimilarityThreshold != 0.85 {
		t.Errorf("env override threshold = %v, want 0.85", cfg.Face.SimilarityThreshold)
	}
	if cfg.Face.MaxSlotsPerUser != 2 {
		t.Errorf("env override max slots = %d, want 2", cfg.Face.MaxSlotsPerUser)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		setDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"threshold above one", func(c *Config) { c.Face.SimilarityThreshold = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.Face.SimilarityThreshold = -0.1 }, true},
		{"zero dimension", func(c *Config) { c.Face.EmbeddingDim = 0 }, true},
		{"negative slots", func(c *Config) { c.Face.MaxSlotsPerUser = -1 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "facegate", User: "app", Password: "secret"}
	want := "postgres://app:secret@db:5432/facegate?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
