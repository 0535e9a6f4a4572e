package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Face     FaceConfig     `yaml:"face"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// FaceConfig holds the matching and enrollment tuning knobs.
//
// SimilarityThreshold is a cosine *similarity* lower bound in (0, 1]:
// a candidate matches when 1 - cosine_distance(query, candidate) is at
// least this value. The default 0.7 corresponds to a cosine distance
// bound of 0.3. A zero value is treated as unset and replaced by the
// default; a threshold of exactly 0 (match anything with any score) is
// not configurable.
type FaceConfig struct {
	ModelsDir           string  `yaml:"models_dir"`
	EmbeddingDim        int     `yaml:"embedding_dim"`
	MaxSlotsPerUser     int     `yaml:"max_slots_per_user"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DetectionThreshold  float64 `yaml:"detection_threshold"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file, applies environment variable
// overrides and defaults, and validates the result. All lookups happen
// here, once; nothing reads configuration ad hoc at request time.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations that would silently misbehave at
// request time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Face.EmbeddingDim <= 0 {
		return fmt.Errorf("face.embedding_dim must be positive, got %d", c.Face.EmbeddingDim)
	}
	if c.Face.MaxSlotsPerUser <= 0 {
		return fmt.Errorf("face.max_slots_per_user must be positive, got %d", c.Face.MaxSlotsPerUser)
	}
	if c.Face.SimilarityThreshold < 0 || c.Face.SimilarityThreshold > 1 {
		return fmt.Errorf("face.similarity_threshold %v outside [0, 1]", c.Face.SimilarityThreshold)
	}
	if c.Face.DetectionThreshold <= 0 || c.Face.DetectionThreshold > 1 {
		return fmt.Errorf("face.detection_threshold %v outside (0, 1]", c.Face.DetectionThreshold)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Face.EmbeddingDim == 0 {
		cfg.Face.EmbeddingDim = 512
	}
	if cfg.Face.MaxSlotsPerUser == 0 {
		cfg.Face.MaxSlotsPerUser = 4
	}
	if cfg.Face.SimilarityThreshold == 0 {
		cfg.Face.SimilarityThreshold = 0.7
	}
	if cfg.Face.DetectionThreshold == 0 {
		cfg.Face.DetectionThreshold = 0.5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEGATE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FACEGATE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEGATE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACEGATE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACEGATE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACEGATE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEGATE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACEGATE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACEGATE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACEGATE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEGATE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FACEGATE_MODELS_DIR"); v != "" {
		cfg.Face.ModelsDir = v
	}
	if v := os.Getenv("FACEGATE_SIMILARITY_THRESHOLD"); v != "" {
		if th, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Face.SimilarityThreshold = th
		}
	}
	if v := os.Getenv("FACEGATE_MAX_SLOTS_PER_USER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Face.MaxSlotsPerUser = n
		}
	}
}
