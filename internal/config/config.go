package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/facegate/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Capture   CaptureConfig   `yaml:"capture"`
	Storage   StorageConfig   `yaml:"storage"`
	Web       WebConfig       `yaml:"web"`
	LogLevel  string          `yaml:"log_level"`
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`            // sqlite path, postgres:// or mysql:// URL
	MaxOpenConns  int    `yaml:"max_open_conns"` // Maximum open connections (default 10)
	MaxIdleConns  int    `yaml:"max_idle_conns"` // Maximum idle connections (default 2)
	HNSWIndexPath string `yaml:"hnsw_index_path"`
}

type EmbeddingConfig struct {
	URL string `yaml:"url"` // defaults to http://localhost:8000
	Dim int    `yaml:"dim"` // defaults to 512
}

type MatcherConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type CaptureConfig struct {
	Budget        time.Duration `yaml:"budget"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

type StorageConfig struct {
	ImagesDir string `yaml:"images_dir"` // reference images, one file per identity
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS whitelist in addition to localhost
	APIToken       string   `yaml:"-"`               // bearer token for /api/v1, empty disables auth
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable in time.ParseDuration format ("5s", "1500ms").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envString returns the env var value, or defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping blank items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the configuration embedded in defaults.yaml.
func Defaults() Config {
	cfg, err := parseDefaults(defaultsYAML)
	if err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

// parseDefaults decodes a defaults document. Matching and capture values
// the document leaves out fall back to the package constants.
func parseDefaults(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Embedding.Dim <= 0 {
		cfg.Embedding.Dim = constants.DefaultDescriptorDim
	}
	if cfg.Matcher.Threshold <= 0 {
		cfg.Matcher.Threshold = constants.DefaultMatchThreshold
	}
	if cfg.Capture.Budget <= 0 {
		cfg.Capture.Budget = constants.DefaultCaptureBudget
	}
	if cfg.Capture.FrameInterval <= 0 {
		cfg.Capture.FrameInterval = constants.DefaultFrameInterval
	}
	return cfg, nil
}

func Load() *Config {
	d := Defaults()

	return &Config{
		Database: DatabaseConfig{
			URL:           envString("DATABASE_URL", d.Database.URL),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
			HNSWIndexPath: envString("HNSW_INDEX_PATH", d.Database.HNSWIndexPath),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", d.Embedding.URL),
			Dim: envInt("EMBEDDING_DIM", d.Embedding.Dim),
		},
		Matcher: MatcherConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Matcher.Threshold),
		},
		Capture: CaptureConfig{
			Budget:        envDuration("CAPTURE_BUDGET", d.Capture.Budget),
			FrameInterval: envDuration("CAPTURE_FRAME_INTERVAL", d.Capture.FrameInterval),
		},
		Storage: StorageConfig{
			ImagesDir: envString("IMAGES_DIR", d.Storage.ImagesDir),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
		},
		LogLevel: envString("LOG_LEVEL", d.LogLevel),
	}
}
