// Package config handles Huginn configuration via environment variables
// and optional YAML files.
//
// Environment variables are the primary source (Docker/K8s friendly), all
// prefixed with HUGINN_. A YAML file can supply the same settings; when
// both are present the environment wins.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
//	fmt.Printf("HTTP server: %s:%d\n", cfg.Server.HTTPAddress, cfg.Server.HTTPPort)
//
// Environment Variables:
//
//	HUGINN_HTTP_ADDRESS            - HTTP listen address (default: 0.0.0.0)
//	HUGINN_HTTP_PORT               - HTTP listen port (default: 7600)
//	HUGINN_DATA_DIR                - Snapshot directory (default: ./data)
//	HUGINN_PERSISTENCE_ENABLED     - Enable snapshot persistence (default: false)
//	HUGINN_AUTH                    - "username/password" or "none" (default: none)
//	HUGINN_PROXIMITY_RADIUS        - NEAR edge radius (default: 10.0)
//	HUGINN_VISIBILITY_RANGE        - Line-of-sight cutoff (default: 50.0)
//	HUGINN_FIELD_OF_VIEW           - Half field of view in degrees (default: 60.0)
//	HUGINN_LEARNING_RATE           - Behaviour EMA factor (default: 0.2)
//	HUGINN_CONFIDENCE_THRESHOLD    - Pattern detection threshold (default: 0.65)
//	HUGINN_HISTORY_LIMIT           - Observation history cap (default: 1000)
//	HUGINN_TREND_WINDOW            - Trend analysis window (default: 50)
//	HUGINN_ANALYSIS_INTERVAL       - Background analysis period (default: 1s)
//	HUGINN_LOG_REQUESTS            - Log every HTTP request (default: false)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Huginn settings.
//
// Use LoadFromEnv() or LoadFromEnvOrFile() to construct one; the zero
// value is not usable.
type Config struct {
	// Server settings for the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Storage settings for snapshot persistence.
	Storage StorageConfig `yaml:"storage"`

	// Auth settings (HUGINN_AUTH format: "username/password" or "none").
	Auth AuthConfig `yaml:"auth"`

	// Graph holds spatial reasoning parameters.
	Graph GraphConfig `yaml:"graph"`

	// Behavior holds behaviour analysis parameters.
	Behavior BehaviorConfig `yaml:"behavior"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// HTTPAddress is the listen address.
	HTTPAddress string `yaml:"http_address"`
	// HTTPPort is the listen port.
	HTTPPort int `yaml:"http_port"`
	// LogRequests logs every request when true.
	LogRequests bool `yaml:"log_requests"`
}

// StorageConfig holds snapshot persistence settings.
type StorageConfig struct {
	// Enabled turns on badger-backed snapshots.
	Enabled bool `yaml:"enabled"`
	// DataDir is the snapshot directory.
	DataDir string `yaml:"data_dir"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Enabled controls whether the HTTP API requires a session token.
	Enabled bool `yaml:"enabled"`
	// InitialUsername is the bootstrap admin username.
	InitialUsername string `yaml:"initial_username"`
	// InitialPassword is the bootstrap admin password.
	InitialPassword string `yaml:"initial_password"`
	// MinPasswordLength for the password policy.
	MinPasswordLength int `yaml:"min_password_length"`
	// SessionTTL is how long issued tokens stay valid.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// GraphConfig holds spatial reasoning parameters.
type GraphConfig struct {
	// ProximityRadius is the NEAR edge creation distance.
	ProximityRadius float64 `yaml:"proximity_radius"`
	// VisibilityRange is the hard line-of-sight cutoff.
	VisibilityRange float64 `yaml:"visibility_range"`
	// FieldOfViewDeg is the half field of view in degrees.
	FieldOfViewDeg float64 `yaml:"field_of_view_deg"`
}

// BehaviorConfig holds behaviour analysis parameters.
type BehaviorConfig struct {
	// LearningRate is the EMA and weight nudge factor.
	LearningRate float64 `yaml:"learning_rate"`
	// ConfidenceThreshold gates pattern detection.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// HistoryLimit caps retained observations.
	HistoryLimit int `yaml:"history_limit"`
	// TrendWindow is the recent-observation window for trend insights.
	TrendWindow int `yaml:"trend_window"`
	// AnalysisInterval is the background analysis period.
	AnalysisInterval time.Duration `yaml:"analysis_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddress: "0.0.0.0",
			HTTPPort:    7600,
		},
		Storage: StorageConfig{
			Enabled: false,
			DataDir: "./data",
		},
		Auth: AuthConfig{
			Enabled:           false,
			InitialUsername:   "huginn",
			MinPasswordLength: 8,
			SessionTTL:        24 * time.Hour,
		},
		Graph: GraphConfig{
			ProximityRadius: 10.0,
			VisibilityRange: 50.0,
			FieldOfViewDeg:  60.0,
		},
		Behavior: BehaviorConfig{
			LearningRate:        0.2,
			ConfidenceThreshold: 0.65,
			HistoryLimit:        1000,
			TrendWindow:         50,
			AnalysisInterval:    time.Second,
		},
	}
}

// LoadFromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func LoadFromEnv() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// LoadFile reads a YAML configuration file. Settings absent from the file
// keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnvOrFile loads the YAML file when it exists, then applies
// environment overrides on top.
func LoadFromEnvOrFile(path string) *Config {
	cfg := Default()
	if path != "" {
		if fileCfg, err := LoadFile(path); err == nil {
			cfg = fileCfg
		}
	}
	applyEnv(cfg)
	return cfg
}

// applyEnv overlays set environment variables onto an existing config.
func applyEnv(cfg *Config) {
	cfg.Server.HTTPAddress = getEnv("HUGINN_HTTP_ADDRESS", cfg.Server.HTTPAddress)
	cfg.Server.HTTPPort = getEnvInt("HUGINN_HTTP_PORT", cfg.Server.HTTPPort)
	cfg.Server.LogRequests = getEnvBool("HUGINN_LOG_REQUESTS", cfg.Server.LogRequests)

	cfg.Storage.Enabled = getEnvBool("HUGINN_PERSISTENCE_ENABLED", cfg.Storage.Enabled)
	cfg.Storage.DataDir = getEnv("HUGINN_DATA_DIR", cfg.Storage.DataDir)

	if auth := os.Getenv("HUGINN_AUTH"); auth != "" {
		if strings.EqualFold(auth, "none") {
			cfg.Auth.Enabled = false
		} else if user, pass, ok := strings.Cut(auth, "/"); ok {
			cfg.Auth.Enabled = true
			cfg.Auth.InitialUsername = user
			cfg.Auth.InitialPassword = pass
		}
	}
	cfg.Auth.MinPasswordLength = getEnvInt("HUGINN_MIN_PASSWORD_LENGTH", cfg.Auth.MinPasswordLength)
	cfg.Auth.SessionTTL = getEnvDuration("HUGINN_SESSION_TTL", cfg.Auth.SessionTTL)

	cfg.Graph.ProximityRadius = getEnvFloat("HUGINN_PROXIMITY_RADIUS", cfg.Graph.ProximityRadius)
	cfg.Graph.VisibilityRange = getEnvFloat("HUGINN_VISIBILITY_RANGE", cfg.Graph.VisibilityRange)
	cfg.Graph.FieldOfViewDeg = getEnvFloat("HUGINN_FIELD_OF_VIEW", cfg.Graph.FieldOfViewDeg)

	cfg.Behavior.LearningRate = getEnvFloat("HUGINN_LEARNING_RATE", cfg.Behavior.LearningRate)
	cfg.Behavior.ConfidenceThreshold = getEnvFloat("HUGINN_CONFIDENCE_THRESHOLD", cfg.Behavior.ConfidenceThreshold)
	cfg.Behavior.HistoryLimit = getEnvInt("HUGINN_HISTORY_LIMIT", cfg.Behavior.HistoryLimit)
	cfg.Behavior.TrendWindow = getEnvInt("HUGINN_TREND_WINDOW", cfg.Behavior.TrendWindow)
	cfg.Behavior.AnalysisInterval = getEnvDuration("HUGINN_ANALYSIS_INTERVAL", cfg.Behavior.AnalysisInterval)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Graph.ProximityRadius <= 0 {
		return fmt.Errorf("proximity radius must be positive, got %f", c.Graph.ProximityRadius)
	}
	if c.Graph.VisibilityRange <= 0 {
		return fmt.Errorf("visibility range must be positive, got %f", c.Graph.VisibilityRange)
	}
	if c.Graph.FieldOfViewDeg <= 0 || c.Graph.FieldOfViewDeg > 180 {
		return fmt.Errorf("field of view must be in (0, 180], got %f", c.Graph.FieldOfViewDeg)
	}
	if c.Behavior.LearningRate <= 0 || c.Behavior.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %f", c.Behavior.LearningRate)
	}
	if c.Behavior.ConfidenceThreshold < 0 || c.Behavior.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0, 1], got %f", c.Behavior.ConfidenceThreshold)
	}
	if c.Behavior.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be positive, got %d", c.Behavior.HistoryLimit)
	}
	if c.Behavior.AnalysisInterval <= 0 {
		return fmt.Errorf("analysis interval must be positive, got %s", c.Behavior.AnalysisInterval)
	}
	if c.Auth.Enabled {
		if c.Auth.InitialUsername == "" {
			return fmt.Errorf("auth enabled but no initial username")
		}
		if len(c.Auth.InitialPassword) < c.Auth.MinPasswordLength {
			return fmt.Errorf("initial password shorter than %d characters", c.Auth.MinPasswordLength)
		}
	}
	return nil
}

// String renders a single-line summary. Secrets are not included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{http=%s:%d auth=%t persist=%t radius=%.1f fov=%.0f}",
		c.Server.HTTPAddress, c.Server.HTTPPort,
		c.Auth.Enabled, c.Storage.Enabled,
		c.Graph.ProximityRadius, c.Graph.FieldOfViewDeg)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
