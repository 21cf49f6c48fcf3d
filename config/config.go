// Package config provides configuration management for Personacore: the
// application configuration (koanf: defaults, file, environment) and the
// personality document that the core components read at construction and
// write back on save.
package config

import (
	"fmt"
	"time"
)

// Config is the global application configuration.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP API server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage is the durable backing store configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Personality locates the personality document and its save cadence.
	Personality PersonalityFileConfig `mapstructure:"personality"`

	// Tracker is the background engagement tracker configuration.
	Tracker TrackerConfig `mapstructure:"tracker"`

	// Learning holds the tunable engagement scoring parameters.
	Learning LearningTuning `mapstructure:"learning"`

	// Memory holds the tunable memory retrieval parameters.
	Memory MemoryTuning `mapstructure:"memory"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimit is the sustained request rate per second (0 disables limiting).
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// RateBurst is the burst size for the rate limiter.
	RateBurst int `mapstructure:"rate_burst" validate:"min=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds the durable backing store settings.
type StorageConfig struct {
	// Type is the storage backend (memory, badger, redis).
	Type string `mapstructure:"type" validate:"oneof=memory badger redis"`

	// WriteTimeout bounds every durable write. Expiry degrades the store
	// to in-memory-only operation instead of stalling the agent loop.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`

	// Redis is the Redis configuration.
	Redis RedisConfig `mapstructure:"redis"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// KeyPrefix namespaces all keys written by this instance.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// PersonalityFileConfig locates the personality document.
type PersonalityFileConfig struct {
	// Path is the personality document path (JSON).
	Path string `mapstructure:"path"`

	// Watch enables hot-reload of the document on file changes.
	Watch bool `mapstructure:"watch"`

	// AutosaveInterval is the cadence of the periodic state save
	// (0 disables the autosave loop).
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
}

// TrackerConfig holds the background engagement tracker settings.
type TrackerConfig struct {
	// Enabled enables the background tracker loop.
	Enabled bool `mapstructure:"enabled"`

	// Interval is the polling cadence for matured engagement metrics.
	Interval time.Duration `mapstructure:"interval"`

	// MaturityDelay is how long content must age before its platform
	// metrics are considered settled enough to record.
	MaturityDelay time.Duration `mapstructure:"maturity_delay"`

	// MetricsURL is the host platform endpoint that serves engagement
	// metrics per action ID. Empty disables the tracker even when Enabled.
	MetricsURL string `mapstructure:"metrics_url" validate:"omitempty,url"`
}

// LearningTuning holds the deterministic engagement scoring parameters.
//
// Raw counters are normalized with the saturating curve n(x) = x / (x + half):
// a counter equal to its half constant scores 0.5, and additional volume
// shows diminishing returns, so runaway impressions cannot dominate.
type LearningTuning struct {
	// PositiveFeedbackHalf is the half-saturation count for likes/upvotes.
	PositiveFeedbackHalf float64 `mapstructure:"positive_feedback_half" validate:"min=0"`

	// AmplificationHalf is the half-saturation count for shares/reposts.
	AmplificationHalf float64 `mapstructure:"amplification_half" validate:"min=0"`

	// ResponsesHalf is the half-saturation count for replies.
	ResponsesHalf float64 `mapstructure:"responses_half" validate:"min=0"`

	// ImpressionsHalf is the half-saturation count for views.
	ImpressionsHalf float64 `mapstructure:"impressions_half" validate:"min=0"`

	// SuccessThreshold is the engagement score above which an interaction
	// is kept as an exemplar.
	SuccessThreshold float64 `mapstructure:"success_threshold" validate:"min=0,max=1"`

	// ExemplarCap bounds the successful-interaction log.
	ExemplarCap int `mapstructure:"exemplar_cap" validate:"min=1"`

	// TrendWindow is the number of recent scores used for the trend insight.
	TrendWindow int `mapstructure:"trend_window" validate:"min=2"`

	// TopTopics is how many topics the learning insights report.
	TopTopics int `mapstructure:"top_topics" validate:"min=1"`
}

// MemoryTuning holds the deterministic memory retrieval parameters.
type MemoryTuning struct {
	// ContextRecent is how many recent interactions the memory context carries.
	ContextRecent int `mapstructure:"context_recent" validate:"min=1"`

	// ContextRelationships is how many relationships the memory context carries.
	ContextRelationships int `mapstructure:"context_relationships" validate:"min=1"`

	// ContextTopics is how many topics the memory context carries.
	ContextTopics int `mapstructure:"context_topics" validate:"min=1"`

	// CurrentBoost is the relevance boost applied to relationships and
	// topics tied to the current exchange.
	CurrentBoost float64 `mapstructure:"current_boost" validate:"min=0"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Storage: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Storage.Type)
}
