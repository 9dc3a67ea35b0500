// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Keys are flat snake_case so YAML, env and struct tags line up.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text, json or pretty.
	LogFormat string `koanf:"log_format" validate:"oneof=text json pretty"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory task queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// WorkerCount sets the number of stage workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// DedupeSize bounds the set of coalesced in-flight score tasks.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// DatabaseDriver is sqlite or mysql; DatabaseDSN is passed to the driver as is.
	DatabaseDriver string `koanf:"database_driver" validate:"oneof=sqlite mysql"`
	DatabaseDSN    string `koanf:"database_dsn" validate:"required"`
	DBMaxOpenConns int    `koanf:"db_max_open_conns" validate:"gte=0"`
	DBMaxIdleConns int    `koanf:"db_max_idle_conns" validate:"gte=0"`

	// RedisAddr enables the Redis queue, lock and timeline publisher when set.
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db" validate:"gte=0"`
	RedisKeyPrefix string `koanf:"redis_key_prefix" validate:"required"`

	// AudioDir is the root of the blob store for uploaded recordings.
	AudioDir      string `koanf:"audio_dir" validate:"required"`
	MaxAudioBytes int64  `koanf:"max_audio_bytes" validate:"gte=1"`

	// Generative oracles. An empty key leaves the oracles unconfigured.
	AnthropicAPIKey  string `koanf:"anthropic_api_key"`
	AnthropicModel   string `koanf:"anthropic_model" validate:"required"`
	OracleMaxRetries int    `koanf:"oracle_max_retries" validate:"gte=0"`

	// Speech-to-text endpoint (OpenAI-compatible /audio/transcriptions).
	STTEndpoint string `koanf:"stt_endpoint" validate:"omitempty,url"`
	STTAPIKey   string `koanf:"stt_api_key"`
	STTModel    string `koanf:"stt_model" validate:"required"`

	// SynthesisConfidenceThreshold is the minimum confidence for accepting a synthesized ticket.
	SynthesisConfidenceThreshold float64 `koanf:"synthesis_confidence_threshold" validate:"gte=0,lte=1"`

	// SynthesisFeedbackLimit caps the feedback loaded as synthesis context.
	SynthesisFeedbackLimit int `koanf:"synthesis_feedback_limit" validate:"gte=1"`

	// ConsolidationLockTTLMS bounds how long a per-client consolidation lock may
	// be held. It is raised to cover the matcher's retry budget when lower.
	ConsolidationLockTTLMS int `koanf:"consolidation_lock_ttl_ms" validate:"gte=1"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit" validate:"gte=1"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                     "info",
		LogFormat:                    "text",
		Addr:                         ":9080",
		QueueSize:                    10_000,
		WorkerCount:                  runtime.NumCPU() * 2,
		DedupeSize:                   50_000,
		DatabaseDriver:               "sqlite",
		DatabaseDSN:                  "voicebox.db",
		DBMaxOpenConns:               10,
		DBMaxIdleConns:               5,
		RedisKeyPrefix:               "voicebox",
		AudioDir:                     "data/audio",
		MaxAudioBytes:                10 << 20,
		AnthropicModel:               "claude-sonnet-4-5",
		OracleMaxRetries:             3,
		STTEndpoint:                  "https://api.openai.com/v1",
		STTModel:                     "whisper-1",
		SynthesisConfidenceThreshold: 0.70,
		SynthesisFeedbackLimit:       100,
		ConsolidationLockTTLMS:       120_000,
		MaxRankingLimit:              100,
	}
}
