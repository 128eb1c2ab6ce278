// Package config provides the configuration structure for the
// synthesis-service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	SynthesisSubject       string `toml:"synthesis_subject"`
	TextObjectStoreBucket  string `toml:"text_object_store_bucket"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	AccountBucket          string `toml:"account_bucket"`
	RecordsBucket          string `toml:"records_bucket"`
}

// AzureConfig holds the credentials for the markup-based neural backend.
type AzureConfig struct {
	SpeechKey    string `toml:"speech_key"`
	SpeechRegion string `toml:"speech_region"`
}

// PollyConfig holds the long-lived service credentials for the plain-text
// standard backend.
type PollyConfig struct {
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Region          string `toml:"region"`
}

// SynthesisConfig holds the per-request processing parameters.
type SynthesisConfig struct {
	ChunkLimit           int    `toml:"chunk_limit"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	DefaultEngine        string `toml:"default_engine"`
	DefaultNeuralVoice   string `toml:"default_neural_voice"`
	DefaultStandardVoice string `toml:"default_standard_voice"`
}

// PlanConfig describes one billing tier.
type PlanConfig struct {
	Name                 string `toml:"name"`
	CreditLimit          int    `toml:"credit_limit"`
	HistoryRetentionDays int    `toml:"history_retention_days"`
}

// PlansConfig holds the billing tier table and the fallback tier name.
type PlansConfig struct {
	Default string       `toml:"default"`
	Tiers   []PlanConfig `toml:"tiers"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS      NATSConfig      `toml:"nats"`
	Azure     AzureConfig     `toml:"azure"`
	Polly     PollyConfig     `toml:"polly"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Plans     PlansConfig     `toml:"plans"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the configuration for the synthesis-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
