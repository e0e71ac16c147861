package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr        string
	IngestEnabled     bool
	IngestToken       string
	GeminiBaseURL     string
	GeminiAPIKey      string
	BasicModel        string
	EnhancedModel     string
	WebhookURL        string
	RequestTimeout    time.Duration
	TranscribeTimeout time.Duration
	WebhookTimeout    time.Duration
	MaxUploadBytes    int64
	LogLevel          string
}

type envConfig struct {
	ListenAddr               string `env:"LISTEN_ADDR" envDefault:":8080"`
	IngestEnabled            bool   `env:"INGEST_ENABLED" envDefault:"false"`
	IngestToken              string `env:"INGEST_TOKEN"`
	GeminiBaseURL            string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiAPIKey             string `env:"GEMINI_API_KEY"`
	BasicModel               string `env:"TRANSCRIPTION_MODEL" envDefault:"gemini-1.5-pro"`
	EnhancedModel            string `env:"ENHANCED_MODEL" envDefault:"gemini-2.5-pro"`
	WebhookURL               string `env:"SCRIBE_WEBHOOK_URL"`
	RequestTimeoutSeconds    int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"300"`
	TranscribeTimeoutSeconds int    `env:"TRANSCRIBE_TIMEOUT_SECONDS" envDefault:"240"`
	WebhookTimeoutSeconds    int    `env:"WEBHOOK_TIMEOUT_SECONDS" envDefault:"15"`
	MaxUploadBytes           int64  `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:        strings.TrimSpace(raw.ListenAddr),
		IngestEnabled:     raw.IngestEnabled,
		IngestToken:       strings.TrimSpace(raw.IngestToken),
		GeminiBaseURL:     strings.TrimRight(strings.TrimSpace(raw.GeminiBaseURL), "/"),
		GeminiAPIKey:      strings.TrimSpace(raw.GeminiAPIKey),
		BasicModel:        strings.TrimSpace(raw.BasicModel),
		EnhancedModel:     strings.TrimSpace(raw.EnhancedModel),
		WebhookURL:        strings.TrimSpace(raw.WebhookURL),
		RequestTimeout:    time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		TranscribeTimeout: time.Duration(raw.TranscribeTimeoutSeconds) * time.Second,
		WebhookTimeout:    time.Duration(raw.WebhookTimeoutSeconds) * time.Second,
		MaxUploadBytes:    raw.MaxUploadBytes,
		LogLevel:          strings.ToLower(strings.TrimSpace(raw.LogLevel)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with. A missing
// INGEST_TOKEN is deliberately not rejected here: the auth check fails
// closed instead, so a half-configured deployment serves 401s rather than
// an open endpoint.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.GeminiBaseURL == "" {
		return errors.New("GEMINI_BASE_URL must not be empty")
	}
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY must not be empty")
	}
	if c.BasicModel == "" {
		return errors.New("TRANSCRIPTION_MODEL must not be empty")
	}
	if c.EnhancedModel == "" {
		return errors.New("ENHANCED_MODEL must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.TranscribeTimeout <= 0 {
		return errors.New("TRANSCRIBE_TIMEOUT_SECONDS must be > 0")
	}
	if c.WebhookTimeout <= 0 {
		return errors.New("WEBHOOK_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	return nil
}
