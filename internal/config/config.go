// Package config loads the process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort           = "6000"
	defaultAppDir         = "./app"
	defaultVoice          = "en-US-JennyNeural"
	defaultWebhookWorkers = 8
	defaultWebhookTimeout = 10 * time.Second
)

// Backend names an engine implementation
type Backend string

const (
	BackendAzure      Backend = "azure"
	BackendGoogle     Backend = "google"
	BackendGemini     Backend = "gemini"
	BackendElevenLabs Backend = "elevenlabs"
	BackendMock       Backend = "mock"
	BackendNone       Backend = "none"
)

// Config is immutable after Load
type Config struct {
	Port     string
	AppDir   string
	LogLevel string

	SpeechBackend    Backend
	DialogBackend    Backend
	SynthesisBackend Backend
	Voice            string

	SpeechServiceKey string
	Region           string
	BotName          string

	GeminiAPIKey     string
	ElevenLabsAPIKey string

	WebhookWorkers int
	WebhookTimeout time.Duration
}

// Load reads a .env file when present, then the environment
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the environment only
func FromEnv() (*Config, error) {
	c := &Config{
		Port:             firstNonEmpty(os.Getenv("NERU_APP_PORT"), os.Getenv("PORT"), defaultPort),
		AppDir:           firstNonEmpty(os.Getenv("APP_DIR"), defaultAppDir),
		LogLevel:         strings.ToLower(os.Getenv("LOG_LEVEL")),
		SpeechBackend:    backend("SPEECH_BACKEND", BackendAzure),
		DialogBackend:    backend("DIALOG_BACKEND", BackendAzure),
		SynthesisBackend: backend("SYNTHESIS_BACKEND", BackendAzure),
		Voice:            firstNonEmpty(os.Getenv("TTS_VOICE"), defaultVoice),
		SpeechServiceKey: os.Getenv("MSA_SPEECH_SERVICE_KEY"),
		Region:           os.Getenv("MSA_REGION"),
		BotName:          os.Getenv("MSA_BOT_NAME"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVEN_LABS_API_KEY"),
		WebhookWorkers:   defaultWebhookWorkers,
		WebhookTimeout:   defaultWebhookTimeout,
	}

	if v := os.Getenv("WEBHOOK_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil || workers <= 0 {
			return nil, fmt.Errorf("WEBHOOK_WORKERS must be a positive integer, got %q", v)
		}
		c.WebhookWorkers = workers
	}

	if v := os.Getenv("WEBHOOK_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("WEBHOOK_TIMEOUT_SECONDS must be a positive integer, got %q", v)
		}
		c.WebhookTimeout = time.Duration(seconds) * time.Second
	}

	return c, nil
}

// Validate reports every missing setting for the selected backends
func (c *Config) Validate() error {
	var errs []error

	switch c.SpeechBackend {
	case BackendAzure:
		errs = append(errs, c.requireAzure("SPEECH_BACKEND")...)
	case BackendGoogle, BackendMock:
	default:
		errs = append(errs, fmt.Errorf("unknown SPEECH_BACKEND %q", c.SpeechBackend))
	}

	switch c.DialogBackend {
	case BackendAzure:
		errs = append(errs, c.requireAzure("DIALOG_BACKEND")...)
		if c.BotName == "" {
			errs = append(errs, errors.New("MSA_BOT_NAME is required for DIALOG_BACKEND=azure"))
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for DIALOG_BACKEND=gemini"))
		}
	case BackendMock:
	default:
		errs = append(errs, fmt.Errorf("unknown DIALOG_BACKEND %q", c.DialogBackend))
	}

	switch c.SynthesisBackend {
	case BackendAzure:
		errs = append(errs, c.requireAzure("SYNTHESIS_BACKEND")...)
	case BackendElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			errs = append(errs, errors.New("ELEVEN_LABS_API_KEY is required for SYNTHESIS_BACKEND=elevenlabs"))
		}
	case BackendMock, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown SYNTHESIS_BACKEND %q", c.SynthesisBackend))
	}

	return errors.Join(dedupe(errs)...)
}

func (c *Config) requireAzure(selector string) []error {
	var errs []error
	if c.SpeechServiceKey == "" {
		errs = append(errs, fmt.Errorf("MSA_SPEECH_SERVICE_KEY is required for %s=azure", selector))
	}
	if c.Region == "" {
		errs = append(errs, fmt.Errorf("MSA_REGION is required for %s=azure", selector))
	}
	return errs
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

func backend(key string, fallback Backend) Backend {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	return Backend(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// dedupe keeps the first error per variable so a missing key is reported once
func dedupe(errs []error) []error {
	seen := make(map[string]bool)
	var out []error
	for _, err := range errs {
		key, _, _ := strings.Cut(err.Error(), " is required")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, err)
	}
	return out
}
