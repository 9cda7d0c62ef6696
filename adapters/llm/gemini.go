// Package llm lets a Gemini model stand in for the bot.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 256
	defaultTimeoutSeconds = 15
	defaultSystemPrompt   = "You are a friendly phone assistant. Answer in one or two short spoken sentences, without markdown or lists."
)

var fallbacks = []string{
	"Sorry, I did not catch that. Could you say it again?",
	"I am having trouble answering right now. Please try again.",
}

// GeminiConfig holds the model settings shared by every session
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
	SystemPrompt    string
}

// GeminiConfigFromEnv reads GEMINI_API_KEY and GEMINI_MODEL
func GeminiConfigFromEnv() GeminiConfig {
	return GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	// Validate temperature is in the valid range
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	// Validate timeout is reasonable if specified
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

func (c GeminiConfig) withDefaults() GeminiConfig {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = defaultMaxTokens
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	return c
}

// ContentGenerator is the part of the genai client the bot uses
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBot implements DialogService with a Gemini chat per session
type GeminiBot struct {
	generator ContentGenerator
	config    GeminiConfig
	logger    *zap.Logger
	// retryDelay is the wait before the second attempt, doubled after
	retryDelay time.Duration
}

var _ repositories.DialogService = (*GeminiBot)(nil)

// NewGeminiBot creates a Gemini client for the configured API key
func NewGeminiBot(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiBot, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return NewGeminiBotWithGenerator(client.Models, config, logger), nil
}

// NewGeminiBotWithGenerator builds a bot on top of any content generator
func NewGeminiBotWithGenerator(generator ContentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiBot {
	config = config.withDefaults()
	logger.Info("Using Gemini bot",
		zap.String("model", config.Model),
		zap.Float32("temperature", config.Temperature),
		zap.Int("maxOutputTokens", config.MaxOutputTokens))

	return &GeminiBot{
		generator:  generator,
		config:     config,
		logger:     logger,
		retryDelay: time.Second,
	}
}

func (b *GeminiBot) NewConnector(_ context.Context, config repositories.DialogConfig, handler repositories.DialogHandler) (repositories.DialogConnector, error) {
	return newGeminiChatSession(b, config, handler), nil
}
