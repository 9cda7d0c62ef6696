package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://api.elevenlabs.io/v1"
	defaultVoiceID    = "21m00Tcm4TlvDq8ikWAM"   // Rachel voice
	defaultChunkSize  = 1024                     // Size of reads from the audio stream
	outputFormat      = "pcm_16000"              // matches the telephony playback format
	defaultModelID    = "eleven_multilingual_v2" // Default model ID
	defaultStability  = 0.5                      // Default voice stability
	defaultClarity    = 0.75                     // Default voice clarity/similarity_boost
	requestTimeout    = 60 * time.Second
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Eleven Labs API (default: "https://api.elevenlabs.io/v1")
// - VoiceID: The voice ID to use (default: "21m00Tcm4TlvDq8ikWAM" - Rachel voice)
// - ModelID: The model ID to use (default: "eleven_multilingual_v2")
// - ChunkSize: The size of reads from the audio stream (default: 1024)
// - Stability: Voice stability value between 0 and 1 (default: 0.5)
// - Clarity: Voice clarity/similarity boost value between 0 and 1 (default: 0.75)
type ElevenLabsConfig struct {
	APIKey     string
	APIBaseURL string
	VoiceID    string
	ModelID    string
	ChunkSize  int
	Stability  float64
	Clarity    float64
}

// ElevenLabsTTS implements TextToSpeech interface using Eleven Labs API
type ElevenLabsTTS struct {
	apiKey     string
	apiBaseURL string
	voiceID    string
	modelID    string
	chunkSize  int
	stability  float64
	clarity    float64
	client     *http.Client
	logger     *zap.Logger
}

// Ensure ElevenLabsTTS implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

// ElevenLabsVoiceSettings represents voice settings for Eleven Labs API
type ElevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// ElevenLabsRequest represents the request payload for Eleven Labs TTS API
type ElevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	LanguageCode           string                  `json:"language_code,omitempty"`
	VoiceSettings          ElevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}

	// Validate stability is in the valid range
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}

	// Validate clarity is in the valid range
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}

	// Validate chunk size is reasonable if specified
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}

	return nil
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	// Validate required configuration
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	// Apply defaults where needed
	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", voiceID))
	}

	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
		logger.Info("Using default model ID", zap.String("modelID", modelID))
	}

	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}

	// Use provided stability/clarity or defaults
	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}

	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	return &ElevenLabsTTS{
		apiKey:     config.APIKey,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		voiceID:    voiceID,
		modelID:    modelID,
		chunkSize:  chunkSize,
		stability:  stability,
		clarity:    clarity,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "elevenlabs " + r.Method
				})),
		},
		logger: logger,
	}, nil
}

// NewSynthesizer binds a synthesizer to the session language. Voices are
// ElevenLabs voice IDs, so the configured voice ID always wins.
func (e *ElevenLabsTTS) NewSynthesizer(_ context.Context, config repositories.SynthesisConfig) (repositories.Synthesizer, error) {
	return &ElevenLabsSynthesizer{
		tts:          e,
		languageCode: languageCode(config.Language),
	}, nil
}

// ElevenLabsSynthesizer synthesizes for one session
type ElevenLabsSynthesizer struct {
	tts          *ElevenLabsTTS
	languageCode string
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return s.tts.ConvertTextToSpeech(ctx, text, s.languageCode)
}

func (s *ElevenLabsSynthesizer) Close() {}

// languageCode turns a locale like en-US into the ISO 639-1 code ElevenLabs expects
func languageCode(locale string) string {
	code, _, _ := strings.Cut(locale, "-")
	return strings.ToLower(code)
}

// ConvertTextToSpeech converts text to raw 16 kHz PCM using Eleven Labs API
func (e *ElevenLabsTTS) ConvertTextToSpeech(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	e.logger.Info("Converting text to speech",
		zap.String("text", text),
		zap.String("voiceID", e.voiceID),
		zap.String("modelID", e.modelID))

	// Create request payload
	request := ElevenLabsRequest{
		Text:                   text,
		ModelID:                e.modelID,
		LanguageCode:           language,
		ApplyTextNormalization: "auto",
		VoiceSettings: ElevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			UseSpeakerBoost: true,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, e.voiceID, outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	// PCM format requires audio/pcm accept header
	httpReq.Header.Set("Accept", "audio/pcm")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	e.logger.Debug("Sending request to Eleven Labs API", zap.String("url", url))

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("eleven labs API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	// Read the audio stream in chunks
	var audio bytes.Buffer
	buffer := make([]byte, e.chunkSize)
	chunkCount := 0
	for {
		n, err := resp.Body.Read(buffer)
		if n > 0 {
			chunkCount++
			audio.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading response body: %w", err)
		}
	}

	e.logger.Info("Finished reading audio data",
		zap.Int("totalChunks", chunkCount),
		zap.Int("totalBytes", audio.Len()))

	return audio.Bytes(), nil
}

// NewElevenLabsConfigFromEnv creates a new ElevenLabsConfig from environment variables
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:     os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL: os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:    os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:    os.Getenv("ELEVEN_LABS_MODEL_ID"),
	}

	// Parse numeric values from environment
	if chunkSizeStr := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); chunkSizeStr != "" {
		if chunkSize, err := strconv.Atoi(chunkSizeStr); err == nil && chunkSize > 0 {
			config.ChunkSize = chunkSize
		}
	}

	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}

	if clarityStr := os.Getenv("ELEVEN_LABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}

	return config
}
