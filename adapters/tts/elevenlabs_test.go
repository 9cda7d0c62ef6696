package tts

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabsTTS(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	t.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	t.Setenv("ELEVEN_LABS_CHUNK_SIZE", "2048")
	t.Setenv("ELEVEN_LABS_STABILITY", "1.5")

	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}
	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}
	if tts.chunkSize != 2048 {
		t.Errorf("Expected chunk size 2048, got %d", tts.chunkSize)
	}
	// out of range values from the environment are ignored
	if tts.stability != defaultStability {
		t.Errorf("Expected default stability, got %f", tts.stability)
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"valid", ElevenLabsConfig{APIKey: "key"}, false},
		{"missing key", ElevenLabsConfig{}, true},
		{"stability out of range", ElevenLabsConfig{APIKey: "key", Stability: 2}, true},
		{"clarity out of range", ElevenLabsConfig{APIKey: "key", Clarity: -0.5}, true},
		{"negative chunk size", ElevenLabsConfig{APIKey: "key", ChunkSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateElevenLabsConfig(tt.config); (err != nil) != tt.wantErr {
				t.Errorf("ValidateElevenLabsConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestElevenLabsSynthesizer_Synthesize(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x10, 0x20}, 1500)

	var got ElevenLabsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1/stream" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("output_format") != "pcm_16000" {
			t.Errorf("Unexpected output format %s", r.URL.Query().Get("output_format"))
		}
		if r.Header.Get("xi-api-key") != "test-api-key" {
			t.Errorf("Missing api key header")
		}
		if r.Header.Get("Accept") != "audio/pcm" {
			t.Errorf("Unexpected Accept header %s", r.Header.Get("Accept"))
		}

		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		w.Write(pcm)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL + "/",
		VoiceID:    "voice-1",
		ChunkSize:  512,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	synthesizer, err := tts.NewSynthesizer(context.Background(), repositories.SynthesisConfig{Language: "id-ID", Voice: "id-ID-GadisNeural"})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	defer synthesizer.Close()

	audio, err := synthesizer.Synthesize(context.Background(), "Halo, apa kabar?")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !bytes.Equal(audio, pcm) {
		t.Errorf("Synthesize() returned %d bytes, want %d", len(audio), len(pcm))
	}

	if got.Text != "Halo, apa kabar?" || got.LanguageCode != "id" || got.ModelID != defaultModelID {
		t.Errorf("Unexpected request %+v", got)
	}
}

func TestElevenLabsSynthesizer_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if _, err := tts.ConvertTextToSpeech(context.Background(), "   ", "en"); err == nil {
		t.Error("Expected error for whitespace-only text")
	}

	if _, err := tts.ConvertTextToSpeech(context.Background(), "hello", "en"); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"en-US": "en",
		"id-ID": "id",
		"FR":    "fr",
		"":      "",
	}
	for in, want := range tests {
		if got := languageCode(in); got != want {
			t.Errorf("languageCode(%q) = %q, want %q", in, got, want)
		}
	}
}
