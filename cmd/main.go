package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/adapters/azure"
	"github.com/satriahrh/voicebot-connector/adapters/llm"
	"github.com/satriahrh/voicebot-connector/adapters/mock"
	"github.com/satriahrh/voicebot-connector/adapters/stt"
	"github.com/satriahrh/voicebot-connector/adapters/tts"
	"github.com/satriahrh/voicebot-connector/internal/api"
	"github.com/satriahrh/voicebot-connector/internal/config"
	"github.com/satriahrh/voicebot-connector/internal/session"
	"github.com/satriahrh/voicebot-connector/internal/webhook"
	"github.com/satriahrh/voicebot-connector/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	engines, err := buildEngines(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize engines", zap.Error(err))
	}

	notifier := webhook.NewNotifier(webhook.Config{
		Workers: cfg.WebhookWorkers,
		Timeout: cfg.WebhookTimeout,
	}, logger)
	engines.Notifier = notifier

	// Initialize WebSocket hub
	hub := websocket.NewHub(engines, logger)
	go hub.Run()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api.InitRoutes(e, hub, cfg.AppDir, logger)

	go func() {
		if err := e.Start(cfg.Addr()); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", cfg.Addr()),
		zap.String("speechBackend", string(cfg.SpeechBackend)),
		zap.String("dialogBackend", string(cfg.DialogBackend)),
		zap.String("synthesisBackend", string(cfg.SynthesisBackend)))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := hub.Shutdown(ctx); err != nil {
		logger.Warn("Sessions still open at shutdown", zap.Error(err))
	}
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	// pending webhook calls are delivered before exit
	notifier.Stop()

	logger.Info("Server exited")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func buildEngines(cfg *config.Config, logger *zap.Logger) (session.Engines, error) {
	engines := session.Engines{Voice: cfg.Voice}
	credentials := azure.Credentials{
		SubscriptionKey: cfg.SpeechServiceKey,
		Region:          cfg.Region,
		BotName:         cfg.BotName,
	}

	switch cfg.SpeechBackend {
	case config.BackendAzure:
		speechToText, err := azure.NewSpeechToText(credentials, logger)
		if err != nil {
			return engines, err
		}
		engines.SpeechToText = speechToText
	case config.BackendGoogle:
		engines.SpeechToText = stt.NewGoogleSpeechToText(logger)
	default:
		engines.SpeechToText = mock.NewMockSpeechToText(logger)
	}

	switch cfg.DialogBackend {
	case config.BackendAzure:
		dialog, err := azure.NewDialogService(credentials, logger)
		if err != nil {
			return engines, err
		}
		engines.Dialog = dialog
	case config.BackendGemini:
		geminiConfig := llm.GeminiConfigFromEnv()
		geminiConfig.APIKey = cfg.GeminiAPIKey
		bot, err := llm.NewGeminiBot(context.Background(), geminiConfig, logger)
		if err != nil {
			return engines, err
		}
		engines.Dialog = bot
	default:
		engines.Dialog = mock.NewEchoBot(logger)
	}

	switch cfg.SynthesisBackend {
	case config.BackendAzure:
		textToSpeech, err := azure.NewTextToSpeech(credentials, logger)
		if err != nil {
			return engines, err
		}
		engines.TextToSpeech = textToSpeech
	case config.BackendElevenLabs:
		elevenLabsConfig := tts.NewElevenLabsConfigFromEnv()
		elevenLabsConfig.APIKey = cfg.ElevenLabsAPIKey
		textToSpeech, err := tts.NewElevenLabsTTS(elevenLabsConfig, logger)
		if err != nil {
			return engines, err
		}
		engines.TextToSpeech = textToSpeech
	case config.BackendMock:
		engines.TextToSpeech = mock.NewMockTextToSpeech(logger)
	case config.BackendNone:
		logger.Info("Speech synthesis disabled, replies are not played back")
	}

	return engines, nil
}
