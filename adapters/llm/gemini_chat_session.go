package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/voicebot-connector/domain"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

const maxAttempts = 3

// ErrNotConnected is returned when sending before Connect or after Disconnect
var ErrNotConnected = errors.New("gemini chat not connected")

// GeminiChatSession is one caller's conversation. Each message activity is
// answered with exactly one message activity.
type GeminiChatSession struct {
	bot     *GeminiBot
	handler repositories.DialogHandler
	logger  *zap.Logger
	system  *genai.Content

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	connected bool
	history   []*genai.Content
	fallback  int
}

func newGeminiChatSession(bot *GeminiBot, config repositories.DialogConfig, handler repositories.DialogHandler) *GeminiChatSession {
	ctx, cancel := context.WithCancel(context.Background())

	prompt := fmt.Sprintf("%s The caller speaks %s; reply in that language.", bot.config.SystemPrompt, config.Language)
	return &GeminiChatSession{
		bot:     bot,
		handler: handler,
		logger:  bot.logger.With(zap.String("sessionID", config.SessionID)),
		system:  genai.NewContentFromText(prompt, genai.RoleUser),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *GeminiChatSession) Connect() error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.handler.OnSessionStarted()
	return nil
}

func (s *GeminiChatSession) Disconnect() error {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	s.cancel()
	if wasConnected {
		s.handler.OnSessionStopped()
	}
	return nil
}

// SendActivity answers a message activity. The reply is delivered to the
// handler before SendActivity returns, so turns stay in order.
func (s *GeminiChatSession) SendActivity(raw string) error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	activity, err := domain.ParseActivity(raw)
	if err != nil {
		return fmt.Errorf("invalid activity: %w", err)
	}
	if !activity.IsMessage() || strings.TrimSpace(activity.Text) == "" {
		return nil
	}

	reply := s.sendMessage(activity.Text)

	encoded, err := domain.NewMessageActivity(reply).Marshal()
	if err != nil {
		return err
	}
	s.handler.OnActivityReceived(encoded)
	return nil
}

func (s *GeminiChatSession) Close() {
	s.cancel()
}

// History returns the number of contents exchanged so far
func (s *GeminiChatSession) History() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// sendMessage sends a message and gets a response, updating the history
func (s *GeminiChatSession) sendMessage(text string) string {
	userContent := genai.NewContentFromText(text, genai.RoleUser)

	s.mu.Lock()
	contents := make([]*genai.Content, 0, len(s.history)+1)
	contents = append(contents, s.history...)
	contents = append(contents, userContent)
	s.mu.Unlock()

	config := &genai.GenerateContentConfig{
		SystemInstruction: s.system,
		Temperature:       genai.Ptr(s.bot.config.Temperature),
		MaxOutputTokens:   int32(s.bot.config.MaxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.bot.config.TimeoutSeconds)*time.Second)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	delay := s.bot.retryDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = s.bot.generator.GenerateContent(ctx, s.bot.config.Model, contents, config)
		if err == nil {
			break
		}

		s.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			delay *= 2
		}
	}

	if err != nil {
		s.logger.Error("Failed to send message in chat session", zap.Error(err))
		return s.fallbackResponse(userContent)
	}

	responseText := extractText(response)
	if responseText == "" {
		s.logger.Warn("Empty response in chat session")
		return s.fallbackResponse(userContent)
	}

	s.mu.Lock()
	s.history = append(s.history, userContent, genai.NewContentFromText(responseText, genai.RoleModel))
	historyLength := len(s.history)
	s.mu.Unlock()

	s.logger.Info("Chat session message processed",
		zap.String("user_message", text[:min(50, len(text))]),
		zap.String("response_preview", responseText[:min(50, len(responseText))]),
		zap.Int("history_length", historyLength))

	return responseText
}

func (s *GeminiChatSession) fallbackResponse(userContent *genai.Content) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := fallbacks[s.fallback%len(fallbacks)]
	s.fallback++
	s.history = append(s.history, userContent, genai.NewContentFromText(reply, genai.RoleModel))
	return reply
}

func extractText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
