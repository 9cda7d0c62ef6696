package entities

import (
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CustomFieldPrefix marks query parameters that are carried through to the webhook.
const CustomFieldPrefix = "x_"

// DefaultLanguage is used when the caller does not send a language_code.
const DefaultLanguage = "en-US"

// CustomField is a caller-supplied key/value pair carried through to the webhook verbatim
type CustomField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Session represents one WebSocket connection between a telephony client and the bot.
// Everything except the latest transcript is fixed once the session is created.
type Session struct {
	ID           string        `json:"id"`
	OriginalUUID string        `json:"original_uuid"`
	Language     string        `json:"language"`
	WebhookURL   string        `json:"webhook_url"`
	CustomFields []CustomField `json:"custom_fields"`
	CreatedAt    time.Time     `json:"created_at"`

	mu               sync.RWMutex
	latestTranscript string
}

// NewSession creates a new session for a connection
func NewSession(originalUUID, language, webhookURL string, customFields []CustomField) *Session {
	if language == "" {
		language = DefaultLanguage
	}
	return &Session{
		ID:           uuid.NewString(),
		OriginalUUID: originalUUID,
		Language:     language,
		WebhookURL:   webhookURL,
		CustomFields: customFields,
		CreatedAt:    time.Now(),
	}
}

// NewSessionFromQuery builds a session from the /socket query string.
// Custom fields are every x_ prefixed parameter, sorted by key, first value only.
func NewSessionFromQuery(query url.Values) *Session {
	var fields []CustomField
	for key, values := range query {
		if !strings.HasPrefix(key, CustomFieldPrefix) || len(values) == 0 {
			continue
		}
		fields = append(fields, CustomField{Key: key, Value: values[0]})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })

	return NewSession(
		query.Get("original_uuid"),
		query.Get("language_code"),
		query.Get("webhook_url"),
		fields,
	)
}

// LatestTranscript returns the most recent final transcript
func (s *Session) LatestTranscript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestTranscript
}

// SetLatestTranscript overwrites the latest transcript unconditionally
func (s *Session) SetLatestTranscript(transcript string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestTranscript = transcript
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}

	if s.Language == "" {
		return errors.New("language is required")
	}

	if s.WebhookURL != "" {
		u, err := url.Parse(s.WebhookURL)
		if err != nil || !u.IsAbs() {
			return errors.New("webhook_url must be an absolute URL")
		}
	}

	return nil
}
