package entities

import (
	"net/url"
	"testing"
)

func TestSessionCreation(t *testing.T) {
	session := NewSession("call-123", "en-US", "https://example.com/hook", nil)

	if session.ID == "" {
		t.Error("Expected session ID to be generated")
	}

	if session.OriginalUUID != "call-123" {
		t.Errorf("Expected original UUID call-123, got %s", session.OriginalUUID)
	}

	if session.Language != "en-US" {
		t.Errorf("Expected language en-US, got %s", session.Language)
	}

	if session.LatestTranscript() != "" {
		t.Errorf("Expected empty transcript, got %s", session.LatestTranscript())
	}
}

func TestSessionDefaultLanguage(t *testing.T) {
	session := NewSession("call-123", "", "", nil)

	if session.Language != DefaultLanguage {
		t.Errorf("Expected default language %s, got %s", DefaultLanguage, session.Language)
	}
}

func TestNewSessionFromQuery(t *testing.T) {
	query := url.Values{}
	query.Set("original_uuid", "abc-uuid")
	query.Set("webhook_url", "https://example.com/hook")
	query.Set("language_code", "de-DE")
	query.Set("x_campaign", "summer")
	query.Add("x_agent", "alice")
	query.Add("x_agent", "bob")
	query.Set("unrelated", "value")

	session := NewSessionFromQuery(query)

	if session.OriginalUUID != "abc-uuid" {
		t.Errorf("Expected original UUID abc-uuid, got %s", session.OriginalUUID)
	}

	if session.WebhookURL != "https://example.com/hook" {
		t.Errorf("Expected webhook URL, got %s", session.WebhookURL)
	}

	if session.Language != "de-DE" {
		t.Errorf("Expected language de-DE, got %s", session.Language)
	}

	if len(session.CustomFields) != 2 {
		t.Fatalf("Expected 2 custom fields, got %d", len(session.CustomFields))
	}

	// sorted by key, first value wins
	if session.CustomFields[0] != (CustomField{Key: "x_agent", Value: "alice"}) {
		t.Errorf("Unexpected first custom field %+v", session.CustomFields[0])
	}

	if session.CustomFields[1] != (CustomField{Key: "x_campaign", Value: "summer"}) {
		t.Errorf("Unexpected second custom field %+v", session.CustomFields[1])
	}
}

func TestLatestTranscriptOverwrite(t *testing.T) {
	session := NewSession("call-123", "en-US", "", nil)

	session.SetLatestTranscript("hello")
	session.SetLatestTranscript("goodbye")

	if session.LatestTranscript() != "goodbye" {
		t.Errorf("Expected latest transcript goodbye, got %s", session.LatestTranscript())
	}
}

func TestSessionValidation(t *testing.T) {
	session := NewSession("call-123", "en-US", "https://example.com/hook", nil)
	if err := session.Validate(); err != nil {
		t.Errorf("Expected valid session, got error: %v", err)
	}

	session = NewSession("call-123", "en-US", "/relative/hook", nil)
	if err := session.Validate(); err == nil {
		t.Error("Expected error for relative webhook URL")
	}

	session = &Session{Language: "en-US"}
	if err := session.Validate(); err == nil {
		t.Error("Expected error for missing ID")
	}
}
