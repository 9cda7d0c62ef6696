package domain

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ActivityTypeMessage is the Bot Framework activity type for text messages
const ActivityTypeMessage = "message"

// Activity is the subset of a Bot Framework activity exchanged with the bot
type Activity struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewMessageActivity creates a message activity carrying a user utterance
func NewMessageActivity(text string) Activity {
	return Activity{Type: ActivityTypeMessage, Text: text}
}

// IsMessage reports whether the activity carries a text reply.
// Bots may omit the type on simple replies.
func (a Activity) IsMessage() bool {
	return a.Type == "" || a.Type == ActivityTypeMessage
}

// Marshal encodes the activity as JSON
func (a Activity) Marshal() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal activity: %w", err)
	}
	return string(b), nil
}

// ParseActivity decodes a JSON activity, ignoring fields it does not know
func ParseActivity(raw string) (Activity, error) {
	var activity Activity
	if err := json.Unmarshal([]byte(raw), &activity); err != nil {
		return Activity{}, fmt.Errorf("failed to parse activity: %w", err)
	}
	return activity, nil
}
