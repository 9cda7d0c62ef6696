package repositories

import "context"

// DialogConfig configures a dialog connector for one session
type DialogConfig struct {
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

// DialogHandler receives dialog connector callbacks in engine order
type DialogHandler interface {
	// OnActivityReceived receives the raw JSON activity sent by the bot
	OnActivityReceived(activity string)
	OnSessionStarted()
	OnSessionStopped()
	OnCanceled(cancellation Cancellation)
}

// DialogService abstracts any conversational bot backend
type DialogService interface {
	NewConnector(ctx context.Context, config DialogConfig, handler DialogHandler) (DialogConnector, error)
}

// DialogConnector is one connection to the bot
type DialogConnector interface {
	Connect() error
	Disconnect() error
	// SendActivity submits a JSON activity to the bot
	SendActivity(activity string) error
	Close()
}
