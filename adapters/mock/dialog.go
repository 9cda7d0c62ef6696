package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// ErrNotConnected is returned when sending before Connect or after Disconnect
var ErrNotConnected = errors.New("mock bot not connected")

// EchoBot is a dialog service replying with what it was told
type EchoBot struct {
	logger *zap.Logger
}

// NewEchoBot creates a new mock dialog service
func NewEchoBot(logger *zap.Logger) *EchoBot {
	return &EchoBot{logger: logger}
}

func (b *EchoBot) NewConnector(_ context.Context, config repositories.DialogConfig, handler repositories.DialogHandler) (repositories.DialogConnector, error) {
	return &EchoConnector{
		handler: handler,
		logger:  b.logger.With(zap.String("sessionID", config.SessionID)),
	}, nil
}

// EchoConnector delivers one reply activity per message activity
type EchoConnector struct {
	handler repositories.DialogHandler
	logger  *zap.Logger

	mu        sync.Mutex
	connected bool
}

func (c *EchoConnector) Connect() error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.handler.OnSessionStarted()
	return nil
}

func (c *EchoConnector) Disconnect() error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasConnected {
		c.handler.OnSessionStopped()
	}
	return nil
}

func (c *EchoConnector) SendActivity(raw string) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	activity, err := domain.ParseActivity(raw)
	if err != nil {
		return fmt.Errorf("mock bot rejected activity: %w", err)
	}
	if !activity.IsMessage() {
		return nil
	}

	reply, err := domain.NewMessageActivity("You said: " + activity.Text).Marshal()
	if err != nil {
		return err
	}

	// bots answer asynchronously
	go c.handler.OnActivityReceived(reply)
	return nil
}

func (c *EchoConnector) Close() {
	c.logger.Debug("Closed mock connector")
}
