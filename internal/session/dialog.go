package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain"
	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

const turnQueueSize = 32

// DialogSession bridges one bot connector to DialogActivities. Connecting and
// sending turns happen on a single worker goroutine so turns reach the bot in
// the order they were recognized.
type DialogSession struct {
	session    *entities.Session
	connector  repositories.DialogConnector
	activities chan<- DialogActivity
	done       <-chan struct{}
	logger     *zap.Logger

	turns chan string
	quit  chan struct{}

	// mu orders Connect against Disconnect the same way recognition orders
	// start and stop
	mu          sync.Mutex
	quitting    bool
	runDone     chan struct{}
	connectSent bool

	disconnectOnce sync.Once
	closeOnce      sync.Once
	disconnected   chan struct{}
}

var _ repositories.DialogHandler = (*DialogSession)(nil)

// NewDialogSession creates the bot connector for the session
func NewDialogSession(
	ctx context.Context,
	service repositories.DialogService,
	session *entities.Session,
	activities chan<- DialogActivity,
	done <-chan struct{},
	logger *zap.Logger,
) (*DialogSession, error) {
	d := &DialogSession{
		session:      session,
		activities:   activities,
		done:         done,
		logger:       logger,
		turns:        make(chan string, turnQueueSize),
		quit:         make(chan struct{}),
		disconnected: make(chan struct{}),
	}

	connector, err := service.NewConnector(ctx, repositories.DialogConfig{
		Language:  session.Language,
		SessionID: session.ID,
	}, d)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialog connector: %w", err)
	}
	d.connector = connector

	return d, nil
}

// Connect opens the bot channel in the background. A failed connect is logged
// and the session carries on without replies. It does nothing once Disconnect
// was called.
func (d *DialogSession) Connect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.quitting || d.runDone != nil {
		return
	}
	d.runDone = make(chan struct{})

	go d.run(d.runDone)
}

func (d *DialogSession) run(runDone chan struct{}) {
	defer close(runDone)

	d.mu.Lock()
	quitting := d.quitting
	if !quitting {
		d.connectSent = true
	}
	d.mu.Unlock()
	if quitting {
		return
	}

	if err := d.connector.Connect(); err != nil {
		d.logger.Error("Dialog connection failed", zap.Error(err))
	} else {
		d.logger.Info("Dialog connection started")
	}

	for {
		select {
		case <-d.quit:
			return
		case activity := <-d.turns:
			if err := d.connector.SendActivity(activity); err != nil {
				d.logger.Error("Send request to bot error", zap.Error(err))
				continue
			}
			d.logger.Debug("Sent request to bot", zap.String("activity", activity))
		}
	}
}

// SendTurn queues a user utterance as a message activity
func (d *DialogSession) SendTurn(text string) {
	activity, err := domain.NewMessageActivity(text).Marshal()
	if err != nil {
		d.logger.Error("Failed to build input activity", zap.Error(err))
		return
	}

	select {
	case d.turns <- activity:
		d.logger.Info("Input activity", zap.String("activity", activity))
	case <-d.quit:
	default:
		d.logger.Warn("Dialog turn queue full, dropping turn", zap.String("text", text))
	}
}

// Disconnect stops sending turns and disconnects the bot once the worker
// returned. A connector never connected is not disconnected. Safe to call more
// than once.
func (d *DialogSession) Disconnect() {
	d.disconnectOnce.Do(func() {
		d.mu.Lock()
		d.quitting = true
		runDone := d.runDone
		d.mu.Unlock()
		close(d.quit)

		go func() {
			defer close(d.disconnected)
			if runDone == nil {
				return
			}
			<-runDone

			d.mu.Lock()
			connectSent := d.connectSent
			d.mu.Unlock()
			if !connectSent {
				return
			}
			if err := d.connector.Disconnect(); err != nil {
				d.logger.Warn("Dialog disconnect failed", zap.Error(err))
			}
		}()
	})
}

// Close disconnects and releases the connector once the disconnect completed
func (d *DialogSession) Close() {
	d.Disconnect()
	d.closeOnce.Do(func() {
		go func() {
			<-d.disconnected
			d.connector.Close()
		}()
	})
}

func (d *DialogSession) OnActivityReceived(raw string) {
	activity, err := domain.ParseActivity(raw)
	if err != nil {
		d.logger.Warn("Dropping unreadable activity", zap.Error(err))
		return
	}

	if !activity.IsMessage() {
		d.logger.Debug("Ignoring non-message activity", zap.String("type", activity.Type))
		return
	}

	select {
	case d.activities <- DialogActivity{SessionID: d.session.ID, Text: activity.Text}:
	case <-d.done:
	}
}

func (d *DialogSession) OnSessionStarted() {
	d.logger.Debug("Dialog session started")
}

func (d *DialogSession) OnSessionStopped() {
	d.logger.Info("Dialog session stopped")
	d.Disconnect()
}

func (d *DialogSession) OnCanceled(cancellation repositories.Cancellation) {
	d.logger.Warn("Dialog connector canceled",
		zap.String("reason", cancellation.Reason),
		zap.String("code", cancellation.Code),
		zap.String("detail", cancellation.Detail))
}
