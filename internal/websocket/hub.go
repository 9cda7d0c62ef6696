package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/internal/metrics"
	"github.com/satriahrh/voicebot-connector/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// telephony platforms do not send a browser origin
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Hub maintains the set of active clients so they can be closed on shutdown.
type Hub struct {
	// Registered clients, by session ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// live counts registered clients not yet unregistered
	live sync.WaitGroup

	engines session.Engines
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub. Every session is built from engines.
func NewHub(engines session.Engines, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		engines:    engines,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.session.ID] = client
			h.mu.Unlock()
			metrics.ActiveSessions.Inc()
			h.logger.Info("Client registered", zap.String("sessionID", client.session.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.session.ID]; ok {
				delete(h.clients, client.session.ID)
				client.closeSend()
				metrics.ActiveSessions.Dec()
				h.live.Done()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.session.ID))
		}
	}
}

// Count returns the number of registered clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown asks every client to go away and waits until all sessions closed
// or ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.logger.Info("Closing active sessions", zap.Int("count", len(clients)))
	for _, client := range clients {
		client.goAway()
	}

	done := make(chan struct{})
	go func() {
		h.live.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleWebSocket upgrades a /socket request and runs one telephony session on it.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	sess := entities.NewSessionFromQuery(c.QueryParams())
	if err := sess.Validate(); err != nil {
		logger.Warn("Rejected websocket request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	logger = logger.With(
		zap.String("sessionID", sess.ID),
		zap.String("originalUUID", sess.OriginalUUID))
	logger.Info("Websocket connected",
		zap.String("language", sess.Language),
		zap.String("webhookURL", sess.WebhookURL),
		zap.Any("customFields", sess.CustomFields))

	client := newClient(hub, conn, sess, logger)

	// the request context ends with the upgrade, sessions outlive it
	coordinator, err := session.NewCoordinator(context.Background(), sess, client, hub.engines, logger)
	if err != nil {
		logger.Error("Failed to create session", zap.Error(err))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return nil
	}
	client.coordinator = coordinator

	hub.live.Add(1)
	hub.register <- client

	go client.writePump()

	// started before any inbound frame can close the session
	coordinator.Start()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.readPump()

	return nil
}
