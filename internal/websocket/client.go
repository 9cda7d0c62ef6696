package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/internal/playback"
	"github.com/satriahrh/voicebot-connector/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Outbound queue length, about five seconds of frames.
	sendBufferSize = 256
)

var (
	errClientClosed  = errors.New("websocket client closed")
	errSendQueueFull = errors.New("websocket send queue full")
)

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its session.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	session     *entities.Session
	coordinator *session.Coordinator

	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ playback.Sink = (*Client)(nil)

func newClient(hub *Hub, conn *websocket.Conn, sess *entities.Session, logger *zap.Logger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan WriteData, sendBufferSize),
		session: sess,
		logger:  logger,
	}
}

// IsOpen reports whether frames can still be queued
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// WriteFrame queues one binary frame without blocking the playback timer
func (c *Client) WriteFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: frame}:
		return nil
	default:
		return errSendQueueFull
	}
}

// closeSend closes the outbound queue; writePump then says goodbye
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// goAway closes the connection from the server side
func (c *Client) goAway() {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
	c.conn.Close()
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		c.coordinator.Close()
		c.hub.unregister <- c
		c.conn.Close()
		c.logger.Info("WebSocket closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		// any frame proves the peer is alive
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.coordinator.HandleSettings(message)
		case websocket.BinaryMessage:
			if err := c.coordinator.PushAudio(message); err != nil {
				c.logger.Debug("Dropped audio chunk", zap.Error(err))
			}
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Debug("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
