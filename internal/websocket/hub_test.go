package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/adapters/mock"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
	"github.com/satriahrh/voicebot-connector/internal/playback"
	"github.com/satriahrh/voicebot-connector/internal/session"
	"github.com/satriahrh/voicebot-connector/internal/webhook"
)

func setupTestServer(t *testing.T, engines session.Engines) (*Hub, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()

	hub := NewHub(engines, logger)
	go hub.Run()

	e := echo.New()
	e.GET("/socket", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return hub, server
}

func mockEngines(logger *zap.Logger) session.Engines {
	return session.Engines{
		SpeechToText: mock.NewMockSpeechToText(logger),
		Dialog:       mock.NewEchoBot(logger),
		TextToSpeech: mock.NewMockTextToSpeech(logger),
		Voice:        "en-US-JennyNeural",
	}
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/socket?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	return conn
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Hub has %d clients, want %d", hub.Count(), want)
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(session.Engines{}, zap.NewNop())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil {
		t.Error("Hub register channel not initialized")
	}
	if hub.unregister == nil {
		t.Error("Hub unregister channel not initialized")
	}
}

func TestHandleWebSocket_FullTurn(t *testing.T) {
	records := make(chan webhook.Record, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var record webhook.Record
		if err := json.Unmarshal(body, &record); err != nil {
			t.Errorf("Invalid webhook body: %v", err)
		}
		records <- record
		io.WriteString(w, "Ok")
	}))
	defer hook.Close()

	logger := zap.NewNop()
	notifier := webhook.NewNotifier(webhook.Config{Workers: 1}, logger)
	defer notifier.Stop()

	engines := mockEngines(logger)
	engines.Notifier = notifier
	hub, server := setupTestServer(t, engines)

	conn := dial(t, server, "original_uuid=abc-uuid&language_code=en-US&x_campaign=summer&webhook_url="+hook.URL)
	defer conn.Close()
	waitForCount(t, hub, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"websocket:connected"}`)); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}

	// recognition starts asynchronously; give it a moment before streaming
	time.Sleep(50 * time.Millisecond)

	// three seconds of audio hold exactly one mock utterance
	frame := make([]byte, playback.FrameSize)
	for i := 0; i < 150; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			t.Fatalf("Failed to write audio: %v", err)
		}
	}

	select {
	case record := <-records:
		want := webhook.Record{
			"vapiUuid":     "abc-uuid",
			"request":      "Hello, is anybody there?",
			"reply":        "You said: Hello, is anybody there?",
			"languageCode": "en-US",
			"x_campaign":   "summer",
		}
		if len(record) != len(want) {
			t.Errorf("Webhook record = %v, want %v", record, want)
		}
		for k, v := range want {
			if record[k] != v {
				t.Errorf("record[%s] = %q, want %q", k, record[k], v)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for webhook")
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for i := 0; i < 3; i++ {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read playback frame %d: %v", i, err)
		}
		if messageType != websocket.BinaryMessage {
			t.Errorf("Frame %d type = %d, want binary", i, messageType)
		}
		if len(payload) != playback.FrameSize {
			t.Errorf("Frame %d length = %d, want %d", i, len(payload), playback.FrameSize)
		}
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	waitForCount(t, hub, 0)
}

func TestHandleWebSocket_RejectsRelativeWebhook(t *testing.T) {
	_, server := setupTestServer(t, mockEngines(zap.NewNop()))

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/socket?webhook_url=/relative"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial succeeded, want handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Handshake response = %v, want 400", resp)
	}
}

type failingDialog struct{}

func (failingDialog) NewConnector(context.Context, repositories.DialogConfig, repositories.DialogHandler) (repositories.DialogConnector, error) {
	return nil, errors.New("bot not configured")
}

func TestHandleWebSocket_SessionFailureCloses(t *testing.T) {
	engines := mockEngines(zap.NewNop())
	engines.Dialog = failingDialog{}
	hub, server := setupTestServer(t, engines)

	conn := dial(t, server, "language_code=en-US")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseInternalServerErr) {
		t.Errorf("ReadMessage() error = %v, want internal server error close", err)
	}
	if hub.Count() != 0 {
		t.Errorf("Hub has %d clients, want 0", hub.Count())
	}
}

func TestHub_Shutdown(t *testing.T) {
	hub, server := setupTestServer(t, mockEngines(zap.NewNop()))

	first := dial(t, server, "original_uuid=one")
	defer first.Close()
	second := dial(t, server, "original_uuid=two")
	defer second.Close()
	waitForCount(t, hub, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if hub.Count() != 0 {
		t.Errorf("Hub has %d clients after shutdown", hub.Count())
	}

	first.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := first.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want going away close", err)
	}
}

func TestClient_WriteFrameAfterClose(t *testing.T) {
	client := &Client{send: make(chan WriteData, 1)}

	if !client.IsOpen() {
		t.Fatal("New client should be open")
	}
	if err := client.WriteFrame([]byte{1}); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if err := client.WriteFrame([]byte{2}); !errors.Is(err, errSendQueueFull) {
		t.Errorf("WriteFrame() on full queue error = %v, want errSendQueueFull", err)
	}

	client.closeSend()
	client.closeSend()

	if client.IsOpen() {
		t.Error("Closed client reports open")
	}
	if err := client.WriteFrame([]byte{3}); !errors.Is(err, errClientClosed) {
		t.Errorf("WriteFrame() after close error = %v, want errClientClosed", err)
	}
}
