package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/internal/session"
	"github.com/satriahrh/voicebot-connector/internal/websocket"
)

func setupRoutes(t *testing.T) *echo.Echo {
	t.Helper()
	appDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(appDir, "index.html"), []byte("<h1>connector</h1>"), 0o644); err != nil {
		t.Fatalf("Failed to write static file: %v", err)
	}

	e := echo.New()
	hub := websocket.NewHub(session.Engines{}, zap.NewNop())
	InitRoutes(e, hub, appDir, zap.NewNop())
	return e
}

func TestHealth(t *testing.T) {
	e := setupRoutes(t)

	req := httptest.NewRequest(http.MethodGet, "/_/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /_/health = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("GET /_/health body = %q, want empty", rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	e := setupRoutes(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "voicebot_connector_active_sessions") {
		t.Error("Metrics output is missing the active sessions gauge")
	}
}

func TestStaticApp(t *testing.T) {
	e := setupRoutes(t)

	req := httptest.NewRequest(http.MethodGet, "/app/index.html", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /app/index.html = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connector") {
		t.Errorf("Static body = %q", rec.Body.String())
	}
}

func TestSocketRejectsPlainRequest(t *testing.T) {
	e := setupRoutes(t)

	req := httptest.NewRequest(http.MethodGet, "/socket?webhook_url=/relative", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET /socket with relative webhook = %d, want 400", rec.Code)
	}
}
