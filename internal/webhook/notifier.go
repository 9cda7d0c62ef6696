// Package webhook reports each bot turn to the caller-supplied webhook.
package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/internal/metrics"
)

const (
	defaultWorkers = 8
	defaultTimeout = 10 * time.Second

	// okBody is the literal body a healthy webhook answers with.
	okBody = "Ok"

	maxResponseBody = 64 * 1024
)

// Record is the webhook payload. Custom fields are merged on top of the base
// fields, so a custom field may overwrite vapiUuid, request, reply or languageCode.
type Record map[string]string

// BuildRecord assembles the record for one turn
func BuildRecord(session *entities.Session, request, reply string) Record {
	record := Record{
		"vapiUuid":     session.OriginalUUID,
		"request":      request,
		"reply":        reply,
		"languageCode": session.Language,
	}
	for _, field := range session.CustomFields {
		record[field.Key] = field.Value
	}
	return record
}

// Config configures the notifier
type Config struct {
	Workers int
	Timeout time.Duration
}

// Notifier delivers records on a bounded worker pool. Delivery is best effort:
// one POST, no retry, failures are only logged.
type Notifier struct {
	client *http.Client
	pool   *workerpool.WorkerPool
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
}

// NewNotifier creates a notifier, applying defaults for zero config values
func NewNotifier(config Config, logger *zap.Logger) *Notifier {
	workers := config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Notifier{
		client: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "webhook " + r.Method
				}),
			),
		},
		pool:   workerpool.New(workers),
		logger: logger,
	}
}

// Notify queues the record for one turn and returns immediately
func (n *Notifier) Notify(session *entities.Session, request, reply string) {
	logger := n.logger.With(
		zap.String("sessionID", session.ID),
		zap.String("originalUUID", session.OriginalUUID))

	if session.WebhookURL == "" {
		logger.Warn("No webhook URL for session, skipping webhook call")
		metrics.WebhookDeliveries.WithLabelValues("skipped").Inc()
		return
	}

	body, err := json.Marshal(BuildRecord(session, request, reply))
	if err != nil {
		logger.Error("Failed to marshal webhook record", zap.Error(err))
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return
	}

	logger.Info("Webhook record", zap.ByteString("result", body))

	url := session.WebhookURL

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		logger.Warn("Notifier stopped, dropping webhook call")
		metrics.WebhookDeliveries.WithLabelValues("skipped").Inc()
		return
	}
	n.pool.Submit(func() {
		n.deliver(url, body, logger)
	})
}

func (n *Notifier) deliver(url string, body []byte, logger *zap.Logger) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Error("Failed to create webhook request", zap.Error(err))
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Error("Webhook call failed", zap.String("url", url), zap.Error(err))
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		logger.Error("Failed to read webhook response", zap.Error(err))
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return
	}

	if string(respBody) != okBody {
		logger.Info("Webhook call status",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("body", string(respBody)))
		metrics.WebhookDeliveries.WithLabelValues("unexpected").Inc()
		return
	}

	metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
}

// Stop waits for queued deliveries to finish. Later Notify calls are dropped.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.mu.Unlock()

	n.pool.StopWait()
}
