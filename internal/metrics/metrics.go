package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicebot_connector"

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of open WebSocket sessions.",
	})

	RecognitionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recognition_events_total",
		Help:      "Recognition events handled, by kind.",
	}, []string{"kind"})

	DialogActivities = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dialog_activities_total",
		Help:      "Bot replies received.",
	})

	SynthesisResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "synthesis_results_total",
		Help:      "Synthesis results, by outcome.",
	}, []string{"outcome"})

	PlaybackFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_frames_total",
		Help:      "Scheduled playback frames, by outcome.",
	}, []string{"outcome"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Webhook calls, by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
