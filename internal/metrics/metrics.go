// Package metrics exposes Prometheus instrumentation for the bridge.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zoombridge/zoombridge/internal/httpx"
	"github.com/zoombridge/zoombridge/internal/logx"
)

var (
	connectedToServerGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zoombridge_connected_to_server",
		Help: "Whether the control channel is connected (1 or 0)",
	})
	pageConnectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zoombridge_page_connected",
		Help: "Whether a browser page shim is connected (1 or 0)",
	})
	sessionInitializedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zoombridge_session_initialized",
		Help: "Whether the meeting session is initialized (1 or 0)",
	})
	commandsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zoombridge_commands_total",
		Help: "Total number of commands processed",
	}, []string{"type", "result"})
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zoombridge_events_emitted_total",
		Help: "Total number of runtime events emitted",
	}, []string{"type"})
	commandDurationHist = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zoombridge_command_duration_seconds",
		Help:    "Duration of command handling in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// StartMetricsServer starts an HTTP server exposing Prometheus metrics on
// /metrics. It returns the address it is listening on.
func StartMetricsServer(ctx context.Context, addr string) (string, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		connectedToServerGauge,
		pageConnectedGauge,
		sessionInitializedGauge,
		commandsCounter,
		eventsCounter,
		commandDurationHist,
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	actual, err := httpx.ServeUntilContext(ctx, addr, mux)
	if err != nil {
		return "", err
	}
	logx.Log.Info().Str("addr", actual).Msg("metrics server started")
	return actual, nil
}

// SetConnectedToServer records control channel connectivity.
func SetConnectedToServer(v bool) {
	setBool(connectedToServerGauge, v)
}

// SetPageConnected records browser shim connectivity.
func SetPageConnected(v bool) {
	setBool(pageConnectedGauge, v)
}

// SetSessionInitialized records the session semaphore state.
func SetSessionInitialized(v bool) {
	setBool(sessionInitializedGauge, v)
}

// CommandProcessed records one command outcome and its duration.
func CommandProcessed(cmdType string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	commandsCounter.WithLabelValues(cmdType, result).Inc()
	commandDurationHist.Observe(d.Seconds())
}

// EventEmitted records one runtime event.
func EventEmitted(evType string) {
	eventsCounter.WithLabelValues(evType).Inc()
}

func setBool(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}
