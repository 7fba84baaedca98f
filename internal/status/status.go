// Package status exposes a local HTTP endpoint reporting bridge health.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zoombridge/zoombridge/internal/httpx"
	"github.com/zoombridge/zoombridge/internal/logx"
	"github.com/zoombridge/zoombridge/internal/session"
)

// Info supplies the live state the status endpoint reports.
type Info struct {
	Version       string
	StartedAt     time.Time
	ControlStatus func() string
	PageConnected func() bool
	Session       func() session.Snapshot
}

type payload struct {
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	ControlStatus string           `json:"control_status"`
	PageConnected bool             `json:"page_connected"`
	Session       session.Snapshot `json:"session"`
}

// StartStatusServer starts the status HTTP server and returns the address it
// is listening on.
func StartStatusServer(ctx context.Context, addr string, info Info) (string, error) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload{
			Version:       info.Version,
			UptimeSeconds: int64(time.Since(info.StartedAt).Seconds()),
			ControlStatus: info.ControlStatus(),
			PageConnected: info.PageConnected(),
			Session:       info.Session(),
		})
	})

	actual, err := httpx.ServeUntilContext(ctx, addr, r)
	if err != nil {
		return "", err
	}
	logx.Log.Info().Str("addr", actual).Msg("status server started")
	return actual, nil
}
