// Package api exposes the daemon's status over HTTP: a JSON snapshot
// endpoint and a websocket stream of lifecycle changes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skycoin/skywire-utilities/pkg/buildinfo"
	"github.com/skycoin/skywire-utilities/pkg/logging"

	"github.com/tunfence/tunfence/pkg/statuspub"
	"github.com/tunfence/tunfence/pkg/vpn"
)

const httpTimeout = 30 * time.Second

// API wraps the status endpoints of the daemon.
type API struct {
	http.Handler

	log       *logging.Logger
	bc        *statuspub.Broadcaster
	startedAt time.Time
}

// HealthCheckResponse is the struct of the /health endpoint.
type HealthCheckResponse struct {
	BuildInfo *buildinfo.Info `json:"build_info,omitempty"`
	StartedAt time.Time       `json:"started_at"`
}

// Error is the object returned to the client when there's an error.
type Error struct {
	Error string `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, _ *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.WithError(err).Warn("Failed to write JSON response.")
	}
}

// StatusResponse is the struct of the /api/status endpoint and of every
// websocket frame on /api/status/ws.
type StatusResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Started bool   `json:"started"`
}

func statusResponse(status vpn.Status) StatusResponse {
	return StatusResponse{
		Status:  status.String(),
		Code:    status.Code(),
		Started: status.IsStarted(),
	}
}

// New creates a new API serving statuses published through bc.
func New(log *logging.Logger, bc *statuspub.Broadcaster) *API {
	if log == nil {
		log = logging.MustGetLogger("status_api")
	}

	api := &API{
		log:       log,
		bc:        bc,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", api.health)
	r.Get("/api/status", api.status)
	r.Get("/api/status/ws", api.statusStream)

	api.Handler = r
	return api
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (a *API) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: httpTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("Failed to shut down status API cleanly.")
		}
	}()

	a.log.WithField("addr", addr).Info("Serving status API.")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, http.StatusOK, HealthCheckResponse{
		BuildInfo: buildinfo.Get(),
		StartedAt: a.startedAt,
	})
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, http.StatusOK, statusResponse(a.bc.Current()))
}
