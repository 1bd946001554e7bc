package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flightclaim/internal/platform/metrics"
	"flightclaim/internal/platform/middleware"
)

// Deps collects everything the router mounts.
type Deps struct {
	Session *SessionHandler
	Wizard  *WizardHandler
	Search  *SearchHandler
	Report  *ReportHandler

	Validator middleware.SessionValidator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Health is polled by /healthz; nil checks are skipped.
	Health func() error
}

const requestTimeout = 30 * time.Second

// NewRouter assembles the full HTTP surface. Everything under the wizard,
// search, and report trees is session-scoped; /session, /healthz, and
// /metrics are open.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.LatencyMiddleware(d.Metrics))

	r.Get("/healthz", handleHealth(d.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.With(middleware.ContentTypeJSON).Post("/session", d.Session.HandleCreate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(d.Validator, d.Logger))
		r.Use(middleware.ContentTypeJSON)
		d.Wizard.Register(r)
		d.Search.Register(r)
		d.Report.Register(r)
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
