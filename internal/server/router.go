// Package server implements the HTTP command surface and routing logic.
package server

import (
	"net/http"

	"github.com/gridbase/gridbase/internal/events"
	"github.com/gridbase/gridbase/internal/gitsnap"
	"github.com/gridbase/gridbase/internal/server/handlers"
	"github.com/gridbase/gridbase/internal/workspace"
)

// Config carries router construction parameters.
type Config struct {
	Version string
	// Snapshots commits workspace files after saves when non-nil.
	Snapshots *gitsnap.Service
	// SavesPerSecond bounds mutating commands per client. Zero uses a
	// default sized for interactive editing.
	SavesPerSecond float64
}

// NewRouter creates and configures the HTTP router: the command API under
// /api/* and the notification stream at /api/events.
func NewRouter(mgr *workspace.Manager, broker *events.Broker, cfg *Config) http.Handler {
	perSecond := cfg.SavesPerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	limiter := newRateLimiter(perSecond, 2*int(perSecond))

	th := handlers.NewTableHandler(mgr, cfg.Snapshots)
	hh := handlers.NewHealthHandler(cfg.Version)
	eh := handlers.NewEventsHandler(broker)

	mux := &http.ServeMux{}
	mux.Handle("GET /api/health", Wrap(hh.Health))
	mux.Handle("POST /api/table/load", limiter.wrap(Wrap(th.Load)))
	mux.Handle("POST /api/table/save", limiter.wrap(Wrap(th.Save)))
	mux.Handle("GET /api/workspace", Wrap(th.Fetch))
	mux.Handle("POST /api/workspace", limiter.wrap(Wrap(th.Create)))
	mux.Handle("GET /api/events", eh)
	return mux
}
