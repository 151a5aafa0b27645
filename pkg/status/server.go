// Package status exposes a read-only HTTP view of the listener: the routes
// recorded by the dedup store, the capture loop state, and the Prometheus
// scrape endpoint when metrics are enabled.
package status

import (
	"encoding/json"
	"net/http"

	"routelistener-go/pkg/capture"
	"routelistener-go/pkg/config"
	"routelistener-go/pkg/metrics"
	"routelistener-go/pkg/route"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Server serves the status API. All endpoints are read-only; route mutation
// stays with the capture loop.
type Server struct {
	cfg        *config.Config
	store      *route.Store
	listener   *capture.Listener
	rec        metrics.Recorder
	logger     zerolog.Logger
	httpServer *http.Server
}

// NewServer creates a status server over the given store and listener.
func NewServer(cfg *config.Config, store *route.Store, listener *capture.Listener, rec metrics.Recorder, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
		rec:      rec,
		logger:   logger.With().Str("component", "status").Logger(),
	}
}

// Router builds the HTTP route table. Split out from Start so tests can
// drive it through httptest.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/routes", s.handleRoutes).Methods(http.MethodGet)
	if h := s.rec.Handler(); h != nil {
		r.Handle("/metrics", h).Methods(http.MethodGet)
	}
	return r
}

// Start runs the server until it fails or Stop closes it. Intended to be
// called on its own goroutine.
func (s *Server) Start() {
	if !s.cfg.Status.Enabled {
		s.logger.Info().Msg("Status API is disabled")
		return
	}

	s.httpServer = &http.Server{
		Addr:         s.cfg.Status.Listen,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Status.ReadTimeout,
		WriteTimeout: s.cfg.Status.WriteTimeout,
	}

	s.logger.Info().Str("addr", s.cfg.Status.Listen).Msg("Starting status API server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error().Err(err).Msg("Status API server failed")
	}
}

// Stop closes the server, if it was started.
func (s *Server) Stop() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

type statusResponse struct {
	Interface string `json:"interface"`
	State     string `json:"state"`
	Routes    int    `json:"routes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, statusResponse{
		Interface: s.cfg.Interface,
		State:     s.listener.State().String(),
		Routes:    s.store.Len(),
	})
}

type routeResponse struct {
	Prefix string `json:"prefix"`
	Router string `json:"router"`
	State  string `json:"state"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	records := s.store.Snapshot()
	out := make([]routeResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, routeResponse{
			Prefix: rec.Key.Prefix.String(),
			Router: rec.Key.Router.String(),
			State:  rec.State.String(),
		})
	}
	s.writeJSON(w, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode status response")
	}
}
