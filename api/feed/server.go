// Package feed exposes the read API over the latest-datapoint store.
package feed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kilianp07/gridfeed/core/gridtime"
	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/model"
	"github.com/kilianp07/gridfeed/core/store"
)

// Server serves the read-only feed endpoints.
type Server struct {
	store     *store.LatestStore
	freshness time.Duration
	log       logger.Logger
	nowFn     func() time.Time
}

// Option mutates a Server during construction.
type Option func(*Server)

// WithClock overrides the server's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.nowFn = now }
}

// NewServer creates a Server. freshness is the maximum age of the freshest
// stored datapoint for /health to report healthy.
func NewServer(st *store.LatestStore, freshness time.Duration, log logger.Logger, opts ...Option) *Server {
	s := &Server{store: st, freshness: freshness, log: log, nowFn: gridtime.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi handler with permissive CORS, matching the public
// read-only nature of the data.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	r.Get("/latest", s.handleLatest)
	r.Get("/latest/exchange", s.handleLatestExchange)
	r.Get("/health", s.handleHealth)
	return r
}

func (s *Server) writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Data   any    `json:"data"`
	}{Status: "ok", Data: data}); err != nil {
		s.log.Errorf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		s.log.Errorf("encode error response: %v", err)
	}
}

// handleLatest returns the latest zone-scoped datapoints, optionally
// filtered by the zone query parameter.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	zone := r.URL.Query().Get("zone")
	if zone != "" {
		if err := model.ZoneKey(zone).Validate(); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out := make(map[string]model.Event)
		for _, kind := range model.ZoneKinds {
			if ev, ok := s.store.Latest(zone, kind); ok {
				out[string(kind)] = ev
			}
		}
		if len(out) == 0 {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("no data for zone %s", zone))
			return
		}
		s.writeData(w, out)
		return
	}

	out := make(map[string]map[string]model.Event)
	for _, kind := range model.ZoneKinds {
		for key, ev := range s.store.LatestByKind(kind) {
			if out[key] == nil {
				out[key] = make(map[string]model.Event)
			}
			out[key][string(kind)] = ev
		}
	}
	s.writeData(w, out)
}

// handleLatestExchange returns the latest exchange datapoints, optionally
// filtered by the canonical key query parameter.
func (s *Server) handleLatestExchange(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key != "" {
		if err := model.ExchangeKey(key).Validate(); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out := make(map[string]model.Event)
		for _, kind := range model.ExchangeKinds {
			if ev, ok := s.store.Latest(key, kind); ok {
				out[string(kind)] = ev
			}
		}
		if len(out) == 0 {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("no data for exchange %s", key))
			return
		}
		s.writeData(w, out)
		return
	}

	out := make(map[string]map[string]model.Event)
	for _, kind := range model.ExchangeKinds {
		for key, ev := range s.store.LatestByKind(kind) {
			if out[key] == nil {
				out[key] = make(map[string]model.Event)
			}
			out[key][string(kind)] = ev
		}
	}
	s.writeData(w, out)
}

// handleHealth reports 200 while the freshest datapoint is younger than the
// configured threshold, 500 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	age, ok := s.store.FreshestAge(s.nowFn())
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "no data ingested yet")
		return
	}
	if age > s.freshness {
		s.writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("freshest datapoint is %s from now", age.Truncate(time.Second)))
		return
	}
	s.writeData(w, map[string]any{
		"freshness_seconds": int(age / time.Second),
		"entries":           s.store.Len(),
	})
}
