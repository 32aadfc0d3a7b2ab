// Package server exposes the engine over HTTP. Every response is wrapped
// in a {success, data|error, timestamp} envelope.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dustsweep/pkg/quote"
	"dustsweep/pkg/registry"
	"dustsweep/pkg/scanner"
	"dustsweep/pkg/sweep"
	"dustsweep/pkg/types"
)

// Server routes the HTTP surface to the engine components.
type Server struct {
	registry *registry.Registry
	scanner  *scanner.Aggregator
	engine   *quote.Engine
	executor *sweep.Executor
	log      zerolog.Logger

	minDustUSD float64
	maxDustUSD float64

	mux *http.ServeMux
}

// New wires the routes.
func New(reg *registry.Registry, sc *scanner.Aggregator, engine *quote.Engine, executor *sweep.Executor, minDustUSD, maxDustUSD float64, log zerolog.Logger) *Server {
	s := &Server{
		registry:   reg,
		scanner:    sc,
		engine:     engine,
		executor:   executor,
		log:        log,
		minDustUSD: minDustUSD,
		maxDustUSD: maxDustUSD,
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /chains", s.handleChains)
	s.mux.HandleFunc("GET /balances/{address}", s.handleBalances)
	s.mux.HandleFunc("POST /quote", s.handleQuote)
	s.mux.HandleFunc("POST /donate", s.handleDonate)
	s.mux.HandleFunc("GET /quote/{quoteId}", s.handleGetQuote)
	s.mux.HandleFunc("POST /execute", s.handleExecute)
	s.mux.HandleFunc("GET /sweep/{sweepId}", s.handleGetSweep)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg, Timestamp: time.Now().UTC()})
}

// writeFailure maps engine errors onto the HTTP surface. Unclassified
// internal errors stay opaque to callers.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var (
		validation *types.ValidationError
		external   *types.ExternalServiceError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, types.ErrUnsupportedChain),
		errors.Is(err, types.ErrSignatureMissing):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNoDustFound),
		errors.Is(err, types.ErrQuoteNotFound),
		errors.Is(err, types.ErrSweepNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &external):
		writeError(w, http.StatusBadGateway, "upstream service failure")
	default:
		s.log.Error().Err(err).Msg("unclassified internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
