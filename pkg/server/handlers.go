package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dustsweep/pkg/quote"
	"dustsweep/pkg/scanner"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChains(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	opts := scanner.Options{MinValueUSD: s.minDustUSD, MaxValueUSD: s.maxDustUSD}
	q := r.URL.Query()
	if v := q.Get("minValueUsd"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid minValueUsd")
			return
		}
		opts.MinValueUSD = f
	}
	if v := q.Get("maxValueUsd"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid maxValueUsd")
			return
		}
		opts.MaxValueUSD = f
	}
	var err error
	if opts.IncludeChains, err = parseChainList(q.Get("includeChains")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid includeChains")
		return
	}
	if opts.ExcludeChains, err = parseChainList(q.Get("excludeChains")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid excludeChains")
		return
	}

	summary, err := s.scanner.Scan(r.Context(), address, opts)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	s.generateQuote(w, r, false)
}

// handleDonate is the /quote shorthand with donation mode forced on.
func (s *Server) handleDonate(w http.ResponseWriter, r *http.Request) {
	s.generateQuote(w, r, true)
}

func (s *Server) generateQuote(w http.ResponseWriter, r *http.Request, forceDonation bool) {
	var req quote.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if forceDonation {
		req.DonateToDefillama = true
	}

	q, err := s.engine.GenerateQuote(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeData(w, http.StatusCreated, q)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.engine.GetQuote(r.PathValue("quoteId"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, q)
}

type executeRequest struct {
	QuoteID string `json:"quoteId"`
	// Signatures is keyed by decimal chain id.
	Signatures map[string]string `json:"signatures"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuoteID == "" {
		writeError(w, http.StatusBadRequest, "quoteId is required")
		return
	}

	q, err := s.engine.GetQuote(req.QuoteID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	signatures := make(map[uint64]string, len(req.Signatures))
	for chain, sig := range req.Signatures {
		id, err := strconv.ParseUint(chain, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chain id in signatures")
			return
		}
		signatures[id] = sig
	}

	result, err := s.executor.Start(r.Context(), q, signatures)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeData(w, http.StatusAccepted, result)
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.executor.Result(r.PathValue("sweepId"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func parseChainList(raw string) ([]uint64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
