package sweep

import (
	"fmt"
	"sync"
	"time"

	"dustsweep/pkg/types"
)

// ResultStore tracks every sweep execution by sweep id. Results are
// mutated only through the store so readers always see a consistent copy.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*types.SweepExecutionResult
}

// NewResultStore builds an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*types.SweepExecutionResult)}
}

// Create registers a new pending result.
func (s *ResultStore) Create(sweepID, quoteID string, status types.SweepStatus) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[sweepID] = &types.SweepExecutionResult{
		SweepID:   sweepID,
		QuoteID:   quoteID,
		Status:    status,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Get returns a copy of the result for a sweep id.
func (s *ResultStore) Get(sweepID string) (*types.SweepExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[sweepID]
	if !ok {
		return nil, fmt.Errorf("sweep %s: %w", sweepID, types.ErrSweepNotFound)
	}
	cp := *res
	cp.Chains = append([]types.ChainTxRecord(nil), res.Chains...)
	return &cp, nil
}

// SetStatus transitions the result to a new status.
func (s *ResultStore) SetStatus(sweepID string, status types.SweepStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[sweepID]; ok {
		res.Status = status
		res.UpdatedAt = time.Now().UTC()
	}
}

// AppendTx appends one per-chain transaction outcome.
func (s *ResultStore) AppendTx(sweepID string, rec types.ChainTxRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[sweepID]; ok {
		res.Chains = append(res.Chains, rec)
		res.UpdatedAt = time.Now().UTC()
	}
}

// Fail marks the result failed with a message; reconcile flags funds left
// in intermediate custody for manual follow-up.
func (s *ResultStore) Fail(sweepID, msg string, reconcile bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[sweepID]; ok {
		res.Status = types.StatusFailed
		res.Error = msg
		if reconcile {
			res.NeedsReconciliation = true
		}
		res.UpdatedAt = time.Now().UTC()
	}
}

// FlagReconciliation records a non-terminal partial failure.
func (s *ResultStore) FlagReconciliation(sweepID, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[sweepID]; ok {
		res.NeedsReconciliation = true
		if msg != "" {
			res.Error = msg
		}
		res.UpdatedAt = time.Now().UTC()
	}
}
