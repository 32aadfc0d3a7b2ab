// Package quote turns dust summaries into immutable, time-bounded sweep
// quotes and manages their lifecycle.
package quote

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dustsweep/pkg/metrics"
	"dustsweep/pkg/types"
)

// DefaultJanitorInterval is how often the background sweep purges
// expired quotes.
const DefaultJanitorInterval = 60 * time.Second

// Store is the process-wide TTL cache of issued quotes. Quotes are
// immutable after insertion, so only presence changes under the lock.
// Expired entries leave by two paths sharing one expiry test: lazily on
// lookup, and proactively via the janitor.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]*types.SweepQuote
	now    func() time.Time
	log    zerolog.Logger

	janitorMu sync.Mutex
	running   bool
	stopChan  chan struct{}
}

// NewStore builds an empty quote store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		quotes: make(map[string]*types.SweepQuote),
		now:    time.Now,
		log:    log,
	}
}

// Put inserts an issued quote.
func (s *Store) Put(q *types.SweepQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ID] = q
}

// Get returns the stored quote if it has not expired. An expired entry is
// evicted on the spot and reported as not found.
func (s *Store) Get(id string) (*types.SweepQuote, error) {
	s.mu.RLock()
	q, ok := s.quotes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", id, types.ErrQuoteNotFound)
	}

	if q.Expired(s.now()) {
		s.mu.Lock()
		delete(s.quotes, id)
		s.mu.Unlock()
		metrics.QuotesEvicted.Inc()
		return nil, fmt.Errorf("quote %s: %w", id, types.ErrQuoteNotFound)
	}
	return q, nil
}

// DeleteExpired purges every expired quote and returns how many went.
func (s *Store) DeleteExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, q := range s.quotes {
		if q.Expired(now) {
			delete(s.quotes, id)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.QuotesEvicted.Add(float64(evicted))
	}
	return evicted
}

// Len returns the number of stored quotes, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}

// StartJanitor launches the periodic eviction task. Stop it with
// StopJanitor on shutdown.
func (s *Store) StartJanitor(interval time.Duration) {
	s.janitorMu.Lock()
	defer s.janitorMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	go func(stop <-chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := s.DeleteExpired(); n > 0 {
					s.log.Debug().Int("evicted", n).Msg("purged expired quotes")
				}
			}
		}
	}(s.stopChan)
}

// StopJanitor halts the periodic eviction task.
func (s *Store) StopJanitor() {
	s.janitorMu.Lock()
	defer s.janitorMu.Unlock()
	if !s.running {
		return
	}
	close(s.stopChan)
	s.running = false
}
