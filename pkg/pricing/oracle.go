// Package pricing resolves USD prices for (chain, token) pairs.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// TokenRef identifies a token on a chain for a price lookup.
type TokenRef struct {
	ChainID uint64
	Address string
}

// Oracle is the batch price collaborator. The returned map is partial:
// a pair the oracle cannot price is simply absent, which callers must
// treat as "unknown", never as zero.
type Oracle interface {
	Prices(ctx context.Context, refs []TokenRef) (map[TokenRef]decimal.Decimal, error)
}

// Static is a fixed price table, used in tests and as an operator override.
type Static map[TokenRef]decimal.Decimal

// Prices returns the subset of refs present in the table.
func (s Static) Prices(_ context.Context, refs []TokenRef) (map[TokenRef]decimal.Decimal, error) {
	out := make(map[TokenRef]decimal.Decimal, len(refs))
	for _, ref := range refs {
		if p, ok := s[ref]; ok {
			out[ref] = p
		}
	}
	return out, nil
}
