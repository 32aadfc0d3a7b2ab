package quote

import (
	"context"

	"dustsweep/pkg/chainrpc"
	"dustsweep/pkg/registry"
)

// RPCNonceSource fetches live per-account nonces through the chain RPC
// collaborator at authorization-build time.
type RPCNonceSource struct {
	registry *registry.Registry
	dialer   chainrpc.Dialer
}

// NewRPCNonceSource wires a nonce source over the RPC dialer.
func NewRPCNonceSource(reg *registry.Registry, dialer chainrpc.Dialer) *RPCNonceSource {
	return &RPCNonceSource{registry: reg, dialer: dialer}
}

// PendingNonce returns the user's next nonce on a chain.
func (s *RPCNonceSource) PendingNonce(ctx context.Context, chainID uint64, address string) (uint64, error) {
	cfg, err := s.registry.Get(chainID)
	if err != nil {
		return 0, err
	}
	client, err := s.dialer.Dial(cfg)
	if err != nil {
		return 0, err
	}
	return client.PendingNonce(ctx, address)
}
