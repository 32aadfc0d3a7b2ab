// Package chainrpc is the chain RPC collaborator boundary: balance reads,
// nonce lookups, transaction submission, and bounded receipt waits.
package chainrpc

import (
	"context"
	"math/big"
	"time"

	"dustsweep/pkg/types"
)

// Receipt is the subset of an on-chain receipt the engine cares about.
type Receipt struct {
	TxHash      string
	Status      uint64 // 1 = success
	BlockNumber uint64
	GasUsed     uint64
}

// Client is the per-chain RPC surface consumed by the engine. Every call
// suspends at the network boundary and honors the supplied context.
type Client interface {
	// NativeBalance reads the native-asset balance of an address.
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	// TokenBalance reads the ERC-20 balance of an address.
	TokenBalance(ctx context.Context, token, address string) (*big.Int, error)
	// PendingNonce returns the next account nonce including pending txs.
	PendingNonce(ctx context.Context, address string) (uint64, error)
	// SendTransaction signs and submits a transaction from the solver
	// account, returning the transaction hash.
	SendTransaction(ctx context.Context, to string, data []byte, value *big.Int) (string, error)
	// WaitForReceipt polls for a receipt up to timeout. On timeout it
	// returns types.ErrTransactionTimeout rather than blocking forever.
	WaitForReceipt(ctx context.Context, txHash string, timeout time.Duration) (*Receipt, error)
	Close()
}

// Dialer produces a Client for a chain. Injectable so tests can substitute
// fakes for live RPC endpoints.
type Dialer interface {
	Dial(cfg types.ChainConfig) (Client, error)
}
