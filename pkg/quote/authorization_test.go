package quote

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"dustsweep/pkg/registry"
	"dustsweep/pkg/types"
)

const (
	delegateEth     = "0x1100000000000000000000000000000000000011"
	delegatePolygon = "0x2200000000000000000000000000000000000022"
	usdcAddr        = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	daiAddr         = "0x6b175474e89094c44da98b954eedeac495271d0f"
)

type fakeNonceSource struct {
	nonces map[uint64]uint64
	err    error
	calls  []uint64
}

func (f *fakeNonceSource) PendingNonce(_ context.Context, chainID uint64, _ string) (uint64, error) {
	f.calls = append(f.calls, chainID)
	if f.err != nil {
		return 0, f.err
	}
	return f.nonces[chainID], nil
}

func authTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]types.ChainConfig{
		{ChainID: 1, Name: "ethereum", RPCURL: "http://rpc-1", Delegate: delegateEth},
		{ChainID: 137, Name: "polygon", RPCURL: "http://rpc-137", Delegate: delegatePolygon},
		{ChainID: 56, Name: "bsc", RPCURL: "http://rpc-56"}, // no delegate
	})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return reg
}

func authTestDust() []types.TokenBalance {
	return []types.TokenBalance{
		{ChainID: 137, Token: usdcAddr, Symbol: "USDC", Raw: big.NewInt(750_000)},
		{ChainID: 1, Token: usdcAddr, Symbol: "USDC", Raw: big.NewInt(5_000_000)},
		{ChainID: 1, Token: daiAddr, Symbol: "DAI", Raw: big.NewInt(2_000_000)},
		{ChainID: 56, Token: usdcAddr, Symbol: "USDC", Raw: big.NewInt(900_000)},
	}
}

func TestBuildGroupsByChain(t *testing.T) {
	nonces := &fakeNonceSource{nonces: map[uint64]uint64{1: 7, 137: 42}}
	b := NewBuilder(authTestRegistry(t), nonces)

	auth, err := b.Build(context.Background(), "0xUser", authTestDust(), 300)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Chain 56 has no delegate and must be skipped.
	if len(auth.Authorizations) != 2 {
		t.Fatalf("expected 2 authorizations, got %d", len(auth.Authorizations))
	}
	// Ordered ascending by chain id.
	if auth.Authorizations[0].ChainID != 1 || auth.Authorizations[1].ChainID != 137 {
		t.Fatalf("unexpected chain order: %d, %d",
			auth.Authorizations[0].ChainID, auth.Authorizations[1].ChainID)
	}

	eth := auth.Authorizations[0]
	if eth.Delegate != delegateEth {
		t.Fatalf("expected delegate %s, got %s", delegateEth, eth.Delegate)
	}
	if len(eth.Tokens) != 2 || len(eth.Amounts) != 2 {
		t.Fatalf("expected 2 tokens on ethereum, got %d/%d", len(eth.Tokens), len(eth.Amounts))
	}
	if eth.Nonce != 7 {
		t.Fatalf("expected live nonce 7, got %d", eth.Nonce)
	}
	if auth.Authorizations[1].Nonce != 42 {
		t.Fatalf("expected live nonce 42, got %d", auth.Authorizations[1].Nonce)
	}

	for _, a := range auth.Authorizations {
		if !strings.HasPrefix(a.Digest, "0x") || len(a.Digest) != 66 {
			t.Fatalf("chain %d digest is not a keccak hash: %q", a.ChainID, a.Digest)
		}
	}
	if auth.Deadline <= 0 {
		t.Fatal("missing deadline")
	}
	if !strings.Contains(auth.Message, "0xUser") {
		t.Fatalf("signing message must identify the wallet: %q", auth.Message)
	}
}

func TestBuildNonceFailureAborts(t *testing.T) {
	nonces := &fakeNonceSource{err: errors.New("rpc down")}
	b := NewBuilder(authTestRegistry(t), nonces)

	_, err := b.Build(context.Background(), "0xUser", authTestDust(), 300)
	var svcErr *types.ExternalServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}

func TestAuthorizationDigestDeterministic(t *testing.T) {
	balances := []types.TokenBalance{
		{Token: usdcAddr, Raw: big.NewInt(5_000_000)},
		{Token: daiAddr, Raw: big.NewInt(2_000_000)},
	}

	d1, err := authorizationDigest(1, delegateEth, balances, 7, 1_900_000_000)
	if err != nil {
		t.Fatalf("authorizationDigest: %v", err)
	}
	d2, err := authorizationDigest(1, delegateEth, balances, 7, 1_900_000_000)
	if err != nil {
		t.Fatalf("authorizationDigest: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("digest not deterministic: %s vs %s", d1, d2)
	}

	// Any field change must produce a different digest.
	d3, err := authorizationDigest(1, delegateEth, balances, 8, 1_900_000_000)
	if err != nil {
		t.Fatalf("authorizationDigest: %v", err)
	}
	if d3 == d1 {
		t.Fatal("nonce change must change the digest")
	}
	d4, err := authorizationDigest(137, delegateEth, balances, 7, 1_900_000_000)
	if err != nil {
		t.Fatalf("authorizationDigest: %v", err)
	}
	if d4 == d1 {
		t.Fatal("chain change must change the digest")
	}
}
