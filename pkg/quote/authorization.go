package quote

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"dustsweep/pkg/registry"
	"dustsweep/pkg/types"
)

// NonceSource provides the live per-account, per-chain nonce used in an
// authorization. Backed by the chain RPC collaborator in production.
type NonceSource interface {
	PendingNonce(ctx context.Context, chainID uint64, address string) (uint64, error)
}

// authorizationArgs is the ABI tuple the wallet signs:
// (chainId, delegate, tokens[], amounts[], nonce, deadline).
var authorizationArgs = abi.Arguments{
	{Type: mustType("uint256")},
	{Type: mustType("address")},
	{Type: mustType("address[]")},
	{Type: mustType("uint256[]")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

// Builder constructs the per-chain authorization set a user signs to let
// the solver move their dust.
type Builder struct {
	registry *registry.Registry
	nonces   NonceSource
}

// NewBuilder wires the builder's collaborators.
func NewBuilder(reg *registry.Registry, nonces NonceSource) *Builder {
	return &Builder{registry: reg, nonces: nonces}
}

// Build groups dust by chain and emits one ChainAuthorization per chain
// that declares a delegate contract. Dust on a chain without a delegate is
// skipped here while its value still counts toward the quote total; that
// uncoverable portion is surfaced as UnauthorizedValueUSD on the summary
// and quote rather than silently folded in.
func (b *Builder) Build(ctx context.Context, userAddress string, dust []types.TokenBalance, deadlineSeconds int64) (types.AuthorizationData, error) {
	deadline := time.Now().Unix() + deadlineSeconds

	byChain := make(map[uint64][]types.TokenBalance)
	for _, bal := range dust {
		byChain[bal.ChainID] = append(byChain[bal.ChainID], bal)
	}
	chainIDs := make([]uint64, 0, len(byChain))
	for id := range byChain {
		chainIDs = append(chainIDs, id)
	}
	sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

	auths := make([]types.ChainAuthorization, 0, len(chainIDs))
	for _, chainID := range chainIDs {
		cfg, err := b.registry.Get(chainID)
		if err != nil {
			return types.AuthorizationData{}, err
		}
		if !cfg.HasDelegate() {
			continue
		}

		nonce, err := b.nonces.PendingNonce(ctx, chainID, userAddress)
		if err != nil {
			return types.AuthorizationData{}, &types.ExternalServiceError{
				Service: fmt.Sprintf("chain %d nonce lookup", chainID),
				Err:     err,
			}
		}

		balances := byChain[chainID]
		tokens := make([]string, len(balances))
		amounts := make([]string, len(balances))
		for i, bal := range balances {
			tokens[i] = bal.Token
			amounts[i] = bal.Raw.String()
		}

		digest, err := authorizationDigest(chainID, cfg.Delegate, balances, nonce, deadline)
		if err != nil {
			return types.AuthorizationData{}, fmt.Errorf("chain %d digest: %w", chainID, err)
		}

		auths = append(auths, types.ChainAuthorization{
			ChainID:  chainID,
			Delegate: cfg.Delegate,
			Tokens:   tokens,
			Amounts:  amounts,
			Nonce:    nonce,
			Digest:   digest,
		})
	}

	return types.AuthorizationData{
		Authorizations: auths,
		Message:        signingMessage(userAddress, deadline, auths),
		Deadline:       deadline,
	}, nil
}

// authorizationDigest computes the canonical keccak256 hash of the
// ABI-encoded authorization tuple. This, not the human message, is the
// value the signing protocol requires.
func authorizationDigest(chainID uint64, delegate string, balances []types.TokenBalance, nonce uint64, deadline int64) (string, error) {
	tokens := make([]common.Address, len(balances))
	amounts := make([]*big.Int, len(balances))
	for i, bal := range balances {
		tokens[i] = common.HexToAddress(bal.Token)
		amounts[i] = bal.Raw
	}

	packed, err := authorizationArgs.Pack(
		new(big.Int).SetUint64(chainID),
		common.HexToAddress(delegate),
		tokens,
		amounts,
		new(big.Int).SetUint64(nonce),
		big.NewInt(deadline),
	)
	if err != nil {
		return "", fmt.Errorf("pack authorization: %w", err)
	}
	return crypto.Keccak256Hash(packed).Hex(), nil
}

// signingMessage renders the deterministic, human-auditable summary shown
// alongside the digest so the user can see what they are approving.
func signingMessage(userAddress string, deadline int64, auths []types.ChainAuthorization) string {
	var sb strings.Builder
	sb.WriteString("Dust sweep authorization\n")
	fmt.Fprintf(&sb, "Wallet: %s\n", userAddress)
	fmt.Fprintf(&sb, "Deadline: %d (%s)\n", deadline, time.Unix(deadline, 0).UTC().Format(time.RFC3339))
	for _, a := range auths {
		fmt.Fprintf(&sb, "Chain %d: delegate %s, %d tokens\n", a.ChainID, a.Delegate, len(a.Tokens))
	}
	return sb.String()
}
