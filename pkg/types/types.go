package types

import (
	"math/big"
	"time"
)

// ZeroAddress marks a native (non-contract) balance in TokenBalance.Token.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// TokenConfig describes a known token on a chain
type TokenConfig struct {
	Address  string `yaml:"address" json:"address"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// ChainConfig is the static, operator-supplied configuration for one
// supported network. Loaded once at process start and never mutated.
type ChainConfig struct {
	ChainID        uint64        `yaml:"chain_id" json:"chainId"`
	Name           string        `yaml:"name" json:"name"`
	RPCURL         string        `yaml:"rpc_url" json:"-"`
	NativeSymbol   string        `yaml:"native_symbol" json:"nativeSymbol"`
	NativeDecimals uint8         `yaml:"native_decimals" json:"nativeDecimals"`
	WrappedNative  string        `yaml:"wrapped_native" json:"wrappedNative"`
	Stablecoins    []TokenConfig `yaml:"stablecoins" json:"stablecoins"`
	// Delegate is the contract the user authorizes to move dust on this
	// chain. A chain may lack one; such chains are never part of an
	// authorization set.
	Delegate   string  `yaml:"delegate,omitempty" json:"delegate,omitempty"`
	Vault      string  `yaml:"vault,omitempty" json:"vault,omitempty"`
	MinDustUSD float64 `yaml:"min_dust_usd" json:"minDustUsd"`
}

// HasDelegate reports whether the chain declares a delegate contract.
func (c ChainConfig) HasDelegate() bool { return c.Delegate != "" }

// TokenBalance is one priced balance held by the scanned wallet.
// Invariant: ValueUSD = PriceUSD * (Raw / 10^Decimals), always >= 0.
type TokenBalance struct {
	ChainID   uint64   `json:"chainId"`
	ChainName string   `json:"chainName"`
	Token     string   `json:"tokenAddress"` // ZeroAddress for the native asset
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name,omitempty"`
	Decimals  uint8    `json:"decimals"`
	Raw       *big.Int `json:"-"`
	Balance   string   `json:"balance"`          // Raw as a decimal string
	Formatted string   `json:"formattedBalance"` // human-readable units
	PriceUSD  float64  `json:"priceUsd"`
	ValueUSD  float64  `json:"valueUsd"`
}

// IsNative reports whether the balance is the chain's native asset.
func (b TokenBalance) IsNative() bool { return b.Token == ZeroAddress }

// DustSummary is the consolidated result of one balance scan. It is
// recomputed per request and never persisted. Balances are ordered
// descending by USD value.
type DustSummary struct {
	Address string         `json:"address"`
	Dust    []TokenBalance `json:"dust"`
	// TotalValueUSD counts every dust balance, including balances on
	// chains without a delegate contract; UnauthorizedValueUSD surfaces
	// that uncoverable portion explicitly.
	TotalValueUSD        float64   `json:"totalValueUsd"`
	UnauthorizedValueUSD float64   `json:"unauthorizedValueUsd"`
	TokenCount           int       `json:"tokenCount"`
	ChainCount           int       `json:"chainCount"`
	GeneratedAt          time.Time `json:"generatedAt"`
}

// ChainAuthorization is the per-chain permission a user signs so the
// solver may move the listed token amounts through the delegate contract.
type ChainAuthorization struct {
	ChainID  uint64   `json:"chainId"`
	Delegate string   `json:"delegate"`
	Tokens   []string `json:"tokens"`
	Amounts  []string `json:"amounts"` // raw units, decimal strings
	Nonce    uint64   `json:"nonce"`
	// Digest is the canonical keccak256 hash of the ABI-encoded
	// authorization tuple; this is the value the wallet signs.
	Digest string `json:"digest"`
}

// AuthorizationData bundles every per-chain authorization for a quote
// together with a human-auditable message and a shared deadline.
type AuthorizationData struct {
	Authorizations []ChainAuthorization `json:"authorizations"`
	Message        string               `json:"message"`
	Deadline       int64                `json:"deadline"` // unix seconds
}

// SweepQuote is an immutable, time-bounded offer to consolidate the
// listed dust into the destination token. Never mutated after creation.
type SweepQuote struct {
	ID                   string            `json:"quoteId"`
	UserAddress          string            `json:"userAddress"`
	Dust                 []TokenBalance    `json:"dust"`
	DestinationChainID   uint64            `json:"destinationChainId"`
	DestinationToken     string            `json:"destinationToken"`
	DestinationSymbol    string            `json:"destinationSymbol"`
	EstimatedOutput      string            `json:"estimatedOutput"` // raw destination-token units
	EstimatedOutputUSD   float64           `json:"estimatedOutputUsd"`
	TotalInputValueUSD   float64           `json:"totalInputValueUsd"`
	UnauthorizedValueUSD float64           `json:"unauthorizedValueUsd"`
	IsDonation           bool              `json:"isDonation"`
	FeePercent           float64           `json:"feePercent"`
	FeeUSD               float64           `json:"feeAmountUsd"`
	Recipient            string            `json:"recipient"`
	IssuedAt             time.Time         `json:"issuedAt"`
	ExpiresAt            time.Time         `json:"expiresAt"`
	Authorization        AuthorizationData `json:"authorization"`
}

// Expired reports whether the quote is unusable at the given instant.
func (q *SweepQuote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// SweepStatus is the lifecycle state of a sweep execution.
type SweepStatus string

const (
	StatusPending   SweepStatus = "pending"
	StatusSweeping  SweepStatus = "sweeping"
	StatusSwapping  SweepStatus = "swapping"
	StatusBridging  SweepStatus = "bridging"
	StatusSettling  SweepStatus = "settling"
	StatusCompleted SweepStatus = "completed"
	StatusFailed    SweepStatus = "failed"
	StatusExpired   SweepStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s SweepStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// TxOutcome classifies a submitted per-chain transaction.
type TxOutcome string

const (
	TxConfirmed   TxOutcome = "confirmed"
	TxFailed      TxOutcome = "failed"
	TxUnconfirmed TxOutcome = "unconfirmed" // submitted but not seen within the wait bound
)

// ChainTxRecord is the outcome of one transaction on one chain.
type ChainTxRecord struct {
	ChainID uint64    `json:"chainId"`
	Stage   string    `json:"stage"` // sweep, swap, bridge, settle
	TxHash  string    `json:"txHash,omitempty"`
	Outcome TxOutcome `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

// SweepExecutionResult tracks a sweep run. Per-chain records are only
// appended as they complete; the result is terminal once Status is.
type SweepExecutionResult struct {
	SweepID string          `json:"sweepId"`
	QuoteID string          `json:"quoteId"`
	Status  SweepStatus     `json:"status"`
	Chains  []ChainTxRecord `json:"chains"`
	// NeedsReconciliation flags funds left in intermediate custody after a
	// partial or unrecoverable failure. Never retried automatically.
	NeedsReconciliation bool      `json:"needsReconciliation"`
	Error               string    `json:"error,omitempty"`
	StartedAt           time.Time `json:"startedAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
