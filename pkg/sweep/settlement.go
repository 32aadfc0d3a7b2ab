package sweep

import (
	"fmt"
	"math/big"
	"sync"
)

var bpsDenominator = big.NewInt(10000)

// CalculateFee mirrors the settlement contract's bps formula exactly:
// fee = floor(gross * feeBps / 10000), net = gross - fee. Donations carry
// no fee regardless of the configured bps.
func CalculateFee(gross *big.Int, feeBps int64, isDonation bool) (fee, net *big.Int) {
	if isDonation || feeBps == 0 {
		return big.NewInt(0), new(big.Int).Set(gross)
	}
	fee = new(big.Int).Mul(gross, big.NewInt(feeBps))
	fee.Div(fee, bpsDenominator)
	net = new(big.Int).Sub(gross, fee)
	return fee, net
}

// Settlement is the outcome of one settlement computation.
// Invariant: FeeAmount + NetAmount == gross.
type Settlement struct {
	Recipient  string
	FeeAmount  *big.Int
	NetAmount  *big.Int
	IsDonation bool
}

// Coordinator computes the final fee/donation split and keeps running
// totals. Donations are recorded under a distinct total, never mixed with
// accumulated fees.
type Coordinator struct {
	feeBps   int64
	treasury string

	mu        sync.Mutex
	fees      map[string]*big.Int // accumulated fees by token
	donations map[string]*big.Int // donated value by token
}

// NewCoordinator builds a coordinator with the operator fee schedule.
func NewCoordinator(feeBps int64, treasury string) *Coordinator {
	return &Coordinator{
		feeBps:    feeBps,
		treasury:  treasury,
		fees:      make(map[string]*big.Int),
		donations: make(map[string]*big.Int),
	}
}

// Settle applies the fee/donation split for one settlement. For donations
// the fee is forced to zero and the recipient is overridden to the
// treasury regardless of the candidate passed in.
func (c *Coordinator) Settle(recipientCandidate, token string, gross *big.Int, isDonation bool) (Settlement, error) {
	if gross == nil || gross.Sign() < 0 {
		return Settlement{}, fmt.Errorf("settle: gross amount must be non-negative")
	}
	if isDonation && c.treasury == "" {
		return Settlement{}, fmt.Errorf("settle: donation requested but no treasury configured")
	}

	fee, net := CalculateFee(gross, c.feeBps, isDonation)

	recipient := recipientCandidate
	if isDonation {
		recipient = c.treasury
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if isDonation {
		c.addLocked(c.donations, token, net)
	} else {
		c.addLocked(c.fees, token, fee)
	}

	return Settlement{
		Recipient:  recipient,
		FeeAmount:  fee,
		NetAmount:  net,
		IsDonation: isDonation,
	}, nil
}

// AccumulatedFees returns the total fees collected for a token.
func (c *Coordinator) AccumulatedFees(token string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalLocked(c.fees, token)
}

// Donations returns the total donated value for a token.
func (c *Coordinator) Donations(token string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalLocked(c.donations, token)
}

func (c *Coordinator) addLocked(m map[string]*big.Int, token string, amount *big.Int) {
	if cur, ok := m[token]; ok {
		cur.Add(cur, amount)
		return
	}
	m[token] = new(big.Int).Set(amount)
}

func totalLocked(m map[string]*big.Int, token string) *big.Int {
	if cur, ok := m[token]; ok {
		return new(big.Int).Set(cur)
	}
	return big.NewInt(0)
}
