package sweep

import (
	"math/big"
	"testing"
)

func TestCalculateFee(t *testing.T) {
	cases := []struct {
		name       string
		gross      int64
		feeBps     int64
		isDonation bool
		wantFee    int64
		wantNet    int64
	}{
		{name: "ten percent", gross: 100, feeBps: 1000, wantFee: 10, wantNet: 90},
		{name: "floor rounding", gross: 999, feeBps: 1000, wantFee: 99, wantNet: 900},
		{name: "small gross rounds to zero fee", gross: 9, feeBps: 1000, wantFee: 0, wantNet: 9},
		{name: "zero bps", gross: 100, feeBps: 0, wantFee: 0, wantNet: 100},
		{name: "donation waives fee", gross: 100, feeBps: 1000, isDonation: true, wantFee: 0, wantNet: 100},
		{name: "zero gross", gross: 0, feeBps: 1000, wantFee: 0, wantNet: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gross := big.NewInt(tc.gross)
			fee, net := CalculateFee(gross, tc.feeBps, tc.isDonation)
			if fee.Int64() != tc.wantFee {
				t.Fatalf("fee: expected %d, got %s", tc.wantFee, fee)
			}
			if net.Int64() != tc.wantNet {
				t.Fatalf("net: expected %d, got %s", tc.wantNet, net)
			}
			sum := new(big.Int).Add(fee, net)
			if sum.Cmp(gross) != 0 {
				t.Fatalf("fee+net=%s, want gross %s", sum, gross)
			}
		})
	}
}

func TestCoordinatorSettle(t *testing.T) {
	c := NewCoordinator(1000, "0xtreasury")

	s, err := c.Settle("0xuser", "USDC", big.NewInt(1000), false)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.Recipient != "0xuser" {
		t.Fatalf("expected user recipient, got %s", s.Recipient)
	}
	if s.FeeAmount.Int64() != 100 || s.NetAmount.Int64() != 900 {
		t.Fatalf("expected fee 100 / net 900, got %s / %s", s.FeeAmount, s.NetAmount)
	}
	if got := c.AccumulatedFees("USDC"); got.Int64() != 100 {
		t.Fatalf("accumulated fees: expected 100, got %s", got)
	}
}

func TestCoordinatorSettleDonation(t *testing.T) {
	c := NewCoordinator(1000, "0xtreasury")

	s, err := c.Settle("0xuser", "USDC", big.NewInt(1000), true)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.Recipient != "0xtreasury" {
		t.Fatalf("donation must pay the treasury, got %s", s.Recipient)
	}
	if s.FeeAmount.Sign() != 0 {
		t.Fatalf("donation must carry no fee, got %s", s.FeeAmount)
	}
	if s.NetAmount.Int64() != 1000 {
		t.Fatalf("expected full gross donated, got %s", s.NetAmount)
	}
	if got := c.Donations("USDC"); got.Int64() != 1000 {
		t.Fatalf("donations total: expected 1000, got %s", got)
	}
	// Donations never leak into the fee total.
	if got := c.AccumulatedFees("USDC"); got.Sign() != 0 {
		t.Fatalf("fees total: expected 0, got %s", got)
	}
}

func TestCoordinatorSettleErrors(t *testing.T) {
	c := NewCoordinator(1000, "")

	if _, err := c.Settle("0xuser", "USDC", big.NewInt(-1), false); err == nil {
		t.Fatal("expected error for negative gross")
	}
	if _, err := c.Settle("0xuser", "USDC", nil, false); err == nil {
		t.Fatal("expected error for nil gross")
	}
	if _, err := c.Settle("0xuser", "USDC", big.NewInt(10), true); err == nil {
		t.Fatal("expected error for donation without treasury")
	}
}

func TestCoordinatorTotalsAccumulate(t *testing.T) {
	c := NewCoordinator(500, "0xtreasury")

	for i := 0; i < 3; i++ {
		if _, err := c.Settle("0xuser", "USDC", big.NewInt(200), false); err != nil {
			t.Fatalf("Settle: %v", err)
		}
	}
	// 5% of 200 is 10, three times.
	if got := c.AccumulatedFees("USDC"); got.Int64() != 30 {
		t.Fatalf("expected 30, got %s", got)
	}
	if got := c.AccumulatedFees("DAI"); got.Sign() != 0 {
		t.Fatalf("untouched token must total zero, got %s", got)
	}
}
