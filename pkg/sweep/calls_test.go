package sweep

import (
	"bytes"
	"math/big"
	"testing"

	"dustsweep/pkg/types"
)

func TestPackSweep(t *testing.T) {
	data, err := packSweep(
		[]string{usdcEth, daiEth},
		[]*big.Int{big.NewInt(10_000_000), big.NewInt(2_000_000)},
		1_900_000_000,
	)
	if err != nil {
		t.Fatalf("packSweep: %v", err)
	}
	if len(data) < 4 {
		t.Fatalf("calldata too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], delegateABI.Methods["sweep"].ID) {
		t.Fatal("calldata does not start with the sweep selector")
	}
}

func TestPackSweepNative(t *testing.T) {
	data, err := packSweepNative(big.NewInt(1_000_000), 1_900_000_000)
	if err != nil {
		t.Fatalf("packSweepNative: %v", err)
	}
	if !bytes.Equal(data[:4], delegateABI.Methods["sweepNative"].ID) {
		t.Fatal("calldata does not start with the sweepNative selector")
	}
}

func TestPackSettle(t *testing.T) {
	token, err := packSettle(execUser, usdcEth, big.NewInt(19_500_000), false)
	if err != nil {
		t.Fatalf("packSettle: %v", err)
	}
	if !bytes.Equal(token[:4], vaultABI.Methods["settle"].ID) {
		t.Fatal("token settlement must use the settle selector")
	}

	native, err := packSettle(execUser, types.ZeroAddress, big.NewInt(19_500_000), true)
	if err != nil {
		t.Fatalf("packSettle native: %v", err)
	}
	if !bytes.Equal(native[:4], vaultABI.Methods["settleNative"].ID) {
		t.Fatal("native settlement must use the settleNative selector")
	}
}

func TestDepositTransferRoute(t *testing.T) {
	deposit := "0x6600000000000000000000000000000000000066"

	// ERC-20 proceeds travel as a transfer to the deposit address.
	req := bridgeReq()
	route, err := depositTransferRoute("intents", req, deposit, big.NewInt(7_400_000))
	if err != nil {
		t.Fatalf("depositTransferRoute: %v", err)
	}
	if route.Target != req.Token {
		t.Fatalf("token route must call the token contract, got %s", route.Target)
	}
	if len(route.CallData) == 0 {
		t.Fatal("token route must carry transfer calldata")
	}
	if route.Value.Sign() != 0 {
		t.Fatalf("token route must carry no native value, got %s", route.Value)
	}

	// Native proceeds travel as a plain value transfer.
	req.Token = types.ZeroAddress
	route, err = depositTransferRoute("intents", req, deposit, big.NewInt(7_400_000))
	if err != nil {
		t.Fatalf("depositTransferRoute native: %v", err)
	}
	if route.Target != deposit {
		t.Fatalf("native route must target the deposit address, got %s", route.Target)
	}
	if route.Value.Cmp(req.Amount) != 0 {
		t.Fatalf("native route must carry the full amount, got %s", route.Value)
	}
	if len(route.CallData) != 0 {
		t.Fatal("native route must carry no calldata")
	}

	if _, err := depositTransferRoute("intents", req, "", big.NewInt(1)); err == nil {
		t.Fatal("expected error for a quote without a deposit address")
	}
}
