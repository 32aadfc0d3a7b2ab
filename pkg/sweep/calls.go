package sweep

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"dustsweep/pkg/types"
)

// Function surfaces of the on-chain collaborators. The engine only packs
// calldata; custody and the authoritative fee math live in the contracts.
const (
	delegateABIJSON = `[
		{"inputs":[{"name":"tokens","type":"address[]"},{"name":"amounts","type":"uint256[]"},{"name":"deadline","type":"uint256"}],"name":"sweep","outputs":[],"type":"function"},
		{"inputs":[{"name":"amount","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"sweepNative","outputs":[],"type":"function"}
	]`
	vaultABIJSON = `[
		{"inputs":[{"name":"user","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"isDonation","type":"bool"}],"name":"settle","outputs":[],"type":"function"},
		{"inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"isDonation","type":"bool"}],"name":"settleNative","outputs":[],"type":"function"}
	]`
	erc20TransferABIJSON = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`
)

var (
	delegateABI      = mustABI(delegateABIJSON)
	vaultABI         = mustABI(vaultABIJSON)
	erc20TransferABI = mustABI(erc20TransferABIJSON)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse ABI: %v", err))
	}
	return parsed
}

// packSweep encodes the delegate's token sweep call.
func packSweep(tokens []string, amounts []*big.Int, deadline int64) ([]byte, error) {
	addrs := make([]common.Address, len(tokens))
	for i, t := range tokens {
		addrs[i] = common.HexToAddress(t)
	}
	data, err := delegateABI.Pack("sweep", addrs, amounts, big.NewInt(deadline))
	if err != nil {
		return nil, fmt.Errorf("pack sweep: %w", err)
	}
	return data, nil
}

// packSweepNative encodes the delegate's native sweep call.
func packSweepNative(amount *big.Int, deadline int64) ([]byte, error) {
	data, err := delegateABI.Pack("sweepNative", amount, big.NewInt(deadline))
	if err != nil {
		return nil, fmt.Errorf("pack sweepNative: %w", err)
	}
	return data, nil
}

// packSettle encodes the vault's settlement call for the final transfer.
func packSettle(user, token string, amount *big.Int, isDonation bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if token == types.ZeroAddress {
		data, err = vaultABI.Pack("settleNative", common.HexToAddress(user), amount, isDonation)
	} else {
		data, err = vaultABI.Pack("settle", common.HexToAddress(user), common.HexToAddress(token), amount, isDonation)
	}
	if err != nil {
		return nil, fmt.Errorf("pack settle: %w", err)
	}
	return data, nil
}

// depositTransferRoute turns a deposit-address style bridge quote into an
// executable route: a plain value transfer for the native asset, or an
// ERC-20 transfer to the deposit address otherwise.
func depositTransferRoute(provider string, req RouteRequest, depositAddress string, amountOut *big.Int) (*Route, error) {
	if depositAddress == "" {
		return nil, fmt.Errorf("%s quote carried no deposit address", provider)
	}
	if req.Token == types.ZeroAddress {
		return &Route{
			Provider:  provider,
			AmountOut: amountOut,
			Target:    depositAddress,
			Value:     req.Amount,
		}, nil
	}

	data, err := erc20TransferABI.Pack("transfer", common.HexToAddress(depositAddress), req.Amount)
	if err != nil {
		return nil, fmt.Errorf("pack deposit transfer: %w", err)
	}
	return &Route{
		Provider:  provider,
		AmountOut: amountOut,
		Target:    req.Token,
		CallData:  data,
		Value:     big.NewInt(0),
	}, nil
}
