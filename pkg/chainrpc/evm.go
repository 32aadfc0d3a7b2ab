package chainrpc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"dustsweep/pkg/types"
)

// balanceOf is the only ERC-20 read the scanner needs.
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

const receiptPollInterval = 2 * time.Second

// EVMClient implements Client against an EVM JSON-RPC endpoint. The
// signing key is optional; read-only deployments can still scan balances
// and build authorizations, but SendTransaction will refuse.
type EVMClient struct {
	chainID    *big.Int
	client     *ethclient.Client
	balanceABI abi.ABI
	privateKey *ecdsa.PrivateKey
	from       common.Address

	// Submissions from the solver account are nonce-ordered; one chain's
	// signer never submits concurrently.
	sendMu sync.Mutex
}

// NewEVMClient connects to the chain's RPC endpoint. privateKeyHex may be
// empty for read-only use.
func NewEVMClient(cfg types.ChainConfig, privateKeyHex string) (*EVMClient, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", cfg.Name, err)
	}

	balanceABI, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse balanceOf ABI: %w", err)
	}

	c := &EVMClient{
		chainID:    new(big.Int).SetUint64(cfg.ChainID),
		client:     client,
		balanceABI: balanceABI,
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid solver private key: %w", err)
		}
		c.privateKey = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// NativeBalance reads the native-asset balance of an address.
func (c *EVMClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address: %s", address)
	}
	balance, err := c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}
	return balance, nil
}

// TokenBalance reads the ERC-20 balance of an address via eth_call.
func (c *EVMClient) TokenBalance(ctx context.Context, token, address string) (*big.Int, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address: %s", token)
	}
	data, err := c.balanceABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// PendingNonce returns the next nonce for an account, pending txs included.
func (c *EVMClient) PendingNonce(ctx context.Context, address string) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("get pending nonce: %w", err)
	}
	return nonce, nil
}

// SendTransaction signs calldata with the solver key and submits it.
func (c *EVMClient) SendTransaction(ctx context.Context, to string, data []byte, value *big.Int) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("chain %s: no solver signing key configured", c.chainID)
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}
	if value == nil {
		value = big.NewInt(0)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("get gas price: %w", err)
	}

	toAddr := common.HexToAddress(to)
	gasLimit := uint64(21000)
	if len(data) > 0 {
		msg := ethereum.CallMsg{From: c.from, To: &toAddr, Data: data, Value: value}
		estimated, err := c.client.EstimateGas(ctx, msg)
		if err != nil {
			return "", fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = estimated * 120 / 100
	}

	tx := coretypes.NewTransaction(nonce, toAddr, value, gasLimit, gasPrice, data)
	signedTx, err := coretypes.SignTx(tx, coretypes.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

// WaitForReceipt polls until the receipt appears or the bound elapses.
// A timeout reports types.ErrTransactionTimeout; the tx may still land.
func (c *EVMClient) WaitForReceipt(ctx context.Context, txHash string, timeout time.Duration) (*Receipt, error) {
	hash := common.HexToHash(txHash)
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return &Receipt{
				TxHash:      txHash,
				Status:      receipt.Status,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("tx %s: %w", txHash, types.ErrTransactionTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// EVMDialer dials EVM chains and caches one client per chain id.
type EVMDialer struct {
	privateKeyHex string

	mu      sync.Mutex
	clients map[uint64]*EVMClient
}

// NewEVMDialer builds a dialer. privateKeyHex may be empty for read-only use.
func NewEVMDialer(privateKeyHex string) *EVMDialer {
	return &EVMDialer{
		privateKeyHex: privateKeyHex,
		clients:       make(map[uint64]*EVMClient),
	}
}

// Dial returns the cached client for a chain, connecting on first use.
func (d *EVMDialer) Dial(cfg types.ChainConfig) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[cfg.ChainID]; ok {
		return c, nil
	}
	c, err := NewEVMClient(cfg, d.privateKeyHex)
	if err != nil {
		return nil, err
	}
	d.clients[cfg.ChainID] = c
	return c, nil
}

// Close closes every cached client.
func (d *EVMDialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.clients {
		c.Close()
	}
	d.clients = make(map[uint64]*EVMClient)
}
