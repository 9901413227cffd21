package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"vaultFees/internal/model"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	limiter   *rate.Limiter

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient creates a new chain client from the RPC URL.
// requestsPerSecond <= 0 disables rate limiting.
func NewClient(ctx context.Context, rpcURL string, requestsPerSecond float64) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		limiter:   limiter,
		tsCache:   make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.ethClient.BlockNumber(ctx)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	header, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, heightError(err, number)
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// TransactionLogs returns the logs emitted by a transaction.
func (c *Client) TransactionLogs(ctx context.Context, tx common.Hash) ([]types.Log, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	receipt, err := c.ethClient.TransactionReceipt(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", tx.Hex(), err)
	}
	out := make([]types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		out = append(out, *l)
	}
	return out, nil
}

// CallAt performs an eth_call against the state after block.
func (c *Client) CallAt(ctx context.Context, to common.Address, data []byte, block uint64) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	out, err := c.ethClient.CallContract(ctx, msg, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, heightError(err, block)
	}
	return out, nil
}

// CallLatest performs an eth_call against the latest state.
func (c *Client) CallLatest(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.ethClient.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// TraceTransaction returns the raw debug_traceTransaction result with memory enabled.
func (c *Client) TraceTransaction(ctx context.Context, tx common.Hash) (json.RawMessage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	cfg := map[string]interface{}{
		"enableMemory":   true,
		"disableStorage": true,
	}
	var raw json.RawMessage
	if err := c.rpcClient.CallContext(ctx, &raw, "debug_traceTransaction", tx, cfg); err != nil {
		return nil, fmt.Errorf("trace %s: %w", tx.Hex(), err)
	}
	return raw, nil
}

func heightError(err error, block uint64) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "header not found") || strings.Contains(msg, "unknown block") || strings.Contains(msg, "missing trie node") {
		return fmt.Errorf("block %d: %w: %v", block, model.ErrHeightUnavailable, err)
	}
	return err
}
