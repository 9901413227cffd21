package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

// Caller performs eth_call at a block height or against the latest state.
type Caller interface {
	CallAt(ctx context.Context, to common.Address, data []byte, block uint64) ([]byte, error)
	CallLatest(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Reader reads vault and strategy state at a height.
type Reader struct {
	caller   Caller
	decimals *lru.Cache
}

// NewReader builds a Reader over a Caller.
func NewReader(caller Caller) (*Reader, error) {
	decimals, err := lru.New(1024)
	if err != nil {
		return nil, err
	}
	return &Reader{caller: caller, decimals: decimals}, nil
}

// call packs method and calls it at block, or at the latest state when block is 0.
func (r *Reader) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, block uint64, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	var resp []byte
	if block == 0 {
		resp, err = r.caller.CallLatest(ctx, to, data)
	} else {
		resp, err = r.caller.CallAt(ctx, to, data, block)
	}
	if err != nil {
		return nil, fmt.Errorf("call %s on %s at %d: %w", method, to.Hex(), block, err)
	}
	return resp, nil
}

func (r *Reader) uint256(ctx context.Context, parsed abi.ABI, to common.Address, method string, block uint64) (*big.Int, error) {
	resp, err := r.call(ctx, parsed, to, method, block)
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected %T", method, values[0])
	}
	return v, nil
}

func (r *Reader) vaultUint(ctx context.Context, vault common.Address, method string, block uint64) (*big.Int, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return r.uint256(ctx, parsed, vault, method, block)
}

// StrategyParams decodes vault.strategies(strategy) with the release's tuple layout.
func (r *Reader) StrategyParams(ctx context.Context, layout version.StrategyParamsLayout, vault, strategy common.Address, block uint64) (model.StrategyParams, error) {
	parsed, err := VaultABI()
	if err != nil {
		return model.StrategyParams{}, err
	}
	resp, err := r.call(ctx, parsed, vault, "strategies", block, strategy)
	if err != nil {
		return model.StrategyParams{}, err
	}
	return DecodeStrategyParams(resp, layout)
}

// DecodeStrategyParams reads the words of a strategies() tuple.
func DecodeStrategyParams(resp []byte, layout version.StrategyParamsLayout) (model.StrategyParams, error) {
	if len(resp) < layout.Words*32 {
		return model.StrategyParams{}, fmt.Errorf("strategies: got %d bytes, want %d", len(resp), layout.Words*32)
	}
	word := func(i int) *big.Int {
		return new(big.Int).SetBytes(resp[i*32 : (i+1)*32])
	}
	return model.StrategyParams{
		PerformanceFee: word(layout.PerformanceFee),
		LastReport:     word(layout.LastReport),
		TotalDebt:      word(layout.TotalDebt),
	}, nil
}

// VaultLastReport reads vault.lastReport.
func (r *Reader) VaultLastReport(ctx context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return r.vaultUint(ctx, vault, "lastReport", block)
}

// VaultTotalAssets reads vault.totalAssets.
func (r *Reader) VaultTotalAssets(ctx context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return r.vaultUint(ctx, vault, "totalAssets", block)
}

// VaultTotalDebt reads vault.totalDebt.
func (r *Reader) VaultTotalDebt(ctx context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return r.vaultUint(ctx, vault, "totalDebt", block)
}

// VaultDelegatedAssets reads vault.delegatedAssets.
func (r *Reader) VaultDelegatedAssets(ctx context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return r.vaultUint(ctx, vault, "delegatedAssets", block)
}

// StrategyDelegatedAssets reads strategy.delegatedAssets.
func (r *Reader) StrategyDelegatedAssets(ctx context.Context, strategy common.Address, block uint64) (*big.Int, error) {
	parsed, err := StrategyABI()
	if err != nil {
		return nil, err
	}
	return r.uint256(ctx, parsed, strategy, "delegatedAssets", block)
}

// ManagementFee reads vault.managementFee in basis points.
func (r *Reader) ManagementFee(ctx context.Context, vault common.Address, block uint64) (uint64, error) {
	v, err := r.vaultUint(ctx, vault, "managementFee", block)
	if err != nil {
		return 0, err
	}
	return bps(v)
}

// PerformanceFee reads vault.performanceFee in basis points.
func (r *Reader) PerformanceFee(ctx context.Context, vault common.Address, block uint64) (uint64, error) {
	v, err := r.vaultUint(ctx, vault, "performanceFee", block)
	if err != nil {
		return 0, err
	}
	return bps(v)
}

// Decimals reads the vault share decimals once per vault. Decimals are immutable.
func (r *Reader) Decimals(ctx context.Context, vault common.Address) (uint8, error) {
	if v, ok := r.decimals.Get(vault); ok {
		return v.(uint8), nil
	}
	v, err := r.vaultUint(ctx, vault, "decimals", 0)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("decimals %s out of range", v)
	}
	d := uint8(v.Uint64())
	r.decimals.Add(vault, d)
	return d, nil
}

// APIVersion reads vault.apiVersion.
func (r *Reader) APIVersion(ctx context.Context, vault common.Address) (string, error) {
	parsed, err := VaultABI()
	if err != nil {
		return "", err
	}
	resp, err := r.call(ctx, parsed, vault, "apiVersion", 0)
	if err != nil {
		return "", err
	}
	values, err := parsed.Unpack("apiVersion", resp)
	if err != nil {
		return "", fmt.Errorf("unpack apiVersion: %w", err)
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unpack apiVersion: unexpected %T", values[0])
	}
	return s, nil
}
