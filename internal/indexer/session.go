package indexer

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"vaultFees/internal/fees"
	"vaultFees/internal/model"
	"vaultFees/internal/vault"
)

// Chain is the node access a worker needs besides state reads.
type Chain interface {
	TraceTransaction(ctx context.Context, tx common.Hash) (json.RawMessage, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// State reads the vault state both the fee engine and the fee history fall back on.
type State interface {
	fees.StateReader
	vault.FeeState
}

// Store persists reconciled reports.
type Store interface {
	ReportKeys(ctx context.Context) (map[model.LogPosition]struct{}, error)
	ReportExists(ctx context.Context, pos model.LogPosition) (bool, error)
	InsertReports(ctx context.Context, rows []model.ReportRow) (int, error)
}

// Session is the set of connections owned by one worker.
type Session struct {
	Chain Chain
	State State
	Store Store
	// Close releases the connections. May be nil.
	Close func()
}

// SessionFactory opens a new Session.
type SessionFactory func(ctx context.Context) (*Session, error)
