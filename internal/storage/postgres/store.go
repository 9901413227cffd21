package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultFees/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	block_number        BIGINT NOT NULL,
	log_index           BIGINT NOT NULL,
	tx_hash             TEXT NOT NULL,
	block_timestamp     TIMESTAMPTZ NOT NULL,
	vault               TEXT NOT NULL,
	strategy            TEXT NOT NULL,
	version             TEXT NOT NULL,
	gain                NUMERIC NOT NULL,
	loss                NUMERIC NOT NULL,
	debt_paid           NUMERIC,
	total_gain          NUMERIC NOT NULL,
	total_loss          NUMERIC NOT NULL,
	total_debt          NUMERIC NOT NULL,
	debt_added          NUMERIC NOT NULL,
	debt_ratio          BIGINT NOT NULL,
	management_fee_bps  BIGINT NOT NULL,
	performance_fee_bps BIGINT NOT NULL,
	strategist_fee_bps  BIGINT NOT NULL,
	management_fee      NUMERIC NOT NULL,
	performance_fee     NUMERIC NOT NULL,
	strategist_fee      NUMERIC NOT NULL,
	duration            BIGINT NOT NULL,
	duration_verified   BOOLEAN NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (block_number, log_index)
)`

const insertReport = `
INSERT INTO reports (
	block_number, log_index, tx_hash, block_timestamp, vault, strategy, version,
	gain, loss, debt_paid, total_gain, total_loss, total_debt, debt_added, debt_ratio,
	management_fee_bps, performance_fee_bps, strategist_fee_bps,
	management_fee, performance_fee, strategist_fee, duration, duration_verified
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
ON CONFLICT (block_number, log_index) DO NOTHING`

// querier is satisfied by both *pgxpool.Pool and *pgx.Conn.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists reconciled reports.
type Store struct {
	db    querier
	close func()
}

// NewStore opens a connection pool.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// Connect opens a single connection. Each pipeline worker owns one.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: conn, close: func() { _ = conn.Close(context.Background()) }}, nil
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// EnsureSchema creates the reports table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ReportExists reports whether the row at pos is persisted.
func (s *Store) ReportExists(ctx context.Context, pos model.LogPosition) (bool, error) {
	var exists bool
	row := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reports WHERE block_number=$1 AND log_index=$2)`,
		int64(pos.BlockNumber), int64(pos.LogIndex))
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ReportKeys returns the position of every persisted report.
func (s *Store) ReportKeys(ctx context.Context) (map[model.LogPosition]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT block_number, log_index FROM reports`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[model.LogPosition]struct{})
	for rows.Next() {
		var block, idx int64
		if err := rows.Scan(&block, &idx); err != nil {
			return nil, err
		}
		keys[model.LogPosition{BlockNumber: uint64(block), LogIndex: uint64(idx)}] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertReports writes rows in one transaction and returns how many were new.
// Rows already present are left untouched.
func (s *Store) InsertReports(ctx context.Context, rows []model.ReportRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, r := range rows {
		var debtPaid any
		if r.DebtPaid != nil {
			debtPaid = r.DebtPaid.String()
		}
		batch.Queue(insertReport,
			int64(r.BlockNumber),
			int64(r.LogIndex),
			r.TxHash,
			r.Timestamp,
			r.Vault,
			r.Strategy,
			r.Version,
			r.Gain.String(),
			r.Loss.String(),
			debtPaid,
			r.TotalGain.String(),
			r.TotalLoss.String(),
			r.TotalDebt.String(),
			r.DebtAdded.String(),
			r.DebtRatio,
			int64(r.ManagementFeeBPS),
			int64(r.PerformanceFeeBPS),
			int64(r.StrategistFeeBPS),
			r.ManagementFee.String(),
			r.PerformanceFee.String(),
			r.StrategistFee.String(),
			int64(r.Duration),
			r.DurationVerified,
		)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}
