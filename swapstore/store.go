// Package swapstore persists settlement records in Postgres so swap
// history survives restarts. The store opens a connection per call, the
// same way the rest of the deployment's database access works; settlement
// traffic is far too low for pooling to matter.
package swapstore

import (
	"context"
	"database/sql"
	"time"

	solvererrors "github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Store reads and writes settlement records.
type Store struct {
	dbConnStr string
}

// NewStore creates a store for the given Postgres connection string and
// ensures the swaps table exists.
func NewStore(ctx context.Context, connStr string) (*Store, error) {
	store := &Store{dbConnStr: connStr}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return solvererrors.ErrDatabaseConnect
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS swaps (
            deposit_address   TEXT PRIMARY KEY,
            deposit_memo      TEXT NOT NULL DEFAULT '',
            intent_id         TEXT NOT NULL,
            status            TEXT NOT NULL,
            origin_chain      TEXT NOT NULL,
            destination_chain TEXT NOT NULL,
            amount            TEXT NOT NULL,
            recipient         TEXT NOT NULL,
            created_at        TIMESTAMPTZ NOT NULL,
            updated_at        TIMESTAMPTZ NOT NULL,
            completed_at      TIMESTAMPTZ,
            deposit_tx_hash   TEXT NOT NULL DEFAULT '',
            final_tx_hash     TEXT NOT NULL DEFAULT '',
            error             TEXT NOT NULL DEFAULT ''
        )
    `)
	if err != nil {
		return errors.Wrap(err, "failed to create swaps table")
	}
	return nil
}

// Upsert inserts or replaces the record keyed by deposit address.
func (s *Store) Upsert(ctx context.Context, record *types.SwapRecord) error {
	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return solvererrors.ErrDatabaseConnect
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
        INSERT INTO swaps (
            deposit_address, deposit_memo, intent_id, status,
            origin_chain, destination_chain, amount, recipient,
            created_at, updated_at, completed_at,
            deposit_tx_hash, final_tx_hash, error
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT (deposit_address) DO UPDATE SET
            deposit_memo      = EXCLUDED.deposit_memo,
            intent_id         = EXCLUDED.intent_id,
            status            = EXCLUDED.status,
            origin_chain      = EXCLUDED.origin_chain,
            destination_chain = EXCLUDED.destination_chain,
            amount            = EXCLUDED.amount,
            recipient         = EXCLUDED.recipient,
            updated_at        = EXCLUDED.updated_at,
            completed_at      = EXCLUDED.completed_at,
            deposit_tx_hash   = EXCLUDED.deposit_tx_hash,
            final_tx_hash     = EXCLUDED.final_tx_hash,
            error             = EXCLUDED.error
    `,
		record.DepositAddress,
		record.DepositMemo,
		record.IntentID,
		record.Status,
		record.OriginChain,
		record.DestinationChain,
		record.Amount,
		record.Recipient,
		record.CreatedAt,
		record.UpdatedAt,
		record.CompletedAt,
		record.DepositTxHash,
		record.FinalTxHash,
		record.Error,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert swap record")
	}
	return nil
}

// Get returns the record for a deposit address.
func (s *Store) Get(ctx context.Context, depositAddress string) (*types.SwapRecord, error) {
	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return nil, solvererrors.ErrDatabaseConnect
	}
	defer db.Close()

	record, err := scanSwap(db.QueryRowContext(ctx, `
        SELECT deposit_address, deposit_memo, intent_id, status,
               origin_chain, destination_chain, amount, recipient,
               created_at, updated_at, completed_at,
               deposit_tx_hash, final_tx_hash, error
        FROM swaps
        WHERE deposit_address = $1
    `, depositAddress))
	if err == sql.ErrNoRows {
		return nil, solvererrors.ErrSwapNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get swap record")
	}
	return record, nil
}

// Active returns all records whose status is not terminal.
func (s *Store) Active(ctx context.Context) ([]*types.SwapRecord, error) {
	return s.query(ctx, `
        SELECT deposit_address, deposit_memo, intent_id, status,
               origin_chain, destination_chain, amount, recipient,
               created_at, updated_at, completed_at,
               deposit_tx_hash, final_tx_hash, error
        FROM swaps
        WHERE status NOT IN ($1, $2, $3)
        ORDER BY created_at
    `, types.SwapStatusSuccess, types.SwapStatusFailed, types.SwapStatusRefunded)
}

// All returns every record, newest first.
func (s *Store) All(ctx context.Context) ([]*types.SwapRecord, error) {
	return s.query(ctx, `
        SELECT deposit_address, deposit_memo, intent_id, status,
               origin_chain, destination_chain, amount, recipient,
               created_at, updated_at, completed_at,
               deposit_tx_hash, final_tx_hash, error
        FROM swaps
        ORDER BY created_at DESC
    `)
}

// DeleteCompletedBefore removes terminal records whose completion
// predates the cutoff, returning how many were removed.
func (s *Store) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return 0, solvererrors.ErrDatabaseConnect
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `
        DELETE FROM swaps
        WHERE status IN ($1, $2, $3) AND completed_at < $4
    `, types.SwapStatusSuccess, types.SwapStatusFailed, types.SwapStatusRefunded, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete completed swaps")
	}
	return result.RowsAffected()
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]*types.SwapRecord, error) {
	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return nil, solvererrors.ErrDatabaseConnect
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query swap records")
	}
	defer rows.Close()

	var records []*types.SwapRecord
	for rows.Next() {
		record, err := scanSwap(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan swap record")
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSwap(row scanner) (*types.SwapRecord, error) {
	var record types.SwapRecord
	var completedAt sql.NullTime

	err := row.Scan(
		&record.DepositAddress,
		&record.DepositMemo,
		&record.IntentID,
		&record.Status,
		&record.OriginChain,
		&record.DestinationChain,
		&record.Amount,
		&record.Recipient,
		&record.CreatedAt,
		&record.UpdatedAt,
		&completedAt,
		&record.DepositTxHash,
		&record.FinalTxHash,
		&record.Error,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}
	return &record, nil
}
