package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is one atomic unit of contact reads and writes.
// A Tx is only valid inside the callback passed to Store.InTx.
type Tx struct {
	tx    *sql.Tx
	clock Clock
}

// InTx runs fn inside a single SQLite transaction.
//
// The transaction commits only if fn returns nil; otherwise every write made
// through the Tx is rolled back. A transient lock failure (SQLITE_BUSY,
// SQLITE_LOCKED) on the first attempt is retried once with a fresh
// transaction, so fn must not keep state across attempts.
//
// Each attempt is bounded by the store's transaction timeout.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	err := s.runTx(ctx, fn)
	if err != nil && IsTransient(err) && ctx.Err() == nil {
		err = s.runTx(ctx, fn)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: sqlTx, clock: s.clock}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
