package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLPassLock is a lease in 'pass_locks' shared by every process working on
// the same dataset. An expired lease is taken over by the next caller.
type SQLPassLock struct {
	db      *sqlx.DB
	dataset string
	now     func() time.Time
}

func NewSQLPassLock(db *sqlx.DB, dataset string) *SQLPassLock {
	return &SQLPassLock{db: db, dataset: dataset, now: time.Now}
}

// WithClock replaces the time source.
func (l *SQLPassLock) WithClock(now func() time.Time) *SQLPassLock {
	l.now = now
	return l
}

// Acquire takes the lease name for holder until ttl elapses. It reports false
// when another holder has a live lease.
func (l *SQLPassLock) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := l.now()

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error beginning pass lock transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM pass_locks
		WHERE dataset = ? AND name = ? AND expires_at <= ?`), l.dataset, name, now.Unix()); err != nil {
		return false, fmt.Errorf("error expiring pass lock %q: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO pass_locks (dataset, name, holder, acquired_at, expires_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (dataset, name) DO NOTHING`),
		l.dataset, name, holder, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return false, fmt.Errorf("error acquiring pass lock %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error acquiring pass lock %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing pass lock %q: %w", name, err)
	}
	return n == 1, nil
}

// Release drops the lease if holder still owns it.
func (l *SQLPassLock) Release(ctx context.Context, name, holder string) error {
	if _, err := l.db.ExecContext(ctx, l.db.Rebind(`DELETE FROM pass_locks
		WHERE dataset = ? AND name = ? AND holder = ?`), l.dataset, name, holder); err != nil {
		return fmt.Errorf("error releasing pass lock %q: %w", name, err)
	}
	return nil
}

// Holder returns the current owner of name, or "" when the lease is free.
func (l *SQLPassLock) Holder(ctx context.Context, name string) (string, error) {
	var holder string
	err := l.db.GetContext(ctx, &holder, l.db.Rebind(`SELECT holder FROM pass_locks
		WHERE dataset = ? AND name = ? AND expires_at > ?`), l.dataset, name, l.now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading pass lock %q: %w", name, err)
	}
	return holder, nil
}
