package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLSlotRepository keeps organization slots as ordered rows of 'organization_slots'.
type SQLSlotRepository struct {
	db      *sqlx.DB
	dataset string
}

func NewSQLSlotRepository(db *sqlx.DB, dataset string) *SQLSlotRepository {
	return &SQLSlotRepository{db: db, dataset: dataset}
}

// Append adds subjectID after the current last position. Appending a
// subject already present is a no-op.
func (r *SQLSlotRepository) Append(ctx context.Context, organization string, subjectID int64) error {
	organization = strings.TrimSpace(organization)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning slot transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM organization_slots
		WHERE dataset = ? AND organization = ? AND subject_id = ?`), r.dataset, organization, subjectID); err != nil {
		return fmt.Errorf("error checking organization slot: %w", err)
	}
	if exists > 0 {
		return nil
	}

	var next int
	if err := tx.GetContext(ctx, &next, tx.Rebind(`SELECT COALESCE(MAX(position), 0) + 1 FROM organization_slots
		WHERE dataset = ? AND organization = ?`), r.dataset, organization); err != nil {
		return fmt.Errorf("error reading organization slot position: %w", err)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO organization_slots (dataset, organization, position, subject_id, added_at)
		VALUES (?, ?, ?, ?, ?)`), r.dataset, organization, next, subjectID, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization slot for %s changed concurrently: %w", organization, err)
		}
		return fmt.Errorf("error appending organization slot: %w", err)
	}
	return tx.Commit()
}

func (r *SQLSlotRepository) Latest(ctx context.Context, organization string) (int64, bool, error) {
	var ids []int64
	query := r.db.Rebind(`SELECT subject_id FROM organization_slots
		WHERE dataset = ? AND organization = ? ORDER BY position DESC LIMIT 1`)
	if err := r.db.SelectContext(ctx, &ids, query, r.dataset, strings.TrimSpace(organization)); err != nil {
		return 0, false, fmt.Errorf("error reading latest organization slot: %w", err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (r *SQLSlotRepository) Contains(ctx context.Context, organization string, subjectID int64) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM organization_slots WHERE dataset = ? AND organization = ? AND subject_id = ?`)
	if err := r.db.GetContext(ctx, &n, query, r.dataset, strings.TrimSpace(organization), subjectID); err != nil {
		return false, fmt.Errorf("error checking organization slot: %w", err)
	}
	return n > 0, nil
}

func (r *SQLSlotRepository) List(ctx context.Context, organization string) ([]int64, error) {
	ids := make([]int64, 0)
	query := r.db.Rebind(`SELECT subject_id FROM organization_slots WHERE dataset = ? AND organization = ? ORDER BY position`)
	if err := r.db.SelectContext(ctx, &ids, query, r.dataset, strings.TrimSpace(organization)); err != nil {
		return nil, fmt.Errorf("error listing organization slots: %w", err)
	}
	return ids, nil
}
