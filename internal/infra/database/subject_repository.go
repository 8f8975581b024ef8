package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"academic_outreach/internal/domain/subject"

	"github.com/jmoiron/sqlx"
)

// Custom errors
var ErrSubjectNotFound = fmt.Errorf("subject not found")
var ErrDuplicateSubject = fmt.Errorf("subject with this id or email already exists")

type subjectRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Organization string `db:"organization"`
	Email        string `db:"email"`
	Webpage      string `db:"webpage"`
	ResearchArea string `db:"research_area"`
	CreatedAt    int64  `db:"created_at"`
}

func (r *subjectRow) toSubject() *subject.Subject {
	return &subject.Subject{
		ID:           r.ID,
		Name:         r.Name,
		Organization: r.Organization,
		Email:        r.Email,
		Webpage:      r.Webpage,
		ResearchArea: r.ResearchArea,
		CreatedAt:    time.Unix(r.CreatedAt, 0),
	}
}

const subjectColumns = `id, name, organization, email, webpage, research_area, created_at`

type SQLSubjectRepository struct {
	db      *sqlx.DB
	dataset string
}

func NewSQLSubjectRepository(db *sqlx.DB, dataset string) *SQLSubjectRepository {
	return &SQLSubjectRepository{db: db, dataset: dataset}
}

// Create inserts s. A zero ID is replaced by the next free identifier of the dataset.
func (r *SQLSubjectRepository) Create(ctx context.Context, s *subject.Subject) error {
	s.Email = strings.TrimSpace(s.Email)
	s.Organization = strings.TrimSpace(s.Organization)
	if s.Name == "" || s.Email == "" {
		return fmt.Errorf("subject requires a name and an email")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning subject transaction: %w", err)
	}
	defer tx.Rollback()

	if s.ID == 0 {
		if err := tx.GetContext(ctx, &s.ID, tx.Rebind(`SELECT COALESCE(MAX(id), 0) + 1 FROM subjects WHERE dataset = ?`), r.dataset); err != nil {
			return fmt.Errorf("error allocating subject id: %w", err)
		}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := tx.Rebind(`INSERT INTO subjects (dataset, ` + subjectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query, r.dataset, s.ID, s.Name, s.Organization, s.Email, s.Webpage, s.ResearchArea, s.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubject
		}
		return fmt.Errorf("error creating subject: %w", err)
	}
	return tx.Commit()
}

func (r *SQLSubjectRepository) GetByID(ctx context.Context, id int64) (*subject.Subject, error) {
	query := r.db.Rebind(`SELECT ` + subjectColumns + ` FROM subjects WHERE dataset = ? AND id = ?`)
	var row subjectRow
	if err := r.db.GetContext(ctx, &row, query, r.dataset, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("error getting subject by ID: %w", err)
	}
	return row.toSubject(), nil
}

func (r *SQLSubjectRepository) UpdateContact(ctx context.Context, id int64, organization, email string) error {
	query := r.db.Rebind(`UPDATE subjects SET organization = ?, email = ? WHERE dataset = ? AND id = ?`)
	res, err := r.db.ExecContext(ctx, query, strings.TrimSpace(organization), strings.TrimSpace(email), r.dataset, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubject
		}
		return fmt.Errorf("error updating subject contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating subject contact: %w", err)
	}
	if n == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

// ListNotContacted returns subjects without a ledger entry or whose entry
// has no sent initial email.
func (r *SQLSubjectRepository) ListNotContacted(ctx context.Context) ([]*subject.Subject, error) {
	query := r.db.Rebind(`SELECT s.id, s.name, s.organization, s.email, s.webpage, s.research_area, s.created_at
		FROM subjects s
		LEFT JOIN ledger_entries l ON l.dataset = s.dataset AND l.subject_id = s.id
		WHERE s.dataset = ? AND (l.subject_id IS NULL OR l.email_sent = ?)
		ORDER BY s.id`)
	return r.selectSubjects(ctx, query, r.dataset, false)
}

func (r *SQLSubjectRepository) ListAll(ctx context.Context) ([]*subject.Subject, error) {
	query := r.db.Rebind(`SELECT ` + subjectColumns + ` FROM subjects WHERE dataset = ? ORDER BY id`)
	return r.selectSubjects(ctx, query, r.dataset)
}

func (r *SQLSubjectRepository) selectSubjects(ctx context.Context, query string, args ...interface{}) ([]*subject.Subject, error) {
	var rows []subjectRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error listing subjects: %w", err)
	}
	subjects := make([]*subject.Subject, 0, len(rows))
	for i := range rows {
		subjects = append(subjects, rows[i].toSubject())
	}
	return subjects, nil
}
