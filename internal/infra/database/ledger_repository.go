// internal/infra/database/ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academic_outreach/internal/domain/ledger"

	"github.com/jmoiron/sqlx"
)

// Custom errors specific to ledger repository
var ErrEntryNotFound = fmt.Errorf("ledger entry not found")

const ledgerColumns = `subject_id, gathering_done, filtering_done, html_done, cv_done, email_sent,
	send_date, from_account, response_status, message_id0,
	reminder1_sent, reminder1_interval, message_id1,
	reminder2_sent, reminder2_interval, message_id2,
	reminder3_sent, reminder3_interval, message_id3,
	updated_at`

// ledgerRow mirrors one row of 'ledger_entries'.
type ledgerRow struct {
	SubjectID         int64          `db:"subject_id"`
	GatheringDone     bool           `db:"gathering_done"`
	FilteringDone     bool           `db:"filtering_done"`
	HTMLDone          bool           `db:"html_done"`
	CVDone            bool           `db:"cv_done"`
	EmailSent         bool           `db:"email_sent"`
	SendDate          sql.NullInt64  `db:"send_date"`
	FromAccount       sql.NullString `db:"from_account"`
	ResponseStatus    int            `db:"response_status"`
	MessageID0        sql.NullString `db:"message_id0"`
	Reminder1Sent     sql.NullBool   `db:"reminder1_sent"`
	Reminder1Interval sql.NullInt64  `db:"reminder1_interval"`
	MessageID1        sql.NullString `db:"message_id1"`
	Reminder2Sent     sql.NullBool   `db:"reminder2_sent"`
	Reminder2Interval sql.NullInt64  `db:"reminder2_interval"`
	MessageID2        sql.NullString `db:"message_id2"`
	Reminder3Sent     sql.NullBool   `db:"reminder3_sent"`
	Reminder3Interval sql.NullInt64  `db:"reminder3_interval"`
	MessageID3        sql.NullString `db:"message_id3"`
	UpdatedAt         int64          `db:"updated_at"`
}

func (r *ledgerRow) toEntry() *ledger.Entry {
	e := &ledger.Entry{
		SubjectID:        r.SubjectID,
		GatheringDone:    r.GatheringDone,
		FilteringDone:    r.FilteringDone,
		HTMLDone:         r.HTMLDone,
		CVDone:           r.CVDone,
		EmailSent:        r.EmailSent,
		SendDate:         r.SendDate,
		FromAccount:      r.FromAccount,
		ResponseStatus:   ledger.ResponseStatus(r.ResponseStatus),
		InitialMessageID: r.MessageID0,
		UpdatedAt:        time.Unix(r.UpdatedAt, 0),
	}
	e.Reminders[0] = ledger.ReminderState{Sent: r.Reminder1Sent, IntervalDays: r.Reminder1Interval, MessageID: r.MessageID1}
	e.Reminders[1] = ledger.ReminderState{Sent: r.Reminder2Sent, IntervalDays: r.Reminder2Interval, MessageID: r.MessageID2}
	e.Reminders[2] = ledger.ReminderState{Sent: r.Reminder3Sent, IntervalDays: r.Reminder3Interval, MessageID: r.MessageID3}
	return e
}

func rowFromEntry(e *ledger.Entry) ledgerRow {
	return ledgerRow{
		SubjectID:         e.SubjectID,
		GatheringDone:     e.GatheringDone,
		FilteringDone:     e.FilteringDone,
		HTMLDone:          e.HTMLDone,
		CVDone:            e.CVDone,
		EmailSent:         e.EmailSent,
		SendDate:          e.SendDate,
		FromAccount:       e.FromAccount,
		ResponseStatus:    int(e.ResponseStatus),
		MessageID0:        e.InitialMessageID,
		Reminder1Sent:     e.Reminders[0].Sent,
		Reminder1Interval: e.Reminders[0].IntervalDays,
		MessageID1:        e.Reminders[0].MessageID,
		Reminder2Sent:     e.Reminders[1].Sent,
		Reminder2Interval: e.Reminders[1].IntervalDays,
		MessageID2:        e.Reminders[1].MessageID,
		Reminder3Sent:     e.Reminders[2].Sent,
		Reminder3Interval: e.Reminders[2].IntervalDays,
		MessageID3:        e.Reminders[2].MessageID,
		UpdatedAt:         e.UpdatedAt.Unix(),
	}
}

// SQLLedgerRepository stores ledger entries of one dataset.
type SQLLedgerRepository struct {
	db      *sqlx.DB
	dataset string
	locks   *keyedMutex
	now     func() time.Time
}

func NewSQLLedgerRepository(db *sqlx.DB, dataset string) *SQLLedgerRepository {
	return &SQLLedgerRepository{db: db, dataset: dataset, locks: newKeyedMutex(), now: time.Now}
}

func (r *SQLLedgerRepository) Get(ctx context.Context, subjectID int64) (*ledger.Entry, error) {
	query := r.db.Rebind(`SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE dataset = ? AND subject_id = ?`)
	var row ledgerRow
	if err := r.db.GetContext(ctx, &row, query, r.dataset, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting ledger entry %d: %w", subjectID, err)
	}
	return row.toEntry(), nil
}

// Update serializes writers per subject with an in-process lock and a
// transaction (row-locked on Postgres).
func (r *SQLLedgerRepository) Update(ctx context.Context, subjectID int64, fn func(e *ledger.Entry) error) (*ledger.Entry, error) {
	unlock := r.locks.Lock(subjectID)
	defer unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning ledger transaction: %w", err)
	}
	defer tx.Rollback()

	ensure := tx.Rebind(`INSERT INTO ledger_entries (dataset, subject_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (dataset, subject_id) DO NOTHING`)
	if _, err := tx.ExecContext(ctx, ensure, r.dataset, subjectID, r.now().Unix()); err != nil {
		return nil, fmt.Errorf("error creating ledger entry %d: %w", subjectID, err)
	}

	selectQuery := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE dataset = ? AND subject_id = ?`
	if isPostgres(tx) {
		selectQuery += ` FOR UPDATE`
	}
	var row ledgerRow
	if err := tx.GetContext(ctx, &row, tx.Rebind(selectQuery), r.dataset, subjectID); err != nil {
		return nil, fmt.Errorf("error reading ledger entry %d: %w", subjectID, err)
	}

	entry := row.toEntry()
	if err := fn(entry); err != nil {
		return nil, err
	}
	entry.SubjectID = subjectID
	entry.UpdatedAt = r.now()

	updated := rowFromEntry(entry)
	const updateQuery = `UPDATE ledger_entries SET
			gathering_done = :gathering_done, filtering_done = :filtering_done,
			html_done = :html_done, cv_done = :cv_done, email_sent = :email_sent,
			send_date = :send_date, from_account = :from_account,
			response_status = :response_status, message_id0 = :message_id0,
			reminder1_sent = :reminder1_sent, reminder1_interval = :reminder1_interval, message_id1 = :message_id1,
			reminder2_sent = :reminder2_sent, reminder2_interval = :reminder2_interval, message_id2 = :message_id2,
			reminder3_sent = :reminder3_sent, reminder3_interval = :reminder3_interval, message_id3 = :message_id3,
			updated_at = :updated_at
		WHERE dataset = :dataset AND subject_id = :subject_id`
	args := struct {
		ledgerRow
		Dataset string `db:"dataset"`
	}{ledgerRow: updated, Dataset: r.dataset}
	if _, err := tx.NamedExecContext(ctx, updateQuery, args); err != nil {
		return nil, fmt.Errorf("error updating ledger entry %d: %w", subjectID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing ledger entry %d: %w", subjectID, err)
	}
	return entry, nil
}

func (r *SQLLedgerRepository) UpsertStage(ctx context.Context, subjectID int64, stage ledger.Stage, value bool) error {
	_, err := r.Update(ctx, subjectID, func(e *ledger.Entry) error {
		return e.SetStage(stage, value)
	})
	return err
}

func (r *SQLLedgerRepository) RecordInitialSend(ctx context.Context, subjectID int64, sentAt time.Time, account, messageID string) error {
	_, err := r.Update(ctx, subjectID, func(e *ledger.Entry) error {
		return e.MarkInitialSend(sentAt, account, messageID)
	})
	return err
}

func (r *SQLLedgerRepository) RecordReminder(ctx context.Context, subjectID int64, k int, sent bool, intervalDays sql.NullInt64, messageID sql.NullString) error {
	_, err := r.Update(ctx, subjectID, func(e *ledger.Entry) error {
		return e.MarkReminder(k, sent, intervalDays, messageID)
	})
	return err
}

func (r *SQLLedgerRepository) RecordMessageID(ctx context.Context, subjectID int64, index int, messageID string) error {
	_, err := r.Update(ctx, subjectID, func(e *ledger.Entry) error {
		return e.SetMessageID(index, messageID)
	})
	return err
}

func (r *SQLLedgerRepository) SetResponseStatus(ctx context.Context, subjectID int64, status ledger.ResponseStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid response status %d", int(status))
	}
	_, err := r.Update(ctx, subjectID, func(e *ledger.Entry) error {
		e.ResponseStatus = status
		return nil
	})
	return err
}

func (r *SQLLedgerRepository) ListAwaitingReply(ctx context.Context) ([]*ledger.Entry, error) {
	statuses := make([]int, 0, 2)
	for _, s := range ledger.AwaitingReplyStatuses() {
		statuses = append(statuses, int(s))
	}
	query, args, err := sqlx.In(`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE dataset = ? AND email_sent = ? AND response_status IN (?)
		ORDER BY subject_id`, r.dataset, true, statuses)
	if err != nil {
		return nil, fmt.Errorf("error building awaiting reply query: %w", err)
	}
	return r.selectEntries(ctx, r.db.Rebind(query), args...)
}

func (r *SQLLedgerRepository) List(ctx context.Context) ([]*ledger.Entry, error) {
	query := r.db.Rebind(`SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE dataset = ? ORDER BY subject_id`)
	return r.selectEntries(ctx, query, r.dataset)
}

func (r *SQLLedgerRepository) selectEntries(ctx context.Context, query string, args ...interface{}) ([]*ledger.Entry, error) {
	var rows []ledgerRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error listing ledger entries: %w", err)
	}
	entries := make([]*ledger.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toEntry())
	}
	return entries, nil
}
