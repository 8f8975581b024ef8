// internal/domain/ledger/repository.go
package ledger

import (
	"context"
	"database/sql"
	"time"
)

// Repository persists ledger entries. Writers to the same subject are
// serialized; writers to different subjects are independent.
type Repository interface {
	Get(ctx context.Context, subjectID int64) (*Entry, error)
	// Update runs fn against the current entry (a fresh one if none exists)
	// and persists the result atomically. If fn returns an error nothing is
	// written.
	Update(ctx context.Context, subjectID int64, fn func(e *Entry) error) (*Entry, error)

	UpsertStage(ctx context.Context, subjectID int64, stage Stage, value bool) error
	RecordInitialSend(ctx context.Context, subjectID int64, sentAt time.Time, account, messageID string) error
	RecordReminder(ctx context.Context, subjectID int64, k int, sent bool, intervalDays sql.NullInt64, messageID sql.NullString) error
	RecordMessageID(ctx context.Context, subjectID int64, index int, messageID string) error
	SetResponseStatus(ctx context.Context, subjectID int64, status ResponseStatus) error

	// ListAwaitingReply returns entries with a sent initial email whose
	// response status still allows reminders.
	ListAwaitingReply(ctx context.Context) ([]*Entry, error)
	List(ctx context.Context) ([]*Entry, error)
}
