// internal/domain/ledger/entry.go
package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

var ErrReminderAlreadySent = fmt.Errorf("reminder already sent")
var ErrReminderOutOfOrder = fmt.Errorf("previous reminder not sent")
var ErrInvalidReminderIndex = fmt.Errorf("reminder index out of range")

// ReminderState is the tri-state record of one follow-up. Sent is NULL until
// the reminder has been evaluated at least once.
type ReminderState struct {
	Sent         sql.NullBool
	IntervalDays sql.NullInt64
	MessageID    sql.NullString
}

// IsSent reports whether the reminder went out.
func (r ReminderState) IsSent() bool {
	return r.Sent.Valid && r.Sent.Bool
}

// Entry is the outreach chronology of a single subject.
// Corresponds to one row of the 'ledger_entries' table.
type Entry struct {
	SubjectID        int64
	GatheringDone    bool
	FilteringDone    bool
	HTMLDone         bool
	CVDone           bool
	EmailSent        bool
	SendDate         sql.NullInt64  // epoch seconds of the initial send
	FromAccount      sql.NullString // sending address, sticky after the initial send
	ResponseStatus   ResponseStatus
	InitialMessageID sql.NullString
	Reminders        [MaxReminders]ReminderState // index 0 holds reminder 1
	UpdatedAt        time.Time
}

// NewEntry returns the state of a subject that has never been touched.
func NewEntry(subjectID int64) *Entry {
	return &Entry{SubjectID: subjectID, ResponseStatus: StatusNoAnswer}
}

// Reminder returns reminder k (1-based).
func (e *Entry) Reminder(k int) (ReminderState, error) {
	if k < 1 || k > MaxReminders {
		return ReminderState{}, fmt.Errorf("%w: %d", ErrInvalidReminderIndex, k)
	}
	return e.Reminders[k-1], nil
}

// MessageID returns the message identifier at index i: 0 is the initial
// email, 1..3 the reminders.
func (e *Entry) MessageID(i int) sql.NullString {
	if i == 0 {
		return e.InitialMessageID
	}
	if i < 0 || i > MaxReminders {
		return sql.NullString{}
	}
	return e.Reminders[i-1].MessageID
}

// SetMessageID stores id at index i using the same numbering as MessageID.
func (e *Entry) SetMessageID(i int, id string) error {
	if i < 0 || i > MaxReminders {
		return fmt.Errorf("%w: message index %d", ErrInvalidReminderIndex, i)
	}
	value := sql.NullString{String: id, Valid: id != ""}
	if i == 0 {
		e.InitialMessageID = value
		return nil
	}
	e.Reminders[i-1].MessageID = value
	return nil
}

// KnownMessageIDs returns the non-empty identifiers at indices 0..upTo.
func (e *Entry) KnownMessageIDs(upTo int) []string {
	ids := make([]string, 0, upTo+1)
	for i := 0; i <= upTo && i <= MaxReminders; i++ {
		if id := e.MessageID(i); id.Valid && id.String != "" {
			ids = append(ids, id.String)
		}
	}
	return ids
}

// SetStage sets the completion flag of a stage. Clearing a flag is only
// meant for explicit reprocessing.
func (e *Entry) SetStage(stage Stage, value bool) error {
	switch stage {
	case StageGathering:
		e.GatheringDone = value
	case StageFiltering:
		e.FilteringDone = value
	case StageHTML:
		e.HTMLDone = value
	case StageCV:
		e.CVDone = value
	case StageEmailSent:
		e.EmailSent = value
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

// StageDone reports the completion flag for stage.
func (e *Entry) StageDone(stage Stage) bool {
	switch stage {
	case StageGathering:
		return e.GatheringDone
	case StageFiltering:
		return e.FilteringDone
	case StageHTML:
		return e.HTMLDone
	case StageCV:
		return e.CVDone
	case StageEmailSent:
		return e.EmailSent
	}
	return false
}

// MarkInitialSend records the first outreach email. The sending account is
// fixed from here on.
func (e *Entry) MarkInitialSend(sentAt time.Time, account, messageID string) error {
	if e.EmailSent && e.SendDate.Valid {
		return fmt.Errorf("initial email for subject %d already recorded", e.SubjectID)
	}
	e.EmailSent = true
	e.SendDate = sql.NullInt64{Int64: sentAt.Unix(), Valid: true}
	e.FromAccount = sql.NullString{String: account, Valid: account != ""}
	e.InitialMessageID = sql.NullString{String: messageID, Valid: messageID != ""}
	return nil
}

// MarkReminder records the evaluation outcome of reminder k. A sent reminder
// can never be reverted and reminder k can only be sent after k-1.
func (e *Entry) MarkReminder(k int, sent bool, intervalDays sql.NullInt64, messageID sql.NullString) error {
	current, err := e.Reminder(k)
	if err != nil {
		return err
	}
	if current.IsSent() {
		return fmt.Errorf("%w: reminder %d of subject %d", ErrReminderAlreadySent, k, e.SubjectID)
	}
	if sent && k > 1 && !e.Reminders[k-2].IsSent() {
		return fmt.Errorf("%w: reminder %d of subject %d", ErrReminderOutOfOrder, k, e.SubjectID)
	}

	state := &e.Reminders[k-1]
	state.Sent = sql.NullBool{Bool: sent, Valid: true}
	if intervalDays.Valid {
		state.IntervalDays = intervalDays
	}
	if messageID.Valid {
		state.MessageID = messageID
	}
	return nil
}

// SendTime returns the initial send date as a time.
func (e *Entry) SendTime() (time.Time, bool) {
	if !e.SendDate.Valid {
		return time.Time{}, false
	}
	return time.Unix(e.SendDate.Int64, 0), true
}
