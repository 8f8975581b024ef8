package ledger

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interval(days int64) sql.NullInt64 { return sql.NullInt64{Int64: days, Valid: true} }
func msgID(id string) sql.NullString    { return sql.NullString{String: id, Valid: true} }

func TestEntry_MarkReminder_SentIsFinal(t *testing.T) {
	e := NewEntry(7)
	require.NoError(t, e.MarkReminder(1, false, sql.NullInt64{}, sql.NullString{}))
	require.NoError(t, e.MarkReminder(1, true, interval(6), msgID("<r1@example.org>")))

	err := e.MarkReminder(1, false, sql.NullInt64{}, sql.NullString{})
	assert.ErrorIs(t, err, ErrReminderAlreadySent)

	err = e.MarkReminder(1, true, interval(9), msgID("<again@example.org>"))
	assert.ErrorIs(t, err, ErrReminderAlreadySent)

	r1, err := e.Reminder(1)
	require.NoError(t, err)
	assert.True(t, r1.IsSent())
	assert.Equal(t, int64(6), r1.IntervalDays.Int64)
	assert.Equal(t, "<r1@example.org>", r1.MessageID.String)
}

func TestEntry_MarkReminder_RequiresPreviousSent(t *testing.T) {
	e := NewEntry(1)
	err := e.MarkReminder(2, true, interval(3), msgID("<r2@example.org>"))
	assert.ErrorIs(t, err, ErrReminderOutOfOrder)

	// Recording "not due" for a later reminder is not a send and is allowed.
	require.NoError(t, e.MarkReminder(2, false, sql.NullInt64{}, sql.NullString{}))
}

func TestEntry_MarkReminder_IndexBounds(t *testing.T) {
	e := NewEntry(1)
	assert.ErrorIs(t, e.MarkReminder(0, true, interval(1), msgID("x")), ErrInvalidReminderIndex)
	assert.ErrorIs(t, e.MarkReminder(4, true, interval(1), msgID("x")), ErrInvalidReminderIndex)
}

func TestEntry_MessageIDs(t *testing.T) {
	e := NewEntry(3)
	require.NoError(t, e.MarkInitialSend(time.Unix(1_700_000_000, 0), "me@uni.edu", "<m0@uni.edu>"))
	require.NoError(t, e.SetMessageID(2, "<m2@uni.edu>"))

	assert.Equal(t, "<m0@uni.edu>", e.MessageID(0).String)
	assert.False(t, e.MessageID(1).Valid)
	assert.Equal(t, []string{"<m0@uni.edu>", "<m2@uni.edu>"}, e.KnownMessageIDs(2))
	assert.Equal(t, []string{"<m0@uni.edu>"}, e.KnownMessageIDs(0))
	assert.Error(t, e.SetMessageID(4, "x"))
}

func TestEntry_MarkInitialSend_Once(t *testing.T) {
	e := NewEntry(3)
	at := time.Unix(1_700_000_000, 0)
	require.NoError(t, e.MarkInitialSend(at, "me@uni.edu", "<m0@uni.edu>"))
	assert.True(t, e.EmailSent)
	sentAt, ok := e.SendTime()
	require.True(t, ok)
	assert.Equal(t, at.Unix(), sentAt.Unix())
	assert.Equal(t, "me@uni.edu", e.FromAccount.String)

	assert.Error(t, e.MarkInitialSend(at.Add(time.Hour), "other@uni.edu", "<x@uni.edu>"))
	assert.Equal(t, "me@uni.edu", e.FromAccount.String)
}

func TestEntry_Stages(t *testing.T) {
	e := NewEntry(1)
	for _, stage := range []Stage{StageGathering, StageFiltering, StageHTML, StageCV, StageEmailSent} {
		require.NoError(t, e.SetStage(stage, true))
		assert.True(t, e.StageDone(stage), stage)
	}
	require.NoError(t, e.SetStage(StageHTML, false))
	assert.False(t, e.HTMLDone)
	assert.Error(t, e.SetStage(Stage("crawl"), true))
}

func TestResponseStatus(t *testing.T) {
	assert.True(t, StatusNoAnswer.AwaitingReply())
	assert.True(t, StatusStaleNoResponse.AwaitingReply())
	assert.False(t, StatusPositive.AwaitingReply())

	assert.True(t, StatusDoNotContact.Resolved())
	assert.False(t, StatusOutOfOffice.Resolved())
	assert.False(t, StatusStaleNoResponse.Resolved())

	s, err := ParseResponseStatus("positive")
	require.NoError(t, err)
	assert.Equal(t, StatusPositive, s)

	s, err = ParseResponseStatus("20")
	require.NoError(t, err)
	assert.Equal(t, StatusStaleNoResponse, s)

	_, err = ParseResponseStatus("7")
	assert.Error(t, err)
	_, err = ParseResponseStatus("maybe")
	assert.Error(t, err)

	assert.Equal(t, "status_99", ResponseStatus(99).String())
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" HTML ")
	require.NoError(t, err)
	assert.Equal(t, StageHTML, s)
	_, err = ParseStage("scrape")
	assert.Error(t, err)
}
