package app

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"academic_outreach/internal/domain/ledger"
	"academic_outreach/internal/domain/mail"
	"academic_outreach/internal/domain/subject"
	"academic_outreach/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutreachPass_SendsInitialEmail(t *testing.T) {
	f := newFixture(t)
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")

	report, err := f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeSent))

	calls := f.transport.sent()
	require.Len(t, calls, 1)
	msg := calls[0].Msg
	assert.Equal(t, "ada@au.edu", msg.To)
	assert.Equal(t, initialSubject, msg.Subject)
	assert.Equal(t, "<p>initial to Ada Lovelace</p>", msg.HTML)
	assert.Equal(t, []string{f.store.CVPath(s)}, msg.Attachments)
	assert.False(t, msg.Threaded())

	e, err := f.ledger.Get(f.ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, e.EmailSent)
	assert.True(t, e.HTMLDone)
	assert.True(t, e.CVDone)
	assert.Equal(t, f.now.Unix(), e.SendDate.Int64)
	assert.Equal(t, "me@uni.edu", e.FromAccount.String)
	assert.Equal(t, calls[0].ID, e.InitialMessageID.String)

	slots, err := f.slots.List(f.ctx, "AU")
	require.NoError(t, err)
	assert.Equal(t, []int64{s.ID}, slots)

	// Already contacted subjects are not picked up again.
	report, err = f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total())
	assert.Len(t, f.transport.sent(), 1)
}

func TestOutreachPass_WaitsForArtifacts(t *testing.T) {
	f := newFixture(t)
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")
	require.NoError(t, os.Remove(f.store.CVPath(s)))

	report, err := f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeSkipped))
	assert.Empty(t, f.transport.sent())

	e, err := f.ledger.Get(f.ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, e.HTMLDone)
	assert.False(t, e.CVDone)
	assert.False(t, e.EmailSent)

	slots, err := f.slots.List(f.ctx, "AU")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestOutreachPass_OneOpenSubjectPerOrganization(t *testing.T) {
	f := newFixture(t)
	first := f.addSubject(t, "First", "AU", "first@au.edu")
	second := f.addSubject(t, "Second", "AU", "second@au.edu")
	other := f.addSubject(t, "Other", "BU", "other@bu.edu")

	report, err := f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(OutcomeSent))
	assert.Equal(t, 1, report.Count(OutcomeDeferred))

	// Three days later the first subject is still fresh.
	f.now = f.now.Add(days(3))
	report, err = f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeDeferred))
	assert.Len(t, f.transport.sent(), 2)

	// Ten days after the first send it has gone stale.
	f.now = f.now.Add(days(7))
	report, err = f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeSent))

	calls := f.transport.sent()
	require.Len(t, calls, 3)
	assert.Equal(t, second.Email, calls[2].Msg.To)

	e, err := f.ledger.Get(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusStaleNoResponse, e.ResponseStatus)

	slots, err := f.slots.List(f.ctx, "AU")
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID, second.ID}, slots)

	slots, err = f.slots.List(f.ctx, "BU")
	require.NoError(t, err)
	assert.Equal(t, []int64{other.ID}, slots)
}

func TestOutreachPass_AccountSelection(t *testing.T) {
	f := newFixture(t, "a@one.edu", "b@two.edu")
	preferred := f.addSubject(t, "Preferred", "AU", "p@au.edu")
	sticky := f.addSubject(t, "Sticky", "BU", "s@bu.edu")
	_, err := f.ledger.Update(f.ctx, sticky.ID, func(e *ledger.Entry) error {
		e.FromAccount = sql.NullString{String: "a@one.edu", Valid: true}
		return nil
	})
	require.NoError(t, err)

	_, err = f.outreachService(OutreachSettings{PreferredAccount: "b@two.edu"}).RunPass(f.ctx)
	require.NoError(t, err)

	from := make(map[string]string)
	for _, c := range f.transport.sent() {
		from[c.Msg.To] = c.From
	}
	assert.Equal(t, "b@two.edu", from[preferred.Email])
	assert.Equal(t, "a@one.edu", from[sticky.Email])

	e, err := f.ledger.Get(f.ctx, sticky.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@one.edu", e.FromAccount.String)
}

func TestOutreachPass_RandomAccountIsKept(t *testing.T) {
	f := newFixture(t, "a@one.edu", "b@two.edu")
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")
	f.transport.err = &mail.TransportError{Op: "connect", Account: "x", Err: errors.New("refused")}

	report, err := f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeFailed))

	e, err := f.ledger.Get(f.ctx, s.ID)
	require.NoError(t, err)
	require.True(t, e.FromAccount.Valid)
	chosen := e.FromAccount.String
	assert.False(t, e.EmailSent)

	f.transport.err = nil
	report, err = f.outreachService(OutreachSettings{}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeSent))
	assert.Equal(t, chosen, f.transport.sent()[0].From)

	slots, err := f.slots.List(f.ctx, "AU")
	require.NoError(t, err)
	assert.Equal(t, []int64{s.ID}, slots)
}

func TestOutreachPass_LimitAndTestRun(t *testing.T) {
	f := newFixture(t)
	f.addSubject(t, "One", "AU", "one@au.edu")
	f.addSubject(t, "Two", "BU", "two@bu.edu")

	report, err := f.outreachService(OutreachSettings{MaxPerPass: 1, TestRun: true, TestEmail: "me+test@uni.edu"}).RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeSent))

	calls := f.transport.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, "me+test@uni.edu", calls[0].Msg.To)

	pending, err := f.subjects.ListNotContacted(f.ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestOutreachPass_NoPauseAfterLastSubject(t *testing.T) {
	f := newFixture(t)
	f.addSubject(t, "One", "AU", "one@au.edu")
	f.addSubject(t, "Two", "BU", "two@bu.edu")
	pacer := &countingPacer{}

	svc := NewOutreachService(f.subjects, f.ledger, f.admission(7), f.accounts, f.transport, f.store,
		OutreachSettings{Subject: initialSubject}, pacer, logger.Discard()).
		WithClock(f.clock).
		WithOrder(func([]*subject.Subject) {})

	report, err := svc.RunPass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(OutcomeSent))
	assert.Equal(t, 1, pacer.pauses)
}
