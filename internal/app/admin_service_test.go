package app

import (
	"testing"

	"academic_outreach/internal/domain/ledger"
	"academic_outreach/internal/domain/subject"
	idb "academic_outreach/internal/infra/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID int64 = 1001

func TestAdminService_RejectsOtherUsers(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.subjects, f.ledger, adminID)

	_, err := svc.Status(f.ctx, 7, 1)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	assert.ErrorIs(t, svc.MarkResponse(f.ctx, 7, 1, ledger.StatusPositive), ErrAdminNotAuthorized)
	_, err = svc.AddSubject(f.ctx, 7, &subject.Subject{Name: "X", Email: "x@y.edu"})
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
}

func TestAdminService_MarkResponse(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.subjects, f.ledger, adminID)
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")
	f.sendInitial(t, s, f.now, "<m0@uni.edu>")

	require.NoError(t, svc.MarkResponse(f.ctx, adminID, s.ID, ledger.StatusPositive))
	e, err := f.ledger.Get(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPositive, e.ResponseStatus)

	err = svc.MarkResponse(f.ctx, adminID, 999, ledger.StatusNegative)
	assert.ErrorIs(t, err, idb.ErrSubjectNotFound)
}

func TestAdminService_SetStage(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.subjects, f.ledger, adminID)
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")

	require.NoError(t, svc.SetStage(f.ctx, adminID, s.ID, ledger.StageFiltering, true))
	e, err := f.ledger.Get(f.ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, e.FilteringDone)
}

func TestAdminService_StatusFormat(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.subjects, f.ledger, adminID)
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")

	st, err := svc.Status(f.ctx, adminID, s.ID)
	require.NoError(t, err)
	assert.Contains(t, st.Format(), "initial: not sent")
	assert.Contains(t, st.Format(), "reminder 1: -")

	f.sendInitial(t, s, f.now.Add(-days(8)), "<m0@uni.edu>")
	_, err = f.reminderService(ReminderSettings{}).RunPass(f.ctx)
	require.NoError(t, err)

	st, err = svc.Status(f.ctx, adminID, s.ID)
	require.NoError(t, err)
	text := st.Format()
	assert.Contains(t, text, "#1 Ada Lovelace (AU)")
	assert.Contains(t, text, "response: no_answer")
	assert.Contains(t, text, "from me@uni.edu")
	assert.Contains(t, text, "reminder 1: sent after 8 days")
}

func TestAdminService_AddAndCorrectSubject(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.subjects, f.ledger, adminID)

	created, err := svc.AddSubject(f.ctx, adminID, &subject.Subject{Name: "Ada", Organization: "AU", Email: "ada@au.edu"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = svc.AddSubject(f.ctx, adminID, &subject.Subject{Name: "Ada again", Organization: "AU", Email: "ada@au.edu"})
	assert.ErrorIs(t, err, ErrSubjectAlreadyExists)

	_, err = svc.AddSubject(f.ctx, adminID, &subject.Subject{Name: "No mail", Email: "nowhere"})
	assert.Error(t, err)

	updated, err := svc.CorrectSubject(f.ctx, adminID, created.ID, "", "ada@new.edu")
	require.NoError(t, err)
	assert.Equal(t, "AU", updated.Organization)
	assert.Equal(t, "ada@new.edu", updated.Email)

	stored, err := f.subjects.GetByID(f.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@new.edu", stored.Email)

	_, err = svc.CorrectSubject(f.ctx, adminID, 404, "X", "")
	assert.ErrorIs(t, err, idb.ErrSubjectNotFound)
}

func TestAdminService_Overview(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.subjects, f.ledger, adminID)
	a := f.addSubject(t, "A", "AU", "a@au.edu")
	b := f.addSubject(t, "B", "BU", "b@bu.edu")
	f.addSubject(t, "C", "CU", "c@cu.edu")
	f.sendInitial(t, a, f.now.Add(-days(8)), "<a@uni.edu>")
	f.sendInitial(t, b, f.now.Add(-days(1)), "<b@uni.edu>")
	require.NoError(t, f.ledger.SetResponseStatus(f.ctx, b.ID, ledger.StatusNegative))
	_, err := f.reminderService(ReminderSettings{}).RunPass(f.ctx)
	require.NoError(t, err)

	o, err := svc.Overview(f.ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, 3, o.Subjects)
	assert.Equal(t, 2, o.Contacted)
	assert.Equal(t, 1, o.ByStatus[ledger.StatusNoAnswer])
	assert.Equal(t, 1, o.ByStatus[ledger.StatusNegative])
	assert.Equal(t, 1, o.RemindersSent[0])
	assert.Contains(t, o.Format(), "negative: 1")
}
