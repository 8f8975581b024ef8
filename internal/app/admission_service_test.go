package app

import (
	"testing"

	"academic_outreach/internal/domain/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAdmit_EmptyOrganization(t *testing.T) {
	f := newFixture(t)
	ok, err := f.admission(7).CanAdmit(f.ctx, "AU")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAdmit_ByLatestStatus(t *testing.T) {
	tests := []struct {
		name   string
		status ledger.ResponseStatus
		want   bool
	}{
		{"positive", ledger.StatusPositive, true},
		{"negative", ledger.StatusNegative, true},
		{"follow up", ledger.StatusFollowUpNeeded, true},
		{"do not contact", ledger.StatusDoNotContact, true},
		{"stale", ledger.StatusStaleNoResponse, true},
		{"out of office", ledger.StatusOutOfOffice, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")
			gate := f.admission(7)
			require.NoError(t, gate.Admit(f.ctx, "AU", s.ID))
			f.sendInitial(t, s, f.now.Add(-days(30)), "<m0@uni.edu>")
			require.NoError(t, f.ledger.SetResponseStatus(f.ctx, s.ID, tt.status))

			ok, err := gate.CanAdmit(f.ctx, "AU")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			e, err := f.ledger.Get(f.ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, e.ResponseStatus)
		})
	}
}

func TestCanAdmit_PromotesStaleSubject(t *testing.T) {
	f := newFixture(t)
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")
	gate := f.admission(7)
	require.NoError(t, gate.Admit(f.ctx, "AU", s.ID))
	f.sendInitial(t, s, f.now.Add(-days(3)), "<m0@uni.edu>")

	ok, err := gate.CanAdmit(f.ctx, "AU")
	require.NoError(t, err)
	assert.False(t, ok)

	f.now = f.now.Add(days(7))
	ok, err = gate.CanAdmit(f.ctx, "AU")
	require.NoError(t, err)
	assert.True(t, ok)

	e, err := f.ledger.Get(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusStaleNoResponse, e.ResponseStatus)
}

func TestCanAdmit_LatestNotSentHoldsOrganization(t *testing.T) {
	f := newFixture(t)
	s := f.addSubject(t, "Ada Lovelace", "AU", "ada@au.edu")
	gate := f.admission(7)
	require.NoError(t, gate.Admit(f.ctx, "AU", s.ID))

	// No ledger entry at all.
	ok, err := gate.CanAdmit(f.ctx, "AU")
	require.NoError(t, err)
	assert.False(t, ok)

	// Entry exists but the initial email never went out.
	require.NoError(t, f.ledger.UpsertStage(f.ctx, s.ID, ledger.StageHTML, true))
	f.now = f.now.Add(days(60))
	ok, err = gate.CanAdmit(f.ctx, "AU")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAdmit_OnlyLatestCounts(t *testing.T) {
	f := newFixture(t)
	first := f.addSubject(t, "First", "AU", "first@au.edu")
	second := f.addSubject(t, "Second", "AU", "second@au.edu")
	gate := f.admission(7)

	require.NoError(t, gate.Admit(f.ctx, "AU", first.ID))
	f.sendInitial(t, first, f.now.Add(-days(20)), "<a@uni.edu>")
	require.NoError(t, f.ledger.SetResponseStatus(f.ctx, first.ID, ledger.StatusNegative))
	require.NoError(t, gate.Admit(f.ctx, "AU", second.ID))
	f.sendInitial(t, second, f.now.Add(-days(1)), "<b@uni.edu>")

	ok, err := gate.CanAdmit(f.ctx, "AU")
	require.NoError(t, err)
	assert.False(t, ok)

	admitted, err := gate.Admitted(f.ctx, "AU", first.ID)
	require.NoError(t, err)
	assert.True(t, admitted)
}
