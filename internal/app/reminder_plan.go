package app

import (
	"fmt"
	"math"
	"time"

	"academic_outreach/internal/domain/ledger"
)

const day = 24 * time.Hour

// ReminderPlan is the evaluation of the next pending reminder of an entry.
type ReminderPlan struct {
	Reminder     int       // 1-based index of the pending reminder
	Anchor       time.Time // when the previous message in the chain went out
	ElapsedDays  float64
	RequiredDays float64
	Due          bool
}

// RecordedIntervalDays is the whole number of days stored when the reminder is sent.
func (p *ReminderPlan) RecordedIntervalDays() int64 {
	return int64(math.Floor(p.ElapsedDays))
}

// PlanReminder determines which reminder is pending for e and whether it is
// due at now. It returns nil when every reminder has been sent.
func PlanReminder(e *ledger.Entry, intervals map[int]float64, now time.Time) (*ReminderPlan, error) {
	sentAt, ok := e.SendTime()
	if !ok {
		return nil, &LedgerInconsistencyError{SubjectID: e.SubjectID, Detail: "initial email marked sent without a send date"}
	}

	k := 0
	for i := 1; i <= ledger.MaxReminders; i++ {
		if !e.Reminders[i-1].IsSent() {
			k = i
			break
		}
	}
	if k == 0 {
		return nil, nil
	}

	for j := k + 1; j <= ledger.MaxReminders; j++ {
		if e.Reminders[j-1].IsSent() {
			return nil, &LedgerInconsistencyError{
				SubjectID: e.SubjectID,
				Detail:    fmt.Sprintf("reminder %d sent while reminder %d is not", j, k),
			}
		}
	}

	anchor := sentAt
	for j := 1; j < k; j++ {
		iv := e.Reminders[j-1].IntervalDays
		if !iv.Valid {
			return nil, &ConfigurationGapError{SubjectID: e.SubjectID, Reminder: k, Detail: fmt.Sprintf("reminder %d has no recorded interval", j)}
		}
		anchor = anchor.Add(time.Duration(iv.Int64) * day)
	}

	required, ok := intervals[k]
	if !ok {
		return nil, &ConfigurationGapError{SubjectID: e.SubjectID, Reminder: k, Detail: "no interval configured"}
	}

	elapsed := now.Sub(anchor).Hours() / 24
	return &ReminderPlan{
		Reminder:     k,
		Anchor:       anchor,
		ElapsedDays:  elapsed,
		RequiredDays: required,
		Due:          elapsed >= required,
	}, nil
}

// messageDate estimates when email n (1 is the initial) of the chain was sent.
func messageDate(e *ledger.Entry, n int) time.Time {
	t, _ := e.SendTime()
	for j := 1; j < n && j <= ledger.MaxReminders; j++ {
		if iv := e.Reminders[j-1].IntervalDays; iv.Valid {
			t = t.Add(time.Duration(iv.Int64) * day)
		}
	}
	return t
}
