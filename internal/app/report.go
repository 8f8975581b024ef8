package app

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Outcome is the result of processing one subject in a pass.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeNotDue    Outcome = "not_due"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeDeferred  Outcome = "deferred" // held back by the organization gate
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

var outcomeOrder = []Outcome{OutcomeSent, OutcomeNotDue, OutcomeExhausted, OutcomeDeferred, OutcomeSkipped, OutcomeFailed}

// PassReport counts outcomes of a pass. It is safe for concurrent use.
type PassReport struct {
	Name      string
	StartedAt time.Time
	Duration  time.Duration

	mu     sync.Mutex
	counts map[Outcome]int
}

func newPassReport(name string, startedAt time.Time) *PassReport {
	return &PassReport{Name: name, StartedAt: startedAt, counts: make(map[Outcome]int)}
}

func (r *PassReport) add(o Outcome) {
	r.mu.Lock()
	r.counts[o]++
	r.mu.Unlock()
}

// Count returns how many subjects ended with o.
func (r *PassReport) Count(o Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[o]
}

// Total is the number of subjects processed.
func (r *PassReport) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.counts {
		n += c
	}
	return n
}

// Summary renders a single line such as "reminder pass: 3 processed (sent=1 not_due=2)".
func (r *PassReport) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := make([]string, 0, len(outcomeOrder))
	total := 0
	for _, o := range outcomeOrder {
		if c := r.counts[o]; c > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, c))
			total += c
		}
	}
	if total == 0 {
		return fmt.Sprintf("%s pass: nothing to do", r.Name)
	}
	return fmt.Sprintf("%s pass: %d processed (%s)", r.Name, total, strings.Join(parts, " "))
}
