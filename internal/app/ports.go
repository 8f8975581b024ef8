package app

import (
	"context"
	"time"

	"academic_outreach/internal/domain/account"
	"academic_outreach/internal/domain/subject"
)

// Artifacts gives access to the per-subject files on disk.
type Artifacts interface {
	ReminderTemplate(k int) (string, error)
	ReadEmail(subj *subject.Subject, n int) (string, error)
	WriteEmail(subj *subject.Subject, n int, html string) error
	HasEmail(subj *subject.Subject, n int) bool
	CVPath(subj *subject.Subject) string
	HasCV(subj *subject.Subject) bool
}

// AccountDirectory resolves sending accounts.
type AccountDirectory interface {
	Lookup(address string) (*account.Account, error)
	Pick(preferred string) (*account.Account, error)
}

// PassLock is a lease shared by all processes working on one dataset.
type PassLock interface {
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}
