package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"academic_outreach/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// Pass is one scheduled unit of work.
type Pass interface {
	RunPass(ctx context.Context) (*PassReport, error)
}

// passLockName is the lease every pass takes, so that outreach and reminders
// of one dataset never run in two processes at once.
const passLockName = "passes"

// Runner executes passes one at a time and reports their summaries to the
// admin chat when a notifier is configured.
type Runner struct {
	outreach  Pass
	reminders Pass
	notifier  telegram.Client // optional
	adminID   int64
	log       *logrus.Entry

	lock       PassLock // optional
	lockHolder string
	lockTTL    time.Duration

	mu sync.Mutex
}

func NewRunner(outreach, reminders Pass, notifier telegram.Client, adminID int64, log *logrus.Entry) *Runner {
	return &Runner{outreach: outreach, reminders: reminders, notifier: notifier, adminID: adminID, log: log}
}

// WithLock makes every pass hold lock for at most ttl.
func (r *Runner) WithLock(lock PassLock, holder string, ttl time.Duration) *Runner {
	r.lock = lock
	r.lockHolder = holder
	r.lockTTL = ttl
	return r
}

// RunOutreach runs the initial email pass.
func (r *Runner) RunOutreach(ctx context.Context) (*PassReport, error) {
	return r.run(ctx, "outreach", r.outreach)
}

// RunReminders runs the reminder pass.
func (r *Runner) RunReminders(ctx context.Context) (*PassReport, error) {
	return r.run(ctx, "reminder", r.reminders)
}

// RunAll runs the outreach pass followed by the reminder pass.
func (r *Runner) RunAll(ctx context.Context) ([]*PassReport, error) {
	reports := make([]*PassReport, 0, 2)
	rep, err := r.RunOutreach(ctx)
	if rep != nil {
		reports = append(reports, rep)
	}
	if err != nil {
		return reports, err
	}
	rep, err = r.RunReminders(ctx)
	if rep != nil {
		reports = append(reports, rep)
	}
	return reports, err
}

func (r *Runner) run(ctx context.Context, name string, p Pass) (*PassReport, error) {
	if p == nil {
		return nil, fmt.Errorf("%s pass is not configured", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lock != nil {
		ok, err := r.lock.Acquire(ctx, passLockName, r.lockHolder, r.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("%s pass: %w", name, err)
		}
		if !ok {
			r.log.WithField("pass", name).Warn("Pass lock is held elsewhere, not running")
			return nil, fmt.Errorf("%s pass: %w", name, ErrPassInProgress)
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), passLockName, r.lockHolder); err != nil {
				r.log.WithError(err).Warn("Failed to release pass lock")
			}
		}()
	}

	report, err := p.RunPass(ctx)
	if err != nil {
		r.log.WithError(err).WithField("pass", name).Error("Pass failed")
		r.notify(fmt.Sprintf("%s pass failed: %v", name, err))
		return report, err
	}
	if report.Total() > 0 {
		r.notify(report.Summary())
	}
	return report, nil
}

func (r *Runner) notify(text string) {
	if r.notifier == nil || r.adminID == 0 {
		return
	}
	if err := r.notifier.SendMessage(r.adminID, text, nil); err != nil {
		r.log.WithError(err).Warn("Failed to notify admin")
	}
}
