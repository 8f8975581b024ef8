package scheduler

import (
	"context"
	"fmt"
	"time"

	"academic_outreach/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PassRunner is the part of app.Runner the scheduler drives.
type PassRunner interface {
	RunOutreach(ctx context.Context) (*app.PassReport, error)
	RunReminders(ctx context.Context) (*app.PassReport, error)
}

type OutreachScheduler struct {
	cronEngine        *cron.Cron
	runner            PassRunner
	logger            *logrus.Entry
	cronSpecOutreach  string
	cronSpecReminders string
	passTimeout       time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewOutreachScheduler(
	runner PassRunner,
	logger *logrus.Entry,
	cronSpecOutreach string, // e.g., "0 10 * * 1-5" (10:00 AM on weekdays)
	cronSpecReminders string, // e.g., "0 15 * * 1-5"
	passTimeout time.Duration,
) *OutreachScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &OutreachScheduler{
		// Passes never overlap; a tick that fires while one still runs is skipped.
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner:            runner,
		logger:            logger,
		cronSpecOutreach:  cronSpecOutreach,
		cronSpecReminders: cronSpecReminders,
		passTimeout:       passTimeout,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *OutreachScheduler) Start() error {
	s.logger.Info("Starting outreach scheduler...")

	if s.cronSpecOutreach != "" {
		if _, err := s.cronEngine.AddFunc(s.cronSpecOutreach, func() {
			s.execute("outreach", s.runner.RunOutreach)
		}); err != nil {
			return fmt.Errorf("could not add outreach cron job: %w", err)
		}
	}
	if s.cronSpecReminders != "" {
		if _, err := s.cronEngine.AddFunc(s.cronSpecReminders, func() {
			s.execute("reminder", s.runner.RunReminders)
		}); err != nil {
			return fmt.Errorf("could not add reminder cron job: %w", err)
		}
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"outreach_spec":  s.cronSpecOutreach,
		"reminders_spec": s.cronSpecReminders,
	}).Info("Outreach scheduler started with jobs.")
	return nil
}

func (s *OutreachScheduler) execute(name string, run func(ctx context.Context) (*app.PassReport, error)) {
	log := s.logger.WithField("job", name)
	log.Info("Cron job triggered")

	ctx := s.ctx
	if s.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.passTimeout)
		defer cancel()
	}
	report, err := run(ctx)
	if err != nil {
		log.WithError(err).Error("Error during scheduled pass")
		return
	}
	log.WithField("duration", report.Duration.String()).Info("Scheduled pass finished")
}

// Stop cancels running passes and waits for them to return.
func (s *OutreachScheduler) Stop() {
	s.logger.Info("Stopping outreach scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Outreach scheduler gracefully stopped.")
}
