package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"academic_outreach/internal/domain/account"
	"academic_outreach/internal/domain/ledger"
	"academic_outreach/internal/domain/mail"
	"academic_outreach/internal/domain/subject"
	idb "academic_outreach/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// OutreachSettings configures the initial email pass.
type OutreachSettings struct {
	Subject          string
	PreferredAccount string
	TestRun          bool
	TestEmail        string
	MaxPerPass       int // 0 means unlimited
}

// OutreachService sends the first email to subjects whose artifacts are ready.
type OutreachService struct {
	subjects  subject.Repository
	ledger    ledger.Repository
	gate      *AdmissionService
	accounts  AccountDirectory
	transport mail.Transport
	artifacts Artifacts
	settings  OutreachSettings
	pacer     Pacer
	now       func() time.Time
	shuffle   func([]*subject.Subject)
	log       *logrus.Entry
}

func NewOutreachService(
	sr subject.Repository,
	lr ledger.Repository,
	gate *AdmissionService,
	accounts AccountDirectory,
	transport mail.Transport,
	artifacts Artifacts,
	settings OutreachSettings,
	pacer Pacer,
	log *logrus.Entry,
) *OutreachService {
	if pacer == nil {
		pacer = NoPause{}
	}
	return &OutreachService{
		subjects:  sr,
		ledger:    lr,
		gate:      gate,
		accounts:  accounts,
		transport: transport,
		artifacts: artifacts,
		settings:  settings,
		pacer:     pacer,
		now:       time.Now,
		shuffle: func(s []*subject.Subject) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
		log: log,
	}
}

// WithClock replaces the time source.
func (s *OutreachService) WithClock(now func() time.Time) *OutreachService {
	s.now = now
	return s
}

// WithOrder replaces the random ordering of candidates.
func (s *OutreachService) WithOrder(order func([]*subject.Subject)) *OutreachService {
	s.shuffle = order
	return s
}

// RunPass contacts subjects that have not received the initial email.
func (s *OutreachService) RunPass(ctx context.Context) (*PassReport, error) {
	started := s.now()
	report := newPassReport("outreach", started)

	candidates, err := s.subjects.ListNotContacted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects not yet contacted: %w", err)
	}
	s.shuffle(candidates)
	s.log.WithField("candidates", len(candidates)).Info("Starting outreach pass")

	sent := 0
	for i, subj := range candidates {
		if ctx.Err() != nil {
			break
		}
		if s.settings.MaxPerPass > 0 && sent >= s.settings.MaxPerPass {
			s.log.WithField("limit", s.settings.MaxPerPass).Info("Initial email limit reached for this pass")
			break
		}
		outcome, attempted := s.processSubject(ctx, subj)
		report.add(outcome)
		if outcome == OutcomeSent {
			sent++
		}
		capped := s.settings.MaxPerPass > 0 && sent >= s.settings.MaxPerPass
		if attempted && !capped && i < len(candidates)-1 {
			if err := s.pacer.Pause(ctx); err != nil {
				break
			}
		}
	}

	report.Duration = s.now().Sub(started)
	s.log.Info(report.Summary())
	return report, ctx.Err()
}

func (s *OutreachService) processSubject(ctx context.Context, subj *subject.Subject) (Outcome, bool) {
	log := s.log.WithFields(logrus.Fields{"subject_id": subj.ID, "organization": subj.Organization})

	entry, err := s.ledger.Get(ctx, subj.ID)
	if err != nil && !errors.Is(err, idb.ErrEntryNotFound) {
		log.WithError(err).Error("Failed to read ledger entry")
		return OutcomeFailed, false
	}
	if entry == nil {
		entry = ledger.NewEntry(subj.ID)
	}
	if entry.EmailSent {
		return OutcomeSkipped, false
	}

	hasEmail := s.artifacts.HasEmail(subj, 1)
	hasCV := s.artifacts.HasCV(subj)
	if err := s.syncStage(ctx, entry, ledger.StageHTML, hasEmail); err != nil {
		log.WithError(err).Error("Failed to record html stage")
		return OutcomeFailed, false
	}
	if err := s.syncStage(ctx, entry, ledger.StageCV, hasCV); err != nil {
		log.WithError(err).Error("Failed to record cv stage")
		return OutcomeFailed, false
	}
	if !hasEmail || !hasCV {
		log.WithFields(logrus.Fields{"email": hasEmail, "cv": hasCV}).Debug("Artifacts not ready")
		return OutcomeSkipped, false
	}

	admitted, err := s.gate.Admitted(ctx, subj.Organization, subj.ID)
	if err != nil {
		log.WithError(err).Error("Failed to read organization slots")
		return OutcomeFailed, false
	}
	if !admitted {
		ok, err := s.gate.CanAdmit(ctx, subj.Organization)
		if err != nil {
			log.WithError(err).Error("Admission check failed")
			return OutcomeFailed, false
		}
		if !ok {
			log.Info("Organization has an unresolved outreach, deferring subject")
			return OutcomeDeferred, false
		}
		if err := s.gate.Admit(ctx, subj.Organization, subj.ID); err != nil {
			log.WithError(err).Error("Failed to admit subject")
			return OutcomeFailed, false
		}
	}

	acc, err := s.sendingAccount(ctx, entry)
	if err != nil {
		log.WithError(err).Warn("No sending account available, skipping subject")
		return OutcomeSkipped, false
	}
	log = log.WithField("account", acc.Address)

	body, err := s.artifacts.ReadEmail(subj, 1)
	if err != nil {
		log.WithError(err).Error("Failed to read initial email")
		return OutcomeFailed, false
	}

	to := subj.Email
	if s.settings.TestRun {
		to = s.settings.TestEmail
	}
	messageID, err := s.transport.Send(ctx, acc, &mail.Message{
		To:          to,
		Subject:     s.settings.Subject,
		HTML:        body,
		Attachments: []string{s.artifacts.CVPath(subj)},
	})
	if err != nil {
		log.WithError(err).Error("Failed to send initial email")
		return OutcomeFailed, true
	}

	if err := s.ledger.RecordInitialSend(ctx, subj.ID, s.now(), acc.Address, messageID); err != nil {
		log.WithError(err).WithField("message_id", messageID).Error("Initial email sent but not recorded")
		return OutcomeFailed, true
	}
	log.WithField("message_id", messageID).Info("Initial email sent")
	return OutcomeSent, true
}

func (s *OutreachService) syncStage(ctx context.Context, entry *ledger.Entry, stage ledger.Stage, present bool) error {
	if !present || entry.StageDone(stage) {
		return nil
	}
	if err := s.ledger.UpsertStage(ctx, entry.SubjectID, stage, true); err != nil {
		return err
	}
	return entry.SetStage(stage, true)
}

// sendingAccount returns the sticky account of the entry, choosing and
// storing one on first use.
func (s *OutreachService) sendingAccount(ctx context.Context, entry *ledger.Entry) (*account.Account, error) {
	if entry.FromAccount.Valid && entry.FromAccount.String != "" {
		return s.accounts.Lookup(entry.FromAccount.String)
	}
	acc, err := s.accounts.Pick(s.settings.PreferredAccount)
	if err != nil {
		return nil, err
	}
	stored, err := s.ledger.Update(ctx, entry.SubjectID, func(e *ledger.Entry) error {
		if !e.FromAccount.Valid || e.FromAccount.String == "" {
			e.FromAccount = sql.NullString{String: acc.Address, Valid: true}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store sending account: %w", err)
	}
	if stored.FromAccount.String != acc.Address {
		return s.accounts.Lookup(stored.FromAccount.String)
	}
	return acc, nil
}
