package app

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"strings"
	"time"

	"academic_outreach/internal/domain/account"
	"academic_outreach/internal/domain/ledger"
	"academic_outreach/internal/domain/mail"
	"academic_outreach/internal/domain/subject"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReminderSettings configures the reminder pass.
type ReminderSettings struct {
	Intervals         map[int]float64
	Subject           string // subject line of the initial email; reminders prefix "Re: "
	TestRun           bool
	TestEmail         string
	RequireAttachment bool
	Workers           int
}

// ReminderService sends follow-ups to subjects who have not replied.
type ReminderService struct {
	ledger    ledger.Repository
	subjects  subject.Repository
	accounts  AccountDirectory
	transport mail.Transport
	inspector mail.MailboxInspector // optional
	artifacts Artifacts
	settings  ReminderSettings
	pacer     Pacer
	now       func() time.Time
	log       *logrus.Entry
}

func NewReminderService(
	lr ledger.Repository,
	sr subject.Repository,
	accounts AccountDirectory,
	transport mail.Transport,
	inspector mail.MailboxInspector,
	artifacts Artifacts,
	settings ReminderSettings,
	pacer Pacer,
	log *logrus.Entry,
) *ReminderService {
	if pacer == nil {
		pacer = NoPause{}
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &ReminderService{
		ledger:    lr,
		subjects:  sr,
		accounts:  accounts,
		transport: transport,
		inspector: inspector,
		artifacts: artifacts,
		settings:  settings,
		pacer:     pacer,
		now:       time.Now,
		log:       log,
	}
}

// WithClock replaces the time source.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

// RunPass evaluates every entry still awaiting a reply. Failures of single
// subjects are counted in the report; only an unreadable ledger fails the pass.
func (s *ReminderService) RunPass(ctx context.Context) (*PassReport, error) {
	started := s.now()
	report := newPassReport("reminder", started)

	entries, err := s.ledger.ListAwaitingReply(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries awaiting reply: %w", err)
	}
	s.log.WithField("candidates", len(entries)).Info("Starting reminder pass")

	if s.settings.Workers == 1 {
		for i, e := range entries {
			if ctx.Err() != nil {
				break
			}
			outcome, attempted := s.processEntry(ctx, e)
			report.add(outcome)
			if attempted && i < len(entries)-1 {
				if err := s.pacer.Pause(ctx); err != nil {
					break
				}
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.settings.Workers)
		for _, e := range entries {
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				outcome, attempted := s.processEntry(gctx, e)
				report.add(outcome)
				if attempted {
					_ = s.pacer.Pause(gctx)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Duration = s.now().Sub(started)
	s.log.Info(report.Summary())
	return report, ctx.Err()
}

// processEntry handles one subject. attempted is true when the transport was called.
// The listed entry only names the subject; every decision is taken on a fresh
// read because replies can be recorded while the pass is paused.
func (s *ReminderService) processEntry(ctx context.Context, listed *ledger.Entry) (outcome Outcome, attempted bool) {
	log := s.log.WithField("subject_id", listed.SubjectID)

	e, err := s.ledger.Get(ctx, listed.SubjectID)
	if err != nil {
		log.WithError(err).Error("Failed to reload ledger entry")
		return OutcomeFailed, false
	}
	if !e.EmailSent || !e.ResponseStatus.AwaitingReply() {
		log.WithField("response_status", e.ResponseStatus.String()).Info("Subject no longer awaiting a reply")
		return OutcomeSkipped, false
	}

	plan, err := PlanReminder(e, s.settings.Intervals, s.now())
	if err != nil {
		log.WithError(err).Warn("Skipping subject")
		return OutcomeSkipped, false
	}
	if plan == nil {
		log.Debug("All reminders sent")
		return OutcomeExhausted, false
	}
	k := plan.Reminder
	log = log.WithField("reminder", k)

	if !plan.Due {
		log.WithFields(logrus.Fields{
			"elapsed_days":  fmt.Sprintf("%.2f", plan.ElapsedDays),
			"required_days": plan.RequiredDays,
		}).Debug("Reminder not due yet")
		if err := s.ledger.RecordReminder(ctx, e.SubjectID, k, false, sql.NullInt64{}, sql.NullString{}); err != nil {
			log.WithError(err).Error("Failed to record reminder as not due")
			return OutcomeFailed, false
		}
		return OutcomeNotDue, false
	}

	subj, err := s.subjects.GetByID(ctx, e.SubjectID)
	if err != nil {
		log.WithError(err).Error("Failed to load subject")
		return OutcomeFailed, false
	}
	if !e.FromAccount.Valid || e.FromAccount.String == "" {
		log.WithError(&ConfigurationGapError{SubjectID: e.SubjectID, Reminder: k, Detail: "no sending account recorded"}).Warn("Skipping subject")
		return OutcomeSkipped, false
	}
	acc, err := s.accounts.Lookup(e.FromAccount.String)
	if err != nil {
		log.WithError(&ConfigurationGapError{SubjectID: e.SubjectID, Reminder: k, Detail: err.Error()}).Warn("Skipping subject")
		return OutcomeSkipped, false
	}

	tmpl, err := s.artifacts.ReminderTemplate(k)
	if err != nil {
		log.WithError(err).Warn("Reminder template unavailable, skipping subject")
		return OutcomeSkipped, false
	}
	body := renderTemplate(tmpl, subj)

	var attachments []string
	if s.artifacts.HasCV(subj) {
		attachments = append(attachments, s.artifacts.CVPath(subj))
	} else if s.settings.RequireAttachment {
		log.WithField("path", s.artifacts.CVPath(subj)).Warn("CV missing and attachments are required, skipping subject")
		return OutcomeSkipped, false
	} else {
		log.WithField("path", s.artifacts.CVPath(subj)).Warn("CV missing, sending reminder without attachment")
	}

	msg := &mail.Message{
		To:          s.recipient(subj),
		Subject:     "Re: " + s.settings.Subject,
		HTML:        body,
		Attachments: attachments,
	}
	msg.InReplyTo, msg.References = s.resolveThread(ctx, e, subj, acc, k, log)
	if !msg.Threaded() {
		msg.HTML = body + s.quotedChain(e, subj, acc, k, log)
	}

	messageID, err := s.transport.Send(ctx, acc, msg)
	if err != nil {
		log.WithError(err).Error("Failed to send reminder")
		return OutcomeFailed, true
	}

	interval := sql.NullInt64{Int64: plan.RecordedIntervalDays(), Valid: true}
	if err := s.ledger.RecordReminder(ctx, e.SubjectID, k, true, interval, sql.NullString{String: messageID, Valid: messageID != ""}); err != nil {
		log.WithError(err).WithField("message_id", messageID).Error("Reminder sent but not recorded")
		return OutcomeFailed, true
	}
	if err := s.artifacts.WriteEmail(subj, k+1, msg.HTML); err != nil {
		log.WithError(err).Warn("Failed to archive reminder body")
	}

	log.WithFields(logrus.Fields{
		"message_id":    messageID,
		"interval_days": interval.Int64,
		"threaded":      msg.Threaded(),
	}).Info("Reminder sent")
	return OutcomeSent, true
}

// resolveThread finds the message the reminder replies to. The stored
// identifier wins; otherwise the account's sent folder is consulted and the
// result is written back to the ledger.
func (s *ReminderService) resolveThread(ctx context.Context, e *ledger.Entry, subj *subject.Subject, acc *account.Account, k int, log *logrus.Entry) (inReplyTo, references string) {
	if prev := e.MessageID(k - 1); prev.Valid && prev.String != "" {
		return prev.String, strings.Join(e.KnownMessageIDs(k-1), " ")
	}
	if s.inspector == nil {
		return "", ""
	}

	found, ok := s.inspector.FindLastSent(ctx, acc, s.recipient(subj))
	if !ok || found.MessageID == "" {
		log.Info("No previous message found, quoting earlier emails instead")
		return "", ""
	}
	if err := s.ledger.RecordMessageID(ctx, e.SubjectID, k-1, found.MessageID); err != nil {
		log.WithError(err).Warn("Failed to store message id found in mailbox")
	}
	return found.MessageID, threadReferences(found)
}

func threadReferences(m *mail.SentMessage) string {
	refs := strings.Fields(m.References)
	if len(refs) == 0 || refs[len(refs)-1] != m.MessageID {
		refs = append(refs, m.MessageID)
	}
	return strings.Join(refs, " ")
}

// quotedChain renders the earlier emails, newest first, for a reminder that
// cannot be threaded.
func (s *ReminderService) quotedChain(e *ledger.Entry, subj *subject.Subject, acc *account.Account, k int, log *logrus.Entry) string {
	var b strings.Builder
	for n := k; n >= 1; n-- {
		prior, err := s.artifacts.ReadEmail(subj, n)
		if err != nil {
			log.WithError(err).WithField("email", n).Warn("Earlier email missing from archive")
			continue
		}
		fmt.Fprintf(&b, "<br><br>On %s, %s wrote:<br><br>", messageDate(e, n).Format(time.RFC1123Z), html.EscapeString(acc.Address))
		b.WriteString(prior)
	}
	return b.String()
}

func (s *ReminderService) recipient(subj *subject.Subject) string {
	if s.settings.TestRun {
		return s.settings.TestEmail
	}
	return subj.Email
}

// renderTemplate substitutes the subject placeholders in an HTML template.
func renderTemplate(tmpl string, subj *subject.Subject) string {
	name := html.EscapeString(subj.Name)
	org := html.EscapeString(subj.Organization)
	return strings.NewReplacer(
		"{{SubjectName}}", name,
		"{{ProfessorName}}", name,
		"{{Organization}}", org,
		"{{University}}", org,
	).Replace(tmpl)
}

