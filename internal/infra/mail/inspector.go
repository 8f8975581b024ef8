package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/sirupsen/logrus"

	"academic_outreach/internal/domain/account"
	domainmail "academic_outreach/internal/domain/mail"
)

// ErrNoSentMessage is returned by Lookup when the Sent folder holds nothing
// addressed to the recipient.
var ErrNoSentMessage = fmt.Errorf("no sent message for recipient")

// IMAPInspector searches an account's Sent folder over IMAP.
type IMAPInspector struct {
	timeout time.Duration
	log     *logrus.Entry
}

func NewIMAPInspector(timeout time.Duration, log *logrus.Entry) *IMAPInspector {
	return &IMAPInspector{timeout: timeout, log: log}
}

// FindLastSent performs a single lookup and reports every failure as a miss.
func (i *IMAPInspector) FindLastSent(ctx context.Context, acc *account.Account, to string) (*domainmail.SentMessage, bool) {
	msg, err := i.Lookup(ctx, acc, to)
	if err != nil {
		i.logMiss(acc, to, err)
		return nil, false
	}
	return msg, true
}

func (i *IMAPInspector) logMiss(acc *account.Account, to string, err error) {
	entry := i.log.WithFields(logrus.Fields{"account": acc.Address, "folder": acc.SentMailbox(), "to": to})
	if errors.Is(err, ErrNoSentMessage) {
		entry.Info("No sent message found in mailbox")
		return
	}
	entry.WithError(err).Warn("Mailbox lookup failed")
}

// Lookup returns the most recent message in the Sent folder whose To header
// matches to. A clean miss is ErrNoSentMessage; anything else is a failure.
func (i *IMAPInspector) Lookup(ctx context.Context, acc *account.Account, to string) (*domainmail.SentMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	s, err := openIMAP(ctx, acc, i.timeout)
	if err != nil {
		return nil, err
	}
	defer s.close()

	folder, err := i.selectSent(s, acc)
	if err != nil {
		return nil, err
	}
	log := i.log.WithFields(logrus.Fields{"account": acc.Address, "folder": folder, "to": to})

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "To", Value: to}},
	}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, ErrNoSentMessage
	}
	log.WithField("matches", len(uids)).Debug("Sent messages matched recipient")

	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierHeader, Peek: true}
	msgs, err := s.client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching headers from %s: %w", folder, err)
	}

	best := latestMessage(msgs)
	if best == nil {
		return nil, ErrNoSentMessage
	}
	raw := best.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("server returned no header for UID %d", best.UID)
	}
	sent, err := parseThreadHeaders(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing UID %d: %w", best.UID, err)
	}
	log.WithField("message_id", sent.MessageID).Info("Found last sent message")
	return sent, nil
}

// selectSent opens the configured Sent folder, falling back to the mailbox
// flagged \Sent when the configured one cannot be selected.
func (i *IMAPInspector) selectSent(s *imapSession, acc *account.Account) (string, error) {
	folder := acc.SentMailbox()
	_, err := s.client.Select(folder, nil).Wait()
	if err == nil {
		return folder, nil
	}

	log := i.log.WithFields(logrus.Fields{"account": acc.Address, "folder": folder})
	list, listErr := s.client.List("", "*", nil).Collect()
	if listErr != nil {
		return "", fmt.Errorf("selecting %s: %w (listing mailboxes: %v)", folder, err, listErr)
	}
	log.WithField("mailboxes", mailboxNames(list)).Warn("Sent folder not selectable, available mailboxes listed")

	alt := sentSpecialUse(list, folder)
	if alt == "" {
		return "", fmt.Errorf("selecting %s: %w", folder, err)
	}
	if _, err := s.client.Select(alt, nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting fallback %s: %w", alt, err)
	}
	log.WithField("fallback", alt).Info("Using special-use Sent mailbox")
	return alt, nil
}

// IMAPSentMirror appends submitted messages to the account's Sent folder.
type IMAPSentMirror struct {
	timeout time.Duration
	log     *logrus.Entry
	now     func() time.Time
}

func NewIMAPSentMirror(timeout time.Duration, log *logrus.Entry) *IMAPSentMirror {
	return &IMAPSentMirror{timeout: timeout, log: log, now: time.Now}
}

// AppendSent stores raw in the Sent folder flagged \Seen.
func (m *IMAPSentMirror) AppendSent(ctx context.Context, acc *account.Account, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	s, err := openIMAP(ctx, acc, m.timeout)
	if err != nil {
		return err
	}
	defer s.close()

	folder := acc.SentMailbox()
	cmd := s.client.Append(folder, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  m.now(),
	})
	if _, err := cmd.Write(raw); err != nil {
		return fmt.Errorf("appending to %s: %w", folder, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("appending to %s: %w", folder, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", folder, err)
	}
	m.log.WithFields(logrus.Fields{"account": acc.Address, "folder": folder}).Debug("Email saved to Sent folder")
	return nil
}
