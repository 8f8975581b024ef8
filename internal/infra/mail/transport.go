package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"

	"academic_outreach/internal/domain/account"
	domainmail "academic_outreach/internal/domain/mail"
)

// SMTPTransport submits messages over SMTP and mirrors them into the Sent
// folder afterwards.
type SMTPTransport struct {
	mirror  domainmail.SentMirror
	timeout time.Duration
	log     *logrus.Entry
	now     func() time.Time
}

// NewSMTPTransport creates a transport. mirror may be nil.
func NewSMTPTransport(mirror domainmail.SentMirror, timeout time.Duration, log *logrus.Entry) *SMTPTransport {
	return &SMTPTransport{mirror: mirror, timeout: timeout, log: log, now: time.Now}
}

// Send composes msg, submits it from acc and returns the new Message-ID.
func (t *SMTPTransport) Send(ctx context.Context, acc *account.Account, msg *domainmail.Message) (string, error) {
	log := t.log.WithFields(logrus.Fields{"account": acc.Address, "to": msg.To})

	messageID := newMessageID(acc.Domain())
	files := loadAttachments(msg.Attachments, log)
	raw, err := composeMessage(acc.Address, msg, messageID, t.now(), files)
	if err != nil {
		return "", &domainmail.TransportError{Op: "compose", Account: acc.Address, Err: err, Permanent: true}
	}

	if err := t.submit(ctx, acc, msg.To, raw); err != nil {
		return "", err
	}
	log.WithField("message_id", messageID).Info("Email submitted")

	// The mirror runs on its own timeout, not on what is left of the submission's.
	if t.mirror != nil {
		if err := t.mirror.AppendSent(context.WithoutCancel(ctx), acc, raw); err != nil {
			log.WithError(err).Warn("Failed to save email to Sent folder")
		}
	}
	return messageID, nil
}

func (t *SMTPTransport) submit(ctx context.Context, acc *account.Account, to string, raw []byte) error {
	conn, err := dialConn(ctx, acc.SMTPHost, acc.SMTPPort, acc.Security, t.timeout)
	if err != nil {
		return &domainmail.TransportError{Op: "connect", Account: acc.Address, Err: err}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c := smtp.NewClient(conn)
	defer c.Close()
	c.CommandTimeout = t.timeout
	c.SubmissionTimeout = t.timeout

	if acc.Security == account.SecurityStartTLS {
		if err := c.StartTLS(tlsConfig(acc.SMTPHost)); err != nil {
			return &domainmail.TransportError{Op: "connect", Account: acc.Address, Err: fmt.Errorf("starttls: %w", err)}
		}
	}

	if acc.Password != "" {
		if err := c.Auth(sasl.NewPlainClient("", acc.Login(), acc.Password)); err != nil {
			return &domainmail.TransportError{Op: "auth", Account: acc.Address, Err: err, Permanent: isAuthRejection(err)}
		}
	}

	if err := c.SendMail(acc.Address, []string{to}, bytes.NewReader(raw)); err != nil {
		return &domainmail.TransportError{Op: "submit", Account: acc.Address, Err: err, Permanent: true}
	}
	if err := c.Quit(); err != nil {
		t.log.WithError(err).Debug("SMTP QUIT failed after successful submission")
	}
	return nil
}

// isAuthRejection reports whether the server refused the credentials.
func isAuthRejection(err error) bool {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Code == 535 || smtpErr.Code == 534
	}
	return false
}
