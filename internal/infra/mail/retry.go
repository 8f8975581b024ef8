package mail

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"academic_outreach/internal/domain/account"
	domainmail "academic_outreach/internal/domain/mail"
)

// BackOffFactory builds a fresh policy per call.
type BackOffFactory func() backoff.BackOff

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 30 * time.Second
	return b
}

// ResilientTransport bounds every send with a timeout and retries failures
// that happened before anything reached the server.
type ResilientTransport struct {
	next       domainmail.Transport
	retries    int
	timeout    time.Duration
	newBackOff BackOffFactory
	log        *logrus.Entry
}

func NewResilientTransport(next domainmail.Transport, retries int, timeout time.Duration, log *logrus.Entry) *ResilientTransport {
	return &ResilientTransport{next: next, retries: retries, timeout: timeout, newBackOff: defaultBackOff, log: log}
}

// WithBackOff replaces the retry policy.
func (r *ResilientTransport) WithBackOff(f BackOffFactory) *ResilientTransport {
	r.newBackOff = f
	return r
}

func (r *ResilientTransport) Send(ctx context.Context, acc *account.Account, msg *domainmail.Message) (string, error) {
	var messageID string
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		id, err := r.next.Send(callCtx, acc, msg)
		if err != nil {
			if !retryableSend(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		messageID = id
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.retries)), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		r.log.WithError(err).WithFields(logrus.Fields{"account": acc.Address, "to": msg.To, "wait": wait}).
			Warn("Send failed, retrying")
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// retryableSend reports whether a failed send can be repeated without risk
// of delivering the message twice.
func retryableSend(err error) bool {
	var te *domainmail.TransportError
	if !errors.As(err, &te) {
		return false
	}
	return !te.Permanent && (te.Op == "connect" || te.Op == "auth")
}

// SentLookup is a mailbox search that distinguishes a clean miss
// (ErrNoSentMessage) from a failure.
type SentLookup interface {
	Lookup(ctx context.Context, acc *account.Account, to string) (*domainmail.SentMessage, error)
}

// ResilientInspector retries failed mailbox lookups and reports the final
// outcome as found or not found.
type ResilientInspector struct {
	next       SentLookup
	retries    int
	timeout    time.Duration
	newBackOff BackOffFactory
	log        *logrus.Entry
}

func NewResilientInspector(next SentLookup, retries int, timeout time.Duration, log *logrus.Entry) *ResilientInspector {
	return &ResilientInspector{next: next, retries: retries, timeout: timeout, newBackOff: defaultBackOff, log: log}
}

// WithBackOff replaces the retry policy.
func (r *ResilientInspector) WithBackOff(f BackOffFactory) *ResilientInspector {
	r.newBackOff = f
	return r
}

func (r *ResilientInspector) FindLastSent(ctx context.Context, acc *account.Account, to string) (*domainmail.SentMessage, bool) {
	var found *domainmail.SentMessage
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		msg, err := r.next.Lookup(callCtx, acc, to)
		if err != nil {
			if errors.Is(err, ErrNoSentMessage) {
				return backoff.Permanent(err)
			}
			return err
		}
		found = msg
		return nil
	}

	log := r.log.WithFields(logrus.Fields{"account": acc.Address, "folder": acc.SentMailbox(), "to": to})
	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.retries)), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		log.WithError(err).WithField("wait", wait).Warn("Mailbox lookup failed, retrying")
	})
	if err != nil {
		if errors.Is(err, ErrNoSentMessage) {
			log.Info("No sent message found in mailbox")
		} else {
			log.WithError(err).Warn("Mailbox lookup failed")
		}
		return nil, false
	}
	return found, true
}
