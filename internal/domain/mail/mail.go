// Package mail defines the messaging capabilities used by outreach: sending,
// mirroring into the Sent folder and looking up previously sent messages.
package mail

import (
	"context"
	"fmt"

	"academic_outreach/internal/domain/account"
)

// Message is an outgoing email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []string // file paths
	InReplyTo   string
	References  string
}

// Threaded reports whether the message carries threading headers.
func (m *Message) Threaded() bool {
	return m.InReplyTo != ""
}

// SentMessage is the threading information of a message found in a Sent folder.
type SentMessage struct {
	MessageID  string
	References string
}

// Transport submits messages and returns the generated Message-ID.
type Transport interface {
	Send(ctx context.Context, acc *account.Account, msg *Message) (string, error)
}

// MailboxInspector finds the most recent message sent to an address.
// A miss of any kind is reported as ok == false.
type MailboxInspector interface {
	FindLastSent(ctx context.Context, acc *account.Account, to string) (msg *SentMessage, ok bool)
}

// SentMirror stores a copy of a submitted message in the account's Sent folder.
type SentMirror interface {
	AppendSent(ctx context.Context, acc *account.Account, raw []byte) error
}

// TransportError is returned when a message could not be submitted.
type TransportError struct {
	Op        string // connect, auth, submit, compose
	Account   string
	Err       error
	Permanent bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail %s via %s: %v", e.Op, e.Account, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
