package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academic_outreach/internal/domain/account"
	domainmail "academic_outreach/internal/domain/mail"
	"academic_outreach/internal/infra/logger"
)

func zeroBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

type flakyTransport struct {
	errs  []error
	calls int
}

func (f *flakyTransport) Send(ctx context.Context, _ *account.Account, _ *domainmail.Message) (string, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("call without deadline")
	}
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return "<ok@uni.edu>", nil
}

var testAccount = &account.Account{Address: "me@uni.edu"}

func TestResilientTransport_RetriesConnectFailures(t *testing.T) {
	next := &flakyTransport{errs: []error{
		&domainmail.TransportError{Op: "connect", Err: errors.New("refused")},
		&domainmail.TransportError{Op: "connect", Err: errors.New("refused")},
	}}
	r := NewResilientTransport(next, 2, time.Second, logger.Discard()).WithBackOff(zeroBackOff)

	id, err := r.Send(context.Background(), testAccount, &domainmail.Message{To: "p@x.edu"})
	require.NoError(t, err)
	assert.Equal(t, "<ok@uni.edu>", id)
	assert.Equal(t, 3, next.calls)
}

func TestResilientTransport_BudgetExhausted(t *testing.T) {
	connErr := &domainmail.TransportError{Op: "connect", Err: errors.New("refused")}
	next := &flakyTransport{errs: []error{connErr, connErr, connErr}}
	r := NewResilientTransport(next, 1, time.Second, logger.Discard()).WithBackOff(zeroBackOff)

	_, err := r.Send(context.Background(), testAccount, &domainmail.Message{To: "p@x.edu"})
	var te *domainmail.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, next.calls)
}

func TestResilientTransport_DoesNotRetrySubmitOrPermanent(t *testing.T) {
	for _, failure := range []error{
		&domainmail.TransportError{Op: "submit", Err: errors.New("552"), Permanent: true},
		&domainmail.TransportError{Op: "auth", Err: errors.New("535"), Permanent: true},
	} {
		next := &flakyTransport{errs: []error{failure}}
		r := NewResilientTransport(next, 3, time.Second, logger.Discard()).WithBackOff(zeroBackOff)
		_, err := r.Send(context.Background(), testAccount, &domainmail.Message{To: "p@x.edu"})
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 1, next.calls)
	}
}

type scriptedLookup struct {
	results []error
	calls   int
}

func (s *scriptedLookup) Lookup(_ context.Context, _ *account.Account, _ string) (*domainmail.SentMessage, error) {
	s.calls++
	if s.calls <= len(s.results) && s.results[s.calls-1] != nil {
		return nil, s.results[s.calls-1]
	}
	return &domainmail.SentMessage{MessageID: "<last@uni.edu>"}, nil
}

func TestResilientInspector(t *testing.T) {
	t.Run("retries failures", func(t *testing.T) {
		next := &scriptedLookup{results: []error{errors.New("timeout")}}
		r := NewResilientInspector(next, 2, time.Second, logger.Discard()).WithBackOff(zeroBackOff)
		msg, ok := r.FindLastSent(context.Background(), testAccount, "p@x.edu")
		require.True(t, ok)
		assert.Equal(t, "<last@uni.edu>", msg.MessageID)
		assert.Equal(t, 2, next.calls)
	})
	t.Run("clean miss is not retried", func(t *testing.T) {
		next := &scriptedLookup{results: []error{ErrNoSentMessage}}
		r := NewResilientInspector(next, 5, time.Second, logger.Discard()).WithBackOff(zeroBackOff)
		msg, ok := r.FindLastSent(context.Background(), testAccount, "p@x.edu")
		assert.False(t, ok)
		assert.Nil(t, msg)
		assert.Equal(t, 1, next.calls)
	})
	t.Run("exhausted budget is a miss", func(t *testing.T) {
		fail := errors.New("timeout")
		next := &scriptedLookup{results: []error{fail, fail, fail}}
		r := NewResilientInspector(next, 2, time.Second, logger.Discard()).WithBackOff(zeroBackOff)
		_, ok := r.FindLastSent(context.Background(), testAccount, "p@x.edu")
		assert.False(t, ok)
		assert.Equal(t, 3, next.calls)
	})
}
