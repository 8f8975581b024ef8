package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"

	"academic_outreach/internal/domain/account"
)

// imapSession is a logged-in IMAP client bound to a context. Cancelling the
// context closes the connection, which aborts any pending command.
type imapSession struct {
	client *imapclient.Client
	stop   func() bool
}

func openIMAP(ctx context.Context, acc *account.Account, timeout time.Duration) (*imapSession, error) {
	if acc.IMAPHost == "" {
		return nil, fmt.Errorf("account %s has no IMAP host", acc.Address)
	}
	conn, err := dialConn(ctx, acc.IMAPHost, acc.IMAPPort, acc.Security, timeout)
	if err != nil {
		return nil, err
	}

	opts := &imapclient.Options{TLSConfig: tlsConfig(acc.IMAPHost)}
	var client *imapclient.Client
	if acc.Security == account.SecurityStartTLS {
		client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("starttls with %s: %w", acc.IMAPHost, err)
		}
	} else {
		client = imapclient.New(conn, opts)
	}

	s := &imapSession{client: client, stop: context.AfterFunc(ctx, func() { client.Close() })}
	if err := client.Login(acc.Login(), acc.Password).Wait(); err != nil {
		s.close()
		return nil, fmt.Errorf("imap login for %s: %w", acc.Login(), err)
	}
	return s, nil
}

func (s *imapSession) close() {
	s.stop()
	_ = s.client.Logout().Wait()
	_ = s.client.Close()
}
