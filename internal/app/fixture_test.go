package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"academic_outreach/internal/domain/account"
	"academic_outreach/internal/domain/mail"
	"academic_outreach/internal/domain/subject"
	"academic_outreach/internal/infra/assets"
	idb "academic_outreach/internal/infra/database"
	"academic_outreach/internal/infra/logger"
	"academic_outreach/internal/testutil"

	"github.com/stretchr/testify/require"
)

const initialSubject = "Prospective Ph.D. Student"

type sendCall struct {
	From string
	Msg  mail.Message
	ID   string
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
	seq   int

	// afterSend runs once per successful send, outside the lock.
	afterSend func(n int)
}

func (f *fakeTransport) Send(_ context.Context, acc *account.Account, msg *mail.Message) (string, error) {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return "", f.err
	}
	f.seq++
	n := f.seq
	id := fmt.Sprintf("<sent%d@%s>", n, acc.Domain())
	f.calls = append(f.calls, sendCall{From: acc.Address, Msg: *msg, ID: id})
	hook := f.afterSend
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return id, nil
}

func (f *fakeTransport) sent() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.calls...)
}

type fakeInspector struct {
	mu     sync.Mutex
	found  *mail.SentMessage
	calls  int
	lastTo string
}

func (f *fakeInspector) FindLastSent(_ context.Context, _ *account.Account, to string) (*mail.SentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTo = to
	return f.found, f.found != nil
}

type countingPacer struct {
	mu     sync.Mutex
	pauses int
}

func (p *countingPacer) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
	return nil
}

type fixture struct {
	ctx       context.Context
	dir       string
	ledger    *idb.SQLLedgerRepository
	subjects  *idb.SQLSubjectRepository
	slots     *idb.SQLSlotRepository
	store     *assets.Store
	accounts  *account.Directory
	transport *fakeTransport
	inspector *fakeInspector
	now       time.Time
}

func newFixture(t *testing.T, addresses ...string) *fixture {
	t.Helper()
	if len(addresses) == 0 {
		addresses = []string{"me@uni.edu"}
	}
	accs := make([]*account.Account, 0, len(addresses))
	for _, a := range addresses {
		accs = append(accs, &account.Account{Address: a, SMTPHost: "smtp.example.org", SMTPPort: 465, Security: account.SecurityTLS})
	}
	dir, err := account.NewDirectory(accs)
	require.NoError(t, err)

	db := testutil.NewTestDB(t)
	projectDir := t.TempDir()
	f := &fixture{
		ctx:       context.Background(),
		dir:       projectDir,
		ledger:    idb.NewSQLLedgerRepository(db, testutil.TestDataset),
		subjects:  idb.NewSQLSubjectRepository(db, testutil.TestDataset),
		slots:     idb.NewSQLSlotRepository(db, testutil.TestDataset),
		store:     assets.NewStore(projectDir, "CV.pdf"),
		accounts:  dir,
		transport: &fakeTransport{},
		inspector: &fakeInspector{},
		now:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	for k := 1; k <= 3; k++ {
		f.writeTemplate(t, k, fmt.Sprintf("<p>Dear {{ProfessorName}} at {{University}}, reminder %d</p>", k))
	}
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) writeTemplate(t *testing.T, k int, html string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, fmt.Sprintf("reminder%d.html", k)), []byte(html), 0o644))
}

// addSubject registers a subject with its initial email and CV on disk.
func (f *fixture) addSubject(t *testing.T, name, org, email string) *subject.Subject {
	t.Helper()
	s := &subject.Subject{Name: name, Organization: org, Email: email}
	require.NoError(t, f.subjects.Create(f.ctx, s))
	require.NoError(t, f.store.WriteEmail(s, 1, "<p>initial to "+name+"</p>"))
	require.NoError(t, os.WriteFile(f.store.CVPath(s), []byte("%PDF-1.4"), 0o644))
	return s
}

func (f *fixture) sendInitial(t *testing.T, s *subject.Subject, at time.Time, messageID string) {
	t.Helper()
	require.NoError(t, f.ledger.RecordInitialSend(f.ctx, s.ID, at, f.accounts.Addresses()[0], messageID))
}

func (f *fixture) reminderService(settings ReminderSettings) *ReminderService {
	if settings.Intervals == nil {
		settings.Intervals = map[int]float64{1: 5, 2: 7, 3: 10}
	}
	if settings.Subject == "" {
		settings.Subject = initialSubject
	}
	return NewReminderService(f.ledger, f.subjects, f.accounts, f.transport, f.inspector, f.store, settings, NoPause{}, logger.Discard()).
		WithClock(f.clock)
}

func (f *fixture) admission(staleDays int) *AdmissionService {
	return NewAdmissionService(f.slots, f.ledger, staleDays, logger.Discard()).WithClock(f.clock)
}

func (f *fixture) outreachService(settings OutreachSettings) *OutreachService {
	if settings.Subject == "" {
		settings.Subject = initialSubject
	}
	return NewOutreachService(f.subjects, f.ledger, f.admission(7), f.accounts, f.transport, f.store, settings, NoPause{}, logger.Discard()).
		WithClock(f.clock).
		WithOrder(func([]*subject.Subject) {})
}

func days(n float64) time.Duration { return time.Duration(n * float64(24*time.Hour)) }
