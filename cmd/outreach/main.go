package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"academic_outreach/internal/app"
	"academic_outreach/internal/cli"
	"academic_outreach/internal/domain/telegram"
	"academic_outreach/internal/infra/assets"
	"academic_outreach/internal/infra/config"
	"academic_outreach/internal/infra/credential"
	idb "academic_outreach/internal/infra/database"
	"academic_outreach/internal/infra/logger"
	imail "academic_outreach/internal/infra/mail"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}

	baseLogger := logger.New(cfg)
	mainLogger := logger.Component(baseLogger, "main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"dataset":     cfg.Dataset,
		"test_run":    cfg.TestRun,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()
	if err := idb.Migrate(ctx, db); err != nil {
		return fmt.Errorf("could not migrate database: %w", err)
	}
	mainLogger.Info("Database connection established successfully.")

	w := newWiring(cfg, db, baseLogger)

	a := &cli.App{
		Admin:  w.admin,
		Gate:   w.gate,
		Runner: func(account string) (*app.Runner, error) { return w.runner(nil, account) },
		Serve:  func(ctx context.Context) error { return serve(ctx, cfg, w, baseLogger) },
		Migrate: func(ctx context.Context) (int, error) {
			if err := idb.Migrate(ctx, db); err != nil {
				return 0, err
			}
			return idb.SchemaVersion(ctx, db)
		},
	}
	if cfg.KeyringEnabled {
		store, err := credential.Open(cfg.KeyringDir, cfg.KeyringPassword)
		if err != nil {
			return err
		}
		a.Secrets = store
		w.secrets = func(key string) (string, error) { return store.Get(strings.ToLower(key)) }
	}

	return cli.NewRootCmd(a).ExecuteContext(ctx)
}

// wiring builds the application graph. The mail stack is only assembled
// when a pass needs it.
type wiring struct {
	cfg     *config.AppConfig
	log     *logrus.Logger
	ledger  *idb.SQLLedgerRepository
	subject *idb.SQLSubjectRepository
	slots   *idb.SQLSlotRepository
	lock    *idb.SQLPassLock
	admin   *app.AdminService
	gate    *app.AdmissionService
	secrets config.SecretLookup
}

func newWiring(cfg *config.AppConfig, db *sqlx.DB, log *logrus.Logger) *wiring {
	ledgerRepo := idb.NewSQLLedgerRepository(db, cfg.Dataset)
	subjectRepo := idb.NewSQLSubjectRepository(db, cfg.Dataset)
	slotRepo := idb.NewSQLSlotRepository(db, cfg.Dataset)
	return &wiring{
		cfg:     cfg,
		log:     log,
		ledger:  ledgerRepo,
		subject: subjectRepo,
		slots:   slotRepo,
		lock:    idb.NewSQLPassLock(db, cfg.Dataset),
		admin:   app.NewAdminService(subjectRepo, ledgerRepo, cfg.AdminTelegramID),
		gate:    app.NewAdmissionService(slotRepo, ledgerRepo, cfg.StaleAfterDays, logger.Component(log, "admission")),
	}
}

func (w *wiring) runner(notifier telegram.Client, preferredAccount string) (*app.Runner, error) {
	cfg := w.cfg
	if preferredAccount == "" {
		preferredAccount = cfg.OutreachAccount
	}
	accounts, err := config.LoadAccounts(cfg.AccountsFile, w.secrets)
	if err != nil {
		return nil, fmt.Errorf("could not load sending accounts: %w", err)
	}
	logger.Component(w.log, "main").WithField("accounts", accounts.Len()).Info("Sending accounts loaded")

	mirror := imail.NewIMAPSentMirror(cfg.IMAPTimeout, logger.Component(w.log, "imap_mirror"))
	transport := imail.NewResilientTransport(
		imail.NewSMTPTransport(mirror, cfg.SMTPTimeout, logger.Component(w.log, "smtp")),
		cfg.NetworkRetries, cfg.SMTPTimeout, logger.Component(w.log, "smtp_retry"),
	)
	inspector := imail.NewResilientInspector(
		imail.NewIMAPInspector(cfg.IMAPTimeout, logger.Component(w.log, "imap")),
		cfg.NetworkRetries, cfg.IMAPTimeout, logger.Component(w.log, "imap_retry"),
	)
	store := assets.NewStore(cfg.ProjectDir, cfg.CVFilename)
	pacer := app.RandomPacer{Min: cfg.SendDelayMin, Max: cfg.SendDelayMax}

	outreach := app.NewOutreachService(w.subject, w.ledger, w.gate, accounts, transport, store, app.OutreachSettings{
		Subject:          cfg.InitialSubject,
		PreferredAccount: preferredAccount,
		TestRun:          cfg.TestRun,
		TestEmail:        cfg.TestEmail,
		MaxPerPass:       cfg.MaxInitialPerPass,
	}, pacer, logger.Component(w.log, "outreach"))

	reminders := app.NewReminderService(w.ledger, w.subject, accounts, transport, inspector, store, app.ReminderSettings{
		Intervals:         cfg.ReminderIntervals,
		Subject:           cfg.InitialSubject,
		TestRun:           cfg.TestRun,
		TestEmail:         cfg.TestEmail,
		RequireAttachment: cfg.ReminderRequireAttachment,
		Workers:           cfg.ReminderWorkers,
	}, pacer, logger.Component(w.log, "reminders"))

	return app.NewRunner(outreach, reminders, notifier, cfg.AdminTelegramID, logger.Component(w.log, "runner")).
		WithLock(w.lock, lockHolder(), cfg.PassLockTTL), nil
}

// lockHolder identifies this process in the pass lock.
func lockHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString())
}
