package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver  string
	DatabaseURL     string
	Dataset         string
	ProjectDir      string
	AccountsFile    string
	OutreachAccount string // preferred sending address for new subjects; random when empty

	KeyringEnabled  bool
	KeyringDir      string // encrypted file backend location
	KeyringPassword string

	// ReminderIntervals holds the configured days between consecutive
	// messages, keyed by reminder index. A missing key disables that reminder.
	ReminderIntervals map[int]float64
	InitialSubject    string
	CVFilename        string

	TestRun   bool
	TestEmail string

	SendDelayMin              time.Duration
	SendDelayMax              time.Duration
	ReminderWorkers           int
	ReminderRequireAttachment bool
	MaxInitialPerPass         int // 0 means unlimited
	StaleAfterDays            int

	SMTPTimeout    time.Duration
	IMAPTimeout    time.Duration
	NetworkRetries int

	CronSpecOutreach  string
	CronSpecReminders string
	// PassLockTTL bounds how long a crashed process can keep other
	// processes from running passes on the same dataset.
	PassLockTTL time.Duration

	TelegramToken   string
	AdminTelegramID int64

	LogLevel    string
	Environment string
}

var defaultReminderIntervals = map[int]float64{1: 5, 2: 7, 3: 10}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseDriver = strings.ToLower(getString("DATABASE_DRIVER", "postgres"))
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: expected postgres or sqlite", cfg.DatabaseDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.Dataset = getString("DATASET", "professors")
	cfg.ProjectDir = getString("PROJECT_DIR", ".")
	cfg.AccountsFile = getString("ACCOUNTS_FILE", "accounts.yaml")
	cfg.OutreachAccount = strings.TrimSpace(os.Getenv("OUTREACH_ACCOUNT"))

	if cfg.KeyringEnabled, err = getBool("KEYRING_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.KeyringDir = getString("KEYRING_DIR", ".keyring")
	cfg.KeyringPassword = os.Getenv("KEYRING_PASSWORD")

	cfg.ReminderIntervals = make(map[int]float64, len(defaultReminderIntervals))
	for k := 1; k <= 3; k++ {
		key := fmt.Sprintf("REMINDER_INTERVAL_%d", k)
		raw, set := os.LookupEnv(key)
		if !set {
			cfg.ReminderIntervals[k] = defaultReminderIntervals[k]
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.EqualFold(raw, "off") {
			continue // reminder k disabled
		}
		days, err := strconv.ParseFloat(raw, 64)
		if err != nil || days < 0 {
			return nil, fmt.Errorf("invalid %s: %q", key, raw)
		}
		cfg.ReminderIntervals[k] = days
	}

	cfg.InitialSubject = getString("INITIAL_SUBJECT", "Prospective Ph.D. Student")
	cfg.CVFilename = getString("CV_FILENAME", "CV.pdf")

	if cfg.TestRun, err = getBool("TEST_RUN", false); err != nil {
		return nil, err
	}
	cfg.TestEmail = os.Getenv("TEST_EMAIL")
	if cfg.TestRun && cfg.TestEmail == "" {
		return nil, fmt.Errorf("TEST_EMAIL is not set while TEST_RUN is enabled")
	}

	if cfg.SendDelayMin, err = getDuration("SEND_DELAY_MIN", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SendDelayMax, err = getDuration("SEND_DELAY_MAX", 180*time.Second); err != nil {
		return nil, err
	}
	if cfg.SendDelayMax < cfg.SendDelayMin {
		return nil, fmt.Errorf("SEND_DELAY_MAX (%s) is below SEND_DELAY_MIN (%s)", cfg.SendDelayMax, cfg.SendDelayMin)
	}

	if cfg.ReminderWorkers, err = getInt("REMINDER_WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.ReminderWorkers < 1 {
		return nil, fmt.Errorf("REMINDER_WORKERS must be at least 1")
	}
	if cfg.ReminderRequireAttachment, err = getBool("REMINDER_REQUIRE_ATTACHMENT", false); err != nil {
		return nil, err
	}
	if cfg.MaxInitialPerPass, err = getInt("MAX_INITIAL_PER_PASS", 0); err != nil {
		return nil, err
	}
	if cfg.StaleAfterDays, err = getInt("STALE_AFTER_DAYS", 7); err != nil {
		return nil, err
	}

	if cfg.SMTPTimeout, err = getDuration("SMTP_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.IMAPTimeout, err = getDuration("IMAP_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.NetworkRetries, err = getInt("NETWORK_RETRIES", 2); err != nil {
		return nil, err
	}

	cfg.CronSpecOutreach = getString("CRON_SPEC_OUTREACH", "0 10 * * 1-5")   // Default: 10:00 AM on weekdays
	cfg.CronSpecReminders = getString("CRON_SPEC_REMINDERS", "0 15 * * 1-5") // Default: 3:00 PM on weekdays
	if cfg.PassLockTTL, err = getDuration("PASS_LOCK_TTL", 6*time.Hour); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set while TELEGRAM_TOKEN is configured")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts a Go duration ("90s", "2m") or a plain number of seconds.
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
