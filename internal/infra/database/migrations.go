package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// migration is one schema step. Statements are executed one by one so the
// same list runs on drivers that reject multi-statement Exec.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS subjects (
				dataset       TEXT   NOT NULL,
				id            BIGINT NOT NULL,
				name          TEXT   NOT NULL,
				organization  TEXT   NOT NULL,
				email         TEXT   NOT NULL,
				webpage       TEXT   NOT NULL DEFAULT '',
				research_area TEXT   NOT NULL DEFAULT '',
				created_at    BIGINT NOT NULL,
				PRIMARY KEY (dataset, id),
				UNIQUE (dataset, email)
			)`,
			`CREATE TABLE IF NOT EXISTS ledger_entries (
				dataset            TEXT    NOT NULL,
				subject_id         BIGINT  NOT NULL,
				gathering_done     BOOLEAN NOT NULL DEFAULT FALSE,
				filtering_done     BOOLEAN NOT NULL DEFAULT FALSE,
				html_done          BOOLEAN NOT NULL DEFAULT FALSE,
				cv_done            BOOLEAN NOT NULL DEFAULT FALSE,
				email_sent         BOOLEAN NOT NULL DEFAULT FALSE,
				send_date          BIGINT  NULL,
				from_account       TEXT    NULL,
				response_status    INTEGER NOT NULL DEFAULT 0,
				message_id0        TEXT    NULL,
				reminder1_sent     BOOLEAN NULL,
				reminder1_interval INTEGER NULL,
				message_id1        TEXT    NULL,
				reminder2_sent     BOOLEAN NULL,
				reminder2_interval INTEGER NULL,
				message_id2        TEXT    NULL,
				reminder3_sent     BOOLEAN NULL,
				reminder3_interval INTEGER NULL,
				message_id3        TEXT    NULL,
				updated_at         BIGINT  NOT NULL,
				PRIMARY KEY (dataset, subject_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ledger_awaiting
				ON ledger_entries (dataset, email_sent, response_status)`,
			`CREATE TABLE IF NOT EXISTS organization_slots (
				dataset      TEXT    NOT NULL,
				organization TEXT    NOT NULL,
				position     INTEGER NOT NULL,
				subject_id   BIGINT  NOT NULL,
				added_at     BIGINT  NOT NULL,
				PRIMARY KEY (dataset, organization, position),
				UNIQUE (dataset, organization, subject_id)
			)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS pass_locks (
				dataset     TEXT   NOT NULL,
				name        TEXT   NOT NULL,
				holder      TEXT   NOT NULL,
				acquired_at BIGINT NOT NULL,
				expires_at  BIGINT NOT NULL,
				PRIMARY KEY (dataset, name)
			)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			applied_at BIGINT  NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
		m.version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration.
func SchemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var v int
	if err := db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}
