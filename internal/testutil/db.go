package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"academic_outreach/internal/infra/database"
)

// TestDataset is the dataset value used by repository tests.
const TestDataset = "professors"

// NewTestDB creates an in-memory SQLite database with all migrations
// applied. It automatically closes the database when the test completes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	return db
}
