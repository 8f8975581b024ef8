package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academic_outreach/internal/infra/database"
	"academic_outreach/internal/testutil"
)

func TestSlots_AppendOrder(t *testing.T) {
	ctx := context.Background()
	repo := database.NewSQLSlotRepository(testutil.NewTestDB(t), testutil.TestDataset)

	_, ok, err := repo.Latest(ctx, "MIT")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Append(ctx, "MIT", 4))
	require.NoError(t, repo.Append(ctx, "MIT", 2))
	require.NoError(t, repo.Append(ctx, "Stanford", 9))
	require.NoError(t, repo.Append(ctx, "MIT", 4)) // already present

	ids, err := repo.List(ctx, "MIT")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2}, ids)

	latest, ok, err := repo.Latest(ctx, "MIT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), latest)

	in, err := repo.Contains(ctx, "Stanford", 9)
	require.NoError(t, err)
	assert.True(t, in)
	in, err = repo.Contains(ctx, "Stanford", 4)
	require.NoError(t, err)
	assert.False(t, in)

	empty, err := repo.List(ctx, "CMU")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	require.NoError(t, database.Migrate(ctx, db))
	v, err := database.SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := database.Open("mysql", "root@/db")
	assert.Error(t, err)
}
