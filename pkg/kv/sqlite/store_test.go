package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitedb "github.com/code-payments/step-tracker/pkg/database/sqlite"
	"github.com/code-payments/step-tracker/pkg/kv/tests"
)

func TestKvSqliteStore(t *testing.T) {
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer db.Close()

	testStore, err := New(db)
	require.NoError(t, err)

	teardown := func() {
		require.NoError(t, testStore.(*store).reset())
	}
	tests.RunTests(t, testStore, teardown)
}

func TestKvSqliteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	db, err := sqlitedb.Open(path)
	require.NoError(t, err)
	s, err := New(db)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "step_tracker_2024-03-10", "42"))
	require.NoError(t, db.Close())

	db, err = sqlitedb.Open(path)
	require.NoError(t, err)
	defer db.Close()
	s, err = New(db)
	require.NoError(t, err)

	actual, err := s.Get(ctx, "step_tracker_2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, "42", actual)
}
