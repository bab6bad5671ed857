package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/database/sqlite"
	kv_sqlite "github.com/code-payments/step-tracker/pkg/kv/sqlite"
	"github.com/code-payments/step-tracker/pkg/steps/counter"
)

func TestTodayCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.db")

	db, err := sqlite.Open(path)
	require.NoError(t, err)
	kvStore, err := kv_sqlite.New(db)
	require.NoError(t, err)
	store := counter.NewStore(kvStore, counter.WithEnvConfigs())
	require.NoError(t, store.SetToday(context.Background(), 42))
	require.NoError(t, db.Close())

	today := store.Now().Format(dayLayout)

	var out bytes.Buffer
	cmd := todayCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--sqlite-path", path})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, today+"\t42\n", out.String())

	out.Reset()
	cmd = todayCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--sqlite-path", path, "--day", "2001-02-03"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "2001-02-03\t0\n", out.String())

	cmd = todayCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--sqlite-path", path, "--day", "yesterday"})
	assert.Error(t, cmd.Execute())
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STEP_TRACKER_TEST_ENV_FILE=loaded\n"), 0o600))

	require.NoError(t, loadEnvFile(path))
	defer os.Unsetenv("STEP_TRACKER_TEST_ENV_FILE")
	assert.Equal(t, "loaded", os.Getenv("STEP_TRACKER_TEST_ENV_FILE"))
}
