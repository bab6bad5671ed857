package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "steps.db"))
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	memory, err := Open(MemoryPath)
	require.NoError(t, err)
	defer memory.Close()

	_, err = Open("")
	assert.Error(t, err)
}
