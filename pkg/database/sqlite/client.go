package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"

	// MemoryPath opens a private, process-local database
	MemoryPath = ":memory:"

	defaultBusyTimeoutMillis = 5000
)

// Open opens a sqlite database at path, which is either a file path or
// MemoryPath. File databases use WAL journaling so that a short-lived
// background process can write while the foreground process reads.
func Open(path string) (*sql.DB, error) {
	if len(path) == 0 {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}

	if path == MemoryPath {
		// Every new connection to :memory: is a brand new database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite database")
	}

	return db, nil
}

func dsn(path string) string {
	if path == MemoryPath {
		return path
	}

	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", defaultBusyTimeoutMillis))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + params.Encode()
}
