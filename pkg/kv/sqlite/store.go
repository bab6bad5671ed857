package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/step-tracker/pkg/kv"
)

const (
	tableName = "step_tracker__kv"

	tableCreate = `
		CREATE TABLE IF NOT EXISTS ` + tableName + `(
			key TEXT NOT NULL PRIMARY KEY,
			value TEXT NOT NULL,
			last_updated_at INTEGER NOT NULL
		);
	`
)

type model struct {
	Key           string `db:"key"`
	Value         string `db:"value"`
	LastUpdatedAt int64  `db:"last_updated_at"`
}

type store struct {
	// sqlite allows a single writer at a time; serializing writes in-process
	// avoids SQLITE_BUSY churn between our own connections.
	writeMu sync.Mutex
	db      *sqlx.DB
}

// New returns a new sqlite kv.Store, creating its table if necessary
func New(db *sql.DB) (kv.Store, error) {
	s := &store{
		db: sqlx.NewDb(db, "sqlite"),
	}

	if _, err := s.db.Exec(tableCreate); err != nil {
		return nil, errors.Wrap(err, "failed to create kv table")
	}
	return s, nil
}

// Get implements kv.Store.Get
func (s *store) Get(ctx context.Context, key string) (string, error) {
	if err := kv.ValidateKey(key); err != nil {
		return "", err
	}

	var m model
	err := s.db.GetContext(ctx, &m, `SELECT key, value, last_updated_at FROM `+tableName+` WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", kv.ErrNotFound
	} else if err != nil {
		return "", err
	}
	return m.Value, nil
}

// Set implements kv.Store.Set
func (s *store) Set(ctx context.Context, key, value string) error {
	if err := kv.ValidateKey(key); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO `+tableName+` (key, value, last_updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, last_updated_at = excluded.last_updated_at`,
		key,
		value,
		time.Now().UnixMilli(),
	)
	return err
}

func (s *store) reset() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`DELETE FROM ` + tableName)
	return err
}
