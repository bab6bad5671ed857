package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/step-tracker/pkg/kv"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres kv.Store
func New(db *sql.DB) kv.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements kv.Store.Get
func (s *store) Get(ctx context.Context, key string) (string, error) {
	if err := kv.ValidateKey(key); err != nil {
		return "", err
	}

	m, err := dbGet(ctx, s.db, key)
	if err != nil {
		return "", err
	}
	return m.Value, nil
}

// Set implements kv.Store.Set
func (s *store) Set(ctx context.Context, key, value string) error {
	if err := kv.ValidateKey(key); err != nil {
		return err
	}

	return dbSet(ctx, s.db, key, value)
}
