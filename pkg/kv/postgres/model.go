package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/code-payments/step-tracker/pkg/database/postgres"
	"github.com/code-payments/step-tracker/pkg/kv"
)

const (
	tableName = "steptracker__core_kv"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Key   string `db:"key"`
	Value string `db:"value"`

	LastUpdatedAt time.Time `db:"last_updated_at"`
	CreatedAt     time.Time `db:"created_at"`
}

func dbSet(ctx context.Context, db *sqlx.DB, key, value string) error {
	return pgutil.ExecuteRetryable(func() error {
		return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
			now := time.Now()

			query := `INSERT INTO ` + tableName + `
				(key, value, last_updated_at, created_at)
				VALUES ($1, $2, $3, $3)

				ON CONFLICT (key)
				DO UPDATE
					SET value = $2, last_updated_at = $3
					WHERE ` + tableName + `.key = $1`

			_, err := tx.ExecContext(ctx, query, key, value, now)
			return err
		})
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, key string) (*model, error) {
	res := &model{}

	query := `SELECT id, key, value, last_updated_at, created_at FROM ` + tableName + `
		WHERE key = $1
	`

	err := db.QueryRowxContext(ctx, query, key).StructScan(res)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, kv.ErrNotFound)
	}
	return res, nil
}
