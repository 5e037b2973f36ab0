package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	selectStateSQL = `SELECT value FROM visitor_state WHERE visitor_id = $1 AND key = $2`
	upsertStateSQL = `INSERT INTO visitor_state (visitor_id, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (visitor_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteStateSQL = `DELETE FROM visitor_state WHERE visitor_id = $1 AND key = $2`
)

// PostgresKV backs the durable scope with the visitor_state table.
type PostgresKV struct {
	db *sql.DB
}

func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

func (p *PostgresKV) Get(ctx context.Context, visitorID, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, selectStateSQL, visitorID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresKV) Set(ctx context.Context, visitorID, key, value string) error {
	if _, err := p.db.ExecContext(ctx, upsertStateSQL, visitorID, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Delete(ctx context.Context, visitorID string, keys ...string) error {
	for _, k := range keys {
		if _, err := p.db.ExecContext(ctx, deleteStateSQL, visitorID, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}
