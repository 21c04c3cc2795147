package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user'
);
CREATE TABLE IF NOT EXISTS interest_schemes (
	id SERIAL PRIMARY KEY,
	rate REAL NOT NULL CHECK (rate > 0),
	label TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS gold_rates (
	id SERIAL PRIMARY KEY,
	purity TEXT NOT NULL,
	interest_scheme_id INTEGER NOT NULL REFERENCES interest_schemes(id) ON DELETE CASCADE,
	rate_per_gram REAL NOT NULL CHECK (rate_per_gram > 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (purity, interest_scheme_id)
);`

// OpenDB connects to Postgres and makes sure the schema exists.
func OpenDB(ctx context.Context, connStr string) (*sql.DB, error) {
	if connStr == "" {
		connStr = "user=postgres dbname=postgres password=password sslmode=disable"
	}
	if !strings.Contains(connStr, "sslmode=") {
		if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
			connStr = connStr + "?sslmode=require"
		} else {
			connStr = connStr + " sslmode=require"
		}
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}
