package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"typed-todo/internal/config"
	"typed-todo/pkg/logger"
)

// ErrNoDatabaseURL is returned when DATABASE_URL is empty.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is not set")

// Open creates the connection pool and checks it with a ping.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrNoDatabaseURL
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBPoolSize)
	db.SetMaxIdleConns(cfg.DBPoolSize / 2)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info(ctx, "Database pool initialized", "max_open", cfg.DBPoolSize)
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS todos (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL CHECK (length(title) > 0),
		description TEXT,
		completed   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (created_at <= updated_at)
	)`,
	`CREATE INDEX IF NOT EXISTS todos_created_at_idx ON todos (created_at DESC, id DESC)`,
}

// Migrate creates the todos table and its ordering index if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error(ctx, "Schema migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info(ctx, "Schema ready")
	return nil
}
