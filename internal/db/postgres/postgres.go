// Package postgres opens the catalog database and applies its schema.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lgoty/benefitsearch/internal/domain"
)

// Config holds connection pool parameters.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store owns the connection pool.
type Store struct {
	db *sql.DB
}

// Open creates the pool. It does not contact the server.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &Store{db: sqlDB}, nil
}

// NewStoreFromDB wraps an existing pool.
func NewStoreFromDB(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for postgres: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// SQLSTATE codes we classify.
const (
	codeUndefinedTable  = "42P01"
	codeUndefinedColumn = "42703"
)

// IsUndefinedTable reports whether err means the schema has not been migrated yet.
func IsUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeUndefinedTable || pqErr.Code == codeUndefinedColumn
}

// Error classifies a driver error for callers: a missing schema becomes
// domain.ErrStoreNotReady, anything else is wrapped with op.
func Error(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreNotReady, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
