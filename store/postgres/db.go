package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/gatekeeper/store"
)

const (
	maxConns        = int32(25)
	minConns        = int32(2)
	maxConnLifetime = time.Hour
	maxConnIdleTime = 30 * time.Minute
)

// Postgres error codes the store maps onto store sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// DB is the subset of *pgxpool.Pool the store uses. pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("database connection established",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", poolConfig.MaxConns)

	return New(pool, logger), nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapWriteErr translates constraint violations into store sentinels. A
// foreign key violation on insert means a referenced entity is missing.
func mapWriteErr(op string, err error) error {
	switch pgCode(err) {
	case codeUniqueViolation:
		return store.ErrDuplicate
	case codeForeignKeyViolation:
		return store.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func mapReadErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *Store) withTx(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin %s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("rollback failed", "op", op, "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}
	return nil
}

// rowQuerier is satisfied by DB and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// explainMiss resolves a write that touched no rows. It returns
// store.ErrNotFound when table has no row with id and guarded otherwise.
// table is always a package constant.
func explainMiss(ctx context.Context, q rowQuerier, table, id string, guarded error) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up %s: %w", table, err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return guarded
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
