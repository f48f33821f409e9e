package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 3 * time.Second

var pool *pgxpool.Pool

func Init(ctx context.Context, dsn string) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("invalid postgres dsn: %w", err)
	}
	cfg.MaxConns = 10

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}

	pool = p
	return Ping(ctx)
}

func Client() (*pgxpool.Pool, error) {
	if pool == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return pool, nil
}

func Ping(ctx context.Context) error {
	if pool == nil {
		return fmt.Errorf("database not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return pool.Ping(ctx)
}

// WithTx runs fn inside a transaction. Transactions are scoped tightly around
// local state mutation; callers must not perform external calls inside fn.
func WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	cli, err := Client()
	if err != nil {
		return err
	}

	tx, err := cli.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func Close() {
	if pool != nil {
		pool.Close()
	}
}
