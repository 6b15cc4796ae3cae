package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

//go:embed schema.sql
var schemaSQL string

// DB holds the process-wide connection pool. It is acquired once per
// process lifetime and released on shutdown.
type DB struct {
	cfg  *Config
	pool *pgxpool.Pool
}

func NewDB(cfg *Config) *DB {
	return &DB{cfg: cfg}
}

func (d *DB) Pool() *pgxpool.Pool {
	if d.pool == nil {
		panic("db not connected, call DB.Connect() first")
	}
	return d.pool
}

// Connect opens the pool and optionally creates the schema.
func (d *DB) Connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(d.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parse pool config: %w", err)
	}

	// pgvector types must be registered on every connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	// Optional schema creation for local/dev environments.
	if d.cfg.AutoMigrate {
		if _, err := pool.Exec(ctx, schemaSQL); err != nil {
			pool.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}

	d.pool = pool
	return nil
}

func (d *DB) Close() {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
}
