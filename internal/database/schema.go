package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QuoteTable quotes a table name for SQL. A dotted name is treated as
// schema-qualified, so "public.stock_prices" becomes "public"."stock_prices".
func QuoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// CreateTableSQL returns the DDL for the price table.
// The primary key on (symbol, ts) is the conflict target of every upsert.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol     TEXT             NOT NULL,
			ts         DATE             NOT NULL,
			open       DOUBLE PRECISION NOT NULL DEFAULT 0,
			high       DOUBLE PRECISION NOT NULL DEFAULT 0,
			low        DOUBLE PRECISION NOT NULL DEFAULT 0,
			close      DOUBLE PRECISION NOT NULL DEFAULT 0,
			volume     BIGINT           NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			PRIMARY KEY (symbol, ts)
		)
	`, QuoteTable(table))
}

// Migrate creates the price table if it does not exist.
func Migrate(ctx context.Context, db Execer, table string) error {
	if _, err := db.Exec(ctx, CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}
