// Package repository implements the sync engine's bulk store contract on
// Postgres via database/sql over the pgx stdlib driver.
package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"chargesync/internal/sync"
)

//go:embed schema.sql
var schemaSQL string

// dbtx is the subset of *sql.DB and *sql.Tx the queries run against.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed implementation of [sync.Store].
type Store struct {
	queries
	db *sql.DB
}

// NewStore returns a store running its queries directly on the pool; batch
// transactions go through InTx.
func NewStore(db *sql.DB) *Store {
	return &Store{queries: queries{h: db}, db: db}
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InTx runs fn inside a single transaction; a returned error rolls the whole
// transaction back.
func (s *Store) InTx(ctx context.Context, fn func(q sync.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(queries{h: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queries implements [sync.Queries] against either the pool or a transaction.
type queries struct {
	h dbtx
}

// valuesClause renders a multi-row VALUES list: "($1,$2),($3,$4)". casts are
// applied to the first row only, which is enough for Postgres to type the
// whole list.
func valuesClause(rows, cols int, casts []string) string {
	var sb strings.Builder
	arg := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(arg))
			if r == 0 && casts != nil {
				sb.WriteString(casts[c])
			}
			arg++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
