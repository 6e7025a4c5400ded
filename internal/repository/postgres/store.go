// Package postgres implements the lifecycle store on PostgreSQL through
// database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/gocomet/ride-pooling/pkg/logger"
	"github.com/google/uuid"
)

//go:embed schema.sql
var schema string

// Store is a PostgreSQL lifecycle.Store
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStore creates a store on an open connection pool
func NewStore(db *sql.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// Migrate creates the tables and indexes the store needs
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithinTx runs fn in a serializable transaction. Serialization failures
// surface as conflict errors.
func (s *Store) WithinTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", logger.Err(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError(err, nil)
	}
	return nil
}

// Tx is one transaction's view of the store
type Tx struct {
	tx *sql.Tx
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func fromNullUUID(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

// jsonb encodes a value for a JSONB column; nil pointers become NULL.
// The text form is passed because lib/pq sends []byte as bytea.
func jsonb(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode column: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

// exec runs a statement and reports notFound when it touched no rows
func (t *Tx) exec(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 && notFound != nil {
		return notFound
	}
	return nil
}
