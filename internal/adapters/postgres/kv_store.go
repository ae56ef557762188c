// Package postgres persists credentials and preferences in PostgreSQL through
// database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	apperrors "github.com/target/ledgerly/internal/errors"
	"github.com/target/ledgerly/internal/ports"
)

// Table names created by internal/migrate.
const (
	TableCredentials = "credentials"
	TablePreferences = "preferences"

	// DefaultScope is used when no scope is configured.
	DefaultScope = "default"
)

// KVStore reads and writes (scope, key) rows of a single table.
type KVStore struct {
	DB    *sql.DB
	table string
	scope string
}

var (
	_ ports.CredentialStore = (*KVStore)(nil)
	_ ports.PreferenceStore = (*KVStore)(nil)
)

// NewCredentialStore returns a store over the credentials table.
func NewCredentialStore(db *sql.DB, scope string) *KVStore {
	return newKVStore(db, TableCredentials, scope)
}

// NewPreferenceStore returns a store over the preferences table.
func NewPreferenceStore(db *sql.DB, scope string) *KVStore {
	return newKVStore(db, TablePreferences, scope)
}

func newKVStore(db *sql.DB, table, scope string) *KVStore {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = DefaultScope
	}
	return &KVStore{DB: db, table: table, scope: scope}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := withPgxConn(ctx, s.DB, func(conn *pgx.Conn) error {
		query := `SELECT value FROM ` + s.table + ` WHERE scope = $1 AND key = $2`
		rows, err := conn.Query(ctx, query, s.scope, key)
		if err != nil {
			return err
		}
		value, err = pgx.CollectOneRow(rows, pgx.RowTo[string])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ports.ErrNotFound
	}
	if err != nil {
		return "", storeErr(err, "get", key)
	}
	return value, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO ` + s.table + ` (scope, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (scope, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := s.DB.ExecContext(ctx, query, s.scope, key, value); err != nil {
		return storeErr(err, "set", key)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM ` + s.table + ` WHERE scope = $1 AND key = $2`
	if _, err := s.DB.ExecContext(ctx, query, s.scope, key); err != nil {
		return storeErr(err, "delete", key)
	}
	return nil
}

// storeErr keeps codes assigned by MapDBError and classifies the rest as storage failures.
func storeErr(err error, op, key string) error {
	mapped := apperrors.MapDBError(err)
	if apperrors.GetCode(mapped) != "" {
		return fmt.Errorf("%s %s: %w", op, key, mapped)
	}
	return apperrors.Storage(mapped, op, key)
}

// withPgxConn acquires a *pgx.Conn via the stdlib bridge and executes fn with it.
func withPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
}
