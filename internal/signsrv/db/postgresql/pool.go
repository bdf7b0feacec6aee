// Package postgresql provides PostgreSQL-backed implementations of the
// signing service stores using the pgx stdlib driver.
package postgresql

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"
)

// Store bundles the PostgreSQL-backed store implementations over a shared
// connection pool. It satisfies db.KeyStore, db.SignatureStore, and
// db.RequestStore.
type Store struct {
	db *sql.DB
}

// sessionOptions are applied on every new connection to keep a misbehaving
// query from wedging the pool.
const sessionOptions = "options=-c lock_timeout=5s -c statement_timeout=5s -c idle_in_transaction_session_timeout=5s"

// New opens a connection pool against the given DSN and verifies
// connectivity.
func New(dsn string) (*Store, error) {
	sqlDB, err := sql.Open("pgx", dsn+" "+sessionOptions)
	if err != nil {
		log.Error().Err(err).Msg("failed to open db")
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		log.Error().Err(err).Msg("failed to ping db")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

// Ping verifies database connectivity, used by the readiness endpoint.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
