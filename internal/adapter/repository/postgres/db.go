package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection pool. It is the explicitly owned resource
// handle passed into the services; one per process.
type DB struct {
	*sql.DB
}

// NewDB opens and verifies a database connection pool.
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=curvevault sslmode=disable"
//
// The pool is sized for the actual workload: one batch ingestion at a time
// plus a handful of status readers, so a large pool would only hide
// misbehaving callers.
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
