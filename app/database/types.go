package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const DefaultDSN = "file::memory:?cache=shared"

type DB struct {
	*sql.DB
}

// NewConnection opens the sqlite order store. A single connection is kept
// open; sqlite allows one writer and an in-memory database lives only as long
// as its connection.
func NewConnection(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{DB: db}, nil
}
