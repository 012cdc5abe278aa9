// Package db opens the service SQLite database and applies migrations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	migrations := []string{
		migrationDomains,
		migrationDomainIndexes,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationDomains = `
CREATE TABLE IF NOT EXISTS domains (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    hostname TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    verified_at TIMESTAMP,
    removed_at TIMESTAMP
);
`

// Partial unique indexes enforce "one active domain per tenant" and "one
// active owner per hostname" in the store itself, so concurrent creates
// cannot race past an application-level check. Removed rows keep their
// history without blocking reuse.
const migrationDomainIndexes = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_domains_active_tenant
    ON domains(tenant_id) WHERE removed_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_domains_active_hostname
    ON domains(hostname) WHERE removed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_domains_status ON domains(status);
`
