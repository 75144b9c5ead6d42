// Package db provides database access for kbexpert
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the database connection
type DB struct {
	*sqlx.DB
	path string
}

// DefaultDBPath returns the default database path
func DefaultDBPath() string {
	// Try project-local first
	localPath := ".kbexpert/kb.db"
	if _, err := os.Stat(".kbexpert"); err == nil {
		return localPath
	}

	// Fall back to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return localPath
	}
	return filepath.Join(home, ".kbexpert", "kb.db")
}

// Open opens or creates the database
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultDBPath()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{DB: db, path: path}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// migrate runs database migrations
func (d *DB) migrate() error {
	migrations := []string{
		migrationKnowledgeBases,
		migrationConsultations,
		migrationIndexes,
	}

	for _, m := range migrations {
		if _, err := d.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationKnowledgeBases = `
CREATE TABLE IF NOT EXISTS knowledge_bases (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    location TEXT,
    sign_count INTEGER NOT NULL DEFAULT 0,
    hypothesis_count INTEGER NOT NULL DEFAULT 0,
    created_timestamp REAL NOT NULL,
    updated_timestamp REAL,
    kb_data TEXT NOT NULL
);
`

const migrationConsultations = `
CREATE TABLE IF NOT EXISTS consultations (
    id TEXT PRIMARY KEY,
    knowledge_base_id TEXT NOT NULL,
    knowledge_base_name TEXT NOT NULL,
    mode TEXT NOT NULL,
    started_timestamp REAL NOT NULL,
    finished_timestamp REAL,
    winner_id INTEGER,
    winner_name TEXT,
    winner_p REAL,
    step_count INTEGER NOT NULL DEFAULT 0,
    consultation_data TEXT NOT NULL,
    FOREIGN KEY (knowledge_base_id) REFERENCES knowledge_bases(id) ON DELETE CASCADE
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_consultations_kb_id ON consultations(knowledge_base_id);
CREATE INDEX IF NOT EXISTS idx_consultations_started ON consultations(started_timestamp);
`
