// Package database opens the sqlite store and applies the embedded goose
// migrations. It supports two modes: a file-backed database for normal
// deployments and an ephemeral in-memory database for the zero-config local
// mode, where every start begins from an empty schema.
package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MemoryPath selects the in-memory mode. Nothing survives a restart.
const MemoryPath = ":memory:"

// Open opens the sqlite database at path and migrates it to the current
// schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// OpenMemory opens the ephemeral local-mode database. Tests use it too.
func OpenMemory() (*sql.DB, error) {
	return Open(MemoryPath)
}

// dsn builds the connection string. WAL journaling only applies to
// file-backed databases; the in-memory mode has no journal to configure.
func dsn(path string) string {
	opts := "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != MemoryPath {
		opts += "&_pragma=journal_mode(WAL)"
	}
	return path + opts
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
