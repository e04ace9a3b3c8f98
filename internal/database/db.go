package database

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

type Config struct {
	SQLitePath string
	Logger     *zap.Logger
}

// NewDB opens the sqlite history database and applies pending migrations.
func NewDB(config Config) (*DB, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := Open(config.SQLitePath)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn, logger: logger}

	if err := NewMigrator(conn, logger).Run(migrationFS, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Open connects to the sqlite file at path without running migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
