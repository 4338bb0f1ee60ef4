// Package db opens the workspace SQLite database. The dl CLI and the API
// server share one database file under <workspace>/.demandline, so every
// connection takes WAL journaling and a busy timeout alongside enforced
// foreign keys (the cascade from demands to their stage periods depends on
// them).
package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	dataDir = ".demandline"
	dbName  = "demandline.db"
)

// pragmas applied to every connection through the DSN.
var pragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(wal)",
}

type Config struct {
	Workspace string
}

// EnsureWorkspace creates the workspace data directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, dataDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the workspace database, creating the data directory if needed.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	var dsn strings.Builder
	dsn.WriteString("file:")
	dsn.WriteString(Path(cfg.Workspace))
	for i, p := range pragmas {
		if i == 0 {
			dsn.WriteString("?_pragma=")
		} else {
			dsn.WriteString("&_pragma=")
		}
		dsn.WriteString(p)
	}
	return sql.Open("sqlite", dsn.String())
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dataDir, dbName)
}
