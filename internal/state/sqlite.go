//go:build sqlite
// +build sqlite

package state

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	logx "streamwatch/pkg/logx"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("state.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	const schema = `CREATE TABLE IF NOT EXISTS live_state (
		name TEXT PRIMARY KEY,
		live INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (LiveState, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, live FROM live_state")
	if err != nil {
		s.log.Warn("state table unreadable; starting empty", logx.Err(err))
		return LiveState{}, nil
	}
	defer rows.Close()

	out := LiveState{}
	for rows.Next() {
		var name string
		var live int
		if err := rows.Scan(&name, &live); err != nil {
			s.log.Warn("state row unreadable; skipping", logx.Err(err))
			continue
		}
		out[strings.ToLower(name)] = live != 0
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("state scan incomplete", logx.Err(err))
	}
	return out, nil
}

func (s *sqliteStore) Save(ctx context.Context, st LiveState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM live_state"); err != nil {
		return err
	}
	for name, live := range st {
		v := 0
		if live {
			v = 1
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO live_state (name, live) VALUES (?, ?)", name, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}
