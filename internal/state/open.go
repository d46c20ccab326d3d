package state

import (
	"context"
	"errors"
	"strings"

	logx "streamwatch/pkg/logx"
)

// LiveState maps lowercased channel name -> last observed live flag.
type LiveState map[string]bool

// Clone returns an independent copy.
func (s LiveState) Clone() LiveState {
	out := make(LiveState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Store is the persistence API for LiveState. The engine never calls it;
// only the scheduler loop loads and saves, so access stays single-writer.
type Store interface {
	Load(ctx context.Context) (LiveState, error)
	Save(ctx context.Context, s LiveState) error
	Close() error
}

// Config selects and locates the backend.
type Config struct {
	Driver string
	Path   string
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state driver: " + cfg.Driver)
	}
}
