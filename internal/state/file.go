package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	logx "streamwatch/pkg/logx"
)

// fileStore keeps LiveState in one JSON object on disk.
//
// Writes go to <path>.tmp first and are then renamed over the target, so a
// crash between cycles leaves either the old or the new file, never a
// partial one.
type fileStore struct {
	log  logx.Logger
	path string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("state.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

// Load returns the persisted state. A missing or corrupt file yields an
// empty state, never an error: worst case is one replayed notification set,
// which beats refusing to start.
func (s *fileStore) Load(ctx context.Context) (LiveState, error) {
	_ = ctx
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("state file unreadable; starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return LiveState{}, nil
	}
	var m map[string]bool
	if err := json.Unmarshal(b, &m); err != nil {
		s.log.Warn("state file corrupt; starting empty", logx.String("path", s.path), logx.Err(err))
		return LiveState{}, nil
	}
	out := make(LiveState, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

func (s *fileStore) Save(ctx context.Context, st LiveState) error {
	_ = ctx
	if st == nil {
		st = LiveState{}
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
