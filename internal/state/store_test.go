package state

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	logx "streamwatch/pkg/logx"
)

func openTestStore(t *testing.T, path string) Store {
	t.Helper()
	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "state.json"))

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty state, got %v", got)
	}
}

func TestLoadCorruptFileIsEmptyNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := openTestStore(t, path)

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load must not fail on corrupt file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty state, got %v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := openTestStore(t, path)
	ctx := context.Background()

	want := LiveState{"alice": true, "bob": false}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %v, want %v", got, want)
	}

	// No stray temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file still present: %v", err)
	}
}

func TestSaveOverwritesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := openTestStore(t, path)
	ctx := context.Background()

	if err := s.Save(ctx, LiveState{"alice": true, "old": true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, LiveState{"alice": false}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, LiveState{"alice": false}) {
		t.Fatalf("expected full overwrite, got %v", got)
	}
}

func TestLoadLowercasesKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"Alice": true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	s := openTestStore(t, path)

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !got["alice"] {
		t.Fatalf("expected lowercased key, got %v", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()
	orig := LiveState{"alice": true}
	cp := orig.Clone()
	cp["alice"] = false
	cp["bob"] = true
	if !orig["alice"] || len(orig) != 1 {
		t.Fatalf("clone mutated original: %v", orig)
	}
}
