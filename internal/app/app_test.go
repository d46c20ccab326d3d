package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"streamwatch/internal/config"
)

func writeAppConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
twitch:
  client_id: "cid"
  client_secret: "sec"
  streamers: "alice"
discord:
  webhook_url: "https://discord.com/api/webhooks/1/x"
poll:
  schedule: "90s"
%sfiles:
  credentials: %q
  state: %q
  template: %q
logging:
  level: "error"
  console: true
`, extra,
		filepath.Join(dir, "token.json"),
		filepath.Join(dir, "state.json"),
		filepath.Join(dir, "notification.json"),
	)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// Stop must be safe before Start: the -dry-run one-shot builds the app, runs
// a single cycle and tears down without ever launching the supervisor.
func TestStopWithoutStart(t *testing.T) {
	a, err := New(Options{ConfigPath: writeAppConfig(t, ""), DryRun: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}

func TestNewRejectsBadCycleTimeout(t *testing.T) {
	_, err := New(Options{ConfigPath: writeAppConfig(t, "  cycle_timeout: \"soon\"\n")})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("New = %v, want ErrInvalid", err)
	}
}
