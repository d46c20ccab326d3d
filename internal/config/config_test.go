package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
twitch:
  client_id: "cid"
  client_secret: "sec"
  streamers: "Alice, bob ,alice"
discord:
  webhook_url: "https://discord.com/api/webhooks/1/x"
poll:
  schedule: "90s"
logging:
  level: "info"
  console: true
`

func TestLoadValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Comma-separated entry list: trimmed, lowercased, de-duplicated, ordered.
	if got := cfg.Twitch.Streamers.Names(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("streamers = %v", got)
	}
	// Defaults filled by Validate.
	if cfg.Files.State != "./live_state.json" || cfg.State.Driver != "file" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Files, cfg.State)
	}
	if cfg.Discord.RatePerSec != 1 {
		t.Fatalf("rate default = %d", cfg.Discord.RatePerSec)
	}
}

func TestStreamersAcceptsList(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
twitch:
  client_id: "cid"
  client_secret: "sec"
  streamers:
    - alice
    - bob
discord:
  webhook_url: "https://discord.com/api/webhooks/1/x"
poll:
  schedule: "90s"
logging:
  level: "info"
  console: true
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Twitch.Streamers.Names(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("streamers = %v", got)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML+`
unknown_section:
  x: 1
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client id", func(c *Config) { c.Twitch.ClientID = "" }},
		{"missing secret", func(c *Config) { c.Twitch.ClientSecret = "" }},
		{"no streamers", func(c *Config) { c.Twitch.Streamers = StringList{" ", ""} }},
		{"missing webhook", func(c *Config) { c.Discord.WebhookURL = "" }},
		{"webhook not http", func(c *Config) { c.Discord.WebhookURL = "ftp://x" }},
		{"both mentions", func(c *Config) { c.Discord.MentionEveryone = true; c.Discord.MentionRole = "1" }},
		{"missing schedule", func(c *Config) { c.Poll.Schedule = "" }},
		{"bad cycle timeout", func(c *Config) { c.Poll.CycleTimeout = "soon" }},
		{"bad driver", func(c *Config) { c.State.Driver = "redis" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Twitch: TwitchConfig{
					ClientID:     "cid",
					ClientSecret: "sec",
					Streamers:    StringList{"alice"},
				},
				Discord: DiscordConfig{WebhookURL: "https://x"},
				Poll:    PollConfig{Schedule: "90s"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestSecretFromEnv(t *testing.T) {
	t.Setenv(EnvClientSecret, "env-secret")
	path := writeConfig(t, "config.yaml", `
twitch:
  client_id: "cid"
  streamers: "alice"
discord:
  webhook_url: "https://discord.com/api/webhooks/1/x"
poll:
  schedule: "90s"
logging:
  level: "info"
  console: true
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Twitch.ClientSecret != "env-secret" {
		t.Fatalf("secret = %q", cfg.Twitch.ClientSecret)
	}
}

func TestLiveApplicable(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Twitch: TwitchConfig{ClientID: "cid", ClientSecret: "sec", Streamers: StringList{"alice"}},
			Poll:   PollConfig{Schedule: "90s"},
			State:  StateConfig{Driver: "file"},
			Files:  FilesConfig{Credentials: "c", State: "s", Template: "t"},
		}
	}

	next := base()
	next.Logging.Level = "debug"
	next.Discord.MentionEveryone = true
	next.Files.Template = "other.json"
	if !LiveApplicable(base(), next) {
		t.Fatal("logging/mention/template changes must be live-applicable")
	}

	next = base()
	next.Twitch.Streamers = StringList{"alice", "carol"}
	if LiveApplicable(base(), next) {
		t.Fatal("channel list change must require restart")
	}

	next = base()
	next.Poll.Schedule = "5m"
	if LiveApplicable(base(), next) {
		t.Fatal("schedule change must require restart")
	}

	next = base()
	next.Poll.CycleTimeout = "45s"
	if LiveApplicable(base(), next) {
		t.Fatal("cycle timeout change must require restart")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json", `{"twitch":{"client_id":"a","client_secret":"b","streamers":"x"},
"discord":{"webhook_url":"https://x"},"poll":{"schedule":"90s"},
"logging":{"level":"info","console":true}} {"extra": 1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}
