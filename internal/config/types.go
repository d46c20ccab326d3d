package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Config struct {
	Twitch  TwitchConfig  `json:"twitch"`
	Discord DiscordConfig `json:"discord"`
	Poll    PollConfig    `json:"poll"`
	Files   FilesConfig   `json:"files"`
	State   StateConfig   `json:"state,omitempty"`
	Logging LoggingConfig `json:"logging"`
}

// TwitchConfig identifies the app against the Helix API and names the
// channels to watch.
//
// ClientSecret may be left empty in the file and supplied via the
// STREAMWATCH_CLIENT_SECRET environment variable instead, so the config
// file can be committed without credentials.
type TwitchConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`

	// Streamers accepts either a comma-separated string ("alice,bob")
	// or a YAML/JSON list of names.
	Streamers StringList `json:"streamers"`
}

// DiscordConfig controls the notification sink.
//
// MentionRole is a raw role id; it is ignored when MentionEveryone is set.
type DiscordConfig struct {
	WebhookURL      string `json:"webhook_url"`
	MentionEveryone bool   `json:"mention_everyone,omitempty"`
	MentionRole     string `json:"mention_role,omitempty"`

	// RatePerSec caps webhook posts per second. Defaults to 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// PollConfig controls the reconciliation trigger.
//
// Schedule accepts either a Go duration ("90s", "2m30s") or a cron
// expression ("*/2 * * * *"); the "cron:" / "interval:" prefixes force
// one interpretation.
type PollConfig struct {
	Schedule string `json:"schedule"`

	// CycleTimeout bounds a single reconciliation cycle (Go duration).
	// Unset or zero uses the built-in default.
	CycleTimeout string `json:"cycle_timeout,omitempty"`
}

type FilesConfig struct {
	Credentials string `json:"credentials,omitempty"`
	State       string `json:"state,omitempty"`
	Template    string `json:"template,omitempty"`
}

// StateConfig selects the LiveState backend.
//
// Driver values:
//   - "file" (default): JSON file, write-then-rename
//   - "sqlite": SQLite database (build with -tags sqlite)
type StateConfig struct {
	Driver string `json:"driver,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StringList decodes from either a JSON array of strings or a single
// comma-separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("streamers: expected list or comma-separated string: %w", err)
	}
	*l = strings.Split(s, ",")
	return nil
}

// Names returns the configured entries trimmed, lowercased, de-duplicated,
// in configured order. Lowercasing matters: persisted state is keyed by
// lowercased login.
func (l StringList) Names() []string {
	out := make([]string, 0, len(l))
	seen := make(map[string]struct{}, len(l))
	for _, raw := range l {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
