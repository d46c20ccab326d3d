package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvClientSecret overrides twitch.client_secret when set.
const EnvClientSecret = "STREAMWATCH_CLIENT_SECRET"

// ErrInvalid marks configuration errors. They are fatal at startup: the
// process must exit before the scheduler starts.
var ErrInvalid = errors.New("invalid config")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ApplyEnv fills secret fields from the environment. Call before Validate.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvClientSecret)); v != "" {
		c.Twitch.ClientSecret = v
	}
}

// Validate checks all required fields and normalizes defaults in place.
// Cross-component checks (e.g. that poll.schedule parses) are layered on by
// the caller via Manager.SetValidator.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Twitch.ClientID) == "" {
		return invalidf("twitch.client_id is required")
	}
	if strings.TrimSpace(c.Twitch.ClientSecret) == "" {
		return invalidf("twitch.client_secret is required (or set %s)", EnvClientSecret)
	}
	if len(c.Twitch.Streamers.Names()) == 0 {
		return invalidf("twitch.streamers must name at least one channel")
	}

	url := strings.TrimSpace(c.Discord.WebhookURL)
	if url == "" {
		return invalidf("discord.webhook_url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return invalidf("discord.webhook_url must be an http(s) URL")
	}
	if c.Discord.MentionEveryone && strings.TrimSpace(c.Discord.MentionRole) != "" {
		return invalidf("discord: set mention_everyone or mention_role, not both")
	}
	if c.Discord.RatePerSec < 0 {
		return invalidf("discord.rate_per_sec must be >= 0")
	}
	if c.Discord.RatePerSec == 0 {
		c.Discord.RatePerSec = 1
	}

	if strings.TrimSpace(c.Poll.Schedule) == "" {
		return invalidf("poll.schedule is required")
	}
	if _, err := ParseDurationField("poll.cycle_timeout", c.Poll.CycleTimeout); err != nil {
		return invalidf("%v", err)
	}

	if c.Files.Credentials == "" {
		c.Files.Credentials = "./twitch_token.json"
	}
	if c.Files.State == "" {
		c.Files.State = "./live_state.json"
	}
	if c.Files.Template == "" {
		c.Files.Template = "./notification.json"
	}

	switch strings.ToLower(strings.TrimSpace(c.State.Driver)) {
	case "", "file":
		c.State.Driver = "file"
	case "sqlite", "sqlite3":
		c.State.Driver = "sqlite"
	default:
		return invalidf("state.driver %q is not supported (file|sqlite)", c.State.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return invalidf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

// LiveApplicable reports whether next can replace prev without a restart.
// Identity, schedule and storage changes need a clean start; logging,
// mention and template-path changes apply live.
func LiveApplicable(prev, next *Config) bool {
	if prev == nil || next == nil {
		return false
	}
	if prev.Twitch.ClientID != next.Twitch.ClientID ||
		prev.Twitch.ClientSecret != next.Twitch.ClientSecret {
		return false
	}
	if strings.Join(prev.Twitch.Streamers.Names(), ",") != strings.Join(next.Twitch.Streamers.Names(), ",") {
		return false
	}
	if strings.TrimSpace(prev.Poll.Schedule) != strings.TrimSpace(next.Poll.Schedule) ||
		strings.TrimSpace(prev.Poll.CycleTimeout) != strings.TrimSpace(next.Poll.CycleTimeout) {
		return false
	}
	if prev.State.Driver != next.State.Driver ||
		prev.Files.Credentials != next.Files.Credentials ||
		prev.Files.State != next.Files.State {
		return false
	}
	return true
}
