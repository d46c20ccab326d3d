package config

import (
	"strings"

	logx "streamwatch/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging (never includes the client secret or the
// full webhook URL).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)

	// Twitch (never log the secret)
	if oldCfg.Twitch.ClientID != newCfg.Twitch.ClientID ||
		strings.Join(oldCfg.Twitch.Streamers.Names(), ",") != strings.Join(newCfg.Twitch.Streamers.Names(), ",") {
		changed = append(changed, "twitch")
		attrs = append(attrs, logx.Int("twitch.streamers", len(newCfg.Twitch.Streamers.Names())))
	}

	// Discord (never log the webhook URL itself)
	if oldCfg.Discord.WebhookURL != newCfg.Discord.WebhookURL ||
		oldCfg.Discord.MentionEveryone != newCfg.Discord.MentionEveryone ||
		strings.TrimSpace(oldCfg.Discord.MentionRole) != strings.TrimSpace(newCfg.Discord.MentionRole) ||
		oldCfg.Discord.RatePerSec != newCfg.Discord.RatePerSec {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.mention_everyone", newCfg.Discord.MentionEveryone),
			logx.Bool("discord.mention_role_set", strings.TrimSpace(newCfg.Discord.MentionRole) != ""),
			logx.Int("discord.rate_per_sec", newCfg.Discord.RatePerSec),
		)
	}

	if strings.TrimSpace(oldCfg.Poll.Schedule) != strings.TrimSpace(newCfg.Poll.Schedule) {
		changed = append(changed, "poll")
		attrs = append(attrs, logx.String("poll.schedule", strings.TrimSpace(newCfg.Poll.Schedule)))
	}

	if oldCfg.Files != newCfg.Files || oldCfg.State != newCfg.State {
		changed = append(changed, "files")
		attrs = append(attrs,
			logx.String("files.template", newCfg.Files.Template),
			logx.String("state.driver", newCfg.State.Driver),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	return changed, attrs
}
