package scheduler

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "90s", kind: SpecInterval, source: "duration", duration: 90 * time.Second},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "cron:", "interval:", "0s", "-5m"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	if _, _, err := parseHHMM("10:75"); err == nil {
		t.Fatal("expected error for invalid minutes")
	}
}

func TestNewScheduleNextDelay(t *testing.T) {
	t.Parallel()

	s, err := NewSchedule("90s")
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	if d := s.NextDelay(time.Now()); d != 90*time.Second {
		t.Fatalf("interval NextDelay = %v, want 90s", d)
	}

	c, err := NewSchedule("*/5 * * * *")
	if err != nil {
		t.Fatalf("NewSchedule cron: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 2, 30, 0, time.UTC)
	if d := c.NextDelay(now); d != 2*time.Minute+30*time.Second {
		t.Fatalf("cron NextDelay = %v, want 2m30s", d)
	}

	if _, err := NewSchedule("61 * * * *"); err == nil {
		t.Fatal("expected error for invalid cron field")
	}
}
