package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"empty means unset", "", 0, false},
		{"whitespace means unset", "  ", 0, false},
		{"plain duration", "90s", 90 * time.Second, false},
		{"compound duration", "2m30s", 150 * time.Second, false},
		{"garbage", "soon", 0, true},
		{"negative", "-5s", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationField("poll.cycle_timeout", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("poll.cycle_timeout", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("unset = (%v, %v), want default", d, err)
	}
	if d, err := ParseDurationOrDefault("poll.cycle_timeout", "30s", time.Minute); err != nil || d != 30*time.Second {
		t.Fatalf("set = (%v, %v), want 30s", d, err)
	}
	if _, err := ParseDurationOrDefault("poll.cycle_timeout", "nope", time.Minute); err == nil {
		t.Fatal("invalid value must not fall back to the default")
	}
}
