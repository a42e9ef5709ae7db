package config_test

import (
	"strings"
	"testing"

	"github.com/memocut/memocut/internal/config"
)

func TestValidate_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name: "bad log level",
			yaml: `
server:
  log_level: verbose
`,
			wantSub: "log_level",
		},
		{
			name: "tls missing key file",
			yaml: `
server:
  tls:
    cert_file: /etc/memocut/cert.pem
`,
			wantSub: "key_file",
		},
		{
			name: "sample rate too low",
			yaml: `
library:
  canonical_sample_rate: 4000
`,
			wantSub: "canonical_sample_rate",
		},
		{
			name: "sample rate too high",
			yaml: `
library:
  canonical_sample_rate: 384000
`,
			wantSub: "canonical_sample_rate",
		},
		{
			name: "bad channel count",
			yaml: `
library:
  canonical_channels: 6
`,
			wantSub: "canonical_channels",
		},
		{
			name: "negative workers",
			yaml: `
library:
  analysis_workers: -1
`,
			wantSub: "analysis_workers",
		},
		{
			name: "padding above range",
			yaml: `
library:
  edit_padding: 2.5
`,
			wantSub: "edit_padding",
		},
		{
			name: "threshold out of range",
			yaml: `
skip_silence:
  threshold_db: -90
  min_silence_duration: 0.5
`,
			wantSub: "threshold",
		},
		{
			name: "min silence duration out of range",
			yaml: `
skip_silence:
  threshold_db: -40
  min_silence_duration: 3
`,
			wantSub: "duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error should mention %q, got: %v", tt.wantSub, err)
			}
		})
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
library:
  canonical_channels: 3
  edit_padding: -0.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, sub := range []string{"log_level", "canonical_channels", "edit_padding"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error should mention %q, got: %v", sub, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/memocut.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
