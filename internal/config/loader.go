package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Library
	if cfg.Library.CanonicalSampleRate < 8000 || cfg.Library.CanonicalSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("library.canonical_sample_rate %d outside [8000, 192000]", cfg.Library.CanonicalSampleRate))
	}
	if cfg.Library.CanonicalChannels != 1 && cfg.Library.CanonicalChannels != 2 {
		errs = append(errs, fmt.Errorf("library.canonical_channels %d must be 1 or 2", cfg.Library.CanonicalChannels))
	}
	if cfg.Library.AnalysisWorkers < 1 {
		errs = append(errs, fmt.Errorf("library.analysis_workers %d must be at least 1", cfg.Library.AnalysisWorkers))
	}
	if cfg.Library.EditPadding < 0 || cfg.Library.EditPadding > 1 {
		errs = append(errs, fmt.Errorf("library.edit_padding %.2f outside [0, 1]", cfg.Library.EditPadding))
	}

	// Skip-silence settings are clamped per memo at edit time, but the
	// configured baseline must already be in range.
	if err := cfg.SkipSilence.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
