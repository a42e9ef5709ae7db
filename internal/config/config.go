// Package config provides the configuration schema, loader, and file
// watcher for the memocut voice-memo engine.
package config

import "github.com/memocut/memocut/internal/silence"

// LogLevel controls log verbosity for the memocut server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for memocut.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Library     LibraryConfig    `yaml:"library"`
	SkipSilence silence.Settings `yaml:"skip_silence"`
}

// ServerConfig holds network and logging settings for the memocut server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// LibraryConfig holds storage locations and import/analysis settings for
// the memo library.
type LibraryConfig struct {
	// DataDir is the directory holding the recording files.
	DataDir string `yaml:"data_dir"`

	// DatabasePath is the SQLite catalog location. Defaults to
	// <data_dir>/catalog.db.
	DatabasePath string `yaml:"database_path"`

	// CanonicalSampleRate is the sample rate imports are converted to.
	CanonicalSampleRate int `yaml:"canonical_sample_rate"`

	// CanonicalChannels is the channel count imports are converted to.
	CanonicalChannels int `yaml:"canonical_channels"`

	// AnalysisWorkers bounds how many memos are re-analysed concurrently.
	AnalysisWorkers int `yaml:"analysis_workers"`

	// EditPadding is the silence kept on each side of a removed range, in
	// seconds, when stripping silence from a memo.
	EditPadding float64 `yaml:"edit_padding"`
}

// Default values applied by [applyDefaults] for fields left unset.
const (
	DefaultListenAddr          = ":8080"
	DefaultCanonicalSampleRate = 48000
	DefaultCanonicalChannels   = 1
	DefaultAnalysisWorkers     = 4
	DefaultEditPadding         = 0.15
)

// applyDefaults fills zero-valued fields with engine defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Library.DataDir == "" {
		cfg.Library.DataDir = "recordings"
	}
	if cfg.Library.DatabasePath == "" {
		cfg.Library.DatabasePath = cfg.Library.DataDir + "/catalog.db"
	}
	if cfg.Library.CanonicalSampleRate == 0 {
		cfg.Library.CanonicalSampleRate = DefaultCanonicalSampleRate
	}
	if cfg.Library.CanonicalChannels == 0 {
		cfg.Library.CanonicalChannels = DefaultCanonicalChannels
	}
	if cfg.Library.AnalysisWorkers == 0 {
		cfg.Library.AnalysisWorkers = DefaultAnalysisWorkers
	}
	if cfg.Library.EditPadding == 0 {
		cfg.Library.EditPadding = DefaultEditPadding
	}
	if cfg.SkipSilence == (silence.Settings{}) {
		cfg.SkipSilence = silence.DefaultSettings()
	}
}
