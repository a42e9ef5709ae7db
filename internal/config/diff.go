package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; storage
// locations and network settings require a restart and are ignored here.
type ConfigDiff struct {
	LogLevelChanged    bool
	NewLogLevel        LogLevel
	SkipSilenceChanged bool
	EditPaddingChanged bool
}

// Changed reports whether the diff contains any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SkipSilenceChanged || d.EditPaddingChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.SkipSilence != new.SkipSilence {
		d.SkipSilenceChanged = true
	}
	if old.Library.EditPadding != new.Library.EditPadding {
		d.EditPaddingChanged = true
	}
	return d
}
