package config

const (
	defaultStateDir               = "~/.local/share/feltsync/state"
	defaultLogDir                 = "~/.local/share/feltsync/logs"
	defaultRemoteRequestTimeout   = 30
	defaultCycleInterval          = 300
	defaultRetryBackoff           = 30
	defaultRetryBackoffCap        = 900
	defaultStaleProcessingTimeout = 600
	defaultCompletedRetentionDays = 7
	defaultCycleHistoryLimit      = 200
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Remote: Remote{
			RequestTimeout: defaultRemoteRequestTimeout,
		},
		Sync: Sync{
			CycleInterval:          defaultCycleInterval,
			RetryBackoff:           defaultRetryBackoff,
			RetryBackoffCap:        defaultRetryBackoffCap,
			StaleProcessingTimeout: defaultStaleProcessingTimeout,
			CompletedRetentionDays: defaultCompletedRetentionDays,
			CycleHistoryLimit:      defaultCycleHistoryLimit,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			CycleSummary:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
