package model

import "time"

// CLIOptions holds user-configurable runtime options as resolved from flags,
// environment and the config file.
type CLIOptions struct {
	Server   string // http(s) base URL of the processing server
	Verbose  bool
	LogFile  string // Optional log file; defaults under the state dir when the TUI is active
	User     string // Identity used to scope history records
	MongoURI string // Optional history database; file-backed history when empty

	NoUI bool // Disable TUI when true
	Stay bool // Keep watching after the results arrive

	Reconnect ReconnectOptions
}

// ReconnectOptions tunes the stream client's backoff policy.
type ReconnectOptions struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}
