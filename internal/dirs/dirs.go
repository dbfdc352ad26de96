// Package dirs resolves the per-user directories forensicwatch reads and
// writes: config, data (local history), cache and state (logs).
package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "forensicwatch"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// location describes one directory kind across platforms.
type location struct {
	xdgEnv   string   // Linux override
	linux    []string // under $HOME
	darwin   []string // under $HOME
	fallback func() (string, error)
	suffix   string // appended after AppName on non-Linux platforms
}

var (
	configLoc = location{
		xdgEnv:   "XDG_CONFIG_HOME",
		linux:    []string{".config"},
		darwin:   []string{"Library", "Application Support"},
		fallback: os.UserConfigDir,
	}
	dataLoc = location{
		xdgEnv:   "XDG_DATA_HOME",
		linux:    []string{".local", "share"},
		darwin:   []string{"Library", "Application Support"},
		fallback: os.UserConfigDir,
	}
	cacheLoc = location{
		xdgEnv:   "XDG_CACHE_HOME",
		linux:    []string{".cache"},
		darwin:   []string{"Library", "Caches"},
		fallback: os.UserCacheDir,
	}
	stateLoc = location{
		xdgEnv:   "XDG_STATE_HOME",
		linux:    []string{".local", "state"},
		darwin:   []string{"Library", "Application Support"},
		fallback: localStateBase,
		suffix:   "state",
	}
)

func (l location) resolve() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv(l.xdgEnv); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append(append([]string{home}, l.linux...), appName)...), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append(append([]string{home}, l.darwin...), appName, l.suffix)...), nil
	default:
		base, err := l.fallback()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, appName, l.suffix), nil
	}
}

func localStateBase() (string, error) {
	if la := os.Getenv("LOCALAPPDATA"); la != "" {
		return la, nil
	}
	return os.UserConfigDir()
}

// ConfigDir holds config.{yaml,json,toml}.
// Linux: $XDG_CONFIG_HOME/forensicwatch or ~/.config/forensicwatch.
func ConfigDir() (string, error) { return configLoc.resolve() }

// DataDir holds the local analysis history.
// Linux: $XDG_DATA_HOME/forensicwatch or ~/.local/share/forensicwatch.
func DataDir() (string, error) { return dataLoc.resolve() }

// CacheDir holds downloaded reports when no output path is given.
// Linux: $XDG_CACHE_HOME/forensicwatch or ~/.cache/forensicwatch.
func CacheDir() (string, error) { return cacheLoc.resolve() }

// StateDir holds log files.
// Linux: $XDG_STATE_HOME/forensicwatch or ~/.local/state/forensicwatch;
// elsewhere a "state" folder under the app directory.
func StateDir() (string, error) { return stateLoc.resolve() }

// HistoryFile is the JSON lines file used when no MongoDB URI is configured.
func HistoryFile() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "history.jsonl"), nil
}

// LogFile is where the TUI sends logs by default.
func LogFile() (string, error) {
	d, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, appName+".log"), nil
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// EnsureAll creates every app directory that can be resolved.
func EnsureAll() error {
	for _, resolve := range []func() (string, error){ConfigDir, DataDir, CacheDir, StateDir} {
		p, err := resolve()
		if err != nil {
			continue
		}
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}
