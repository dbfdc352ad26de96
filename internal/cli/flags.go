// Package cli validates command-line input before any network work starts.
package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"unicode"

	"forensicwatch/internal/dirs"
	"forensicwatch/internal/model"
	"forensicwatch/internal/util"
)

// Resolved is the validated runtime configuration.
type Resolved struct {
	Options model.CLIOptions
	Server  *url.URL // http(s) base for REST calls and the stream
}

// Resolve validates opts. When tui is set and no log file was configured,
// logs go to the state dir so they never tear the screen.
func Resolve(opts model.CLIOptions, tui bool) (Resolved, error) {
	server, err := util.ParseServerURL(opts.Server)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid --server: %w", err)
	}

	r := opts.Reconnect
	if r.MaxAttempts < 0 {
		return Resolved{}, fmt.Errorf("invalid reconnect.max_attempts: %d", r.MaxAttempts)
	}
	if r.Base < 0 || r.Max < 0 {
		return Resolved{}, errors.New("reconnect delays must not be negative")
	}
	if r.Max > 0 && r.Base > r.Max {
		return Resolved{}, fmt.Errorf("reconnect.base (%s) exceeds reconnect.max (%s)", r.Base, r.Max)
	}

	opts.User = strings.TrimSpace(opts.User)
	opts.MongoURI = strings.TrimSpace(opts.MongoURI)
	if opts.MongoURI != "" && !strings.HasPrefix(opts.MongoURI, "mongodb://") && !strings.HasPrefix(opts.MongoURI, "mongodb+srv://") {
		return Resolved{}, fmt.Errorf("invalid --mongo-uri: expected mongodb:// or mongodb+srv://")
	}

	if tui && opts.LogFile == "" {
		if p, err := dirs.LogFile(); err == nil {
			opts.LogFile = p
		}
	}
	return Resolved{Options: opts, Server: util.HTTPBase(server)}, nil
}

// ParseJobID trims raw and rejects ids that cannot be a single path segment.
func ParseJobID(raw string) (model.JobID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", errors.New("job id is required")
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 || strings.ContainsAny(id, "/?#") {
		return "", fmt.Errorf("invalid job id %q", raw)
	}
	return model.JobID(id), nil
}

// ExistingFiles checks that every path names a regular file.
func ExistingFiles(paths []string) error {
	if len(paths) == 0 {
		return errors.New("at least one file is required")
	}
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", p, err)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", p)
		}
	}
	return nil
}
