package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"forensicwatch/internal/api"
	"forensicwatch/internal/cli"
	"forensicwatch/internal/config"
	"forensicwatch/internal/dirs"
	"forensicwatch/internal/history"
	"forensicwatch/internal/observability"
)

const (
	ExitOK                = 0
	ExitCLIError          = 1
	ExitServerUnreachable = 2
	ExitJobFailed         = 3
	ExitConnectionLost    = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// annotTUI marks commands that take over the terminal when stdout is a TTY.
const annotTUI = "tui"

type ctxKey string

const appKey ctxKey = "app"

// app is the resolved runtime shared by every subcommand.
type app struct {
	cli.Resolved
	logger *zap.Logger
	tui    bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "forensicwatch",
		Short: "Follow document forensics jobs from the terminal",
		Long: "forensicwatch uploads documents to a forensic analysis server and follows each job live: " +
			"OCR, CNN, ELA, Benford, heatmap and report stages, with an event log and a time estimate. " +
			"Results, PDF reports and per-user history are one command away.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a := appFrom(cmd); a != nil {
				_ = a.logger.Sync()
			}
		},
	}

	// Persistent flags available to all subcommands
	pf := root.PersistentFlags()
	pf.String("server", config.DefaultServer, "Processing server base URL")
	pf.BoolP("verbose", "v", false, "Debug logging")
	pf.String("log-file", "", "Write JSON logs to this file (defaults to the state dir while the TUI runs)")
	pf.String("user", "", "User id that scopes analysis history")
	pf.String("mongo-uri", "", "MongoDB URI for analysis history (local file when empty)")
	pf.Bool("no-ui", false, "Disable TUI; use plain textual output")

	root.AddCommand(newWatchCmd())
	root.AddCommand(newUploadCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newResultsCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

// setup resolves flags, env and config file, then installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	if err := config.Init(cmd.Root()); err != nil {
		return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("read config: %w", err)}
	}
	opts := config.Load()
	tui := cmd.Annotations[annotTUI] == "true" && !opts.NoUI && isTerminal()

	res, err := cli.Resolve(opts, tui)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	logger, err := observability.Init(observability.Options{
		Verbose: res.Options.Verbose,
		File:    res.Options.LogFile,
	})
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	logger.Debug("Configuration resolved",
		zap.String("command", cmd.Name()),
		zap.String("server", res.Server.String()),
		zap.String("config_file", config.ConfigFile()),
		zap.Bool("tui", tui))

	cmd.SetContext(context.WithValue(cmd.Context(), appKey, &app{Resolved: res, logger: logger, tui: tui}))
	return nil
}

func appFrom(cmd *cobra.Command) *app {
	if ctx := cmd.Context(); ctx != nil {
		if a, ok := ctx.Value(appKey).(*app); ok {
			return a
		}
	}
	return nil
}

func (a *app) api() *api.Client {
	return api.New(a.Server, api.WithLogger(a.logger))
}

// openHistory returns the MongoDB store when a URI is configured and the
// local JSON-lines file otherwise.
func (a *app) openHistory(ctx context.Context) (history.Store, error) {
	if a.Options.MongoURI != "" {
		s, err := history.OpenMongo(ctx, a.Options.MongoURI)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	path, err := dirs.HistoryFile()
	if err != nil {
		return nil, err
	}
	return history.NewFileStore(path), nil
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func cliError(err error) error {
	return &ExitError{Code: ExitCLIError, Err: err}
}

// failure assigns an exit code to an error from the server or transport.
func failure(err error) error {
	var ee *ExitError
	if errors.As(err, &ee) {
		return err
	}
	if unreachable(err) {
		return &ExitError{Code: ExitServerUnreachable, Err: err}
	}
	return &ExitError{Code: ExitCLIError, Err: err}
}

func unreachable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
