package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"forensicwatch/internal/cli"
	"forensicwatch/internal/history"
	"forensicwatch/internal/jobstate"
	"forensicwatch/internal/model"
	"forensicwatch/internal/observability"
	"forensicwatch/internal/stream"
	"forensicwatch/internal/ui"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "watch <job-id>",
		Short:       "Follow a job's analysis stages live",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cli.ParseJobID(args[0])
			if err != nil {
				return cliError(err)
			}
			stay, _ := cmd.Flags().GetBool("stay")
			return watch(cmd, ui.Config{JobID: id, Stay: stay})
		},
	}
	cmd.Flags().Bool("stay", false, "Keep watching after the results arrive")
	return cmd
}

// watch wires the store, the stream client and a renderer for one job and
// blocks until the watch ends.
func watch(cmd *cobra.Command, cfg ui.Config) error {
	a := appFrom(cmd)
	ctx := cmd.Context()
	logger := a.logger

	var hist history.Store
	if a.Options.User != "" {
		var err error
		if hist, err = a.openHistory(ctx); err != nil {
			logger.Warn("History unavailable", zap.Error(err))
		} else {
			defer hist.Close(context.Background())
		}
	}
	recorder := &history.Recorder{Store: hist, UID: a.Options.User, Logger: logger}

	store := jobstate.New(jobstate.WithLogger(logger))
	bridge := ui.NewBridge()
	r := a.Options.Reconnect
	client := stream.New(store,
		stream.WithBaseURL(a.Server),
		stream.WithBackoff(stream.Backoff{Base: r.Base, Max: r.Max, MaxAttempts: r.MaxAttempts}),
		stream.WithNotifier(observability.Notifiers{bridge, observability.LogNotifier{L: logger}}),
		stream.WithDiagnostics(observability.DiagnosticLogger{L: logger}),
		stream.WithStateHook(bridge.State),
		stream.WithResultHook(func(id model.JobID, res model.Results) {
			// Saved before the renderer hears about it, since it may exit right away.
			recorder.Record(ctx, string(id), cfg.FileName, res)
			bridge.Result(id, res)
		}),
		stream.WithLogger(logger),
	)
	defer client.Disconnect()

	sess := ui.Session{Store: store, Client: client, Bridge: bridge}
	var (
		summary ui.Summary
		err     error
	)
	if a.tui {
		summary, err = ui.Run(ctx, sess, cfg)
	} else {
		summary, err = ui.RunPlain(ctx, sess, cfg, cmd.OutOrStdout())
	}
	logger.Debug("Watch ended",
		zap.String("job_id", string(summary.JobID)),
		zap.Bool("completed", summary.Completed),
		zap.Bool("failed", summary.Failed),
		zap.Bool("gave_up", summary.GaveUp))
	return outcome(summary, err)
}

// outcome maps how a watch ended to an exit code.
func outcome(s ui.Summary, err error) error {
	switch {
	case err != nil:
		return failure(err)
	case s.Completed:
		return nil
	case s.Failed:
		msg := s.LastError
		if msg == "" {
			msg = "processing error"
		}
		return &ExitError{Code: ExitJobFailed, Err: fmt.Errorf("job %s failed: %s", s.JobID, msg)}
	case s.GaveUp:
		return &ExitError{Code: ExitConnectionLost, Err: errors.New("lost connection to the processing server")}
	}
	return nil
}
