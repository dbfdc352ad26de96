package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"forensicwatch/internal/config"
	"forensicwatch/internal/dirs"
	"forensicwatch/internal/history"
)

const doctorTimeout = 10 * time.Second

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Check server reachability, history storage and configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			out := cmd.OutOrStdout()
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			// Both checks run at once; neither aborts the other.
			var pingErr, histErr error
			histLabel := ""
			var g errgroup.Group
			g.Go(func() error {
				pingErr = a.api().Ping(ctx)
				return nil
			})
			g.Go(func() error {
				histLabel, histErr = checkHistory(ctx, a)
				return nil
			})
			_ = g.Wait()

			cfgFile := config.ConfigFile()
			if cfgFile == "" {
				cfgFile = "(none)"
			}
			logDest := a.Options.LogFile
			if logDest == "" {
				logDest = "stderr"
			}
			fmt.Fprintf(out, "Config:  %s\n", cfgFile)
			fmt.Fprintf(out, "Log:     %s\n", logDest)
			fmt.Fprintf(out, "History: %s\n", status(histLabel, histErr))
			fmt.Fprintf(out, "Server:  %s\n", status(a.Server.String(), pingErr))

			if pingErr != nil {
				return &ExitError{Code: ExitServerUnreachable, Err: fmt.Errorf("server unreachable: %w", pingErr)}
			}
			if histErr != nil {
				return &ExitError{Code: ExitCLIError, Err: histErr}
			}
			return nil
		},
	}
}

func checkHistory(ctx context.Context, a *app) (string, error) {
	if a.Options.MongoURI != "" {
		label := "MongoDB " + history.DatabaseName(a.Options.MongoURI) + "." + history.CollectionName
		store, err := history.OpenMongo(ctx, a.Options.MongoURI)
		if err != nil {
			return label, err
		}
		return label, store.Close(context.Background())
	}
	path, err := dirs.HistoryFile()
	if err != nil {
		return "file", err
	}
	return "file " + path, nil
}

func status(label string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s (error: %v)", label, err)
	}
	return label + " (ok)"
}
