package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"forensicwatch/internal/api"
	"forensicwatch/internal/cli"
)

// resultFetchers bounds concurrent requests when several ids are given.
const resultFetchers = 4

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <job-id>...",
		Short: "Print the analysis results of one or more jobs as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, len(args))
			for i, raw := range args {
				id, err := cli.ParseJobID(raw)
				if err != nil {
					return cliError(err)
				}
				ids[i] = string(id)
			}

			client := appFrom(cmd).api()
			results := make([]json.RawMessage, len(ids))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(resultFetchers)
			for i, id := range ids {
				i, id := i, id
				g.Go(func() error {
					raw, err := client.Results(ctx, id)
					if api.IsNotFound(err) {
						return cliError(fmt.Errorf("no results for job %s", id))
					}
					if err != nil {
						return err
					}
					results[i] = raw
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return failure(err)
			}

			if len(ids) == 1 {
				return printJSON(cmd.OutOrStdout(), results[0])
			}
			byID := make(map[string]json.RawMessage, len(ids))
			for i, id := range ids {
				byID[id] = results[i]
			}
			raw, err := json.Marshal(byID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}
