package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"forensicwatch/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished analyses saved for --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if a.Options.User == "" {
				return cliError(fmt.Errorf("%w: pass --user or set FORENSICWATCH_USER", history.ErrNoUser))
			}
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return failure(err)
			}
			defer store.Close(context.Background())

			records, err := store.List(cmd.Context(), a.Options.User, limit)
			if err != nil {
				return failure(err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if records == nil {
					records = []history.Record{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintf(out, "No history for %s\n", a.Options.User)
				return nil
			}
			for _, r := range records {
				name := r.FileName
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(out, "%s  %-26s %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.JobID, name)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Show at most this many records (0 for all)")
	cmd.Flags().Bool("json", false, "Print records as JSON")
	return cmd
}
