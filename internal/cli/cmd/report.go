package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"forensicwatch/internal/api"
	"forensicwatch/internal/cli"
	"forensicwatch/internal/util"
	"forensicwatch/internal/util/format"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <job-id>",
		Short: "Download the PDF forensic report of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cli.ParseJobID(args[0])
			if err != nil {
				return cliError(err)
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = api.ReportFileName(util.SanitizeFilename(string(id)))
			}

			client := appFrom(cmd).api()
			var n int64
			err = util.WriteFileAtomic(out, func(f *os.File) error {
				var derr error
				n, derr = client.DownloadReport(cmd.Context(), string(id), f)
				return derr
			})
			if api.IsNotFound(err) {
				return cliError(fmt.Errorf("no report for job %s yet", id))
			}
			if err != nil {
				return failure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s (%s)\n", out, format.HumanizeBytes(n))
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output path (default forensic-report-<job-id>.pdf)")
	return cmd
}
