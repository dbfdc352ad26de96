package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"forensicwatch/internal/cli"
	"forensicwatch/internal/ui"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <files...>",
		Short: "Upload several documents as one batch, or query a batch",
		Example: `  forensicwatch batch a.pdf b.png
  forensicwatch batch --status 6650f0c2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := appFrom(cmd).api()
			out := cmd.OutOrStdout()

			if status, _ := cmd.Flags().GetString("status"); status != "" {
				if len(args) > 0 {
					return cliError(errors.New("--status takes no files"))
				}
				raw, err := client.BatchStatus(cmd.Context(), status)
				if err != nil {
					return failure(err)
				}
				return printJSON(out, raw)
			}

			if err := cli.ExistingFiles(args); err != nil {
				return cliError(err)
			}
			progress := ui.NewPrinter(cmd.ErrOrStderr()).Upload(fmt.Sprintf("%d files", len(args)))
			resp, err := client.UploadBatch(cmd.Context(), args, progress)
			if err != nil {
				return failure(err)
			}
			fmt.Fprintf(out, "Batch %s\n", resp.BatchID)
			for _, id := range resp.JobIDs {
				fmt.Fprintf(out, "  job %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "Print the status of an existing batch")
	return cmd
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
