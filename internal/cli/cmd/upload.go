package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"forensicwatch/internal/cli"
	"forensicwatch/internal/model"
	"forensicwatch/internal/ui"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "upload <file>",
		Short:       "Upload a document for analysis and follow the job",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotTUI: "true"},
		RunE:        runUpload,
	}
	cmd.Flags().Bool("no-watch", false, "Print the job id and exit once the upload finishes")
	cmd.Flags().Bool("stay", false, "Keep watching after the results arrive")
	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := cli.ExistingFiles(args); err != nil {
		return cliError(err)
	}
	client := appFrom(cmd).api()
	name := filepath.Base(path)

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		progress := ui.NewPrinter(cmd.ErrOrStderr()).Upload(name)
		resp, err := client.Upload(cmd.Context(), path, progress)
		if err != nil {
			return failure(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.JobID)
		return nil
	}

	stay, _ := cmd.Flags().GetBool("stay")
	return watch(cmd, ui.Config{
		FileName: name,
		Stay:     stay,
		Upload: func(ctx context.Context, onProgress func(int)) (model.JobID, error) {
			resp, err := client.Upload(ctx, path, onProgress)
			return model.JobID(resp.JobID), err
		},
	})
}
