package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index the PDFs and text files in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Ingest.DataDir
		if len(args) == 1 {
			dir = args[0]
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.ingest.IngestDirectory(cmd.Context(), dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents (%d chunks) from %s\n", report.Documents, report.Chunks, dir)
		return nil
	},
}
