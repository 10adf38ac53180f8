package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/desguapro/stock-cli/internal/export"
	"github.com/desguapro/stock-cli/internal/sched"
	"github.com/desguapro/stock-cli/internal/store"
)

var (
	exportRunID  string
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-export a stored run as csv, zip, or xlsx",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		run, err := st.GetRun(cmd.Context(), exportRunID)
		if err != nil {
			return err
		}
		summary := sched.Summary{
			ID:        run.ID,
			Cancelled: run.Cancelled,
			Counters:  run.Counters,
			Elapsed:   run.Elapsed,
		}

		switch exportFormat {
		case "csv":
			f, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", exportOutput)
			}
			defer f.Close() //nolint:errcheck
			return export.WriteCSV(f, run.Results)
		case "zip":
			f, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", exportOutput)
			}
			defer f.Close() //nolint:errcheck
			return export.WriteZIP(f, run.Results, summary)
		case "xlsx":
			return export.WriteXLSX(exportOutput, run.Results)
		default:
			return eris.Errorf("export: unknown format %q, want csv, zip, or xlsx", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "run ID to export (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, zip, or xlsx")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file path (required)")
	_ = exportCmd.MarkFlagRequired("run")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}
