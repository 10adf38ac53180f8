package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/desguapro/stock-cli/internal/runner"
)

var (
	inspectCSV          string
	inspectMapOverrides []string
)

// inspectReport is the dry-run output: what a verify run would start from.
type inspectReport struct {
	Delimiter string            `json:"delimiter"`
	Headers   []string          `json:"headers"`
	Mapping   map[string]string `json:"mapping"`
	Valid     bool              `json:"mapping_valid"`
	Rows      int               `json:"rows"`
	Admitted  int               `json:"admitted"`
	Excluded  int               `json:"excluded"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Parse a stock CSV and preview the column mapping (no network calls)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		text, err := os.ReadFile(inspectCSV)
		if err != nil {
			return eris.Wrapf(err, "inspect: read %s", inspectCSV)
		}

		overrides, err := runner.ParseMapOverrides(inspectMapOverrides)
		if err != nil {
			return err
		}

		prep, err := runner.Preview(string(text), overrides)
		if err != nil {
			return err
		}

		report := inspectReport{
			Delimiter: string(prep.Delimiter),
			Headers:   prep.Table.Headers,
			Mapping: map[string]string{
				"id":        prep.Mapping.ID,
				"oem":       prep.Mapping.OEM,
				"oe":        prep.Mapping.OE,
				"part_type": prep.Mapping.PartType,
				"price":     prep.Mapping.Price,
			},
			Valid:    prep.Mapping.Valid(),
			Rows:     len(prep.Table.Rows),
			Admitted: len(prep.Items),
			Excluded: prep.Excluded,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectCSV, "csv", "", "path to stock CSV file (required)")
	inspectCmd.Flags().StringArrayVar(&inspectMapOverrides, "map", nil, "column override field=Header (repeatable)")
	_ = inspectCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(inspectCmd)
}
