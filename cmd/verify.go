package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/desguapro/stock-cli/internal/export"
	"github.com/desguapro/stock-cli/internal/runner"
	"github.com/desguapro/stock-cli/internal/sched"
	"github.com/desguapro/stock-cli/internal/stock"
	"github.com/desguapro/stock-cli/internal/store"
	"github.com/desguapro/stock-cli/pkg/pricing"
)

var (
	verifyCSV          string
	verifyExcludeCSV   string
	verifyExcludeCol   string
	verifyExcludeTypes []string
	verifyTypesFile    string
	verifyMapOverrides []string
	verifyWorkers      int
	verifyDelaySecs    float64
	verifyThreshold    float64
	verifyIgnoreCheap  bool
	verifyLimit        int
	verifyOutput       string
	verifyZip          string
	verifyXLSX         string
	verifyNoSave       bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run bulk stock verification on a CSV export",
	Long: `Parses a stock CSV, auto-maps its columns, filters rows, and verifies
every admitted item against the pricing service using a bounded pool of
concurrent workers.

Ctrl-C stops the run cooperatively: in-flight requests are aborted and
the results accumulated so far are exported as a valid partial run.

Examples:
  # Verify with defaults, write results CSV
  stock-cli verify --csv stock.csv --output resultados.csv

  # 8 workers, no delay, skip pieces already reordered
  stock-cli verify --csv stock.csv --workers 8 --delay 0 \
    --exclude-csv pedidos.csv --exclude-column Ref

  # Manual column mapping and grouped ZIP export
  stock-cli verify --csv stock.csv --map id=Columna1 --zip grupos.zip`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := buildRunnerOptions()
		if err != nil {
			return err
		}

		text, err := os.ReadFile(verifyCSV)
		if err != nil {
			return eris.Wrapf(err, "verify: read %s", verifyCSV)
		}
		prep, err := runner.Prepare(string(text), opts)
		if err != nil {
			return err
		}
		if len(prep.Items) == 0 {
			return eris.Errorf("verify: no admissible items in %s (%d rows excluded)", verifyCSV, prep.Excluded)
		}

		run := sched.New(sched.Config{
			Workers:                 verifyWorkers,
			Delay:                   time.Duration(verifyDelaySecs * float64(time.Second)),
			OutlierThresholdPct:     verifyThreshold,
			IgnoreCheaperThanMarket: verifyIgnoreCheap,
		}, newPricingClient(), prep.Items)

		// Ctrl-C requests cooperative cancellation, preserving partial results.
		go func() {
			<-ctx.Done()
			run.Stop()
		}()

		summary := run.Start(cmd.Context())
		results := run.Results()

		if err := writeExports(results, summary); err != nil {
			return err
		}

		if !verifyNoSave {
			if err := saveRun(cmd.Context(), verifyCSV, summary, results); err != nil {
				zap.L().Error("verify: save run history", zap.Error(err))
			}
		}

		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyCSV, "csv", "", "path to stock CSV file (required)")
	verifyCmd.Flags().StringVar(&verifyExcludeCSV, "exclude-csv", "", "secondary CSV whose IDs are skipped")
	verifyCmd.Flags().StringVar(&verifyExcludeCol, "exclude-column", "", "ID column of --exclude-csv (default: first column)")
	verifyCmd.Flags().StringSliceVar(&verifyExcludeTypes, "exclude-types", nil, "part types to skip (repeatable)")
	verifyCmd.Flags().StringVar(&verifyTypesFile, "exclude-types-file", "", "YAML blocklist of part types")
	verifyCmd.Flags().StringArrayVar(&verifyMapOverrides, "map", nil, "column override field=Header (repeatable)")
	verifyCmd.Flags().IntVar(&verifyWorkers, "workers", 0, "concurrent workers (default from config)")
	verifyCmd.Flags().Float64Var(&verifyDelaySecs, "delay", -1, "seconds between requests per worker (default from config)")
	verifyCmd.Flags().Float64Var(&verifyThreshold, "threshold", 0, "outlier threshold percent (default from config)")
	verifyCmd.Flags().BoolVar(&verifyIgnoreCheap, "ignore-cheaper", false, "discard results priced below market")
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 0, "max items to verify (0 = all)")
	verifyCmd.Flags().StringVar(&verifyOutput, "output", "", "write results CSV to file")
	verifyCmd.Flags().StringVar(&verifyZip, "zip", "", "write grouped ZIP bundle to file")
	verifyCmd.Flags().StringVar(&verifyXLSX, "xlsx", "", "write results XLSX to file")
	verifyCmd.Flags().BoolVar(&verifyNoSave, "no-save", false, "skip saving the run to history")
	_ = verifyCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(verifyCmd)
}

// buildRunnerOptions merges config defaults, flags, the YAML blocklist,
// and the exclusion CSV into runner options. It also resolves the
// effective worker/delay/threshold knobs into the verify* globals.
func buildRunnerOptions() (runner.Options, error) {
	var opts runner.Options

	if verifyWorkers <= 0 {
		verifyWorkers = cfg.Verify.Workers
	}
	if verifyDelaySecs < 0 {
		verifyDelaySecs = cfg.Verify.DelaySecs
	}
	if verifyThreshold <= 0 {
		verifyThreshold = cfg.Verify.OutlierThresholdPct
	}
	if !verifyIgnoreCheap {
		verifyIgnoreCheap = cfg.Verify.IgnoreCheaperThanMarket
	}
	opts.Limit = verifyLimit

	overrides, err := runner.ParseMapOverrides(verifyMapOverrides)
	if err != nil {
		return opts, err
	}
	opts.MapOverrides = overrides

	opts.ExcludePartTypes = append(opts.ExcludePartTypes, cfg.Verify.ExcludedPartTypes...)
	opts.ExcludePartTypes = append(opts.ExcludePartTypes, verifyExcludeTypes...)
	if verifyTypesFile != "" {
		fromFile, err := stock.LoadPartTypeFile(verifyTypesFile)
		if err != nil {
			return opts, err
		}
		opts.ExcludePartTypes = append(opts.ExcludePartTypes, fromFile...)
	}

	if verifyExcludeCSV != "" {
		text, err := os.ReadFile(verifyExcludeCSV)
		if err != nil {
			return opts, eris.Wrapf(err, "verify: read %s", verifyExcludeCSV)
		}
		ids, err := runner.ExcludedIDsFromCSV(string(text), verifyExcludeCol)
		if err != nil {
			return opts, err
		}
		opts.ExcludeIDs = ids
	}

	return opts, nil
}

// newPricingClient builds the pricing client from config, with an
// optional client-wide rate cap on top of the per-worker delay.
func newPricingClient() pricing.Client {
	opts := []pricing.Option{
		pricing.WithBaseURL(cfg.Pricing.BaseURL),
		pricing.WithTimeout(time.Duration(cfg.Pricing.TimeoutSecs) * time.Second),
	}
	if rps := cfg.Pricing.RequestsPerSecond; rps > 0 {
		opts = append(opts, pricing.WithRateLimiter(rate.NewLimiter(rate.Limit(rps), 1)))
	}
	return pricing.NewClient(cfg.Pricing.APIKey, opts...)
}

// writeExports writes whichever export targets were requested.
func writeExports(results []pricing.Result, summary sched.Summary) error {
	if verifyOutput != "" {
		f, err := os.Create(verifyOutput)
		if err != nil {
			return eris.Wrapf(err, "verify: create %s", verifyOutput)
		}
		if err := export.WriteCSV(f, results); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "verify: close %s", verifyOutput)
		}
		zap.L().Info("results csv written", zap.String("path", verifyOutput), zap.Int("results", len(results)))
	}

	if verifyZip != "" {
		f, err := os.Create(verifyZip)
		if err != nil {
			return eris.Wrapf(err, "verify: create %s", verifyZip)
		}
		if err := export.WriteZIP(f, results, summary); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "verify: close %s", verifyZip)
		}
		zap.L().Info("grouped zip written", zap.String("path", verifyZip))
	}

	if verifyXLSX != "" {
		if err := export.WriteXLSX(verifyXLSX, results); err != nil {
			return err
		}
		zap.L().Info("xlsx written", zap.String("path", verifyXLSX))
	}

	return nil
}

// saveRun persists the run in the history database.
func saveRun(ctx context.Context, sourceFile string, summary sched.Summary, results []pricing.Result) error {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	_, err = st.SaveRun(ctx, sourceFile, summary, results)
	return err
}
