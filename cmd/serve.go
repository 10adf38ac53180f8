package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/desguapro/stock-cli/internal/export"
	"github.com/desguapro/stock-cli/internal/runner"
	"github.com/desguapro/stock-cli/internal/sched"
	"github.com/desguapro/stock-cli/internal/store"
	"github.com/desguapro/stock-cli/pkg/pricing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose verification runs over HTTP for the web frontend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		reg := newRunRegistry(newPricingClient(), st)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			reg.stopAll()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("serving verification API", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runRegistry tracks in-flight and finished runs for the serve mode.
type runRegistry struct {
	verifier pricing.Client
	store    store.Store

	mu   sync.Mutex
	runs map[string]*activeRun
}

type activeRun struct {
	run        *sched.Run
	sourceFile string
	done       chan struct{}
}

func newRunRegistry(verifier pricing.Client, st store.Store) *runRegistry {
	return &runRegistry{
		verifier: verifier,
		store:    st,
		runs:     make(map[string]*activeRun),
	}
}

func (reg *runRegistry) get(id string) (*activeRun, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ar, ok := reg.runs[id]
	return ar, ok
}

// start launches the scheduler in the background and persists the run
// when it finishes.
func (reg *runRegistry) start(sourceFile string, cfg sched.Config, prep *runner.Prepared) *activeRun {
	run := sched.New(cfg, reg.verifier, prep.Items)
	ar := &activeRun{run: run, sourceFile: sourceFile, done: make(chan struct{})}

	reg.mu.Lock()
	reg.runs[run.ID] = ar
	reg.mu.Unlock()

	go func() {
		defer close(ar.done)
		summary := run.Start(context.Background())
		if reg.store != nil {
			if _, err := reg.store.SaveRun(context.Background(), sourceFile, summary, run.Results()); err != nil {
				zap.L().Error("serve: save run history", zap.String("run_id", run.ID), zap.Error(err))
			}
		}
	}()

	return ar
}

func (reg *runRegistry) stopAll() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, ar := range reg.runs {
		ar.run.Stop()
	}
}

// newRouter builds the HTTP API: health, run start/status/cancel, and a
// CSV export of whatever results a run has so far.
func newRouter(reg *runRegistry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/runs", func(w http.ResponseWriter, req *http.Request) {
		handleStartRun(reg, w, req)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		ar, ok := reg.get(chi.URLParam(req, "id"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, ar.run.Snapshot())
	})

	r.Post("/runs/{id}/cancel", func(w http.ResponseWriter, req *http.Request) {
		ar, ok := reg.get(chi.URLParam(req, "id"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		ar.run.Stop()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
	})

	r.Get("/runs/{id}/export.csv", func(w http.ResponseWriter, req *http.Request) {
		ar, ok := reg.get(chi.URLParam(req, "id"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="resultados.csv"`)
		if err := export.WriteCSV(w, ar.run.Results()); err != nil {
			zap.L().Error("serve: write csv export", zap.Error(err))
		}
	})

	return r
}

// handleStartRun accepts a multipart upload: field "csv" with the stock
// file, plus optional form fields overriding the run configuration.
func handleStartRun(reg *runRegistry, w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}

	file, header, err := req.FormFile("csv")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "csv file field is required")
		return
	}
	defer file.Close() //nolint:errcheck

	text, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read uploaded file")
		return
	}

	opts := runner.Options{}
	if types := req.Form["exclude_types"]; len(types) > 0 {
		opts.ExcludePartTypes = types
	}
	overrides, err := runner.ParseMapOverrides(req.Form["map"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts.MapOverrides = overrides

	prep, err := runner.Prepare(string(text), opts)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(prep.Items) == 0 {
		writeJSONError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("no admissible items (%d rows excluded)", prep.Excluded))
		return
	}

	runCfg := sched.Config{
		Workers:                 formInt(req, "workers", cfg.Verify.Workers),
		Delay:                   time.Duration(formFloat(req, "delay_secs", cfg.Verify.DelaySecs) * float64(time.Second)),
		OutlierThresholdPct:     formFloat(req, "threshold", cfg.Verify.OutlierThresholdPct),
		IgnoreCheaperThanMarket: formBool(req, "ignore_cheaper", cfg.Verify.IgnoreCheaperThanMarket),
	}

	ar := reg.start(header.Filename, runCfg, prep)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":       ar.run.ID,
		"items":    len(prep.Items),
		"excluded": prep.Excluded,
		"mapping":  prep.Mapping,
	})
}

func formInt(req *http.Request, key string, fallback int) int {
	if v := req.FormValue(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func formFloat(req *http.Request, key string, fallback float64) float64 {
	if v := req.FormValue(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func formBool(req *http.Request, key string, fallback bool) bool {
	if v := req.FormValue(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
