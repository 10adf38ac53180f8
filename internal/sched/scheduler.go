// Package sched drives a bounded pool of workers that verify stock items
// against the pricing service, with live progress, cooperative
// cancellation, and partial-result semantics: a stopped run is still a
// completed run.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/desguapro/stock-cli/internal/stock"
	"github.com/desguapro/stock-cli/pkg/pricing"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Config is supplied once, before a run starts.
type Config struct {
	// Workers bounds the number of simultaneous outstanding requests.
	Workers int
	// Delay is the per-worker pause between consecutive requests.
	Delay time.Duration
	// OutlierThresholdPct is forwarded to the pricing service on every call.
	OutlierThresholdPct float64
	// IgnoreCheaperThanMarket discards results priced below market
	// instead of accumulating them.
	IgnoreCheaperThanMarket bool
}

// LogEntry is one timestamped line of the run log, one per terminal
// outcome of an item.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Counters are the per-run tallies. Processed counts every dequeued item
// that reached a terminal outcome, so progress reflects attempts, not
// just successes.
type Counters struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Outliers  int `json:"outliers"`
	Ignored   int `json:"ignored"`
	NoData    int `json:"no_data"`
	Failed    int `json:"failed"`
}

// Snapshot is a point-in-time view of a run, safe to serialize while
// workers are still going.
type Snapshot struct {
	ID        string           `json:"id"`
	Status    Status           `json:"status"`
	Cancelled bool             `json:"cancelled"`
	Counters  Counters         `json:"counters"`
	Results   []pricing.Result `json:"results,omitempty"`
	Logs      []LogEntry       `json:"logs,omitempty"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Summary describes a finished run.
type Summary struct {
	ID        string        `json:"id"`
	Cancelled bool          `json:"cancelled"`
	Counters  Counters      `json:"counters"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Run owns the shared queue, the result accumulator, and the log for one
// verification pass. All shared state is guarded by mu; the queue pop is
// a single critical section so no two workers can dequeue the same item.
type Run struct {
	ID       string
	cfg      Config
	verifier pricing.Client

	mu        sync.Mutex
	queue     []stock.Item
	results   []pricing.Result
	logs      []LogEntry
	counters  Counters
	status    Status
	cancelled bool
	started   time.Time
	elapsed   time.Duration

	cancel context.CancelFunc
}

// New prepares a run over the given items. Workers below 1 are clamped
// to 1; a negative delay is treated as zero.
func New(cfg Config, verifier pricing.Client, items []stock.Item) *Run {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}

	queue := make([]stock.Item, len(items))
	copy(queue, items)

	return &Run{
		ID:       uuid.New().String(),
		cfg:      cfg,
		verifier: verifier,
		queue:    queue,
		counters: Counters{Total: len(items)},
		status:   StatusIdle,
	}
}

// Start runs the worker pool and blocks until the queue drains or every
// worker has observed cancellation. It never returns an error caused by
// an individual item: per-item failures are logged and isolated. The
// returned summary covers full and partial completions identically.
func (r *Run) Start(ctx context.Context) Summary {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancel = cancel
	r.status = StatusProcessing
	r.started = time.Now()
	alreadyCancelled := r.cancelled
	r.mu.Unlock()

	if alreadyCancelled {
		cancel()
	}

	zap.L().Info("verification run started",
		zap.String("run_id", r.ID),
		zap.Int("items", len(r.queue)),
		zap.Int("workers", r.cfg.Workers),
		zap.Duration("delay", r.cfg.Delay),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		g.Go(func() error {
			r.worker(gctx)
			return nil
		})
	}
	_ = g.Wait()
	cancel()

	r.mu.Lock()
	r.status = StatusCompleted
	r.elapsed = time.Since(r.started)
	if r.cancelled {
		r.appendLogLocked("info", fmt.Sprintf("stopped by user after %d/%d items", r.counters.Processed, r.counters.Total))
	} else {
		r.appendLogLocked("info", fmt.Sprintf("completed %d/%d items", r.counters.Processed, r.counters.Total))
	}
	summary := Summary{ID: r.ID, Cancelled: r.cancelled, Counters: r.counters, Elapsed: r.elapsed}
	r.mu.Unlock()

	zap.L().Info("verification run finished",
		zap.String("run_id", r.ID),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Int("processed", summary.Counters.Processed),
		zap.Int("outliers", summary.Counters.Outliers),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary
}

// Stop requests cooperative cancellation of every worker. In-flight
// requests are aborted; results accumulated so far are preserved.
func (r *Run) Stop() {
	r.mu.Lock()
	r.cancelled = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (r *Run) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		item, ok := r.pop()
		if !ok {
			return
		}

		res, err := r.verifier.Verify(ctx, pricing.VerifyRequest{
			RefID:               item.RefID,
			RefOEM:              item.RefOEM,
			RefOE:               item.RefOE,
			PartType:            item.PartType,
			Price:               item.Price,
			OutlierThresholdPct: r.cfg.OutlierThresholdPct,
		})

		switch {
		case ctx.Err() != nil:
			// Cancelled before or during the request. The in-flight item
			// does not count as processed.
			return
		case err != nil:
			r.noteFailure(item, err)
		case res == nil:
			r.noteNoData(item)
		case r.cfg.IgnoreCheaperThanMarket && res.DifferencePct < 0:
			r.noteIgnored(item, res)
		default:
			r.noteResult(item, res)
		}

		if r.cfg.Delay > 0 {
			timer := time.NewTimer(r.cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// pop removes the head of the queue. A single critical section, so the
// atomic-pop invariant holds regardless of worker interleaving.
func (r *Run) pop() (stock.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return stock.Item{}, false
	}
	item := r.queue[0]
	r.queue = r.queue[1:]
	return item, true
}

func (r *Run) noteResult(item stock.Item, res *pricing.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters.Processed++
	r.results = append(r.results, *res)
	if res.IsOutlier {
		r.counters.Outliers++
		r.appendLogLocked("warn", fmt.Sprintf("%s (%s): outlier, %.2f vs market %.2f (%.1f%%)",
			item.RefOEM, item.RefID, res.PriceActual, res.PriceMarket, res.DifferencePct))
		return
	}
	r.appendLogLocked("info", fmt.Sprintf("%s (%s): ok, %.2f vs market %.2f",
		item.RefOEM, item.RefID, res.PriceActual, res.PriceMarket))
}

func (r *Run) noteIgnored(item stock.Item, res *pricing.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters.Processed++
	r.counters.Ignored++
	r.appendLogLocked("info", fmt.Sprintf("%s (%s): ignored, cheaper than market (%.1f%%)",
		item.RefOEM, item.RefID, res.DifferencePct))
}

func (r *Run) noteNoData(item stock.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters.Processed++
	r.counters.NoData++
	r.appendLogLocked("info", fmt.Sprintf("%s (%s): no market data", item.RefOEM, item.RefID))
}

func (r *Run) noteFailure(item stock.Item, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters.Processed++
	r.counters.Failed++
	r.appendLogLocked("error", fmt.Sprintf("%s (%s): request failed: %v", item.RefOEM, item.RefID, err))

	zap.L().Warn("verification request failed",
		zap.String("run_id", r.ID),
		zap.String("ref_oem", item.RefOEM),
		zap.Error(err),
	)
}

func (r *Run) appendLogLocked(level, msg string) {
	r.logs = append(r.logs, LogEntry{Time: time.Now(), Level: level, Message: msg})
}

// Results returns a copy of the accumulated results. Order is completion
// order, which is non-deterministic; RefID/RefOEM tie each result back to
// its source row.
func (r *Run) Results() []pricing.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]pricing.Result, len(r.results))
	copy(out, r.results)
	return out
}

// Snapshot returns a consistent view of the run, including live progress
// while workers are still active.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := r.elapsed
	if r.status == StatusProcessing {
		elapsed = time.Since(r.started)
	}

	snap := Snapshot{
		ID:        r.ID,
		Status:    r.status,
		Cancelled: r.cancelled,
		Counters:  r.counters,
		Elapsed:   elapsed,
		Results:   make([]pricing.Result, len(r.results)),
		Logs:      make([]LogEntry, len(r.logs)),
	}
	copy(snap.Results, r.results)
	copy(snap.Logs, r.logs)
	return snap
}
