// Package watcher runs the Reconciler on a timer: a background loop
// that periodically syncs every known mapping, the long-running
// counterpart to a one-shot `tasksync sync` invocation (spec.md §4.9
// "watch mode"). Its Start/Stop/Running shape and its rate-limit
// backoff idiom are both grounded on the teacher's internal/sync
// worker loop.
package watcher

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/reconcile"
	"github.com/jra3/tasksync/internal/remote"
)

const (
	baseBackoff         = 2 * time.Second
	rateLimitBackoff    = 30 * time.Second
	maxBackoffMultiplier = 8
)

// MappingLister supplies the set of mappings a cycle should reconcile.
type MappingLister interface {
	ListMappings() ([]model.Mapping, error)
}

// Config parameterizes a Watcher.
type Config struct {
	// Interval between cycles when not backing off.
	Interval time.Duration
	// StopOnError ends the loop instead of backing off and retrying
	// when a cycle's errorCount is non-zero.
	StopOnError bool
}

// CycleSummary reports one cycle's outcome, surfaced to the caller via
// the OnCycle hook so a CLI can print progress without the watcher
// depending on any particular output format.
type CycleSummary struct {
	Cycle         int
	Started       time.Time
	Duration      time.Duration
	SyncedCount   int
	ConflictCount int
	ErrorCount    int
	Backoff       time.Duration
}

// Watcher periodically calls Reconciler.Sync over every mapping
// Mappings lists, backing off on errors the way the teacher's worker
// backs off on Linear rate limits.
type Watcher struct {
	Reconciler *reconcile.Reconciler
	Mappings   MappingLister
	Cfg        Config
	OnCycle    func(CycleSummary)

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	cycles        int
	syncedCount   int
	conflictCount int
	errorCount    int
}

// New builds a Watcher with a sane default interval when Cfg.Interval
// is unset.
func New(r *reconcile.Reconciler, mappings MappingLister, cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Minute
	}
	return &Watcher{
		Reconciler: r,
		Mappings:   mappings,
		Cfg:        cfg,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background loop. It is a no-op if already running.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop signals the loop to finish its in-flight cycle and waits for it
// to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stopCh := w.stopCh
	w.mu.Unlock()

	close(stopCh)
	<-w.doneCh
}

// Running reports whether the loop is active.
func (w *Watcher) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Totals returns the cumulative cycle/sync/conflict/error counters.
func (w *Watcher) Totals() (cycles, synced, conflicts, errs int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cycles, w.syncedCount, w.conflictCount, w.errorCount
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	backoffMultiplier := 1
	for {
		summary := w.cycle(ctx)
		w.report(summary)

		interval := w.Cfg.Interval
		if summary.ErrorCount > 0 {
			if w.Cfg.StopOnError {
				log.Printf("[watcher] stopping after cycle %d: %d error(s)", summary.Cycle, summary.ErrorCount)
				return
			}
			interval = w.backoffFor(summary, &backoffMultiplier)
		} else {
			backoffMultiplier = 1
		}

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-time.After(interval):
		}
	}
}

// backoffFor picks the base delay (longer for rate-limit-classified
// failures, per spec.md §4.9) and grows it geometrically while errors
// persist, capped at maxBackoffMultiplier cycles of the base.
func (w *Watcher) backoffFor(summary CycleSummary, multiplier *int) time.Duration {
	base := baseBackoff
	if summary.Backoff == rateLimitBackoff {
		base = rateLimitBackoff
	}
	delay := base * time.Duration(*multiplier)
	if *multiplier < maxBackoffMultiplier {
		*multiplier *= 2
	}
	return delay
}

func (w *Watcher) cycle(ctx context.Context) CycleSummary {
	started := time.Now()
	w.mu.Lock()
	w.cycles++
	cycleNum := w.cycles
	w.mu.Unlock()

	summary := CycleSummary{Cycle: cycleNum, Started: started}

	mappings, err := w.Mappings.ListMappings()
	if err != nil {
		log.Printf("[watcher] cycle %d: list mappings: %v", cycleNum, err)
		summary.ErrorCount = 1
		summary.Duration = time.Since(started)
		if remote.IsRateLimited(err) {
			summary.Backoff = rateLimitBackoff
		}
		return summary
	}

	results := w.Reconciler.Sync(ctx, mappings, reconcile.Options{})

	var rateLimited bool
	for _, res := range results {
		switch {
		case res.Status == model.OpStatusOK && res.State == model.StateConflict:
			summary.ConflictCount++
		case res.Status == model.OpStatusOK:
			summary.SyncedCount++
		default:
			summary.ErrorCount++
			if isRateLimitDetail(res.Detail) {
				rateLimited = true
			}
		}
	}
	if rateLimited {
		summary.Backoff = rateLimitBackoff
	}

	w.mu.Lock()
	w.syncedCount += summary.SyncedCount
	w.conflictCount += summary.ConflictCount
	w.errorCount += summary.ErrorCount
	w.mu.Unlock()

	summary.Duration = time.Since(started)
	return summary
}

func (w *Watcher) report(summary CycleSummary) {
	log.Printf("[watcher] cycle %d: synced=%d conflicts=%d errors=%d duration=%s",
		summary.Cycle, summary.SyncedCount, summary.ConflictCount, summary.ErrorCount, summary.Duration.Round(time.Millisecond))
	if w.OnCycle != nil {
		w.OnCycle(summary)
	}
}

// isRateLimitDetail mirrors the teacher's isRateLimitError string match,
// since Result.Detail is already a flattened error string by the time
// the watcher sees it rather than a typed error.
func isRateLimitDetail(detail string) bool {
	lower := strings.ToLower(detail)
	for _, needle := range []string{"rate limit", "429", "ratelimited"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
