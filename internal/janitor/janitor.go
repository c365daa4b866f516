// Package janitor implements background cleanup of expired links and orphan
// blobs. It operates independently from the main app Service to keep periodic
// deletion and reconciliation isolated from request path logic.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/metrics"
)

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration    // how often a cycle begins
	Logger   *slog.Logger     // optional logger (defaults to slog.Default())
	Metrics  *metrics.Metrics // optional instrumentation
}

// Janitor encapsulates the background cleanup loop.
type Janitor struct {
	meta  app.MetadataStore
	blobs app.BlobStore
	clock app.Clock
	cfg   Config

	// lastSeen tracks blob keys observed without a backing record. A blob is
	// written before its metadata record exists, so a key must stay orphaned
	// across two consecutive cycles before it is removed.
	lastSeen map[string]bool

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor.
func New(meta app.MetadataStore, blobs app.BlobStore, clock app.Clock, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		meta:     meta,
		blobs:    blobs,
		clock:    clock,
		cfg:      cfg,
		lastSeen: make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the janitor loop in a new goroutine.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return // already started
	}
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (j *Janitor) Stop() {
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

func (j *Janitor) loop(ctx context.Context) {
	log := j.cfg.Logger.With("domain", "janitor")
	defer func() {
		j.ticker.Stop()
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle performs one full expiry sweep plus orphan reconciliation.
func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	log := j.cfg.Logger.With("domain", "janitor", "action", "cycle")

	swept := j.sweepExpired(ctx, log)
	orphans := j.reconcile(ctx, log)

	log.Info("cycle complete", "swept", swept, "orphans_removed", orphans, "ms", time.Since(start).Milliseconds())
}

// sweepExpired removes expired records and their blobs, returning the number
// of records removed.
func (j *Janitor) sweepExpired(ctx context.Context, log *slog.Logger) int {
	removed, err := j.meta.DeleteExpired(ctx, j.clock.Now())
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("expire", "error", err)
	}
	for _, link := range removed {
		if err := j.blobs.Delete(ctx, link.StorageKey); err != nil {
			log.Error("expire blob delete", "key", link.StorageKey, "error", err)
			if j.cfg.Metrics != nil {
				j.cfg.Metrics.CleanupFailures.Inc()
			}
		}
	}
	if j.cfg.Metrics != nil {
		j.cfg.Metrics.JanitorSwept.Add(float64(len(removed)))
	}
	return len(removed)
}

// reconcile diffs stored blobs against live records and removes blobs no
// record references. A blob must be seen orphaned in two consecutive cycles
// before deletion, on top of the grace the caller's interval provides.
func (j *Janitor) reconcile(ctx context.Context, log *slog.Logger) int {
	blobKeys, err := j.blobs.List(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("reconcile list blobs", "error", err)
		}
		return 0
	}
	liveKeys, err := j.meta.ListStorageKeys(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("reconcile list records", "error", err)
		}
		return 0
	}
	live := make(map[string]bool, len(liveKeys))
	for _, k := range liveKeys {
		live[k] = true
	}

	removed := 0
	seen := make(map[string]bool)
	for _, key := range blobKeys {
		if live[key] {
			continue
		}
		if !j.lastSeen[key] {
			seen[key] = true
			continue
		}
		if err := j.blobs.Delete(ctx, key); err != nil {
			log.Error("reconcile blob delete", "key", key, "error", err)
			if j.cfg.Metrics != nil {
				j.cfg.Metrics.CleanupFailures.Inc()
			}
			continue
		}
		removed++
	}
	j.lastSeen = seen
	if j.cfg.Metrics != nil {
		j.cfg.Metrics.OrphansRemoved.Add(float64(removed))
	}
	return removed
}
