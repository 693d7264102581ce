package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope     = "photoboard/sync"
	spanPass      = "sync.pass"
	metricAdded   = "photoboard.sync.photos.added"
	metricUpdated = "photoboard.sync.photos.updated"
	metricRemoved = "photoboard.sync.photos.removed"
	metricFailed  = "photoboard.sync.photos.failed"
	metricErrors  = "photoboard.sync.errors"
)

// ErrPassInProgress is returned by [Engine.RunOnce] when another pass holds
// the single-flight guard.
var ErrPassInProgress = errors.New("sync pass already in progress")

// Engine schedules sync passes: a periodic timer plus an on-demand trigger,
// both funneled through a single-flight guard so at most one pass runs at a
// time. Create one with [NewEngine] and start it with [Engine.Run].
type Engine struct {
	syncer   *Syncer
	interval time.Duration
	log      *slog.Logger

	trigger chan struct{}
	running atomic.Bool

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer     trace.Tracer
	cntAdded   metric.Int64Counter
	cntUpdated metric.Int64Counter
	cntRemoved metric.Int64Counter
	cntFailed  metric.Int64Counter
	cntErrors  metric.Int64Counter
}

// NewEngine creates an Engine polling at the given interval.
func NewEngine(syncer *Syncer, interval time.Duration, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		syncer:   syncer,
		interval: interval,
		log:      logger,
		trigger:  make(chan struct{}, 1),

		tracer:     tracer,
		cntAdded:   mustCounter(metricAdded, "Number of photos added during sync"),
		cntUpdated: mustCounter(metricUpdated, "Number of photos updated during sync"),
		cntRemoved: mustCounter(metricRemoved, "Number of photos removed during sync"),
		cntFailed:  mustCounter(metricFailed, "Number of photos skipped due to fetch failures"),
		cntErrors:  mustCounter(metricErrors, "Number of failed sync passes"),
	}
}

// TriggerSync requests an on-demand pass (e.g. from an admin action). The
// request is coalesced: it reports false when a pass is already running or
// already requested, and is never queued.
func (e *Engine) TriggerSync() bool {
	if e.running.Load() {
		return false
	}
	select {
	case e.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// pass runs one guarded sync pass, recording a trace span and metrics.
func (e *Engine) pass(ctx context.Context) (Stats, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Stats{}, ErrPassInProgress
	}
	defer e.running.Store(false)

	ctx, span := e.tracer.Start(ctx, spanPass)
	defer span.End()

	stats, err := e.syncer.Run(ctx)

	if stats.Added > 0 {
		e.cntAdded.Add(ctx, int64(stats.Added))
	}
	if stats.Updated > 0 {
		e.cntUpdated.Add(ctx, int64(stats.Updated))
	}
	if stats.Removed > 0 {
		e.cntRemoved.Add(ctx, int64(stats.Removed))
	}
	if stats.Failed > 0 {
		e.cntFailed.Add(ctx, int64(stats.Failed))
	}
	if err != nil {
		e.cntErrors.Add(ctx, 1)
		span.RecordError(err)
	}

	span.SetAttributes(
		attribute.Int("sync.added", stats.Added),
		attribute.Int("sync.updated", stats.Updated),
		attribute.Int("sync.removed", stats.Removed),
		attribute.Int("sync.failed", stats.Failed),
	)
	return stats, err
}

// RunOnce performs a single sync pass and returns.
func (e *Engine) RunOnce(ctx context.Context) (Stats, error) {
	return e.pass(ctx)
}

// Run starts the polling loop. It blocks until ctx is cancelled. Passes are
// never cancelled mid-flight by the trigger or the ticker; only ctx ends one
// early.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// Run an immediate first pass so the board fills right after start.
	if _, err := e.pass(ctx); err != nil {
		e.log.Error("initial sync pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.pass(ctx); err != nil && !errors.Is(err, ErrPassInProgress) {
				e.log.Error("sync pass failed", "error", err)
			}
		case <-e.trigger:
			e.log.Info("on-demand sync requested")
			if _, err := e.pass(ctx); err != nil && !errors.Is(err, ErrPassInProgress) {
				e.log.Error("sync pass failed", "error", err)
			}
		}
	}
}
