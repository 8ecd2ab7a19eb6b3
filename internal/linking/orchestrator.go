package linking

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"go.pilab.hu/adlink/domain"
	linkerr "go.pilab.hu/adlink/errors"
	"go.pilab.hu/adlink/internal/metrics"
	"go.pilab.hu/adlink/log"
)

// Orchestrator drives the top-level discovery fan-out with retry-on-empty
// and a hard wall-clock ceiling. All durations are injectable so tests run
// with millisecond schedules.
type Orchestrator struct {
	discovery *Discovery
	cache     domain.ResourceCache
	logger    log.Logger

	// RetryDelay is the countdown between resolved-but-empty attempts.
	RetryDelay time.Duration
	// HardTimeout caps one whole discovery run, racing the retry loop. It
	// guards against a hung remote call the retry loop cannot see: the loop
	// only reacts to resolved-but-empty results, never to non-resolution.
	HardTimeout time.Duration
	// MaxRetries bounds the delayed re-attempts after the first.
	MaxRetries int
}

// NewOrchestrator creates an Orchestrator with the production schedule:
// 5 second retry countdown, 15 second hard timeout, 3 retries.
func NewOrchestrator(discovery *Discovery, cache domain.ResourceCache, logger log.Logger) *Orchestrator {
	return &Orchestrator{
		discovery:   discovery,
		cache:       cache,
		logger:      logger,
		RetryDelay:  5 * time.Second,
		HardTimeout: 15 * time.Second,
		MaxRetries:  3,
	}
}

// Run executes discovery for the wizard's credential, mutating the wizard
// through its transition setters only. It blocks until the run resolves,
// times out, or ctx is cancelled; callers start it on its own goroutine.
func (o *Orchestrator) Run(ctx context.Context, w *Wizard) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cached snapshot short-circuits the whole run.
	if o.cache != nil {
		if set, ok := o.cache.Get(ctx, w.cred.UserID); ok {
			w.beginAttempt(1)
			w.applyResources(*set)
			return
		}
	}

	hardTimer := time.NewTimer(o.HardTimeout)
	defer hardTimer.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.runAttempts(ctx, w)
	}()

	select {
	case <-done:
	case <-hardTimer.C:
		cancel()
		o.logger.Warn(ctx, "discovery hard timeout fired", map[string]interface{}{
			"user_id": w.cred.UserID, "timeout": o.HardTimeout.String(),
		})
		metrics.IncDiscoveryTimeout()
		w.failLoading(linkerr.ErrDiscoveryTimeout)
	case <-ctx.Done():
		// Teardown: the wizard is closed, nothing to report.
	}
}

// runAttempts performs up to 1+MaxRetries fan-out rounds. Attempts never
// overlap: round N+1 starts only after round N resolves and the countdown
// elapses.
func (o *Orchestrator) runAttempts(ctx context.Context, w *Wizard) {
	for attempt := 0; ; attempt++ {
		w.beginAttempt(attempt + 1)
		metrics.IncDiscoveryAttempts()

		set := o.fanOut(ctx, w.cred)
		if ctx.Err() != nil {
			return
		}

		if set.AnyFound() {
			if o.cache != nil {
				if err := o.cache.Set(ctx, w.cred.UserID, &set); err != nil {
					o.logger.Warn(ctx, "resource cache write failed", map[string]interface{}{"error": err.Error()})
				}
			}
			w.applyResources(set)
			o.logger.Info(ctx, "discovery resolved", map[string]interface{}{
				"user_id": w.cred.UserID, "attempts": attempt + 1,
			})
			return
		}

		if attempt >= o.MaxRetries {
			// Leave the collections empty; the UI shows "no items" plus a
			// manual retry rather than an error page.
			w.applyResources(set)
			metrics.IncDiscoveryEmpty()
			w.failLoading(linkerr.ErrDiscoveryEmpty)
			o.logger.Info(ctx, "discovery exhausted retries with no assets", map[string]interface{}{
				"user_id": w.cred.UserID, "attempts": attempt + 1,
			})
			return
		}

		if !o.countdown(ctx, w) {
			return
		}
	}
}

// fanOut runs the four top-level fetches concurrently and fans in. The
// fetches absorb their own failures, so the group never returns an error;
// anyFound is evaluated only after all four complete.
func (o *Orchestrator) fanOut(ctx context.Context, cred *domain.Credential) domain.ResourceSet {
	var set domain.ResourceSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set.Pages, _ = o.discovery.Pages(gctx, cred)
		return nil
	})
	g.Go(func() error {
		set.AdAccounts, _ = o.discovery.AdAccounts(gctx, cred)
		return nil
	})
	g.Go(func() error {
		set.Pixels, _ = o.discovery.Pixels(gctx, cred)
		return nil
	})
	g.Go(func() error {
		set.Catalogs, _ = o.discovery.Catalogs(gctx, cred)
		return nil
	})
	_ = g.Wait()
	return set
}

// countdown surfaces the delay before the next attempt one tick at a time.
// Returns false if the run was cancelled mid-wait.
func (o *Orchestrator) countdown(ctx context.Context, w *Wizard) bool {
	ticks := int(o.RetryDelay / time.Second)
	if ticks < 1 {
		ticks = 1
	}
	tick := o.RetryDelay / time.Duration(ticks)
	timer := time.NewTimer(tick)
	defer timer.Stop()

	for remaining := ticks; remaining >= 1; remaining-- {
		w.setCountdown(remaining)
		select {
		case <-timer.C:
			timer.Reset(tick)
		case <-ctx.Done():
			return false
		}
	}
	w.setCountdown(0)
	return true
}
