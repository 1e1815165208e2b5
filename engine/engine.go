// Package engine implements the scheduler: one anchored-tick loop per
// enabled endpoint, bounded by a shared concurrency semaphore, fanning
// each result out to the store, metrics registry, and alert state
// machine/notification dispatcher.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kinjelom/server-monitor/alert"
	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/metrics"
	"github.com/kinjelom/server-monitor/notify"
	"github.com/kinjelom/server-monitor/probe"
	"github.com/kinjelom/server-monitor/store"
)

// Subscriber receives every non-cancelled probe result, in addition to
// the engine's own store/metrics/alert fan-out. Subscribers must be
// fast or internally buffered; a panic in one is recovered and does
// not affect the others.
type Subscriber interface {
	OnResult(probe.Result)
}

// Engine owns the per-endpoint schedulers, the shared concurrency
// semaphore, and the downstream fan-out wiring.
type Engine struct {
	cfg      *config.Config
	store    store.Store
	metrics  *metrics.Registry
	alerts   *alert.Registry
	notifier *notify.Dispatcher

	sem chan struct{}

	muSubs sync.RWMutex
	subs   []Subscriber
}

// New constructs an Engine wired to its downstream collaborators.
func New(cfg *config.Config, st store.Store, reg *metrics.Registry, alerts *alert.Registry, notifier *notify.Dispatcher) *Engine {
	capacity := cfg.Global.MaxConcurrentChecks
	if capacity <= 0 {
		capacity = 10
	}
	return &Engine{
		cfg:      cfg,
		store:    st,
		metrics:  reg,
		alerts:   alerts,
		notifier: notifier,
		sem:      make(chan struct{}, capacity),
	}
}

// Subscribe registers a push-style result observer.
func (e *Engine) Subscribe(s Subscriber) {
	e.muSubs.Lock()
	defer e.muSubs.Unlock()
	e.subs = append(e.subs, s)
}

func (e *Engine) notifySubscribers(r probe.Result) {
	e.muSubs.RLock()
	defer e.muSubs.RUnlock()
	for _, s := range e.subs {
		func(sub Subscriber, res probe.Result) {
			defer func() { _ = recover() }()
			sub.OnResult(res)
		}(s, r)
	}
}

// Run starts one scheduler goroutine per enabled endpoint and blocks
// until ctx is cancelled, then waits up to the configured drain
// deadline for in-flight schedulers to return.
func (e *Engine) Run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for name, ep := range e.cfg.Endpoints {
		if !ep.IsEnabled() {
			continue
		}
		name, ep := name, ep
		g.Go(func() error {
			e.runSchedulerLoop(gctx, name, ep)
			return nil
		})
	}

	<-ctx.Done()

	drainTimeout := e.cfg.Global.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		log.Printf("engine: drain deadline (%s) exceeded, abandoning in-flight schedulers", drainTimeout)
	}
}

// runSchedulerLoop anchors ticks to this endpoint's own start time so
// schedule drift never accumulates: next_tick = start + ceil((now -
// start) / interval) * interval. A probe that overruns one interval
// gets exactly one immediate catch-up tick, never a burst.
func (e *Engine) runSchedulerLoop(ctx context.Context, name string, ep config.EndpointConfig) {
	interval := ep.Interval()
	start := time.Now()

	emailThreshold := e.cfg.EffectiveEmail(ep).FailureThreshold
	emailSuppress := e.cfg.EffectiveEmail(ep).SuppressRepeated
	webhookThreshold := e.cfg.EffectiveWebhook(ep).FailureThreshold
	webhookSuppress := e.cfg.EffectiveWebhook(ep).SuppressRepeated
	emailMachine, webhookMachine := e.alerts.For(name, emailThreshold, emailSuppress, webhookThreshold, webhookSuppress)

	// last is the scheduled time of the previous tick; caughtUp records
	// whether that tick was itself a catch-up, so catch-ups never chain.
	var last time.Time
	caughtUp := false
	for {
		now := time.Now()
		next := nextTick(start, now, interval)
		catchUp := !last.IsZero() && !caughtUp && now.Sub(last) > interval
		if catchUp {
			next = now
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			last, caughtUp = next, catchUp
			e.runOneTick(ctx, name, ep, emailMachine, webhookMachine)
		}
	}
}

// nextTick computes the next anchored tick, start + ceil((now - start) /
// interval) * interval, which is now itself when now falls exactly on a
// boundary. When now == start it returns start + interval, so an
// endpoint's first probe runs one interval after its loop starts.
func nextTick(start, now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	elapsed := now.Sub(start)
	ticks := elapsed / interval
	if elapsed%interval != 0 || elapsed == 0 {
		ticks++
	}
	return start.Add(ticks * interval)
}

func (e *Engine) runOneTick(ctx context.Context, name string, ep config.EndpointConfig, emailMachine, webhookMachine *alert.Machine) {
	select {
	case e.sem <- struct{}{}:
	default:
		e.metrics.RecordBackpressure()
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
	defer func() { <-e.sem }()

	result := probe.Dispatch(ctx, name, ep)
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	e.notifySubscribers(result)
	e.metrics.Observe(result)

	if err := e.store.Record(ctx, result); err != nil {
		log.Printf("engine: store write failed for %q: %v", name, err)
		e.metrics.RecordStoreWriteError()
	} else if recent, err := e.store.Recent(ctx, name, e.metrics.Window()); err == nil {
		e.metrics.RefreshWindow(name, recent)
	}

	e.dispatchAlerts(ctx, name, ep, result, emailMachine, webhookMachine)
}

func (e *Engine) dispatchAlerts(ctx context.Context, name string, ep config.EndpointConfig, result probe.Result, emailMachine, webhookMachine *alert.Machine) {
	emailEff := e.cfg.EffectiveEmail(ep)
	webhookEff := e.cfg.EffectiveWebhook(ep)

	if event := emailMachine.Observe(result.Success); event != alert.EventNone && wantsEvent(emailEff.Events, event) {
		e.notifier.SendEmail(ctx, emailEff, name, statusFor(event), result)
	}
	if event := webhookMachine.Observe(result.Success); event != alert.EventNone && wantsEvent(webhookEff.Events, event) {
		e.notifier.SendWebhook(ctx, webhookEff, name, statusFor(event), result)
	}
}

func wantsEvent(events config.ChannelEvents, event alert.Event) bool {
	switch event {
	case alert.EventFailure:
		return events.Failure
	case alert.EventRecovery:
		return events.Recovery
	default:
		return false
	}
}

func statusFor(event alert.Event) notify.Status {
	if event == alert.EventRecovery {
		return notify.StatusUp
	}
	return notify.StatusDown
}
