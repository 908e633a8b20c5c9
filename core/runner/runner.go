// Package runner drives the refresh loop: it schedules due bindings onto a
// worker pool, fetches through the registry, validates, and publishes
// accepted batches to the store and the event bus.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/gridfeed/core/gridtime"
	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/metrics"
	"github.com/kilianp07/gridfeed/core/metrics/carbon"
	"github.com/kilianp07/gridfeed/core/model"
	"github.com/kilianp07/gridfeed/core/parser"
	"github.com/kilianp07/gridfeed/core/registry"
	"github.com/kilianp07/gridfeed/core/store"
	"github.com/kilianp07/gridfeed/core/validation"
	"github.com/kilianp07/gridfeed/internal/eventbus"
)

const (
	// DefaultWorkers bounds concurrent fetches across all bindings.
	DefaultWorkers = 16
	// DefaultPeriod is the refresh interval for bindings without an override.
	DefaultPeriod = 5 * time.Minute
	// DefaultBudget is the wall-time allowance for one tick; a tick past
	// its budget is abandoned and counted as failed.
	DefaultBudget = 90 * time.Second
)

// Config holds the runner's scheduling parameters.
type Config struct {
	Workers int           `json:"workers"`
	Period  time.Duration `json:"-"`
	Budget  time.Duration `json:"-"`
}

// SetDefaults fills zero values with the package defaults.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
}

// Job pairs a binding with its refresh period.
type Job struct {
	Binding registry.Binding
	Period  time.Duration
}

// Publication is one accepted batch as announced on the event bus.
type Publication struct {
	TickID string
	Key    string
	Kind   model.Kind
	Events []model.Event
	Score  float64
	Time   time.Time
}

// Runner owns the scheduler goroutine and the worker pool.
type Runner struct {
	cfg     Config
	reg     *registry.Registry
	store   *store.LatestStore
	driver  *validation.Driver
	sink    metrics.Sink
	bus     *eventbus.Bus[Publication]
	session parser.Session
	log     logger.Logger
	nowFn   func() time.Time

	scan time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

type jobKey struct {
	key  string
	kind model.Kind
}

func (j jobKey) String() string { return j.key + "/" + string(j.kind) }

// Option mutates a Runner during construction.
type Option func(*Runner)

// WithClock overrides the runner's clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.nowFn = now }
}

// WithScanInterval overrides how often the scheduler checks for due jobs.
func WithScanInterval(d time.Duration) Option {
	return func(r *Runner) { r.scan = d }
}

// New assembles a Runner. The sink and bus may be nil; the store, registry,
// driver and session must not.
func New(cfg Config, reg *registry.Registry, st *store.LatestStore, driver *validation.Driver,
	sink metrics.Sink, bus *eventbus.Bus[Publication], session parser.Session, log logger.Logger, opts ...Option) *Runner {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	r := &Runner{
		cfg:      cfg,
		reg:      reg,
		store:    st,
		driver:   driver,
		sink:     sink,
		bus:      bus,
		session:  session,
		log:      log,
		nowFn:    gridtime.Now,
		scan:     time.Second,
		inflight: make(map[string]bool),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run schedules the given jobs until the context is canceled. It blocks.
func (r *Runner) Run(ctx context.Context, jobs []Job) {
	jobCh := make(chan Job, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				r.RunOnce(ctx, job.Binding)
			}
		}()
	}

	next := make(map[jobKey]time.Time, len(jobs))
	ticker := time.NewTicker(r.scan)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			wg.Wait()
			return
		case <-ticker.C:
		}
		now := r.nowFn()
		for _, job := range jobs {
			k := jobKey{key: job.Binding.Key(), kind: job.Binding.Kind}
			if now.Before(next[k]) {
				continue
			}
			period := job.Period
			if period <= 0 {
				period = r.cfg.Period
			}
			next[k] = now.Add(period)
			if !r.markInflight(k) {
				r.recordTick(metrics.TickResult{
					TickID: uuid.NewString(),
					Key:    k.key,
					Kind:   k.kind,
					State:  metrics.TickDropped,
					Time:   now,
				})
				r.log.Debugf("tick for %s skipped, previous still in flight", k)
				continue
			}
			jobCh <- job
		}
	}
}

func (r *Runner) markInflight(k jobKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[k.String()] {
		return false
	}
	r.inflight[k.String()] = true
	return true
}

func (r *Runner) clearInflight(k jobKey) {
	r.mu.Lock()
	delete(r.inflight, k.String())
	r.mu.Unlock()
}

type fetchResult struct {
	events []model.Event
	err    error
}

// RunOnce executes one complete tick for the binding: fetch within the
// budget, validate, publish. Failures never propagate past the tick.
func (r *Runner) RunOnce(ctx context.Context, b registry.Binding) {
	k := jobKey{key: b.Key(), kind: b.Kind}
	defer r.clearInflight(k)
	tickID := uuid.NewString()
	start := r.nowFn()

	fctx, cancel := context.WithTimeout(ctx, r.cfg.Budget)
	done := make(chan fetchResult, 1)
	go func() {
		events, err := r.reg.Fetch(fctx, b, r.session, nil, r.log)
		done <- fetchResult{events: events, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
		cancel()
	case <-fctx.Done():
		cancel()
		r.log.Errorf("tick %s for %s abandoned after %s", tickID, k, r.cfg.Budget)
		r.recordTick(metrics.TickResult{
			TickID: tickID, Key: k.key, Kind: k.kind,
			State: metrics.TickFailed, Error: fctx.Err().Error(),
			Duration: r.nowFn().Sub(start), Time: r.nowFn(),
		})
		return
	}

	if res.err != nil {
		r.log.Errorf("tick %s for %s failed: %v", tickID, k, res.err)
		r.recordTick(metrics.TickResult{
			TickID: tickID, Key: k.key, Kind: k.kind,
			State: metrics.TickFailed, Error: res.err.Error(),
			Duration: r.nowFn().Sub(start), Time: r.nowFn(),
		})
		return
	}
	if len(res.events) == 0 {
		r.log.Debugf("tick %s for %s returned no data", tickID, k)
		r.recordTick(metrics.TickResult{
			TickID: tickID, Key: k.key, Kind: k.kind,
			State: metrics.TickEmpty, Duration: r.nowFn().Sub(start), Time: r.nowFn(),
		})
		return
	}

	score, err := r.validate(tickID, k, res.events)
	if err != nil {
		r.recordTick(metrics.TickResult{
			TickID: tickID, Key: k.key, Kind: k.kind,
			State: metrics.TickRejected, Events: len(res.events), Error: err.Error(),
			Duration: r.nowFn().Sub(start), Time: r.nowFn(),
		})
		return
	}

	r.publish(tickID, k, res.events, score, start)
}

func (r *Runner) validate(tickID string, k jobKey, events []model.Event) (float64, error) {
	result, err := r.driver.Validate(events)
	if rec, ok := r.sink.(metrics.ValidationRecorder); ok {
		ev := metrics.ValidationEvent{
			Key: k.key, Kind: k.kind, Score: result.Score,
			Predicate: result.Worst, Time: r.nowFn(),
		}
		if serr := rec.RecordValidation(ev); serr != nil {
			r.log.Errorf("validation metrics error: %v", serr)
		}
	}
	if err != nil {
		var rej *validation.RejectedError
		if errors.As(err, &rej) {
			r.log.Warnw("batch rejected", map[string]any{
				"tick": tickID, "key": k.key, "kind": string(k.kind), "predicate": rej.Predicate,
			})
		}
		return 0, err
	}
	return result.Score, nil
}

func (r *Runner) publish(tickID string, k jobKey, events []model.Event, score float64, start time.Time) {
	stored := 0
	for _, ev := range events {
		if r.store.Upsert(ev) {
			stored++
		}
		if prod, ok := ev.(model.ProductionEvent); ok {
			r.recordCarbon(prod)
		}
	}
	if age, ok := r.store.FreshestAge(r.nowFn()); ok {
		if rec, okSink := r.sink.(metrics.FreshnessRecorder); okSink {
			if err := rec.RecordFreshness(age); err != nil {
				r.log.Errorf("freshness metrics error: %v", err)
			}
		}
	}
	if r.bus != nil {
		r.bus.Publish(Publication{
			TickID: tickID, Key: k.key, Kind: k.kind,
			Events: events, Score: score, Time: r.nowFn(),
		})
	}
	r.recordTick(metrics.TickResult{
		TickID: tickID, Key: k.key, Kind: k.kind,
		State: metrics.TickPublished, Events: len(events), Score: score,
		Duration: r.nowFn().Sub(start), Time: r.nowFn(),
	})
	r.log.Infof("tick %s published %d/%d events for %s", tickID, stored, len(events), k)
}

func (r *Runner) recordCarbon(prod model.ProductionEvent) {
	rec, ok := r.sink.(metrics.CarbonRecorder)
	if !ok {
		return
	}
	intensity, usable := carbon.Intensity(prod.Production, nil)
	if !usable {
		return
	}
	ev := metrics.CarbonEvent{Zone: prod.Zone, Intensity: intensity, Time: r.nowFn()}
	if err := rec.RecordCarbon(ev); err != nil {
		r.log.Errorf("carbon metrics error: %v", err)
	}
}

func (r *Runner) recordTick(res metrics.TickResult) {
	if err := r.sink.RecordTick(res); err != nil {
		r.log.Errorf("tick metrics error: %v", err)
	}
}
