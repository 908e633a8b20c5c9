// Package validation decides, per batch of datapoints, whether they are
// publishable, suspect or rejected. Predicates are pure and score each event
// in [0, 1]: 1 is clean, 0 rejects, anything between marks the batch suspect
// but still publishable. The batch decision is the minimum over all
// applicable predicate scores.
package validation

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/model"
)

// Env carries the configured context predicates evaluate against.
type Env struct {
	Now     func() time.Time
	Horizon time.Duration
	// FossilFree whitelists grids where the fossil-fuel-expected check
	// does not apply.
	FossilFree map[model.ZoneKey]bool
	// ExchangeCaps bounds |netFlow| per exchange key, in MW.
	ExchangeCaps map[model.ExchangeKey]float64
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e Env) horizon() time.Duration {
	if e.Horizon > 0 {
		return e.Horizon
	}
	return model.DefaultHorizon
}

// Predicate is a registered validation check. An empty Kind applies to every
// data kind. Zones and NotZones scope the predicate by key: a non-empty
// Zones list is an include list, NotZones is an exclude list.
type Predicate struct {
	Name     string
	Kind     model.Kind
	Zones    []model.ZoneKey
	NotZones []model.ZoneKey
	Check    func(ev model.Event, env Env) float64
}

func (p Predicate) applies(kind model.Kind, key string) bool {
	if p.Kind != "" && p.Kind != kind {
		// The same predicate serves measured and forecast production.
		if !(p.Kind == model.KindProduction && kind == model.KindProductionPerModeForecast) {
			return false
		}
	}
	if len(p.Zones) > 0 {
		found := false
		for _, z := range p.Zones {
			if string(z) == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, z := range p.NotZones {
		if string(z) == key {
			return false
		}
	}
	return true
}

var predicates []Predicate

// Register adds a predicate to the global set. Call from init.
func Register(p Predicate) { predicates = append(predicates, p) }

// RejectedError reports a batch that failed validation.
type RejectedError struct {
	Key       string
	Predicate string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("validation rejected %s: predicate %s scored 0", e.Key, e.Predicate)
}

// Result is the outcome of validating one batch.
type Result struct {
	Score float64
	// Worst names the predicate carrying the minimum score.
	Worst string
}

// Driver evaluates the applicable predicate subset for each event batch.
type Driver struct {
	env Env
	log logger.Logger
}

// NewDriver creates a Driver with the given environment.
func NewDriver(env Env, log logger.Logger) *Driver {
	return &Driver{env: env, log: log}
}

// Validate scores the batch. A zero minimum rejects the whole batch with a
// RejectedError; a fractional minimum logs the batch as suspect and lets it
// through. Scores outside [0, 1] are clamped so a misbehaving predicate can
// only reject, never crash the pipeline.
func (d *Driver) Validate(events []model.Event) (Result, error) {
	if len(events) == 0 {
		return Result{Score: 1}, nil
	}
	scores := make([]float64, 0, len(events))
	worst := ""
	worstScore := math.Inf(1)
	for _, ev := range events {
		evScore := 1.0
		for _, p := range predicates {
			if !p.applies(ev.EventKind(), ev.Key()) {
				continue
			}
			s := clamp01(p.Check(ev, d.env))
			if s < evScore {
				evScore = s
			}
			if s < worstScore {
				worstScore = s
				worst = p.Name
			}
		}
		scores = append(scores, evScore)
	}
	min := floats.Min(scores)
	if min == 0 {
		return Result{Score: 0, Worst: worst}, &RejectedError{Key: events[0].Key(), Predicate: worst}
	}
	if min < 1 {
		d.log.Warnw("batch is suspect", map[string]any{
			"key": events[0].Key(), "score": min, "predicate": worst,
		})
	}
	return Result{Score: min, Worst: worst}, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
