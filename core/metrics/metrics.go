package metrics

import (
	"time"

	"github.com/kilianp07/gridfeed/core/model"
)

// TickState is the terminal state of a refresh tick.
type TickState string

const (
	TickPublished TickState = "published"
	TickEmpty     TickState = "empty"
	TickRejected  TickState = "rejected"
	TickFailed    TickState = "failed"
	TickDropped   TickState = "dropped"
)

// TickResult represents one completed refresh tick to be recorded.
type TickResult struct {
	TickID   string
	Key      string
	Kind     model.Kind
	State    TickState
	Events   int
	Score    float64
	Duration time.Duration
	Error    string
	Time     time.Time
}

// Sink records tick results for observability purposes.
type Sink interface {
	RecordTick(res TickResult) error
}

// ValidationEvent captures the outcome of validating one fetched batch.
type ValidationEvent struct {
	Key       string
	Kind      model.Kind
	Score     float64
	Predicate string
	Time      time.Time
}

// ValidationRecorder records validation outcomes.
type ValidationRecorder interface {
	RecordValidation(ev ValidationEvent) error
}

// FreshnessRecorder records the age of the freshest stored datapoint.
type FreshnessRecorder interface {
	RecordFreshness(age time.Duration) error
}

// CarbonEvent carries the computed carbon intensity of a production mix.
type CarbonEvent struct {
	Zone      model.ZoneKey
	Intensity float64
	Time      time.Time
}

// CarbonRecorder records carbon intensity readings.
type CarbonRecorder interface {
	RecordCarbon(ev CarbonEvent) error
}

// NopSink implements Sink and every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTick(TickResult) error            { return nil }
func (NopSink) RecordValidation(ValidationEvent) error { return nil }
func (NopSink) RecordFreshness(time.Duration) error    { return nil }
func (NopSink) RecordCarbon(CarbonEvent) error         { return nil }
