package metrics

import "time"

// MultiSink fanouts tick results to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTick forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTick(res TickResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordTick(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordValidation forwards validation outcomes when supported by the sink.
func (m *MultiSink) RecordValidation(ev ValidationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ValidationRecorder); ok {
			if err := rec.RecordValidation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFreshness forwards store freshness when supported by the sink.
func (m *MultiSink) RecordFreshness(age time.Duration) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FreshnessRecorder); ok {
			if err := rec.RecordFreshness(age); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCarbon forwards carbon intensity readings when supported by the sink.
func (m *MultiSink) RecordCarbon(ev CarbonEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CarbonRecorder); ok {
			if err := rec.RecordCarbon(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
