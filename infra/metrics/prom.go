package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/gridfeed/core/metrics"
)

// PromSink records tick outcomes in Prometheus metrics.
type PromSink struct {
	ticks     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	score     *prometheus.GaugeVec
	carbon    *prometheus.GaugeVec
	freshness prometheus.Gauge
}

// NewPromSink registers feed metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ticks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_ticks_total",
		Help: "Total number of refresh ticks by terminal state",
	}, []string{"key", "kind", "state"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_tick_duration_seconds",
		Help:    "Wall time of one fetch-validate-publish cycle",
		Buckets: prometheus.DefBuckets,
	}, []string{"key", "kind"})
	score := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_validation_score",
		Help: "Validation score of the most recent batch",
	}, []string{"key", "kind"})
	carbon := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_carbon_intensity_gco2eq_kwh",
		Help: "Carbon intensity derived from the latest production mix",
	}, []string{"zone"})
	freshness := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_store_freshness_seconds",
		Help: "Age of the freshest stored datapoint",
	})

	if err := reg.Register(ticks); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			ticks = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(score); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			score = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(carbon); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			carbon = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(freshness); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			freshness = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{ticks: ticks, duration: duration, score: score, carbon: carbon, freshness: freshness}, nil
}

// RecordTick increments the state counter and observes the tick duration.
func (s *PromSink) RecordTick(res coremetrics.TickResult) error {
	s.ticks.WithLabelValues(res.Key, string(res.Kind), string(res.State)).Inc()
	if res.State != coremetrics.TickDropped {
		s.duration.WithLabelValues(res.Key, string(res.Kind)).Observe(res.Duration.Seconds())
	}
	return nil
}

// RecordValidation sets the score gauge for the batch's key.
func (s *PromSink) RecordValidation(ev coremetrics.ValidationEvent) error {
	s.score.WithLabelValues(ev.Key, string(ev.Kind)).Set(ev.Score)
	return nil
}

// RecordFreshness sets the freshness gauge.
func (s *PromSink) RecordFreshness(age time.Duration) error {
	s.freshness.Set(age.Seconds())
	return nil
}

// RecordCarbon sets the carbon intensity gauge for the zone.
func (s *PromSink) RecordCarbon(ev coremetrics.CarbonEvent) error {
	s.carbon.WithLabelValues(string(ev.Zone)).Set(ev.Intensity)
	return nil
}
