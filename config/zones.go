package config

import (
	"time"

	"github.com/kilianp07/gridfeed/core/gridtime"
	"github.com/kilianp07/gridfeed/core/model"
	"github.com/kilianp07/gridfeed/core/registry"
	"github.com/kilianp07/gridfeed/core/runner"
	"github.com/kilianp07/gridfeed/core/validation"
)

// CapacityPoint dates an installed-capacity figure.
type CapacityPoint struct {
	Datetime time.Time `json:"datetime"`
	Value    float64   `json:"value"`
}

// CapacityValue is one fuel mode's installed capacity: either a flat MW
// figure or a dated series for zones whose fleet changed over time. The
// decode hook in Load accepts both descriptor shapes.
type CapacityValue struct {
	MW     float64
	Series []CapacityPoint
}

// At returns the capacity effective at t. For a dated series that is the
// latest point not after t; false when t precedes the whole series.
func (c CapacityValue) At(t time.Time) (float64, bool) {
	if len(c.Series) == 0 {
		return c.MW, true
	}
	v, ok := 0.0, false
	for _, p := range c.Series {
		if !p.Datetime.After(t) {
			v, ok = p.Value, true
		}
	}
	return v, ok
}

// ZoneConfig describes one grid zone and the parsers feeding it.
type ZoneConfig struct {
	Timezone string `json:"timezone"`
	// Parsers maps a data kind to a registered parser name.
	Parsers map[string]string `json:"parsers"`
	// CapacityMW is the installed capacity per fuel mode, informational.
	CapacityMW   map[string]CapacityValue `json:"capacity_mw"`
	BoundingBox  [][]float64              `json:"bounding_box"`
	SubZoneNames []string                 `json:"sub_zone_names"`
	// FossilFree whitelists the zone for the fossil-fuel-expected check.
	FossilFree    bool `json:"fossil_free"`
	PeriodSeconds int  `json:"period_seconds"`
}

// Validate checks the zone key, timezone and parser kinds.
func (z ZoneConfig) Validate(key string) error {
	if err := model.ZoneKey(key).Validate(); err != nil {
		return &ConfigurationError{Field: "zones." + key, Msg: err.Error()}
	}
	if z.Timezone != "" {
		if _, err := time.LoadLocation(z.Timezone); err != nil {
			return &ConfigurationError{Field: "zones." + key + ".timezone", Msg: err.Error()}
		}
	}
	for kindName, name := range z.Parsers {
		kind, err := model.ParseKind(kindName)
		if err != nil {
			return &ConfigurationError{Field: "zones." + key + ".parsers", Msg: err.Error()}
		}
		if kind.IsExchange() {
			return &ConfigurationError{Field: "zones." + key + ".parsers",
				Msg: "exchange kinds belong under exchanges, not zones"}
		}
		if name == "" {
			return &ConfigurationError{Field: "zones." + key + ".parsers." + kindName,
				Msg: "parser name is empty"}
		}
	}
	for mode, cap := range z.CapacityMW {
		if cap.MW < 0 {
			return &ConfigurationError{Field: "zones." + key + ".capacity_mw." + mode,
				Msg: "capacity is negative"}
		}
		for _, p := range cap.Series {
			if p.Datetime.IsZero() {
				return &ConfigurationError{Field: "zones." + key + ".capacity_mw." + mode,
					Msg: "series point without datetime"}
			}
			if p.Value < 0 {
				return &ConfigurationError{Field: "zones." + key + ".capacity_mw." + mode,
					Msg: "capacity is negative"}
			}
		}
	}
	return nil
}

// ExchangeConfig describes one interconnection and the parsers feeding it.
type ExchangeConfig struct {
	Parsers map[string]string `json:"parsers"`
	// CapacityMW bounds the net flow as [min, max] in MW.
	CapacityMW    []float64 `json:"capacity_mw"`
	PeriodSeconds int       `json:"period_seconds"`
}

// Validate checks the canonical key form and parser kinds.
func (e ExchangeConfig) Validate(key string) error {
	if err := model.ExchangeKey(key).Validate(); err != nil {
		return &ConfigurationError{Field: "exchanges." + key, Msg: err.Error()}
	}
	for kindName, name := range e.Parsers {
		kind, err := model.ParseKind(kindName)
		if err != nil {
			return &ConfigurationError{Field: "exchanges." + key + ".parsers", Msg: err.Error()}
		}
		if !kind.IsExchange() {
			return &ConfigurationError{Field: "exchanges." + key + ".parsers",
				Msg: "zone kinds belong under zones, not exchanges"}
		}
		if name == "" {
			return &ConfigurationError{Field: "exchanges." + key + ".parsers." + kindName,
				Msg: "parser name is empty"}
		}
	}
	if len(e.CapacityMW) != 0 && len(e.CapacityMW) != 2 {
		return &ConfigurationError{Field: "exchanges." + key + ".capacity_mw",
			Msg: "expected [min, max]"}
	}
	return nil
}

// Bindings flattens the zone and exchange parser maps into registry bindings.
func (c *Config) Bindings() []registry.Binding {
	var out []registry.Binding
	for key, zone := range c.Zones {
		for kindName, name := range zone.Parsers {
			kind, _ := model.ParseKind(kindName)
			out = append(out, registry.Binding{Zone: model.ZoneKey(key), Kind: kind, Name: name})
		}
	}
	for key, ex := range c.Exchanges {
		for kindName, name := range ex.Parsers {
			kind, _ := model.ParseKind(kindName)
			out = append(out, registry.Binding{Exchange: model.ExchangeKey(key), Kind: kind, Name: name})
		}
	}
	return out
}

// Jobs pairs enabled bindings with their per-key refresh periods.
func (c *Config) Jobs(enabled []registry.Binding) []runner.Job {
	periods := make(map[string]time.Duration)
	for key, zone := range c.Zones {
		if zone.PeriodSeconds > 0 {
			periods[key] = time.Duration(zone.PeriodSeconds) * time.Second
		}
	}
	for key, ex := range c.Exchanges {
		if ex.PeriodSeconds > 0 {
			periods[key] = time.Duration(ex.PeriodSeconds) * time.Second
		}
	}
	jobs := make([]runner.Job, 0, len(enabled))
	for _, b := range enabled {
		jobs = append(jobs, runner.Job{Binding: b, Period: periods[b.Key()]})
	}
	return jobs
}

// ValidationEnv assembles the per-deployment validation environment.
func (c *Config) ValidationEnv() validation.Env {
	env := validation.Env{
		Now:          gridtime.Now,
		FossilFree:   make(map[model.ZoneKey]bool),
		ExchangeCaps: make(map[model.ExchangeKey]float64),
	}
	for key, zone := range c.Zones {
		if zone.FossilFree {
			env.FossilFree[model.ZoneKey(key)] = true
		}
	}
	for key, ex := range c.Exchanges {
		if len(ex.CapacityMW) == 2 {
			limit := ex.CapacityMW[1]
			if -ex.CapacityMW[0] > limit {
				limit = -ex.CapacityMW[0]
			}
			if limit > 0 {
				env.ExchangeCaps[model.ExchangeKey(key)] = limit
			}
		}
	}
	return env
}
