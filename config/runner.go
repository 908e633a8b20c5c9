package config

import (
	"time"

	"github.com/kilianp07/gridfeed/core/runner"
)

// RunnerConfig holds the worker pool and scheduling settings.
type RunnerConfig struct {
	Workers       int `json:"workers"`
	PeriodSeconds int `json:"period_seconds"`
	BudgetSeconds int `json:"budget_seconds"`
}

// SetDefaults applies the runner package defaults.
func (c *RunnerConfig) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = runner.DefaultWorkers
	}
	if c.PeriodSeconds <= 0 {
		c.PeriodSeconds = int(runner.DefaultPeriod / time.Second)
	}
	if c.BudgetSeconds <= 0 {
		c.BudgetSeconds = int(runner.DefaultBudget / time.Second)
	}
}

// Validate checks mandatory fields.
func (c RunnerConfig) Validate() error {
	if c.BudgetSeconds >= c.PeriodSeconds {
		return &ConfigurationError{Field: "runner.budget_seconds",
			Msg: "tick budget must be shorter than the refresh period"}
	}
	return nil
}

// ToRunner converts the section to the runner's own config type.
func (c RunnerConfig) ToRunner() runner.Config {
	return runner.Config{
		Workers: c.Workers,
		Period:  time.Duration(c.PeriodSeconds) * time.Second,
		Budget:  time.Duration(c.BudgetSeconds) * time.Second,
	}
}
