package config

import "time"

// APIConfig holds the read API's listen address and health thresholds.
type APIConfig struct {
	Addr string `json:"addr"`
	// FreshnessSeconds is the maximum age of the freshest datapoint for the
	// service to report healthy.
	FreshnessSeconds int `json:"freshness_seconds"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8001"
	}
	if c.FreshnessSeconds <= 0 {
		c.FreshnessSeconds = int((2 * time.Hour) / time.Second)
	}
}

// Validate checks mandatory fields.
func (c APIConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigurationError{Field: "api.addr", Msg: "listen address is required"}
	}
	return nil
}

// Freshness returns the health threshold as a duration.
func (c APIConfig) Freshness() time.Duration {
	return time.Duration(c.FreshnessSeconds) * time.Second
}
