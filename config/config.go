// Package config loads and validates the feed configuration from a JSON or
// YAML file, with environment overrides under the GF_ prefix.
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/gridfeed/core/metrics"
	"github.com/kilianp07/gridfeed/infra/mqtt"
)

type Config struct {
	Zones     map[string]ZoneConfig     `json:"zones"`
	Exchanges map[string]ExchangeConfig `json:"exchanges"`
	Runner    RunnerConfig              `json:"runner"`
	API       APIConfig                 `json:"api"`
	Metrics   metrics.Config            `json:"metrics"`
	MQTT      mqtt.Config               `json:"mqtt"`
}

// ConfigurationError reports an invalid or contradictory configuration entry.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("GF_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "gf_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				capacityValueHookFunc(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc()),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, err
	}
	cfg.Runner.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// capacityValueHookFunc decodes the two descriptor shapes of capacity_mw:
// a bare number, or a list of {datetime, value} points for capacities that
// changed over time. Series are sorted chronologically.
func capacityValueHookFunc() mapstructure.DecodeHookFuncType {
	capType := reflect.TypeOf(CapacityValue{})
	return func(_, to reflect.Type, data any) (any, error) {
		if to != capType {
			return data, nil
		}
		switch v := data.(type) {
		case float64:
			return CapacityValue{MW: v}, nil
		case int:
			return CapacityValue{MW: float64(v)}, nil
		case string:
			// Environment overrides arrive as strings.
			mw, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("capacity_mw: %w", err)
			}
			return CapacityValue{MW: mw}, nil
		case []any:
			pts := make([]CapacityPoint, 0, len(v))
			for _, raw := range v {
				m, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("capacity_mw: series entry is %T, want object", raw)
				}
				p, err := capacityPoint(m)
				if err != nil {
					return nil, err
				}
				pts = append(pts, p)
			}
			sort.Slice(pts, func(i, j int) bool { return pts[i].Datetime.Before(pts[j].Datetime) })
			return CapacityValue{Series: pts}, nil
		}
		return nil, fmt.Errorf("capacity_mw: unsupported shape %T", data)
	}
}

func capacityPoint(m map[string]any) (CapacityPoint, error) {
	var p CapacityPoint
	switch dt := m["datetime"].(type) {
	case time.Time:
		p.Datetime = dt.UTC()
	case string:
		t, err := time.Parse(time.RFC3339, dt)
		if err != nil {
			return p, fmt.Errorf("capacity_mw: %w", err)
		}
		p.Datetime = t.UTC()
	default:
		return p, fmt.Errorf("capacity_mw: series entry missing datetime")
	}
	switch val := m["value"].(type) {
	case float64:
		p.Value = val
	case int:
		p.Value = float64(val)
	default:
		return p, fmt.Errorf("capacity_mw: series entry missing value")
	}
	return p, nil
}

// Validate checks every section; the first violation aborts the load.
func (c *Config) Validate() error {
	for key, zone := range c.Zones {
		if err := zone.Validate(key); err != nil {
			return err
		}
	}
	for key, ex := range c.Exchanges {
		if err := ex.Validate(key); err != nil {
			return err
		}
	}
	if err := c.Runner.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return c.API.Validate()
}
