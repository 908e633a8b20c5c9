package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/gridfeed/core/model"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `zones:
  IN-KE:
    timezone: "Asia/Kolkata"
    parsers:
      production: "kseb.FetchProduction"
    fossil_free: false
  CH:
    timezone: "Europe/Zurich"
    parsers:
      consumption: "entsoe.FetchConsumption"
      price: "entsoe.FetchPrice"
    fossil_free: true
exchanges:
  IQ->IR:
    parsers:
      exchange: "geca.FetchExchange"
    capacity_mw: [-500, 500]
runner:
  workers: 8
  period_seconds: 300
  budget_seconds: 90
api:
  addr: ":8080"
metrics:
  sinks:
    - type: "nop"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "gridfeed"
  topic_prefix: "grid"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"zone timezone", cfg.Zones["IN-KE"].Timezone, "Asia/Kolkata"},
		{"zone parser", cfg.Zones["IN-KE"].Parsers["production"], "kseb.FetchProduction"},
		{"fossil free", cfg.Zones["CH"].FossilFree, true},
		{"exchange parser", cfg.Exchanges["IQ->IR"].Parsers["exchange"], "geca.FetchExchange"},
		{"workers", cfg.Runner.Workers, 8},
		{"api addr", cfg.API.Addr, ":8080"},
		{"metrics sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"mqtt broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	bindings := cfg.Bindings()
	if len(bindings) != 4 {
		t.Fatalf("bindings = %d, want 4", len(bindings))
	}

	env := cfg.ValidationEnv()
	if !env.FossilFree["CH"] {
		t.Error("CH not whitelisted")
	}
	if env.ExchangeCaps["IQ->IR"] != 500 {
		t.Errorf("exchange cap = %v, want 500", env.ExchangeCaps["IQ->IR"])
	}
}

func TestLoadCapacityShapes(t *testing.T) {
	path := writeConfig(t, `zones:
  IN-KE:
    parsers:
      production: "kseb.FetchProduction"
    capacity_mw:
      hydro: 1856.5
      solar:
        - datetime: "2022-01-01T00:00:00Z"
          value: 400
        - datetime: "2024-01-01T00:00:00Z"
          value: 670
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	caps := cfg.Zones["IN-KE"].CapacityMW

	hydro, ok := caps["hydro"].At(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	if !ok || hydro != 1856.5 {
		t.Fatalf("hydro = %v ok=%v", hydro, ok)
	}

	solar := caps["solar"]
	if len(solar.Series) != 2 {
		t.Fatalf("solar series = %#v", solar)
	}
	if v, ok := solar.At(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)); !ok || v != 400 {
		t.Fatalf("solar@2023 = %v ok=%v", v, ok)
	}
	if v, ok := solar.At(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)); !ok || v != 670 {
		t.Fatalf("solar@2025 = %v ok=%v", v, ok)
	}
	if _, ok := solar.At(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)); ok {
		t.Fatal("capacity before the first series point must be unknown")
	}
}

func TestLoadCapacityBadShape(t *testing.T) {
	path := writeConfig(t, `zones:
  IN-KE:
    parsers:
      production: "kseb.FetchProduction"
    capacity_mw:
      solar:
        - value: 400
`)
	if _, err := Load(path); err == nil {
		t.Fatal("series point without datetime must fail the load")
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `zones:
  AR:
    parsers:
      production: "cammesa.FetchProduction"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Runner.Workers != 16 || cfg.Runner.PeriodSeconds != 300 || cfg.Runner.BudgetSeconds != 90 {
		t.Fatalf("runner defaults = %+v", cfg.Runner)
	}
	if cfg.API.Addr != ":8001" || cfg.API.Freshness() != 2*time.Hour {
		t.Fatalf("api defaults = %+v", cfg.API)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `zones:
  AR:
    parsers:
      production: "cammesa.FetchProduction"
api:
  addr: ":8001"
`)
	t.Setenv("GF_API__ADDR", ":9001")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.API.Addr != ":9001" {
		t.Fatalf("api addr = %s, want env override :9001", cfg.API.Addr)
	}
}

func TestLoadRejectsBadZoneKey(t *testing.T) {
	path := writeConfig(t, `zones:
  kerala:
    parsers:
      production: "kseb.FetchProduction"
`)
	_, err := Load(path)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *ConfigurationError", err)
	}
}

func TestLoadRejectsNonCanonicalExchange(t *testing.T) {
	path := writeConfig(t, `exchanges:
  IR->IQ:
    parsers:
      exchange: "geca.FetchExchange"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-canonical exchange key")
	}
}

func TestLoadRejectsKindMixups(t *testing.T) {
	path := writeConfig(t, `zones:
  AR:
    parsers:
      exchange: "geca.FetchExchange"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for exchange kind under a zone")
	}
}

func TestLoadRejectsBudgetOverPeriod(t *testing.T) {
	path := writeConfig(t, `runner:
  period_seconds: 60
  budget_seconds: 120
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when budget exceeds period")
	}
}

func TestJobsCarryPeriodOverrides(t *testing.T) {
	cfg := &Config{
		Zones: map[string]ZoneConfig{
			"AR": {Parsers: map[string]string{"production": "cammesa.FetchProduction"}, PeriodSeconds: 60},
		},
	}
	jobs := cfg.Jobs(cfg.Bindings())
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].Period != time.Minute {
		t.Fatalf("period = %s, want 1m", jobs[0].Period)
	}
	if jobs[0].Binding.Zone != model.ZoneKey("AR") {
		t.Fatalf("zone = %s", jobs[0].Binding.Zone)
	}
}
