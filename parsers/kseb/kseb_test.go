package kseb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/gridfeed/core/model"
	"github.com/kilianp07/gridfeed/core/parser"
	"github.com/kilianp07/gridfeed/infra/fetch"
	"github.com/kilianp07/gridfeed/infra/logger"
)

func serve(t *testing.T, body string) func() {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	oldURL, oldNow := apiURL, nowFn
	apiURL = srv.URL
	nowFn = func() time.Time { return time.Date(2024, 1, 5, 7, 0, 0, 0, time.UTC) }
	return func() {
		apiURL, nowFn = oldURL, oldNow
		srv.Close()
	}
}

const dashboardBody = `{
	"updateDate": "05-01-2024 12:00:00",
	"totalHydro": {"value": 500},
	"totalThermal": {"value": 200},
	"totalIpp": {"value": 100},
	"resSolar": {"value": 50},
	"resNonSolar": {"value": 25},
	"grossGeneration": {"value": 900}
}`

func TestFetchProduction(t *testing.T) {
	defer serve(t, dashboardBody)()

	events, err := FetchProduction(context.Background(), "IN-KE", fetch.NewSession(), nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: %d", len(events))
	}
	ev := events[0]
	want := time.Date(2024, 1, 5, 6, 30, 0, 0, time.UTC)
	if !ev.Datetime.Equal(want) {
		t.Fatalf("datetime %v want %v", ev.Datetime, want)
	}
	expect := map[model.FuelMode]float64{
		model.ModeHydro:   500,
		model.ModeCoal:    300,
		model.ModeSolar:   50,
		model.ModeBiomass: 25,
	}
	for mode, wantV := range expect {
		v := ev.Production[mode]
		if v == nil || *v != wantV {
			t.Errorf("%s: got %v want %f", mode, v, wantV)
		}
	}
	if len(ev.Production) != len(expect) {
		t.Errorf("extra modes: %#v", ev.Production)
	}
	if len(ev.CorrectedModes) != 1 || ev.CorrectedModes[0] != model.ModeCoal {
		t.Errorf("corrected modes: %#v", ev.CorrectedModes)
	}
	if ev.Source != "sldckerala.com" {
		t.Errorf("source: %s", ev.Source)
	}
}

func TestFetchProduction_SmallNegativeClamped(t *testing.T) {
	defer serve(t, `{
		"updateDate": "05-01-2024 12:00:00",
		"totalHydro": {"value": 500},
		"resNonSolar": {"value": -2.3}
	}`)()

	events, err := FetchProduction(context.Background(), "IN-KE", fetch.NewSession(), nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("small negative must not reject: %v", err)
	}
	if v := events[0].Production[model.ModeBiomass]; v == nil || *v != 0 {
		t.Fatalf("biomass not clamped: %v", v)
	}
}

func TestFetchProduction_LargeNegativeRejects(t *testing.T) {
	defer serve(t, `{
		"updateDate": "05-01-2024 12:00:00",
		"totalHydro": {"value": -400}
	}`)()

	_, err := FetchProduction(context.Background(), "IN-KE", fetch.NewSession(), nil, logger.NopLogger{})
	var pe *parser.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected parser.Error, got %v", err)
	}
}

func TestFetchProduction_HistoryRefused(t *testing.T) {
	target := time.Now().UTC().Add(-24 * time.Hour)
	_, err := FetchProduction(context.Background(), "IN-KE", fetch.NewSession(), &target, logger.NopLogger{})
	if !errors.Is(err, parser.ErrHistoricalNotSupported) {
		t.Fatalf("expected ErrHistoricalNotSupported, got %v", err)
	}
}

func TestFetchProduction_SoftMiss(t *testing.T) {
	defer serve(t, `{"updateDate": "", "totalHydro": {"value": null}}`)()

	events, err := FetchProduction(context.Background(), "IN-KE", fetch.NewSession(), nil, logger.NopLogger{})
	if err != nil || events != nil {
		t.Fatalf("empty payload must be a soft miss: %v %#v", err, events)
	}
}

func TestFetchProduction_UpstreamFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	old := apiURL
	apiURL = srv.URL
	defer func() { apiURL = old }()

	_, err := FetchProduction(context.Background(), "IN-KE", fetch.NewSession(), nil, logger.NopLogger{})
	var pe *parser.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected parser.Error, got %v", err)
	}
	if pe.Zone != "IN-KE" {
		t.Fatalf("zone: %s", pe.Zone)
	}
}
