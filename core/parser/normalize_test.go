package parser

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/gridfeed/core/model"
)

type recordLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordLogger) Debugf(string, ...any)         {}
func (l *recordLogger) Debugw(string, map[string]any) {}
func (l *recordLogger) Infof(string, ...any)          {}
func (l *recordLogger) Warnf(format string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, format)
	l.mu.Unlock()
}
func (l *recordLogger) Warnw(msg string, _ map[string]any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
func (l *recordLogger) Errorf(string, ...any) {}

func TestClampSmallNegatives(t *testing.T) {
	log := &recordLogger{}
	mix := model.Mix{model.ModeWind: model.F(-2.3), model.ModeSolar: model.F(50)}
	if err := ClampSmallNegatives("FR", mix, 0, log); err != nil {
		t.Fatalf("small negative must clamp, not fail: %v", err)
	}
	if *mix[model.ModeWind] != 0 {
		t.Fatalf("wind not clamped: %f", *mix[model.ModeWind])
	}
	if *mix[model.ModeSolar] != 50 {
		t.Fatalf("positive value touched: %f", *mix[model.ModeSolar])
	}
	if len(log.warns) != 1 {
		t.Fatalf("expected one warning, got %d", len(log.warns))
	}
}

func TestClampSmallNegatives_LargeNegativeFails(t *testing.T) {
	mix := model.Mix{model.ModeGas: model.F(-120)}
	err := ClampSmallNegatives("FR", mix, 0, &recordLogger{})
	if err == nil {
		t.Fatalf("large negative must fail the datapoint")
	}
	if !strings.Contains(err.Error(), "gas") {
		t.Fatalf("error should name the mode: %v", err)
	}
}

func TestClampSmallNegatives_NilPassThrough(t *testing.T) {
	mix := model.Mix{model.ModeWind: nil}
	if err := ClampSmallNegatives("FR", mix, 0, &recordLogger{}); err != nil {
		t.Fatalf("nil value: %v", err)
	}
	if mix[model.ModeWind] != nil {
		t.Fatalf("nil value must stay nil")
	}
}

func TestCheckReportedTotal(t *testing.T) {
	mix := model.Mix{model.ModeHydro: model.F(500), model.ModeCoal: model.F(300), model.ModeSolar: model.F(75), model.ModeWind: nil}
	if err := CheckReportedTotal("IN-KE", mix, 875); err != nil {
		t.Fatalf("exact total rejected: %v", err)
	}
	if err := CheckReportedTotal("IN-KE", mix, 890); err != nil {
		t.Fatalf("within 2%% rejected: %v", err)
	}
	if err := CheckReportedTotal("IN-KE", mix, 1000); err == nil {
		t.Fatalf("14%% off accepted")
	}
	if err := CheckReportedTotal("IN-KE", mix, 0); err == nil {
		t.Fatalf("zero total accepted")
	}
}

func TestWarnIfStale(t *testing.T) {
	log := &recordLogger{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	WarnIfStale("FR", now.Add(-time.Hour), now, log)
	if len(log.warns) != 0 {
		t.Fatalf("1h old is not stale")
	}
	WarnIfStale("FR", now.Add(-3*time.Hour), now, log)
	if len(log.warns) != 1 {
		t.Fatalf("3h old must warn")
	}
}

func TestWrap(t *testing.T) {
	if Wrap("p", "FR", nil) != nil {
		t.Fatalf("nil must pass through")
	}
	err := Wrap("p", "FR", ErrHistoricalNotSupported)
	if err != ErrHistoricalNotSupported {
		t.Fatalf("sentinel must pass through untouched")
	}
	inner := Errorf("p", "FR", "boom")
	if Wrap("q", "DE", inner) != inner {
		t.Fatalf("typed error must not be double wrapped")
	}
}
