package carbon

import (
	"math"
	"testing"

	"github.com/kilianp07/gridfeed/core/model"
)

func TestIntensityWeightsByProduction(t *testing.T) {
	mix := model.Mix{
		model.ModeHydro: model.F(500),
		model.ModeCoal:  model.F(500),
	}
	got, ok := Intensity(mix, nil)
	if !ok {
		t.Fatal("expected usable intensity")
	}
	want := (500*24 + 500*820) / 1000.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("intensity = %.2f, want %.2f", got, want)
	}
}

func TestIntensitySkipsNilAndZero(t *testing.T) {
	mix := model.Mix{
		model.ModeWind:  model.F(100),
		model.ModeSolar: nil,
		model.ModeCoal:  model.F(0),
	}
	got, ok := Intensity(mix, nil)
	if !ok || got != DefaultFactors[model.ModeWind] {
		t.Fatalf("intensity = %.2f ok=%v, want pure wind factor", got, ok)
	}
}

func TestIntensityEmptyMix(t *testing.T) {
	if _, ok := Intensity(model.Mix{model.ModeSolar: nil}, nil); ok {
		t.Fatal("expected no usable intensity for an all-nil mix")
	}
}

func TestFossilShare(t *testing.T) {
	mix := model.Mix{
		model.ModeGas:     model.F(300),
		model.ModeNuclear: model.F(700),
	}
	got, ok := FossilShare(mix)
	if !ok || math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("fossil share = %.3f ok=%v, want 0.3", got, ok)
	}
}
