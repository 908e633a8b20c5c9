// Package carbon derives carbon intensity figures from a production mix.
package carbon

import (
	"github.com/kilianp07/gridfeed/core/model"
)

// Factors maps fuel modes to lifecycle emission factors in gCO2eq/kWh.
type Factors map[model.FuelMode]float64

// DefaultFactors holds IPCC 2014 median lifecycle emission factors.
// Unknown production is assumed to be at the thermal average.
var DefaultFactors = Factors{
	model.ModeBiomass:    230,
	model.ModeCoal:       820,
	model.ModeGas:        490,
	model.ModeGeothermal: 38,
	model.ModeHydro:      24,
	model.ModeNuclear:    12,
	model.ModeOil:        650,
	model.ModeSolar:      45,
	model.ModeWind:       11,
	model.ModeUnknown:    700,
}

// Intensity returns the production-weighted carbon intensity of a mix in
// gCO2eq/kWh. Modes with a nil value contribute nothing. The second return
// is false when the mix carries no usable production.
func Intensity(mix model.Mix, factors Factors) (float64, bool) {
	if factors == nil {
		factors = DefaultFactors
	}
	var total, emitted float64
	for mode, v := range mix {
		if v == nil || *v <= 0 {
			continue
		}
		total += *v
		emitted += *v * factors[mode]
	}
	if total == 0 {
		return 0, false
	}
	return emitted / total, true
}

var fossil = func() map[model.FuelMode]bool {
	m := make(map[model.FuelMode]bool, len(model.FossilModes))
	for _, mode := range model.FossilModes {
		m[mode] = true
	}
	return m
}()

// FossilShare returns the fraction of known production coming from fossil
// fuels, in [0, 1]. The second return is false when the mix carries no
// usable production.
func FossilShare(mix model.Mix) (float64, bool) {
	var total, sum float64
	for mode, v := range mix {
		if v == nil || *v <= 0 {
			continue
		}
		total += *v
		if fossil[mode] {
			sum += *v
		}
	}
	if total == 0 {
		return 0, false
	}
	return sum / total, true
}
