// Package kseb adapts the Kerala State Load Despatch Centre dashboard feed
// for zone IN-KE. The source reports a naive IST timestamp and a coarse
// breakdown: hydro, state thermal, independent thermal producers, solar and
// non-solar renewables.
package kseb

import (
	"context"
	"time"

	"github.com/kilianp07/gridfeed/core/gridtime"
	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/model"
	"github.com/kilianp07/gridfeed/core/parser"
	"github.com/kilianp07/gridfeed/core/registry"
	"github.com/kilianp07/gridfeed/core/validation"
)

const (
	sourceHost = "sldckerala.com"
	timezone   = "Asia/Kolkata"
	dateLayout = "02-01-2006 15:04:05"
)

// apiURL is a var so tests can point the fetcher at a local server.
var apiURL = "https://" + sourceHost + "/api/dashboard/latest"

// nowFn is overridable in tests to pin the horizon check.
var nowFn = gridtime.Now

func init() {
	registry.RegisterProduction("kseb.FetchProduction", FetchProduction)
	// Kerala's grid tops out well under this bound; readings above it mean
	// the dashboard is serving garbage.
	validation.Register(validation.Predicate{
		Name:  "kseb_production_within_nameplate",
		Kind:  model.KindProduction,
		Zones: []model.ZoneKey{"IN-KE"},
		Check: func(ev model.Event, _ validation.Env) float64 {
			p, ok := ev.(model.ProductionEvent)
			if !ok {
				return 1
			}
			var sum float64
			for _, v := range p.Production {
				if v != nil {
					sum += *v
				}
			}
			if sum > 7000 {
				return 0
			}
			return 1
		},
	})
}

type reading struct {
	Value *float64 `json:"value"`
}

type dashboard struct {
	UpdateDate      string  `json:"updateDate"`
	TotalHydro      reading `json:"totalHydro"`
	TotalThermal    reading `json:"totalThermal"`
	TotalIpp        reading `json:"totalIpp"`
	ResSolar        reading `json:"resSolar"`
	ResNonSolar     reading `json:"resNonSolar"`
	GrossGeneration reading `json:"grossGeneration"`
}

func (d dashboard) empty() bool {
	return d.TotalHydro.Value == nil && d.TotalThermal.Value == nil &&
		d.TotalIpp.Value == nil && d.ResSolar.Value == nil && d.ResNonSolar.Value == nil
}

// FetchProduction returns the latest production mix for IN-KE. The source is
// live-only.
func FetchProduction(ctx context.Context, zone model.ZoneKey, s parser.Session, target *time.Time, log logger.Logger) ([]model.ProductionEvent, error) {
	const name = "kseb.FetchProduction"
	if target != nil {
		return nil, parser.ErrHistoricalNotSupported
	}
	var d dashboard
	if err := s.GetJSON(ctx, apiURL, &d); err != nil {
		return nil, parser.Wrap(name, string(zone), err)
	}
	if d.empty() {
		return nil, nil
	}
	if d.UpdateDate == "" {
		return nil, parser.Errorf(name, string(zone), "dashboard carries values but no updateDate")
	}
	at, err := gridtime.ParseInLocation(dateLayout, d.UpdateDate, timezone)
	if err != nil {
		return nil, parser.Wrap(name, string(zone), err)
	}

	mix := model.Mix{}
	if d.TotalHydro.Value != nil {
		mix[model.ModeHydro] = model.F(*d.TotalHydro.Value)
	}
	// State thermal plus independent producers burn coal almost
	// exclusively; the synthesized bucket is flagged as corrected.
	if d.TotalThermal.Value != nil || d.TotalIpp.Value != nil {
		var coal float64
		if d.TotalThermal.Value != nil {
			coal += *d.TotalThermal.Value
		}
		if d.TotalIpp.Value != nil {
			coal += *d.TotalIpp.Value
		}
		mix[model.ModeCoal] = model.F(coal)
	}
	if d.ResSolar.Value != nil {
		mix[model.ModeSolar] = model.F(*d.ResSolar.Value)
	}
	if d.ResNonSolar.Value != nil {
		mix[model.ModeBiomass] = model.F(*d.ResNonSolar.Value)
	}

	if err := parser.ClampSmallNegatives(zone, mix, 0, log); err != nil {
		return nil, parser.Wrap(name, string(zone), err)
	}
	// grossGeneration includes interstate imports, so it is not comparable
	// to the in-state breakdown sum; it is logged for operators only.
	if d.GrossGeneration.Value != nil {
		log.Debugw("kseb gross generation", map[string]any{"gross": *d.GrossGeneration.Value})
	}

	now := nowFn()
	parser.WarnIfStale(zone, at, now, log)
	opts := []model.Option{model.WithNow(now)}
	if _, ok := mix[model.ModeCoal]; ok {
		opts = append(opts, model.WithCorrectedModes(model.ModeCoal))
	}
	ev, err := model.NewProductionEvent(zone, at, mix, sourceHost, opts...)
	if err != nil {
		return nil, parser.Wrap(name, string(zone), err)
	}
	return []model.ProductionEvent{ev}, nil
}
