package validation

import (
	"github.com/kilianp07/gridfeed/core/gridtime"
	"github.com/kilianp07/gridfeed/core/model"
)

// The mandatory predicate set. Zone-specific predicates register through the
// same mechanism from their parser packages.
func init() {
	Register(Predicate{
		Name: "all_production_nonneg",
		Kind: model.KindProduction,
		Check: func(ev model.Event, _ Env) float64 {
			for _, v := range productionOf(ev) {
				if v != nil && *v < 0 {
					return 0
				}
			}
			return 1
		},
	})
	Register(Predicate{
		Name: "has_at_least_one_nonnull_production",
		Kind: model.KindProduction,
		Check: func(ev model.Event, _ Env) float64 {
			for _, v := range productionOf(ev) {
				if v != nil {
					return 1
				}
			}
			return 0
		},
	})
	Register(Predicate{
		Name: "fossil_fuel_expected",
		Kind: model.KindProduction,
		Check: func(ev model.Event, env Env) float64 {
			if env.FossilFree[model.ZoneKey(ev.Key())] {
				return 1
			}
			mix := productionOf(ev)
			for _, mode := range model.FossilModes {
				if v, ok := mix[mode]; ok && v != nil && *v > 0 {
					return 1
				}
			}
			return 0
		},
	})
	Register(Predicate{
		Name: "timestamp_within_horizon",
		Check: func(ev model.Event, env Env) float64 {
			if gridtime.WithinHorizon(ev.At(), env.now(), env.horizon()) {
				return 1
			}
			return 0
		},
	})
	Register(Predicate{
		Name: "exchange_magnitude_bounded",
		Kind: model.KindExchange,
		Check: checkExchangeMagnitude,
	})
	Register(Predicate{
		Name: "exchange_forecast_magnitude_bounded",
		Kind: model.KindExchangeForecast,
		Check: checkExchangeMagnitude,
	})
}

// checkExchangeMagnitude scores flows against the configured per-exchange
// cap: within the cap is clean, up to 1.5x is suspect, beyond rejects.
func checkExchangeMagnitude(ev model.Event, env Env) float64 {
	ex, ok := ev.(model.ExchangeEvent)
	if !ok {
		return 1
	}
	limit, has := env.ExchangeCaps[ex.SortedZoneKeys]
	if !has || limit <= 0 {
		return 1
	}
	mag := ex.NetFlow
	if mag < 0 {
		mag = -mag
	}
	switch {
	case mag <= limit:
		return 1
	case mag <= 1.5*limit:
		return 0.5
	default:
		return 0
	}
}

func productionOf(ev model.Event) model.Mix {
	switch e := ev.(type) {
	case model.ProductionEvent:
		return e.Production
	case model.ProductionPerModeForecastEvent:
		return e.Production
	}
	return nil
}
