package model

import "fmt"

// FuelMode is a canonical production category. The vocabulary is closed:
// upstream labels that do not map to one of these must be bucketed into
// ModeUnknown by the parser, never passed through.
type FuelMode string

const (
	ModeBiomass    FuelMode = "biomass"
	ModeCoal       FuelMode = "coal"
	ModeGas        FuelMode = "gas"
	ModeGeothermal FuelMode = "geothermal"
	ModeHydro      FuelMode = "hydro"
	ModeNuclear    FuelMode = "nuclear"
	ModeOil        FuelMode = "oil"
	ModeSolar      FuelMode = "solar"
	ModeWind       FuelMode = "wind"
	ModeUnknown    FuelMode = "unknown"
)

// FuelModes lists the closed vocabulary in stable order.
var FuelModes = []FuelMode{
	ModeBiomass, ModeCoal, ModeGas, ModeGeothermal, ModeHydro,
	ModeNuclear, ModeOil, ModeSolar, ModeWind, ModeUnknown,
}

// FossilModes are the modes counted by the fossil-fuel-expected check.
var FossilModes = []FuelMode{ModeCoal, ModeOil, ModeGas, ModeUnknown}

// Valid reports whether the mode belongs to the closed vocabulary.
func (m FuelMode) Valid() bool {
	switch m {
	case ModeBiomass, ModeCoal, ModeGas, ModeGeothermal, ModeHydro,
		ModeNuclear, ModeOil, ModeSolar, ModeWind, ModeUnknown:
		return true
	}
	return false
}

// StorageMode is a canonical storage category. Storage values are signed:
// positive means charging (load on the grid), negative means discharging.
type StorageMode string

const (
	StorageHydro   StorageMode = "hydro"
	StorageBattery StorageMode = "battery"
)

// Valid reports whether the storage mode is known.
func (m StorageMode) Valid() bool {
	return m == StorageHydro || m == StorageBattery
}

// SourceType qualifies how an event value was obtained.
type SourceType string

const (
	SourceMeasured   SourceType = "measured"
	SourceForecasted SourceType = "forecasted"
	SourceEstimated  SourceType = "estimated"
)

// Valid reports whether the source type is known.
func (s SourceType) Valid() bool {
	return s == SourceMeasured || s == SourceForecasted || s == SourceEstimated
}

// Kind names a datapoint category as used by the parser registry, the
// validators and the store.
type Kind string

const (
	KindProduction                Kind = "production"
	KindConsumption               Kind = "consumption"
	KindExchange                  Kind = "exchange"
	KindPrice                     Kind = "price"
	KindProductionPerUnit         Kind = "productionPerUnit"
	KindGenerationForecast        Kind = "generationForecast"
	KindConsumptionForecast       Kind = "consumptionForecast"
	KindProductionPerModeForecast Kind = "productionPerModeForecast"
	KindExchangeForecast          Kind = "exchangeForecast"
)

// ZoneKinds lists the kinds keyed by a single zone.
var ZoneKinds = []Kind{
	KindProduction, KindConsumption, KindPrice, KindProductionPerUnit,
	KindGenerationForecast, KindConsumptionForecast, KindProductionPerModeForecast,
}

// ExchangeKinds lists the kinds keyed by a zone pair.
var ExchangeKinds = []Kind{KindExchange, KindExchangeForecast}

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindProduction, KindConsumption, KindExchange, KindPrice,
		KindProductionPerUnit, KindGenerationForecast, KindConsumptionForecast,
		KindProductionPerModeForecast, KindExchangeForecast:
		return true
	}
	return false
}

// IsExchange reports whether the kind is keyed by a zone pair.
func (k Kind) IsExchange() bool {
	return k == KindExchange || k == KindExchangeForecast
}

// ParseKind converts a descriptor string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown data kind %q", s)
	}
	return k, nil
}
