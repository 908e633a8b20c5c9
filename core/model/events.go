package model

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultHorizon bounds how far an event timestamp may sit from wall-clock.
const DefaultHorizon = 48 * time.Hour

// Mix maps fuel modes to megawatts. An absent key means the mode was not
// reported, a nil value means it was reported as unknown, and zero means it
// was reported as zero. The distinction matters for downstream carbon math.
type Mix map[FuelMode]*float64

// F returns a pointer to v, for building Mix literals.
func F(v float64) *float64 { return &v }

// Event is the common surface shared by all canonical datapoints.
type Event interface {
	// Key returns the zone key, or the canonical exchange key for
	// pair-keyed events.
	Key() string
	EventKind() Kind
	At() time.Time
}

type eventOpts struct {
	now        time.Time
	sourceType SourceType
	storage    map[StorageMode]float64
	corrected  []FuelMode
	horizon    time.Duration
}

// Option adjusts optional event fields at construction time.
type Option func(*eventOpts)

// WithNow sets the wall-clock reference used for the timestamp horizon check.
func WithNow(now time.Time) Option {
	return func(o *eventOpts) { o.now = now }
}

// WithSourceType overrides the default "measured" source type.
func WithSourceType(st SourceType) Option {
	return func(o *eventOpts) { o.sourceType = st }
}

// WithStorage attaches signed storage values; positive means charging.
func WithStorage(storage map[StorageMode]float64) Option {
	return func(o *eventOpts) { o.storage = storage }
}

// WithCorrectedModes records modes whose values were synthesized rather than
// reported, e.g. a thermal residual split.
func WithCorrectedModes(modes ...FuelMode) Option {
	return func(o *eventOpts) { o.corrected = modes }
}

// WithHorizon overrides the default ±48h timestamp horizon.
func WithHorizon(d time.Duration) Option {
	return func(o *eventOpts) { o.horizon = d }
}

func buildOpts(opts []Option) eventOpts {
	o := eventOpts{now: time.Now(), sourceType: SourceMeasured, horizon: DefaultHorizon}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func checkDatetime(at time.Time, o eventOpts) (time.Time, error) {
	if at.IsZero() {
		return time.Time{}, fmt.Errorf("datetime is zero")
	}
	at = at.UTC()
	if d := o.now.UTC().Sub(at); d > o.horizon || -d > o.horizon {
		return time.Time{}, fmt.Errorf("datetime %s is outside the ±%s horizon", at.Format(time.RFC3339), o.horizon)
	}
	return at, nil
}

// ProductionEvent is one zone's production mix at one observation instant.
type ProductionEvent struct {
	Zone           ZoneKey                 `json:"zoneKey"`
	Datetime       time.Time               `json:"datetime"`
	Production     Mix                     `json:"production"`
	Storage        map[StorageMode]float64 `json:"storage,omitempty"`
	Source         string                  `json:"source"`
	SourceType     SourceType              `json:"sourceType"`
	CorrectedModes []FuelMode              `json:"correctedModes,omitempty"`
}

// NewProductionEvent validates and builds a ProductionEvent. Violations are
// rejected, never silently fixed.
func NewProductionEvent(zone ZoneKey, at time.Time, production Mix, source string, opts ...Option) (ProductionEvent, error) {
	o := buildOpts(opts)
	if err := zone.Validate(); err != nil {
		return ProductionEvent{}, err
	}
	at, err := checkDatetime(at, o)
	if err != nil {
		return ProductionEvent{}, fmt.Errorf("zone %s: %w", zone, err)
	}
	if len(production) == 0 {
		return ProductionEvent{}, fmt.Errorf("zone %s: empty production mix", zone)
	}
	mix := make(Mix, len(production))
	for mode, v := range production {
		if !mode.Valid() {
			return ProductionEvent{}, fmt.Errorf("zone %s: unknown fuel mode %q", zone, mode)
		}
		if v != nil && *v < 0 {
			return ProductionEvent{}, fmt.Errorf("zone %s: negative production %.1f MW for %s", zone, *v, mode)
		}
		mix[mode] = copyValue(v)
	}
	storage, err := copyStorage(zone, o.storage)
	if err != nil {
		return ProductionEvent{}, err
	}
	if !o.sourceType.Valid() {
		return ProductionEvent{}, fmt.Errorf("zone %s: invalid source type %q", zone, o.sourceType)
	}
	corrected := make([]FuelMode, 0, len(o.corrected))
	for _, m := range o.corrected {
		if !m.Valid() {
			return ProductionEvent{}, fmt.Errorf("zone %s: unknown corrected mode %q", zone, m)
		}
		corrected = append(corrected, m)
	}
	if len(corrected) == 0 {
		corrected = nil
	}
	return ProductionEvent{
		Zone:           zone,
		Datetime:       at,
		Production:     mix,
		Storage:        storage,
		Source:         source,
		SourceType:     o.sourceType,
		CorrectedModes: corrected,
	}, nil
}

func (e ProductionEvent) Key() string     { return string(e.Zone) }
func (e ProductionEvent) EventKind() Kind { return KindProduction }
func (e ProductionEvent) At() time.Time   { return e.Datetime }

// ConsumptionEvent is one zone's total consumption at one instant.
type ConsumptionEvent struct {
	Zone        ZoneKey    `json:"zoneKey"`
	Datetime    time.Time  `json:"datetime"`
	Consumption float64    `json:"consumption"`
	Source      string     `json:"source"`
	SourceType  SourceType `json:"sourceType"`
}

// NewConsumptionEvent validates and builds a ConsumptionEvent.
func NewConsumptionEvent(zone ZoneKey, at time.Time, consumption float64, source string, opts ...Option) (ConsumptionEvent, error) {
	o := buildOpts(opts)
	if err := zone.Validate(); err != nil {
		return ConsumptionEvent{}, err
	}
	at, err := checkDatetime(at, o)
	if err != nil {
		return ConsumptionEvent{}, fmt.Errorf("zone %s: %w", zone, err)
	}
	if consumption < 0 {
		return ConsumptionEvent{}, fmt.Errorf("zone %s: negative consumption %.1f MW", zone, consumption)
	}
	if !o.sourceType.Valid() {
		return ConsumptionEvent{}, fmt.Errorf("zone %s: invalid source type %q", zone, o.sourceType)
	}
	return ConsumptionEvent{Zone: zone, Datetime: at, Consumption: consumption, Source: source, SourceType: o.sourceType}, nil
}

func (e ConsumptionEvent) Key() string     { return string(e.Zone) }
func (e ConsumptionEvent) EventKind() Kind { return KindConsumption }
func (e ConsumptionEvent) At() time.Time   { return e.Datetime }

// ExchangeEvent is the net flow between two adjacent zones. Positive NetFlow
// means power flows from the first zone of the sorted key to the second.
type ExchangeEvent struct {
	SortedZoneKeys ExchangeKey `json:"sortedZoneKeys"`
	Datetime       time.Time   `json:"datetime"`
	NetFlow        float64     `json:"netFlow"`
	Source         string      `json:"source"`
	SourceType     SourceType  `json:"sourceType"`
}

// NewExchangeEvent builds an ExchangeEvent from the caller's endpoint order.
// netFlow is interpreted as flow from a to b; when canonical sorting swaps
// the endpoints the sign is flipped, so reversed call sites produce the same
// event.
func NewExchangeEvent(a, b ZoneKey, at time.Time, netFlow float64, source string, opts ...Option) (ExchangeEvent, error) {
	o := buildOpts(opts)
	key, flipped, err := NewExchangeKey(a, b)
	if err != nil {
		return ExchangeEvent{}, err
	}
	at, err = checkDatetime(at, o)
	if err != nil {
		return ExchangeEvent{}, fmt.Errorf("exchange %s: %w", key, err)
	}
	if flipped {
		netFlow = -netFlow
	}
	if !o.sourceType.Valid() {
		return ExchangeEvent{}, fmt.Errorf("exchange %s: invalid source type %q", key, o.sourceType)
	}
	return ExchangeEvent{SortedZoneKeys: key, Datetime: at, NetFlow: netFlow, Source: source, SourceType: o.sourceType}, nil
}

func (e ExchangeEvent) Key() string { return string(e.SortedZoneKeys) }
func (e ExchangeEvent) EventKind() Kind {
	if e.SourceType == SourceForecasted {
		return KindExchangeForecast
	}
	return KindExchange
}
func (e ExchangeEvent) At() time.Time { return e.Datetime }

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// PriceEvent is one zone's wholesale price at one instant.
type PriceEvent struct {
	Zone     ZoneKey   `json:"zoneKey"`
	Datetime time.Time `json:"datetime"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	Source   string    `json:"source"`
}

// NewPriceEvent validates and builds a PriceEvent. Prices may be negative.
func NewPriceEvent(zone ZoneKey, at time.Time, price float64, currency, source string, opts ...Option) (PriceEvent, error) {
	o := buildOpts(opts)
	if err := zone.Validate(); err != nil {
		return PriceEvent{}, err
	}
	at, err := checkDatetime(at, o)
	if err != nil {
		return PriceEvent{}, fmt.Errorf("zone %s: %w", zone, err)
	}
	if !currencyRe.MatchString(currency) {
		return PriceEvent{}, fmt.Errorf("zone %s: invalid currency %q", zone, currency)
	}
	return PriceEvent{Zone: zone, Datetime: at, Price: price, Currency: currency, Source: source}, nil
}

func (e PriceEvent) Key() string     { return string(e.Zone) }
func (e PriceEvent) EventKind() Kind { return KindPrice }
func (e PriceEvent) At() time.Time   { return e.Datetime }

// GenerationForecastEvent is a forecast of one zone's total generation.
type GenerationForecastEvent struct {
	Zone       ZoneKey    `json:"zoneKey"`
	Datetime   time.Time  `json:"datetime"`
	Generation float64    `json:"generation"`
	Source     string     `json:"source"`
	SourceType SourceType `json:"sourceType"`
}

// NewGenerationForecastEvent validates and builds a GenerationForecastEvent.
// The source type is always "forecasted".
func NewGenerationForecastEvent(zone ZoneKey, at time.Time, generation float64, source string, opts ...Option) (GenerationForecastEvent, error) {
	o := buildOpts(opts)
	if err := zone.Validate(); err != nil {
		return GenerationForecastEvent{}, err
	}
	at, err := checkDatetime(at, o)
	if err != nil {
		return GenerationForecastEvent{}, fmt.Errorf("zone %s: %w", zone, err)
	}
	if generation < 0 {
		return GenerationForecastEvent{}, fmt.Errorf("zone %s: negative generation forecast %.1f MW", zone, generation)
	}
	return GenerationForecastEvent{Zone: zone, Datetime: at, Generation: generation, Source: source, SourceType: SourceForecasted}, nil
}

func (e GenerationForecastEvent) Key() string     { return string(e.Zone) }
func (e GenerationForecastEvent) EventKind() Kind { return KindGenerationForecast }
func (e GenerationForecastEvent) At() time.Time   { return e.Datetime }

// ConsumptionForecastEvent is a ConsumptionEvent with the source type forced
// to "forecasted".
type ConsumptionForecastEvent struct{ ConsumptionEvent }

// NewConsumptionForecastEvent builds a forecast consumption datapoint.
func NewConsumptionForecastEvent(zone ZoneKey, at time.Time, consumption float64, source string, opts ...Option) (ConsumptionForecastEvent, error) {
	ev, err := NewConsumptionEvent(zone, at, consumption, source, append(opts, WithSourceType(SourceForecasted))...)
	if err != nil {
		return ConsumptionForecastEvent{}, err
	}
	return ConsumptionForecastEvent{ev}, nil
}

func (e ConsumptionForecastEvent) EventKind() Kind { return KindConsumptionForecast }

// ProductionPerModeForecastEvent is a ProductionEvent with the source type
// forced to "forecasted".
type ProductionPerModeForecastEvent struct{ ProductionEvent }

// NewProductionPerModeForecastEvent builds a forecast production datapoint.
func NewProductionPerModeForecastEvent(zone ZoneKey, at time.Time, production Mix, source string, opts ...Option) (ProductionPerModeForecastEvent, error) {
	ev, err := NewProductionEvent(zone, at, production, source, append(opts, WithSourceType(SourceForecasted))...)
	if err != nil {
		return ProductionPerModeForecastEvent{}, err
	}
	return ProductionPerModeForecastEvent{ev}, nil
}

func (e ProductionPerModeForecastEvent) EventKind() Kind { return KindProductionPerModeForecast }

// ProductionPerUnitEvent is the output of a single generation unit.
type ProductionPerUnitEvent struct {
	Zone       ZoneKey    `json:"zoneKey"`
	Datetime   time.Time  `json:"datetime"`
	Unit       string     `json:"unit"`
	Mode       FuelMode   `json:"mode"`
	Production float64    `json:"production"`
	Source     string     `json:"source"`
	SourceType SourceType `json:"sourceType"`
}

// NewProductionPerUnitEvent validates and builds a per-unit datapoint.
func NewProductionPerUnitEvent(zone ZoneKey, at time.Time, unit string, mode FuelMode, production float64, source string, opts ...Option) (ProductionPerUnitEvent, error) {
	o := buildOpts(opts)
	if err := zone.Validate(); err != nil {
		return ProductionPerUnitEvent{}, err
	}
	at, err := checkDatetime(at, o)
	if err != nil {
		return ProductionPerUnitEvent{}, fmt.Errorf("zone %s: %w", zone, err)
	}
	if unit == "" {
		return ProductionPerUnitEvent{}, fmt.Errorf("zone %s: empty unit name", zone)
	}
	if !mode.Valid() {
		return ProductionPerUnitEvent{}, fmt.Errorf("zone %s: unknown fuel mode %q", zone, mode)
	}
	if production < 0 {
		return ProductionPerUnitEvent{}, fmt.Errorf("zone %s unit %s: negative production %.1f MW", zone, unit, production)
	}
	if !o.sourceType.Valid() {
		return ProductionPerUnitEvent{}, fmt.Errorf("zone %s: invalid source type %q", zone, o.sourceType)
	}
	return ProductionPerUnitEvent{Zone: zone, Datetime: at, Unit: unit, Mode: mode, Production: production, Source: source, SourceType: o.sourceType}, nil
}

func (e ProductionPerUnitEvent) Key() string     { return string(e.Zone) + "/" + e.Unit }
func (e ProductionPerUnitEvent) EventKind() Kind { return KindProductionPerUnit }
func (e ProductionPerUnitEvent) At() time.Time   { return e.Datetime }

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyStorage(zone ZoneKey, storage map[StorageMode]float64) (map[StorageMode]float64, error) {
	if len(storage) == 0 {
		return nil, nil
	}
	out := make(map[StorageMode]float64, len(storage))
	for mode, v := range storage {
		if !mode.Valid() {
			return nil, fmt.Errorf("zone %s: unknown storage mode %q", zone, mode)
		}
		out[mode] = v
	}
	return out, nil
}
