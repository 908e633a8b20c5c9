// Package registry resolves zone and zone-pair keys to parser
// implementations. Parser packages self-register their fetchers under
// "<package>.<Func>" names at init time; configuration descriptors reference
// those names, and Build binds them to concrete (key, kind) pairs at boot.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/model"
	"github.com/kilianp07/gridfeed/core/parser"
)

// ErrParserNotRegistered is returned by lookups for keys no parser serves.
// It is distinct from parser execution failure.
var ErrParserNotRegistered = errors.New("no parser registered for key")

var (
	productionFetchers         = map[string]parser.ProductionFetcher{}
	consumptionFetchers        = map[string]parser.ConsumptionFetcher{}
	priceFetchers              = map[string]parser.PriceFetcher{}
	exchangeFetchers           = map[string]parser.ExchangeFetcher{}
	perUnitFetchers            = map[string]parser.PerUnitFetcher{}
	generationForecastFetchers = map[string]parser.GenerationForecastFetcher{}
	consForecastFetchers       = map[string]parser.ConsumptionForecastFetcher{}
	prodModeForecastFetchers   = map[string]parser.ProductionPerModeForecastFetcher{}

	// credentialEnv maps a parser name prefix ("<package>.") to the
	// environment variable its fetchers require.
	credentialEnv = map[string]string{}
)

// RegisterProduction registers a production fetcher under name.
func RegisterProduction(name string, f parser.ProductionFetcher) { productionFetchers[name] = f }

// RegisterConsumption registers a consumption fetcher under name.
func RegisterConsumption(name string, f parser.ConsumptionFetcher) { consumptionFetchers[name] = f }

// RegisterPrice registers a price fetcher under name.
func RegisterPrice(name string, f parser.PriceFetcher) { priceFetchers[name] = f }

// RegisterExchange registers an exchange fetcher under name. The same
// fetcher serves both exchange and exchangeForecast bindings.
func RegisterExchange(name string, f parser.ExchangeFetcher) { exchangeFetchers[name] = f }

// RegisterPerUnit registers a per-unit production fetcher under name.
func RegisterPerUnit(name string, f parser.PerUnitFetcher) { perUnitFetchers[name] = f }

// RegisterGenerationForecast registers a generation forecast fetcher.
func RegisterGenerationForecast(name string, f parser.GenerationForecastFetcher) {
	generationForecastFetchers[name] = f
}

// RegisterConsumptionForecast registers a consumption forecast fetcher.
func RegisterConsumptionForecast(name string, f parser.ConsumptionForecastFetcher) {
	consForecastFetchers[name] = f
}

// RegisterProductionPerModeForecast registers a per-mode forecast fetcher.
func RegisterProductionPerModeForecast(name string, f parser.ProductionPerModeForecastFetcher) {
	prodModeForecastFetchers[name] = f
}

// RegisterCredential declares that every fetcher whose name starts with
// prefix needs the named environment variable. Build disables exactly those
// bindings when the variable is absent instead of failing startup.
func RegisterCredential(prefix, envVar string) { credentialEnv[prefix] = envVar }

// Binding ties a configured key to a named parser for one data kind.
type Binding struct {
	Zone     model.ZoneKey
	Exchange model.ExchangeKey
	Kind     model.Kind
	Name     string
}

// Key returns the store/scheduler key the binding feeds.
func (b Binding) Key() string {
	if b.Kind.IsExchange() {
		return string(b.Exchange)
	}
	return string(b.Zone)
}

func (b Binding) String() string {
	return fmt.Sprintf("%s/%s via %s", b.Key(), b.Kind, b.Name)
}

// DisabledBinding records a binding Build could not enable.
type DisabledBinding struct {
	Binding Binding
	Reason  error
}

type bindingKey struct {
	key  string
	kind model.Kind
}

// Registry is the boot-time resolution of bindings to fetchers. It is
// read-only after Build.
type Registry struct {
	bindings map[bindingKey]Binding
}

// Build resolves every binding's parser name. An unknown name or an invalid
// kind is fatal. Bindings whose parser requires an absent credential are
// returned as disabled rather than failing the whole boot.
func Build(bindings []Binding, lookupEnv func(string) (string, bool)) (*Registry, []DisabledBinding, error) {
	r := &Registry{bindings: make(map[bindingKey]Binding, len(bindings))}
	var disabled []DisabledBinding
	for _, b := range bindings {
		if !b.Kind.Valid() {
			return nil, nil, fmt.Errorf("binding %s: unknown data kind %q", b.Key(), b.Kind)
		}
		if !known(b.Kind, b.Name) {
			return nil, nil, fmt.Errorf("binding %s/%s: parser %q is not registered", b.Key(), b.Kind, b.Name)
		}
		if reason := missingCredential(b.Name, lookupEnv); reason != nil {
			disabled = append(disabled, DisabledBinding{Binding: b, Reason: reason})
			continue
		}
		bk := bindingKey{key: b.Key(), kind: b.Kind}
		if prev, dup := r.bindings[bk]; dup {
			return nil, nil, fmt.Errorf("binding %s/%s: already bound to %q", b.Key(), b.Kind, prev.Name)
		}
		r.bindings[bk] = b
	}
	return r, disabled, nil
}

func known(kind model.Kind, name string) bool {
	switch kind {
	case model.KindProduction:
		_, ok := productionFetchers[name]
		return ok
	case model.KindConsumption:
		_, ok := consumptionFetchers[name]
		return ok
	case model.KindPrice:
		_, ok := priceFetchers[name]
		return ok
	case model.KindExchange, model.KindExchangeForecast:
		_, ok := exchangeFetchers[name]
		return ok
	case model.KindProductionPerUnit:
		_, ok := perUnitFetchers[name]
		return ok
	case model.KindGenerationForecast:
		_, ok := generationForecastFetchers[name]
		return ok
	case model.KindConsumptionForecast:
		_, ok := consForecastFetchers[name]
		return ok
	case model.KindProductionPerModeForecast:
		_, ok := prodModeForecastFetchers[name]
		return ok
	}
	return false
}

func missingCredential(name string, lookupEnv func(string) (string, bool)) error {
	for prefix, envVar := range credentialEnv {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			if _, ok := lookupEnv(envVar); !ok {
				return fmt.Errorf("parser %s requires %s in the environment", name, envVar)
			}
		}
	}
	return nil
}

// Bindings lists the enabled bindings in unspecified order.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	return out
}

// Lookup returns the binding for (key, kind), or ErrParserNotRegistered.
func (r *Registry) Lookup(key string, kind model.Kind) (Binding, error) {
	b, ok := r.bindings[bindingKey{key: key, kind: kind}]
	if !ok {
		return Binding{}, fmt.Errorf("%s/%s: %w", key, kind, ErrParserNotRegistered)
	}
	return b, nil
}

// Fetch invokes the bound fetcher for b and widens the result to the shared
// event interface. A nil slice with a nil error is a soft miss.
func (r *Registry) Fetch(ctx context.Context, b Binding, s parser.Session, target *time.Time, log logger.Logger) ([]model.Event, error) {
	if _, err := r.Lookup(b.Key(), b.Kind); err != nil {
		return nil, err
	}
	switch b.Kind {
	case model.KindProduction:
		return widen(productionFetchers[b.Name](ctx, b.Zone, s, target, log))
	case model.KindConsumption:
		return widen(consumptionFetchers[b.Name](ctx, b.Zone, s, target, log))
	case model.KindPrice:
		return widen(priceFetchers[b.Name](ctx, b.Zone, s, target, log))
	case model.KindExchange:
		z1, z2 := b.Exchange.Zones()
		return widen(exchangeFetchers[b.Name](ctx, z1, z2, s, target, log))
	case model.KindExchangeForecast:
		z1, z2 := b.Exchange.Zones()
		events, err := widen(exchangeFetchers[b.Name](ctx, z1, z2, s, target, log))
		return forceForecast(events), err
	case model.KindProductionPerUnit:
		return widen(perUnitFetchers[b.Name](ctx, b.Zone, s, target, log))
	case model.KindGenerationForecast:
		return widen(generationForecastFetchers[b.Name](ctx, b.Zone, s, target, log))
	case model.KindConsumptionForecast:
		return widen(consForecastFetchers[b.Name](ctx, b.Zone, s, target, log))
	case model.KindProductionPerModeForecast:
		return widen(prodModeForecastFetchers[b.Name](ctx, b.Zone, s, target, log))
	}
	return nil, fmt.Errorf("unhandled kind %q", b.Kind)
}

// forceForecast stamps exchange events fetched under a forecast binding so
// they cannot land in the measured-exchange store slot when the shared
// fetcher left the default source type.
func forceForecast(events []model.Event) []model.Event {
	for i, ev := range events {
		if ee, ok := ev.(model.ExchangeEvent); ok && ee.SourceType != model.SourceForecasted {
			ee.SourceType = model.SourceForecasted
			events[i] = ee
		}
	}
	return events
}

func widen[E model.Event](events []E, err error) ([]model.Event, error) {
	if err != nil || events == nil {
		return nil, err
	}
	out := make([]model.Event, len(events))
	for i, ev := range events {
		out[i] = ev
	}
	return out, nil
}
