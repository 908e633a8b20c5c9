// Package parser defines the contract every upstream adapter implements:
// fetcher signatures per data kind, the typed faults they raise, and shared
// normalization helpers for the edge-case policies all adapters follow.
//
// Fetchers are referentially transparent for a given (key, target): they hold
// no state of their own and never mutate the shared session beyond cookies
// and connection reuse. A nil event slice with a nil error is a soft miss
// (upstream empty or all-null), distinct from both success and failure.
package parser

import (
	"context"
	"time"

	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/model"
)

// Session is the shared HTTP surface fetchers use. Implementations keep
// cookies and reuse connections; fetchers must not rely on any other state.
type Session interface {
	Get(ctx context.Context, url string) ([]byte, error)
	GetJSON(ctx context.Context, url string, v any) error
	GetCSV(ctx context.Context, url string) ([][]string, error)
	PostForm(ctx context.Context, url string, form map[string]string) ([]byte, error)
}

// ProductionFetcher returns production events for one zone. A non-nil target
// requests historical data; live-only sources fail with
// ErrHistoricalNotSupported instead of silently returning current data.
type ProductionFetcher func(ctx context.Context, zone model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.ProductionEvent, error)

// ConsumptionFetcher returns consumption events for one zone.
type ConsumptionFetcher func(ctx context.Context, zone model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.ConsumptionEvent, error)

// PriceFetcher returns price events for one zone.
type PriceFetcher func(ctx context.Context, zone model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.PriceEvent, error)

// ExchangeFetcher returns exchange events for a zone pair. The endpoint
// order is the caller's; canonical sorting and sign flipping happen inside
// model.NewExchangeEvent, so both orders yield identical events.
type ExchangeFetcher func(ctx context.Context, zone1, zone2 model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.ExchangeEvent, error)

// PerUnitFetcher returns per-generation-unit production events for one zone.
type PerUnitFetcher func(ctx context.Context, zone model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.ProductionPerUnitEvent, error)

// GenerationForecastFetcher returns total-generation forecasts for one zone.
type GenerationForecastFetcher func(ctx context.Context, zone model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.GenerationForecastEvent, error)

// ConsumptionForecastFetcher returns consumption forecasts for one zone.
type ConsumptionForecastFetcher func(ctx context.Context, zone model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.ConsumptionForecastEvent, error)

// ProductionPerModeForecastFetcher returns per-mode production forecasts.
type ProductionPerModeForecastFetcher func(ctx context.Context, zone model.ZoneKey, s Session, target *time.Time, log logger.Logger) ([]model.ProductionPerModeForecastEvent, error)
