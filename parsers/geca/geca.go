// Package geca adapts the Iraqi grid operator's interconnection feed for the
// IQ-IR tie lines. The upstream reports the aggregate import from Iran as a
// positive number of megawatts, i.e. its native direction is IR to IQ.
package geca

import (
	"context"
	"time"

	"github.com/kilianp07/gridfeed/core/gridtime"
	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/model"
	"github.com/kilianp07/gridfeed/core/parser"
	"github.com/kilianp07/gridfeed/core/registry"
)

const sourceHost = "gecaiq.com"

var apiURL = "https://" + sourceHost + "/api/interconnection/iran"

var nowFn = gridtime.Now

func init() {
	registry.RegisterExchange("geca.FetchExchange", FetchExchange)
}

type tieLineReading struct {
	// ImportFromIranMW is positive when power flows IR -> IQ.
	ImportFromIranMW *float64 `json:"importFromIranMw"`
	UpdatedAt        string   `json:"updatedAt"`
}

// FetchExchange returns the net flow on the IQ-IR interconnection. Endpoint
// order at the call site is irrelevant: the canonical key sorts to IQ->IR
// and the sign is flipped accordingly.
func FetchExchange(ctx context.Context, zone1, zone2 model.ZoneKey, s parser.Session, target *time.Time, log logger.Logger) ([]model.ExchangeEvent, error) {
	const name = "geca.FetchExchange"
	key, _, err := model.NewExchangeKey(zone1, zone2)
	if err != nil {
		return nil, parser.Wrap(name, string(zone1)+"/"+string(zone2), err)
	}
	if key != "IQ->IR" {
		return nil, parser.Errorf(name, string(key), "feed only serves the IQ-IR interconnection")
	}
	if target != nil {
		return nil, parser.ErrHistoricalNotSupported
	}

	var r tieLineReading
	if err := s.GetJSON(ctx, apiURL, &r); err != nil {
		return nil, parser.Wrap(name, string(key), err)
	}
	if r.ImportFromIranMW == nil {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, r.UpdatedAt)
	if err != nil {
		return nil, parser.Wrap(name, string(key), err)
	}

	now := nowFn()
	parser.WarnIfStale("IQ", at, now, log)
	// Express the reading in the upstream's native direction and let the
	// constructor canonicalize.
	ev, err := model.NewExchangeEvent("IR", "IQ", at, *r.ImportFromIranMW, sourceHost, model.WithNow(now))
	if err != nil {
		return nil, parser.Wrap(name, string(key), err)
	}
	return []model.ExchangeEvent{ev}, nil
}
