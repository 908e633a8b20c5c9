// Package export serializes canonical events for offline inspection.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/kilianp07/gridfeed/core/model"
)

// WriteJSON writes the events to w as an indented JSON array.
func WriteJSON(w io.Writer, events []model.Event) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// WriteCSV writes the events to w in a flat long format, one row per scalar.
// Production mixes expand to one row per fuel mode; modes reported as
// unknown are written with an empty value cell.
func WriteCSV(w io.Writer, events []model.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"key", "kind", "datetime", "metric", "value_mw"}); err != nil {
		return err
	}
	for _, ev := range events {
		for _, rec := range rows(ev) {
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func rows(ev model.Event) [][]string {
	base := func(metric, value string) []string {
		return []string{ev.Key(), string(ev.EventKind()), ev.At().Format(time.RFC3339), metric, value}
	}
	switch e := ev.(type) {
	case model.ProductionEvent:
		return mixRows(e, base)
	case model.ProductionPerModeForecastEvent:
		return mixRows(e.ProductionEvent, base)
	case model.ConsumptionEvent:
		return [][]string{base("consumption", num(e.Consumption))}
	case model.ConsumptionForecastEvent:
		return [][]string{base("consumption", num(e.Consumption))}
	case model.ExchangeEvent:
		return [][]string{base("netFlow", num(e.NetFlow))}
	case model.GenerationForecastEvent:
		return [][]string{base("generation", num(e.Generation))}
	case model.PriceEvent:
		return [][]string{base("price/"+e.Currency, num(e.Price))}
	case model.ProductionPerUnitEvent:
		return [][]string{base(string(e.Mode), num(e.Production))}
	default:
		return [][]string{base("value", "")}
	}
}

func mixRows(e model.ProductionEvent, base func(metric, value string) []string) [][]string {
	modes := make([]model.FuelMode, 0, len(e.Production))
	for mode := range e.Production {
		modes = append(modes, mode)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	out := make([][]string, 0, len(modes)+len(e.Storage))
	for _, mode := range modes {
		v := ""
		if p := e.Production[mode]; p != nil {
			v = num(*p)
		}
		out = append(out, base(string(mode), v))
	}
	storages := make([]model.StorageMode, 0, len(e.Storage))
	for mode := range e.Storage {
		storages = append(storages, mode)
	}
	sort.Slice(storages, func(i, j int) bool { return storages[i] < storages[j] })
	for _, mode := range storages {
		out = append(out, base(fmt.Sprintf("storage/%s", mode), num(e.Storage[mode])))
	}
	return out
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
