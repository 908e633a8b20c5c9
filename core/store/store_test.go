package store

import (
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/gridfeed/core/model"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func prodAt(t *testing.T, at time.Time, hydro float64) model.ProductionEvent {
	t.Helper()
	ev, err := model.NewProductionEvent("FR", at, model.Mix{model.ModeHydro: model.F(hydro)}, "src", model.WithNow(base))
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	return ev
}

func TestUpsert_StrictNewerWins(t *testing.T) {
	s := New()
	// t, t+5m, t+3m, t+5m: the first t+5m event must survive.
	first := prodAt(t, base, 1)
	newer := prodAt(t, base.Add(5*time.Minute), 2)
	middle := prodAt(t, base.Add(3*time.Minute), 3)
	equal := prodAt(t, base.Add(5*time.Minute), 4)

	if !s.Upsert(first) || !s.Upsert(newer) {
		t.Fatalf("initial upserts rejected")
	}
	if s.Upsert(middle) {
		t.Fatalf("older event replaced newer")
	}
	if s.Upsert(equal) {
		t.Fatalf("equal timestamp replaced held event")
	}
	held, ok := s.Latest("FR", model.KindProduction)
	if !ok {
		t.Fatalf("nothing held")
	}
	if *held.(model.ProductionEvent).Production[model.ModeHydro] != 2 {
		t.Fatalf("wrong survivor: %#v", held)
	}
}

func TestSnapshot_OmitsMissingZones(t *testing.T) {
	s := New()
	s.Upsert(prodAt(t, base, 100))
	snap := s.Snapshot([]model.ZoneKey{"FR", "DE"}, []model.Kind{model.KindProduction, model.KindPrice})
	if _, ok := snap["DE"]; ok {
		t.Fatalf("zone without data present in snapshot")
	}
	if _, ok := snap["FR"][model.KindProduction]; !ok {
		t.Fatalf("held event missing from snapshot")
	}
	if _, ok := snap["FR"][model.KindPrice]; ok {
		t.Fatalf("kind without data present in snapshot")
	}
}

func TestLatestByKind_SeparatesKinds(t *testing.T) {
	s := New()
	s.Upsert(prodAt(t, base, 100))
	price, err := model.NewPriceEvent("FR", base, 42, "EUR", "src", model.WithNow(base))
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	s.Upsert(price)
	if got := s.LatestByKind(model.KindProduction); len(got) != 1 {
		t.Fatalf("production view: %#v", got)
	}
	if got := s.LatestByKind(model.KindPrice); len(got) != 1 {
		t.Fatalf("price view: %#v", got)
	}
}

func TestFreshestAge(t *testing.T) {
	s := New()
	if _, ok := s.FreshestAge(base); ok {
		t.Fatalf("empty store reported freshness")
	}
	s.Upsert(prodAt(t, base.Add(-30*time.Minute), 1))
	age, ok := s.FreshestAge(base)
	if !ok || age != 30*time.Minute {
		t.Fatalf("age %v ok=%v", age, ok)
	}
}

func TestFreshestAge_FutureEventsCountByDistance(t *testing.T) {
	s := New()
	price, err := model.NewPriceEvent("FR", base.Add(10*time.Hour), 42, "EUR", "src", model.WithNow(base))
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	s.Upsert(price)
	age, ok := s.FreshestAge(base)
	if !ok || age != 10*time.Hour {
		t.Fatalf("age %v ok=%v, want 10h", age, ok)
	}

	// A recent measured event wins over the day-ahead point.
	s.Upsert(prodAt(t, base.Add(-15*time.Minute), 1))
	age, ok = s.FreshestAge(base)
	if !ok || age != 15*time.Minute {
		t.Fatalf("age %v ok=%v, want 15m", age, ok)
	}
}

func TestUpsert_Concurrent(t *testing.T) {
	s := New()
	events := make([]model.ProductionEvent, 32)
	for i := range events {
		events[i] = prodAt(t, base.Add(time.Duration(i)*time.Minute), float64(i))
	}
	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev model.ProductionEvent) {
			defer wg.Done()
			s.Upsert(ev)
		}(ev)
	}
	wg.Wait()
	held, ok := s.Latest("FR", model.KindProduction)
	if !ok || !held.At().Equal(base.Add(31*time.Minute)) {
		t.Fatalf("newest event did not win: %#v", held)
	}
}
