package factory_test

import (
	"strings"
	"testing"

	"github.com/kilianp07/gridfeed/core/factory"
	"github.com/kilianp07/gridfeed/core/metrics"
)

// thresholdSink drops tick results below a configured score floor.
type thresholdSink struct {
	minScore float64
	kept     []metrics.TickResult
}

func (s *thresholdSink) RecordTick(res metrics.TickResult) error {
	if res.Score >= s.minScore {
		s.kept = append(s.kept, res)
	}
	return nil
}

func newSinkRegistry(t *testing.T) *factory.Registry[metrics.Sink] {
	t.Helper()
	reg := factory.NewRegistry[metrics.Sink]()
	if err := reg.Register("nop", func(map[string]any) (metrics.Sink, error) {
		return metrics.NopSink{}, nil
	}); err != nil {
		t.Fatalf("register nop: %v", err)
	}
	if err := reg.Register("threshold", func(conf map[string]any) (metrics.Sink, error) {
		var c struct {
			MinScore float64 `json:"min_score"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return &thresholdSink{minScore: c.MinScore}, nil
	}); err != nil {
		t.Fatalf("register threshold: %v", err)
	}
	return reg
}

func TestCreateDecodesSinkConf(t *testing.T) {
	reg := newSinkRegistry(t)
	sink, err := reg.Create(factory.ModuleConfig{
		Type: "threshold",
		Conf: map[string]any{"min_score": 0.8},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ts, ok := sink.(*thresholdSink)
	if !ok || ts.minScore != 0.8 {
		t.Fatalf("sink = %#v", sink)
	}
	_ = ts.RecordTick(metrics.TickResult{Score: 0.9})
	_ = ts.RecordTick(metrics.TickResult{Score: 0.5})
	if len(ts.kept) != 1 {
		t.Fatalf("kept %d results, want 1", len(ts.kept))
	}
}

func TestCreateUnknownTypeNamesAlternatives(t *testing.T) {
	reg := newSinkRegistry(t)
	_, err := reg.Create(factory.ModuleConfig{Type: "influxx"})
	if err == nil {
		t.Fatal("unknown type must error")
	}
	if !strings.Contains(err.Error(), "nop, threshold") {
		t.Fatalf("error does not list registered types: %v", err)
	}
}

func TestRegisterRejectsNilAndDuplicate(t *testing.T) {
	reg := newSinkRegistry(t)
	if err := reg.Register("nil", nil); err == nil {
		t.Fatal("nil factory accepted")
	}
	if err := reg.Register("nop", func(map[string]any) (metrics.Sink, error) {
		return metrics.NopSink{}, nil
	}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestKnownIsSorted(t *testing.T) {
	reg := newSinkRegistry(t)
	got := reg.Known()
	if len(got) != 2 || got[0] != "nop" || got[1] != "threshold" {
		t.Fatalf("known = %v", got)
	}
}
