package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/gridfeed/core/metrics"
)

func TestPromSink_RecordTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink, ok := sinkIf.(*PromSink)
	if !ok {
		t.Fatalf("expected PromSink")
	}
	res := coremetrics.TickResult{
		TickID:   "t1",
		Key:      "IN-KE",
		Kind:     "production",
		State:    coremetrics.TickPublished,
		Events:   1,
		Score:    1,
		Duration: 150 * time.Millisecond,
		Time:     time.Now(),
	}
	if err := sink.RecordTick(res); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP feed_ticks_total Total number of refresh ticks by terminal state
# TYPE feed_ticks_total counter
feed_ticks_total{key="IN-KE",kind="production",state="published"} 1
`
	if err := testutil.CollectAndCompare(sink.ticks, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	if c := testutil.CollectAndCount(sink.duration); c == 0 {
		t.Errorf("duration not recorded")
	}

	if err := sink.RecordFreshness(90 * time.Second); err != nil {
		t.Fatalf("freshness error: %v", err)
	}
	if v := testutil.ToFloat64(sink.freshness); v != 90 {
		t.Errorf("freshness gauge = %v, want 90", v)
	}

	if err := sink.RecordCarbon(coremetrics.CarbonEvent{Zone: "IN-KE", Intensity: 312.5}); err != nil {
		t.Fatalf("carbon error: %v", err)
	}
	if v := testutil.ToFloat64(sink.carbon.WithLabelValues("IN-KE")); v != 312.5 {
		t.Errorf("carbon gauge = %v, want 312.5", v)
	}
}

func TestPromSink_DroppedTickSkipsDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink := sinkIf.(*PromSink)
	if err := sink.RecordTick(coremetrics.TickResult{
		Key: "AR", Kind: "production", State: coremetrics.TickDropped,
	}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if c := testutil.CollectAndCount(sink.duration); c != 0 {
		t.Errorf("dropped tick should not observe a duration")
	}
}

func TestPromSink_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second create should reuse collectors: %v", err)
	}
}
