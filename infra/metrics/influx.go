package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/gridfeed/core/metrics"
	"github.com/kilianp07/gridfeed/infra/logger"
)

// InfluxSink writes tick telemetry to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTick writes the tick result as a line protocol point.
func (s *InfluxSink) RecordTick(res coremetrics.TickResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("feed_tick").
		AddTag("key", res.Key).
		AddTag("kind", string(res.Kind)).
		AddTag("state", string(res.State)).
		AddTag("tick_id", res.TickID).
		AddTag("component", "runner").
		AddField("events", res.Events).
		AddField("score", round3(res.Score)).
		AddField("duration_ms", round3(res.Duration.Seconds()*1000))
	if res.Error != "" {
		p.AddField("errors", res.Error)
	}
	p.SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordValidation persists the outcome of validating one batch.
func (s *InfluxSink) RecordValidation(ev coremetrics.ValidationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("feed_validation").
		AddTag("key", ev.Key).
		AddTag("kind", string(ev.Kind)).
		AddTag("component", "validation")
	if ev.Predicate != "" {
		p = p.AddTag("predicate", ev.Predicate)
	}
	p = p.AddField("score", round3(ev.Score)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCarbon writes a carbon intensity reading.
func (s *InfluxSink) RecordCarbon(ev coremetrics.CarbonEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("feed_carbon_intensity").
		AddTag("zone", string(ev.Zone)).
		AddTag("component", "runner").
		AddField("gco2eq_kwh", round3(ev.Intensity)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
