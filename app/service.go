// Package app assembles the feed service from configuration: registry,
// store, validation, runner, metrics sinks, optional MQTT forwarding and
// the read API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kilianp07/gridfeed/api/feed"
	"github.com/kilianp07/gridfeed/config"
	coremetrics "github.com/kilianp07/gridfeed/core/metrics"
	coremqtt "github.com/kilianp07/gridfeed/core/mqtt"
	"github.com/kilianp07/gridfeed/core/registry"
	"github.com/kilianp07/gridfeed/core/runner"
	"github.com/kilianp07/gridfeed/core/store"
	"github.com/kilianp07/gridfeed/core/validation"
	"github.com/kilianp07/gridfeed/infra/fetch"
	"github.com/kilianp07/gridfeed/infra/logger"
	inframetrics "github.com/kilianp07/gridfeed/infra/metrics"
	"github.com/kilianp07/gridfeed/infra/mqtt"
	"github.com/kilianp07/gridfeed/internal/eventbus"

	// Register the shipped parsers.
	_ "github.com/kilianp07/gridfeed/parsers/cammesa"
	_ "github.com/kilianp07/gridfeed/parsers/entsoe"
	_ "github.com/kilianp07/gridfeed/parsers/geca"
	_ "github.com/kilianp07/gridfeed/parsers/kseb"
)

// Service orchestrates the runner, the read API and the optional consumers.
type Service struct {
	Runner *runner.Runner
	Store  *store.LatestStore

	jobs      []runner.Job
	api       *feed.Server
	apiAddr   string
	forwarder *mqtt.Forwarder
	publisher coremqtt.Publisher
	promPort  string
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	reg, disabled, err := registry.Build(cfg.Bindings(), os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	for _, d := range disabled {
		logg.Warnw("binding disabled", map[string]any{
			"binding": d.Binding.String(), "reason": d.Reason.Error(),
		})
	}

	st := store.New()
	driver := validation.NewDriver(cfg.ValidationEnv(), logger.New("validation"))
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	bus := eventbus.New[runner.Publication]()
	session := fetch.NewSession()
	run := runner.New(cfg.Runner.ToRunner(), reg, st, driver, sink, bus, session, logger.New("runner"))

	svc := &Service{
		Runner:  run,
		Store:   st,
		jobs:    cfg.Jobs(reg.Bindings()),
		api:     feed.NewServer(st, cfg.API.Freshness(), logger.New("api")),
		apiAddr: cfg.API.Addr,
		log:     logg,
	}

	for _, mc := range cfg.Metrics.Sinks {
		if mc.Type == "prometheus" {
			svc.promPort = cfg.Metrics.PrometheusPort
			if svc.promPort == "" {
				svc.promPort = ":9090"
			}
		}
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.publisher = client
		svc.forwarder = mqtt.NewForwarder(client, bus, cfg.MQTT.TopicPrefix)
	}
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Runner.Run(ctx, s.jobs)
	if s.forwarder != nil {
		go s.forwarder.Run(ctx)
	}
	if s.promPort != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.apiAddr, Handler: s.api.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("read API listening on %s", s.apiAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	return nil
}
