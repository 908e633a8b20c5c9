package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	coremqtt "github.com/kilianp07/gridfeed/core/mqtt"
	"github.com/kilianp07/gridfeed/core/runner"
	"github.com/kilianp07/gridfeed/infra/logger"
	"github.com/kilianp07/gridfeed/internal/eventbus"
)

// Forwarder relays published batches from the event bus to broker topics of
// the form <prefix>/<key>/<kind>. Exchange arrows are flattened so the topic
// stays a plain path segment.
type Forwarder struct {
	pub    coremqtt.Publisher
	bus    *eventbus.Bus[runner.Publication]
	prefix string
	log    logger.Logger
}

// NewForwarder creates a Forwarder publishing under the given topic prefix.
func NewForwarder(pub coremqtt.Publisher, bus *eventbus.Bus[runner.Publication], prefix string) *Forwarder {
	if prefix == "" {
		prefix = "grid"
	}
	return &Forwarder{
		pub:    pub,
		bus:    bus,
		prefix: prefix,
		log:    logger.New("mqtt_forwarder"),
	}
}

// Run consumes the bus until the context is canceled. It blocks.
func (f *Forwarder) Run(ctx context.Context) {
	sub := f.bus.Subscribe()
	defer f.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case pub, ok := <-sub:
			if !ok {
				return
			}
			f.forward(pub)
		}
	}
}

func (f *Forwarder) forward(pub runner.Publication) {
	payload, err := json.Marshal(struct {
		TickID string  `json:"tickId"`
		Key    string  `json:"key"`
		Kind   string  `json:"kind"`
		Score  float64 `json:"score"`
		Events any     `json:"events"`
	}{
		TickID: pub.TickID,
		Key:    pub.Key,
		Kind:   string(pub.Kind),
		Score:  pub.Score,
		Events: pub.Events,
	})
	if err != nil {
		f.log.Errorf("marshal publication %s: %v", pub.TickID, err)
		return
	}
	topic := f.Topic(pub.Key, string(pub.Kind))
	if err := f.pub.Publish(topic, payload); err != nil {
		f.log.Errorf("publish %s to %s: %v", pub.TickID, topic, err)
	}
}

// Topic returns the broker topic for a (key, kind) pair.
func (f *Forwarder) Topic(key, kind string) string {
	key = strings.ReplaceAll(key, "->", "-")
	return f.prefix + "/" + key + "/" + kind
}
