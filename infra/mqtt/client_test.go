package mqtt

import (
	"crypto/tls"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/gridfeed/infra/logger"
)

func TestNewClientOptionsAuth(t *testing.T) {
	cfg := Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "gridfeed",
		Username: "user",
		Password: "pass",
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Fatalf("credentials not applied")
	}
	if !opts.AutoReconnect {
		t.Fatal("auto reconnect must stay enabled")
	}
}

func TestNewClientOptionsTLSRequiresFiles(t *testing.T) {
	cfg := Config{Broker: "ssl://localhost:8883", ClientID: "gridfeed", UseTLS: true}
	if _, err := NewClientOptions(cfg); err == nil {
		t.Fatal("expected error without cert paths")
	}
}

func TestNewClientOptionsTLSDirectConfig(t *testing.T) {
	cfg := Config{
		Broker:    "ssl://localhost:8883",
		ClientID:  "gridfeed",
		UseTLS:    true,
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.TLSConfig == nil {
		t.Fatal("tls config not applied")
	}
}

type fakeToken struct{ err error }

func (f fakeToken) Wait() bool                       { return true }
func (f fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (f fakeToken) Done() <-chan struct{}            { ch := make(chan struct{}); close(ch); return ch }
func (f fakeToken) Error() error                     { return f.err }

type fakeClient struct {
	published map[string][]byte
	failFirst int
	calls     int
}

func (f *fakeClient) IsConnected() bool       { return true }
func (f *fakeClient) Connect() paho.Token     { return fakeToken{} }
func (f *fakeClient) Disconnect(quiesce uint) {}
func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.calls++
	if f.calls <= f.failFirst {
		return fakeToken{err: errors.New("broker unavailable")}
	}
	if f.published == nil {
		f.published = map[string][]byte{}
	}
	f.published[topic] = payload.([]byte)
	return fakeToken{}
}

func TestPublishRetries(t *testing.T) {
	cli := &fakeClient{failFirst: 2}
	p := &PahoClient{cli: cli, qos: 1, logger: logger.NopLogger{}, maxRetries: 3, backoff: 1}
	if err := p.Publish("grid/AR/production", []byte("{}")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if cli.calls != 3 {
		t.Fatalf("calls = %d, want 3", cli.calls)
	}
	if string(cli.published["grid/AR/production"]) != "{}" {
		t.Fatal("payload not delivered")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("disabled config should validate: %v", err)
	}
	if err := (Config{Enabled: true, ClientID: "feed"}).Validate(); err == nil {
		t.Fatal("missing broker should be rejected")
	}
	if err := (Config{Enabled: true, Broker: "tcp://localhost:1883"}).Validate(); err == nil {
		t.Fatal("missing client_id should be rejected")
	}
	if err := (Config{Enabled: true, Broker: "tcp://localhost:1883", ClientID: "feed", QoS: 3}).Validate(); err == nil {
		t.Fatal("qos 3 should be rejected")
	}
	ok := Config{Enabled: true, Broker: "tcp://localhost:1883", ClientID: "feed", QoS: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
