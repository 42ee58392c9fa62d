package di

import (
	"testing"

	"VendorLink/pkg/config"
)

func TestInitializeVendorOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	app, err := InitializeApp(cfg)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if app.HTTP() == nil {
		t.Fatalf("expected an http server")
	}
}

func TestRoleProvidersFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	if w := ProvideRecordWriter(cfg, nil, nil); w != nil {
		t.Fatalf("expected no writer without signals_url and token")
	}
	if e := ProvideHeartbeatEmitter(cfg, ProvideHeartbeatSender(cfg, nil, nil), nil, nil); e != nil {
		t.Fatalf("expected no emitter without api_url")
	}
	if i := ProvideIngestor(cfg, nil, nil, nil, nil, nil); i != nil {
		t.Fatalf("expected no ingestor while infra is disabled")
	}
	if c, err := ProvideKafkaConsumer(cfg, nil); c != nil || err != nil {
		t.Fatalf("expected no consumer, got %v %v", c, err)
	}

	cfg.Vendor.SignalsURL = "http://infra.local/api/signals/store"
	cfg.Vendor.Token = "tok"
	cfg.Vendor.APIURL = "http://api.local"
	cfg.Vendor.DeploymentID = "dep_1"
	if w := ProvideRecordWriter(cfg, nil, nil); w == nil {
		t.Fatalf("expected a writer")
	}
	if e := ProvideHeartbeatEmitter(cfg, ProvideHeartbeatSender(cfg, nil, nil), nil, nil); e == nil {
		t.Fatalf("expected an emitter")
	}
}
