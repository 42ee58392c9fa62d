package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 || c.Vendor.ModelVersion != "1.0.0" || c.Vendor.Task != "signal" {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.Vendor.HeartbeatInterval != 30*time.Second || c.Infra.DedupTTL != 10*time.Minute {
		t.Fatalf("unexpected duration defaults %v %v", c.Vendor.HeartbeatInterval, c.Infra.DedupTTL)
	}
	if c.Vendor.WriterEnabled() || c.Vendor.HeartbeatEnabled() {
		t.Fatalf("writer and heartbeat should be disabled without credentials")
	}
	if !c.Server.CORS || c.Kafka.Consumer.AutoOffsetReset != "earliest" {
		t.Fatalf("unexpected transport defaults cors=%v reset=%q", c.Server.CORS, c.Kafka.Consumer.AutoOffsetReset)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
vendor:
  task: optimizer
  signals_url: http://infra.local/api/signals
  token: secret
infra:
  enabled: true
  tokens: [a, b]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Vendor.Task != "optimizer" || !c.Vendor.WriterEnabled() || len(c.Infra.Tokens) != 2 {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.Vendor.ModelVersion != "1.0.0" {
		t.Fatalf("expected defaults to survive a partial file")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(lookup(map[string]string{
		"MODEL_VERSION":       "2.1.0",
		"DEPLOYMENT_ID":       "dep_1",
		"MARKETPLACE_API_URL": "http://api.local",
		"MARKETPLACE_TOKEN":   "tok",
		"HEARTBEAT_INTERVAL":  "15000",
		"PORT":                "9090",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
		"REDIS_ADDR":          "redis:6380",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if c.Vendor.ModelVersion != "2.1.0" || c.Server.Port != 9090 {
		t.Fatalf("unexpected overrides %+v", c)
	}
	if c.Vendor.HeartbeatInterval != 15*time.Second || !c.Vendor.HeartbeatEnabled() {
		t.Fatalf("unexpected heartbeat config %+v", c.Vendor)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Fatalf("unexpected kafka config %+v", c.Kafka)
	}
	if !c.Redis.Enabled || c.Redis.Host != "redis" || c.Redis.Port != 6380 {
		t.Fatalf("unexpected redis config %+v", c.Redis)
	}

	c = Default()
	if err := c.ApplyEnv(lookup(map[string]string{"HEARTBEAT_INTERVAL": "45s"})); err != nil || c.Vendor.HeartbeatInterval != 45*time.Second {
		t.Fatalf("expected duration syntax, got %v %v", c.Vendor.HeartbeatInterval, err)
	}
	if err := Default().ApplyEnv(lookup(map[string]string{"PORT": "http"})); err == nil {
		t.Fatalf("expected bad port to fail")
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Vendor.Task = "forecast"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected unknown task to fail")
	}

	c = Default()
	c.Kafka.Enabled = true
	if err := c.Validate(); err == nil {
		t.Fatalf("expected kafka without brokers to fail")
	}

	c = Default()
	c.Vendor.Enabled = false
	if err := c.Validate(); err == nil {
		t.Fatalf("expected a config with no role to fail")
	}
}
