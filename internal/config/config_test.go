package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  read_timeout_seconds: 30
mongo:
  uri: mongodb://localhost:27017
redis:
  addr: localhost:6379
kafka:
  brokers:
    - localhost:9092
presence:
  ttl_seconds: 45
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("read timeout = %v", cfg.ReadTimeout)
	}
	if cfg.PresenceTTL != 45*time.Second {
		t.Errorf("presence ttl = %v", cfg.PresenceTTL)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
mongo:
  uri: mongodb://localhost:27017
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q", cfg.Server.Port)
	}
	if cfg.WriteTimeout != 15*time.Second {
		t.Errorf("default write timeout = %v", cfg.WriteTimeout)
	}
	if cfg.Mongo.Database != "sable" {
		t.Errorf("default database = %q", cfg.Mongo.Database)
	}
	if cfg.Kafka.Topic != "sable.changefeed" {
		t.Errorf("default topic = %q", cfg.Kafka.Topic)
	}
	if cfg.RateLimit.Limit != 120 || cfg.RateWindow != time.Minute {
		t.Errorf("default rate limit = %d per %v", cfg.RateLimit.Limit, cfg.RateWindow)
	}
	if cfg.PresignTTL != 15*time.Minute {
		t.Errorf("default presign ttl = %v", cfg.PresignTTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
