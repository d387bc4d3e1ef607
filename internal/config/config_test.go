package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Dispatch.BasePerOrderCents != 600 {
		t.Fatalf("base per order = %d, want 600", cfg.Dispatch.BasePerOrderCents)
	}
	if cfg.Dispatch.CommissionBps != 500 {
		t.Fatalf("commission = %d bps, want 500", cfg.Dispatch.CommissionBps)
	}
	if cfg.Dispatch.MaxOrders != 6 {
		t.Fatalf("max orders = %d, want 6", cfg.Dispatch.MaxOrders)
	}
	if cfg.Dispatch.MaxWait != 10*time.Minute {
		t.Fatalf("max wait = %v, want 10m", cfg.Dispatch.MaxWait)
	}
	if cfg.Rabbit.Exchange != "dispatch_topic" {
		t.Fatalf("exchange = %q, want dispatch_topic", cfg.Rabbit.Exchange)
	}
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  port: \"9000\"\ndispatch:\n  maxWait: 5m\n  poolThreshold: 3\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DISPATCH_POOL_THRESHOLD", "9")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Fatalf("port = %q, want 9000", cfg.Server.Port)
	}
	if cfg.Dispatch.MaxWait != 5*time.Minute {
		t.Fatalf("max wait = %v, want 5m", cfg.Dispatch.MaxWait)
	}
	if cfg.Dispatch.PoolThreshold != 9 {
		t.Fatalf("pool threshold = %d, want env override 9", cfg.Dispatch.PoolThreshold)
	}
}

func TestGetFallback(t *testing.T) {
	t.Setenv("DISPATCH_TEST_KEY", "")
	if got := Get("DISPATCH_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("Get = %q, want fallback", got)
	}
	t.Setenv("DISPATCH_TEST_KEY", "set")
	if got := Get("DISPATCH_TEST_KEY", "fallback"); got != "set" {
		t.Fatalf("Get = %q, want set", got)
	}
}
