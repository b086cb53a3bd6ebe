package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8545" || cfg.Backend != "leveldb" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RateLimit != cfg.RateLimit || reloaded.EventIndexPath != cfg.EventIndexPath {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadParsesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
Backend = "bolt"
AdminAddress = "0x00000000000000000000000000000000000000a0"
GenesisFile = "genesis.yaml"
PausedModules = ["escrow"]
LogLevel = "debug"

[rate_limit]
RequestsPerMinute = 30
Burst = 5

[telemetry]
Endpoint = "otel:4318"
Traces = true
SampleRatio = 0.25
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Backend != "bolt" || cfg.GenesisFile != "genesis.yaml" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Admin() != common.HexToAddress("0xa0") {
		t.Fatalf("admin = %s", cfg.Admin().Hex())
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "escrow" {
		t.Fatalf("paused modules = %v", cfg.PausedModules)
	}
	if cfg.RateLimit.RequestsPerMinute != 30 || cfg.RateLimit.Burst != 5 {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.SampleRatio != 0.25 || cfg.Telemetry.ServiceName != "escrowd" {
		t.Fatalf("telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Environment != "local" {
		t.Fatalf("environment default not applied: %q", cfg.Environment)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ListenAddress = \":6001\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ListenAddress") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory backend without data dir", mutate: func(c *Config) { c.Backend = "memory"; c.DataDir = "" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "rocks" }, wantErr: "Backend"},
		{name: "bad admin", mutate: func(c *Config) { c.AdminAddress = "escrow1xyz" }, wantErr: "AdminAddress"},
		{name: "zero admin", mutate: func(c *Config) { c.AdminAddress = "0x0000000000000000000000000000000000000000" }, wantErr: "zero address"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LogLevel"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit.RequestsPerMinute = -1 }, wantErr: "rate_limit"},
		{name: "rate without burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: "Burst"},
		{name: "sample ratio", mutate: func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, wantErr: "SampleRatio"},
		{name: "exporter without endpoint", mutate: func(c *Config) { c.Telemetry.Metrics = true }, wantErr: "Endpoint"},
		{name: "issuer without secret", mutate: func(c *Config) { c.RPCAuth.Issuer = "gw" }, wantErr: "SecretEnv"},
		{name: "negative log size", mutate: func(c *Config) { c.LogMaxSizeMB = -5 }, wantErr: "LogMaxSizeMB"},
		{name: "blank paused module", mutate: func(c *Config) { c.PausedModules = []string{" "} }, wantErr: "PausedModules"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
