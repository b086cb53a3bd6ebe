package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var validBackends = map[string]struct{}{
	"leveldb": {},
	"bolt":    {},
	"memory":  {},
}

var validLogLevels = map[string]struct{}{
	"debug":   {},
	"info":    {},
	"warn":    {},
	"warning": {},
	"error":   {},
}

// Validate reports the first inconsistency in cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if _, ok := validBackends[backend]; !ok {
		return fmt.Errorf("config: unsupported Backend %q", cfg.Backend)
	}
	if backend != "memory" && strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set for the %s backend", backend)
	}
	if admin := strings.TrimSpace(cfg.AdminAddress); admin != "" {
		if !common.IsHexAddress(admin) {
			return fmt.Errorf("config: AdminAddress %q is not a hex address", cfg.AdminAddress)
		}
		if common.HexToAddress(admin) == (common.Address{}) {
			return fmt.Errorf("config: AdminAddress must not be the zero address")
		}
	}
	if _, ok := validLogLevels[strings.ToLower(strings.TrimSpace(cfg.LogLevel))]; !ok {
		return fmt.Errorf("config: unsupported LogLevel %q", cfg.LogLevel)
	}
	if cfg.LogMaxSizeMB < 0 {
		return fmt.Errorf("config: LogMaxSizeMB must be non-negative")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must be non-negative")
	}
	if cfg.RateLimit.RequestsPerMinute > 0 && cfg.RateLimit.Burst == 0 {
		return fmt.Errorf("rate_limit: Burst must be positive when the limiter is enabled")
	}
	if cfg.RPCAuth.ClockSkewSeconds < 0 {
		return fmt.Errorf("rpc_auth: ClockSkewSeconds must be non-negative")
	}
	if strings.TrimSpace(cfg.RPCAuth.SecretEnv) == "" && strings.TrimSpace(cfg.RPCAuth.Issuer) != "" {
		return fmt.Errorf("rpc_auth: Issuer set without SecretEnv")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	if (cfg.Telemetry.Metrics || cfg.Telemetry.Traces) && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required when an exporter is enabled")
	}
	for _, module := range cfg.PausedModules {
		if strings.TrimSpace(module) == "" {
			return fmt.Errorf("config: PausedModules contains an empty name")
		}
	}
	return nil
}
