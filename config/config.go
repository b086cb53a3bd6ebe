package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	RPCAddress     string    `toml:"RPCAddress"`
	DataDir        string    `toml:"DataDir"`
	Backend        string    `toml:"Backend"`
	AdminAddress   string    `toml:"AdminAddress"`
	GenesisFile    string    `toml:"GenesisFile"`
	EventIndexPath string    `toml:"EventIndexPath"`
	PausedModules  []string  `toml:"PausedModules"`
	Environment    string    `toml:"Environment"`
	LogLevel       string    `toml:"LogLevel"`
	LogFile        string    `toml:"LogFile"`
	LogMaxSizeMB   int       `toml:"LogMaxSizeMB"`
	RateLimit      RateLimit `toml:"rate_limit"`
	RPCAuth        RPCAuth   `toml:"rpc_auth"`
	Telemetry      Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s: unknown fields %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	cfg := &Config{
		RPCAddress:     "127.0.0.1:8545",
		DataDir:        "./escrow-data",
		Backend:        "leveldb",
		EventIndexPath: "./escrow-data/events.db",
		PausedModules:  []string{},
		Environment:    "local",
		LogLevel:       "info",
		RateLimit:      RateLimit{RequestsPerMinute: 120, Burst: 20},
		Telemetry:      Telemetry{ServiceName: "escrowd"},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaults.RPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = defaults.Backend
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = defaults.Environment
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaults.LogLevel
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}
}

// Admin returns the parsed registry administrator, or the zero address when
// none is configured.
func (c *Config) Admin() common.Address {
	trimmed := strings.TrimSpace(c.AdminAddress)
	if trimmed == "" || !common.IsHexAddress(trimmed) {
		return common.Address{}
	}
	return common.HexToAddress(trimmed)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
