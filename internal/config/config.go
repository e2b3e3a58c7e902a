package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// NodeConfig is the top-level stylusctl configuration.
type NodeConfig struct {
	Name string        `toml:"name"`
	RPC  RPCConfig     `toml:"rpc"`
	API  APIConfig     `toml:"api"`
	Retr BackoffConfig `toml:"backoff"`
}

// RPCConfig selects the execution-layer JSON-RPC endpoints.
type RPCConfig struct {
	URL            string   `toml:"url"`
	Secondary      []string `toml:"secondary"`
	From           string   `toml:"from"`
	JWTSecretPath  string   `toml:"jwt_secret_path"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// APIConfig configures the optional status API surface.
type APIConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// BackoffConfig tunes caller-side retries of failed external calls.
type BackoffConfig struct {
	InitialDelayMS int     `toml:"initial_delay_ms"`
	MaxDelayMS     int     `toml:"max_delay_ms"`
	Multiplier     float64 `toml:"multiplier"`
	Jitter         bool    `toml:"jitter"`
	MaxAttempts    int     `toml:"max_attempts"`
}

// DevAccount is the prefunded account of the nitro dev node.
const DevAccount = "0x3f1Eae7D46d88F08fc2F8ed27FCb2AB183EB2d0E"

func LoadNodeConfig(path string) (NodeConfig, error) {
	var cfg NodeConfig
	if err := loadToml(path, &cfg); err != nil {
		return NodeConfig{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// DefaultNodeConfig returns the configuration used when no file is given.
func DefaultNodeConfig() NodeConfig {
	cfg := NodeConfig{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *NodeConfig) {
	if cfg.Name == "" {
		cfg.Name = "stylusctl"
	}
	if cfg.RPC.URL == "" {
		cfg.RPC.URL = "http://localhost:8547"
	}
	if cfg.RPC.From == "" {
		cfg.RPC.From = DevAccount
	}
	if cfg.RPC.TimeoutSeconds == 0 {
		cfg.RPC.TimeoutSeconds = 30
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":9040"
	}
	if cfg.Retr.InitialDelayMS == 0 {
		cfg.Retr.InitialDelayMS = 250
	}
	if cfg.Retr.MaxDelayMS == 0 {
		cfg.Retr.MaxDelayMS = 5000
	}
	if cfg.Retr.Multiplier == 0 {
		cfg.Retr.Multiplier = 2.0
	}
	if cfg.Retr.MaxAttempts == 0 {
		cfg.Retr.MaxAttempts = 5
	}
}

// ValidateNodeConfig rejects configurations the runtime cannot act on.
func ValidateNodeConfig(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config: name is required")
	}
	if !strings.HasPrefix(cfg.RPC.URL, "http://") && !strings.HasPrefix(cfg.RPC.URL, "https://") {
		return fmt.Errorf("config: rpc url must be http(s), got %q", cfg.RPC.URL)
	}
	for _, u := range cfg.RPC.Secondary {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("config: secondary rpc url must be http(s), got %q", u)
		}
	}
	if !strings.HasPrefix(cfg.RPC.From, "0x") || len(cfg.RPC.From) != 42 {
		return fmt.Errorf("config: from must be a 0x-prefixed address, got %q", cfg.RPC.From)
	}
	if cfg.RPC.TimeoutSeconds < 0 {
		return fmt.Errorf("config: timeout_seconds must be non-negative")
	}
	if cfg.Retr.Multiplier < 1.0 {
		return fmt.Errorf("config: backoff multiplier must be >= 1.0")
	}
	if cfg.Retr.MaxAttempts < 1 {
		return fmt.Errorf("config: backoff max_attempts must be >= 1")
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
