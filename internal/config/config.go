package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration
type Config struct {
	ListenAddr        string   `toml:"listen_addr" yaml:"listen_addr"`
	DatabaseURL       string   `toml:"database_url" yaml:"database_url"`
	ProgramID         string   `toml:"program_id" yaml:"program_id"`
	JWTSecret         string   `toml:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL          Duration `toml:"token_ttl" yaml:"token_ttl"`
	LogLevel          string   `toml:"log_level" yaml:"log_level"`
	AllowedOrigins    []string `toml:"allowed_origins" yaml:"allowed_origins"`
	BroadcastInterval Duration `toml:"broadcast_interval" yaml:"broadcast_interval"`
}

// Duration is a time.Duration that reads "90s" style strings from config files
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		ListenAddr:        ":8080",
		JWTSecret:         "my-secret-key",
		TokenTTL:          Duration{24 * time.Hour},
		LogLevel:          "info",
		AllowedOrigins:    []string{"http://localhost:3000"},
		BroadcastInterval: Duration{time.Second},
	}
}

// Load reads the config file at path on top of the defaults and applies
// environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AUCTION_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("AUCTION_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("AUCTION_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.TokenTTL.Duration <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if c.BroadcastInterval.Duration <= 0 {
		return fmt.Errorf("broadcast_interval must be positive")
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	return nil
}

// Program returns the auction program id. Without program_id it falls back
// to a fixed id so a restarted server finds its own records.
func (c *Config) Program() (solana.PublicKey, error) {
	if c.ProgramID == "" {
		return solana.PublicKeyFromBytes(defaultProgramSeed[:]), nil
	}
	pk, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program_id: %w", err)
	}
	return pk, nil
}

var defaultProgramSeed = sha256.Sum256([]byte("auctionhouse"))
