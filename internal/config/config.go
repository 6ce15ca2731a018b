// Package config loads reactord's on-disk and environment configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	PeerID    string         `yaml:"peer_id"`
	ClusterID string         `yaml:"cluster_id"`
	DataDir   string         `yaml:"data_dir"`
	Cache     CacheConfig    `yaml:"cache"`
	Log       LogConfig      `yaml:"log"`
	Backfill  BackfillConfig `yaml:"backfill"`
	Blueprint []PeerRoles    `yaml:"blueprint"`
}

// PeerRoles is one peer's static region/role assignments, as read from the
// config file's blueprint section. A real deployment would watch these
// from an external orchestrator instead; run loads them once at startup.
type PeerRoles struct {
	PeerID  string       `yaml:"peer_id"`
	Regions []RegionRole `yaml:"regions"`
}

type RegionRole struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
	Role  string `yaml:"role"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type BackfillConfig struct {
	Concurrency int           `yaml:"concurrency"`
	AckTimeout  time.Duration `yaml:"ack_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: "",
		Cache: CacheConfig{
			TTL:        60 * time.Second,
			MaxEntries: 10000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Backfill: BackfillConfig{
			Concurrency: 4,
			AckTimeout:  30 * time.Second,
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup
// function, so tests can supply isolated environment values rather than
// mutating the real process environment.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if peerID := getenv("REACTORD_PEER_ID"); peerID != "" {
		cfg.PeerID = peerID
	}
	if clusterID := getenv("REACTORD_CLUSTER_ID"); clusterID != "" {
		cfg.ClusterID = clusterID
	}
	if dataDir := getenv("REACTORD_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	if cfg.PeerID == "" {
		return nil, fmt.Errorf("config: peer_id is required (set REACTORD_PEER_ID or peer_id in config file)")
	}

	return cfg, nil
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "reactord", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reactord", "config.yaml")
}
