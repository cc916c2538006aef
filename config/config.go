// Package config handles application configuration for the UaaS indexer.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies which Bitcoin-SV-family network to follow.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	STN     NetworkType = "stn"
)

// Config holds the full recognised configuration surface (§6).
type Config struct {
	// Core
	Network   NetworkType `conf:"network"`
	DataDir   string      `conf:"datadir"`
	UserAgent string      `conf:"useragent"`

	Net      NetConfig
	Database DatabaseConfig
	Orphan   OrphanConfig
	REST     RESTConfig
	Log      LogConfig

	// Dynamic-config file path and static collection list.
	DynamicConfigFile string             `conf:"dynamic_config_file"`
	Collections       []CollectionConfig `conf:"-"`
}

// NetConfig holds per-network peer and ingest settings.
type NetConfig struct {
	IPs                     []string `conf:"net.ips"`
	Port                    int      `conf:"net.port"`
	TimeoutPeriod           int      `conf:"net.timeout_period"`
	BlockRequestPeriod      int      `conf:"net.block_request_period"`
	StartBlockHash          string   `conf:"net.start_block_hash"`
	StartBlockHeight        uint64   `conf:"net.start_block_height"`
	StartupLoadFromDatabase bool     `conf:"net.startup_load_from_database"`
	BlockFile               string   `conf:"net.block_file"`
	SaveBlocks              bool     `conf:"net.save_blocks"`
	SaveTxs                 bool     `conf:"net.save_txs"`
}

// DatabaseConfig holds relational-store connection and retry settings.
type DatabaseConfig struct {
	URL       string `conf:"database.url"`
	DockerURL string `conf:"database.docker_url"`
	MsDelay   int    `conf:"database.ms_delay"`
	Retries   int    `conf:"database.retries"`
}

// OrphanConfig toggles one-step tip-reorg detection (§4.G).
type OrphanConfig struct {
	Detect bool `conf:"orphan.detect"`
}

// RESTConfig holds the external REST surface bind address (§6).
type RESTConfig struct {
	Addr string `conf:"rest.addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// CollectionConfig describes one statically configured collection (§4.D).
type CollectionConfig struct {
	Name             string `json:"name"`
	Address          string `json:"address,omitempty"`
	Regex            string `json:"regex,omitempty"`
	TrackDescendants bool   `json:"track_descendants"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.uaas
//	macOS:   ~/Library/Application Support/UaaS
//	Windows: %APPDATA%\UaaS
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".uaas"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "UaaS")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "UaaS")
		}
		return filepath.Join(home, "AppData", "Roaming", "UaaS")
	default:
		return filepath.Join(home, ".uaas")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "uaas.conf")
}

// EffectiveDatabaseURL selects the docker URL when APP_ENV is set and a
// docker URL is configured, and the direct URL otherwise (§6).
func (c *Config) EffectiveDatabaseURL() string {
	if os.Getenv("APP_ENV") != "" && c.Database.DockerURL != "" {
		return c.Database.DockerURL
	}
	return c.Database.URL
}
