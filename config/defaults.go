package config

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network:   Mainnet,
		DataDir:   DefaultDataDir(),
		UserAgent: "/uaas:0.1.0/",
		Net: NetConfig{
			IPs:                     []string{},
			Port:                    8333,
			TimeoutPeriod:           90,
			BlockRequestPeriod:      1,
			StartupLoadFromDatabase: true,
			SaveBlocks:              false,
			SaveTxs:                 false,
		},
		Database: DatabaseConfig{
			URL:       "root@tcp(127.0.0.1:3306)/uaas",
			DockerURL: "root@tcp(db:3306)/uaas",
			MsDelay:   200,
			Retries:   3,
		},
		Orphan: OrphanConfig{
			Detect: true,
		},
		REST: RESTConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		DynamicConfigFile: "dynamic_collections.json",
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Net.Port = 18333
	return cfg
}

// DefaultSTN returns the default node configuration for the scaling
// test network.
func DefaultSTN() *Config {
	cfg := DefaultMainnet()
	cfg.Network = STN
	cfg.Net.Port = 9333
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case STN:
		return DefaultSTN()
	default:
		return DefaultMainnet()
	}
}
