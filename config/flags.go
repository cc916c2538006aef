package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	Network string
	DataDir string
	Config  string

	IPs                string
	Port               int
	TimeoutPeriod      int
	BlockRequestPeriod int
	StartBlockHash     string
	StartBlockHeight   uint64
	SaveBlocks         bool
	SaveTxs            bool

	DatabaseURL string
	MsDelay     int
	Retries     int

	OrphanDetect bool

	RESTAddr string

	LogLevel string
	LogFile  string
	LogJSON  bool

	Args []string

	SetSaveBlocks   bool
	SetSaveTxs      bool
	SetOrphanDetect bool
	SetLogJSON      bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("uaasd", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	fs.StringVar(&f.Network, "network", "", "Network type: mainnet, testnet, or stn")
	var testnet bool
	fs.BoolVar(&testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.IPs, "ips", "", "Comma-separated peer IPs to connect to")
	fs.IntVar(&f.Port, "port", 0, "Peer port")
	fs.IntVar(&f.TimeoutPeriod, "timeout-period", 0, "Peer inactivity timeout, seconds")
	fs.IntVar(&f.BlockRequestPeriod, "block-request-period", 0, "Minimum block-request interval, seconds")
	fs.StringVar(&f.StartBlockHash, "start-block-hash", "", "Checkpoint block hash to begin ingest from")
	fs.Uint64Var(&f.StartBlockHeight, "start-block-height", 0, "Checkpoint block height")
	fs.BoolVar(&f.SaveBlocks, "save-blocks", false, "Append raw blocks to the block file")
	fs.BoolVar(&f.SaveTxs, "save-txs", false, "Set net.save_txs (no component reads it; confirmed-tx bytes are not stored)")

	fs.StringVar(&f.DatabaseURL, "database-url", "", "Relational store DSN")
	fs.IntVar(&f.MsDelay, "db-ms-delay", 0, "Database writer retry delay, milliseconds")
	fs.IntVar(&f.Retries, "db-retries", 0, "Database writer retry attempts")

	fs.BoolVar(&f.OrphanDetect, "orphan-detect", false, "Enable one-step tip-reorg detection")

	fs.StringVar(&f.RESTAddr, "rest-addr", "", "REST surface bind address")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if testnet {
		f.Network = "testnet"
	}
	f.SetSaveBlocks = isFlagSet(fs, "save-blocks")
	f.SetSaveTxs = isFlagSet(fs, "save-txs")
	f.SetOrphanDetect = isFlagSet(fs, "orphan-detect")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (positional argument stopped parsing)\n", arg)
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags applies command-line flags to a Config struct (highest
// precedence: defaults < file < flags).
func ApplyFlags(cfg *Config, f *Flags) {
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.IPs != "" {
		cfg.Net.IPs = parseStringList(f.IPs)
	}
	if f.Port != 0 {
		cfg.Net.Port = f.Port
	}
	if f.TimeoutPeriod != 0 {
		cfg.Net.TimeoutPeriod = f.TimeoutPeriod
	}
	if f.BlockRequestPeriod != 0 {
		cfg.Net.BlockRequestPeriod = f.BlockRequestPeriod
	}
	if f.StartBlockHash != "" {
		cfg.Net.StartBlockHash = f.StartBlockHash
	}
	if f.StartBlockHeight != 0 {
		cfg.Net.StartBlockHeight = f.StartBlockHeight
	}
	if f.SetSaveBlocks {
		cfg.Net.SaveBlocks = f.SaveBlocks
	}
	if f.SetSaveTxs {
		cfg.Net.SaveTxs = f.SaveTxs
	}

	if f.DatabaseURL != "" {
		cfg.Database.URL = f.DatabaseURL
	}
	if f.MsDelay != 0 {
		cfg.Database.MsDelay = f.MsDelay
	}
	if f.Retries != 0 {
		cfg.Database.Retries = f.Retries
	}

	if f.SetOrphanDetect {
		cfg.Orphan.Detect = f.OrphanDetect
	}

	if f.RESTAddr != "" {
		cfg.REST.Addr = f.RESTAddr
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `uaasd - UTXO-as-a-Service blockchain indexer

Usage:
  uaasd [options]
  uaasd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default), testnet, or stn
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.uaas)
  --config, -c    Config file path (default: <datadir>/uaas.conf)

Peer Options:
  --ips                    Comma-separated peer IPs to connect to
  --port                   Peer port
  --timeout-period         Peer inactivity timeout, seconds
  --block-request-period   Minimum block-request interval, seconds
  --start-block-hash       Checkpoint block hash to begin ingest from
  --start-block-height     Checkpoint block height
  --save-blocks            Append raw blocks to the block file
  --save-txs               Set net.save_txs (no component reads it; confirmed-tx bytes are not stored)

Database Options:
  --database-url   Relational store DSN
  --db-ms-delay    Database writer retry delay, milliseconds
  --db-retries     Database writer retry attempts

Orphan Handling:
  --orphan-detect  Enable one-step tip-reorg detection

REST Options:
  --rest-addr      REST surface bind address

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  uaasd --network=testnet --ips=127.0.0.1
  uaasd --datadir=/var/lib/uaas --save-blocks
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("uaasd version 0.1.0")
		os.Exit(0)
	}

	network := Mainnet
	switch strings.ToLower(flags.Network) {
	case "testnet":
		network = Testnet
	case "stn":
		network = STN
	}

	cfg := Default(network)

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}

	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Idempotent — safe on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
