package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments).
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by its recognised key (§6).
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value
	case "useragent":
		cfg.UserAgent = value

	case "net.ips":
		cfg.Net.IPs = parseStringList(value)
	case "net.port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Net.Port = n
	case "net.timeout_period":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Net.TimeoutPeriod = n
	case "net.block_request_period":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Net.BlockRequestPeriod = n
	case "net.start_block_hash":
		cfg.Net.StartBlockHash = value
	case "net.start_block_height":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Net.StartBlockHeight = n
	case "net.startup_load_from_database":
		cfg.Net.StartupLoadFromDatabase = parseBool(value)
	case "net.block_file":
		cfg.Net.BlockFile = value
	case "net.save_blocks":
		cfg.Net.SaveBlocks = parseBool(value)
	case "net.save_txs":
		cfg.Net.SaveTxs = parseBool(value)

	case "database.url":
		cfg.Database.URL = value
	case "database.docker_url":
		cfg.Database.DockerURL = value
	case "database.ms_delay":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Database.MsDelay = n
	case "database.retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Database.Retries = n

	case "orphan.detect":
		cfg.Orphan.Detect = parseBool(value)

	case "rest.addr":
		cfg.REST.Addr = value

	case "dynamic_config_file":
		cfg.DynamicConfigFile = value

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored.
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# UaaS indexer configuration
#
# Network: mainnet, testnet, or stn
network = ` + string(network) + `

# Data directory (default: ~/.uaas)
# datadir = ~/.uaas

# ============================================================================
# Peer network
# ============================================================================

# Comma-separated list of peer IPs to connect to.
# net.ips = 127.0.0.1
net.port = ` + defaultPort(network) + `
net.timeout_period = 90
net.block_request_period = 1
# net.start_block_hash =
# net.start_block_height = 0
net.startup_load_from_database = true
# net.block_file = blocks.dat
net.save_blocks = false
net.save_txs = false

# ============================================================================
# Database
# ============================================================================

database.url = root@tcp(127.0.0.1:3306)/uaas
database.docker_url = root@tcp(db:3306)/uaas
database.ms_delay = 200
database.retries = 3

# ============================================================================
# Orphan handling
# ============================================================================

orphan.detect = true

# ============================================================================
# REST surface
# ============================================================================

rest.addr = 127.0.0.1:8080

# ============================================================================
# Dynamic collections
# ============================================================================

dynamic_config_file = dynamic_collections.json

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}

func defaultPort(network NetworkType) string {
	switch network {
	case Testnet:
		return "18333"
	case STN:
		return "9333"
	default:
		return "8333"
	}
}
