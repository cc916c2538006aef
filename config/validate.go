package config

import (
	"fmt"
	"net"

	"github.com/klingon-tech/uaas/pkg/types"
)

// Validate checks runtime config for obvious operator mistakes. Unknown
// network names and malformed peer IPs are configuration errors: fatal at
// startup (§7).
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, STN:
	default:
		return fmt.Errorf("network must be %q, %q, or %q", Mainnet, Testnet, STN)
	}
	if cfg.Net.Port < 0 || cfg.Net.Port > 65535 {
		return fmt.Errorf("net.port must be in range [0, 65535]")
	}
	for _, ip := range cfg.Net.IPs {
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("net.ips: %q is not a valid IP address", ip)
		}
	}
	if cfg.Net.StartBlockHash != "" {
		if _, err := types.HexToHash(cfg.Net.StartBlockHash); err != nil {
			return fmt.Errorf("net.start_block_hash: %w", err)
		}
	}
	if cfg.Database.Retries < 0 {
		return fmt.Errorf("database.retries must be >= 0")
	}
	if cfg.Database.MsDelay < 0 {
		return fmt.Errorf("database.ms_delay must be >= 0")
	}
	return nil
}
