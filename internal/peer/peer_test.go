package peer

import (
	"testing"

	"github.com/gcash/bchd/chaincfg"
)

func TestNewPeerConfig_AdvertisesConfiguredUserAgent(t *testing.T) {
	c := &Connection{}
	cfg := newPeerConfig("/uaas:0.1.0/", &chaincfg.TestNet3Params, c)
	if cfg.UserAgentName != "/uaas:0.1.0/" {
		t.Errorf("UserAgentName = %q, want the configured user agent", cfg.UserAgentName)
	}
}

func TestNewPeerConfig_NilParamsDefaultsToMainnet(t *testing.T) {
	c := &Connection{}
	cfg := newPeerConfig("uaas", nil, c)
	if cfg.ChainParams != &chaincfg.MainNetParams {
		t.Error("expected nil params to default to chaincfg.MainNetParams")
	}
}

func TestNewPeerConfig_UsesConfiguredParams(t *testing.T) {
	c := &Connection{}
	cfg := newPeerConfig("uaas", &chaincfg.TestNet3Params, c)
	if cfg.ChainParams != &chaincfg.TestNet3Params {
		t.Error("expected configured testnet params to be used")
	}
}
