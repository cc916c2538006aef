package collection

import (
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/gcash/bchd/chaincfg"
	"github.com/gcash/bchutil"
)

// AddressToLockingScriptRegex decodes a base58check Bitcoin-SV-family
// address and compiles the canonical pay-to-pubkey-hash lock-script
// pattern `0x76 0xA9 0x14 <20 bytes> 0x88 0xAC` into a hex regex a
// Collection can match against (§3 Collection, "address... compiled to
// the canonical pay-to-pubkey-hash lock-script pattern").
func AddressToLockingScriptRegex(address string, params *chaincfg.Params) (string, error) {
	decoded, err := bchutil.DecodeAddress(address, params)
	if err != nil {
		return "", fmt.Errorf("decoding address %q: %w", address, err)
	}
	pkHash, ok := decoded.(*bchutil.AddressPubKeyHash)
	if !ok {
		return "", fmt.Errorf("address %q is not a pay-to-pubkey-hash address", address)
	}

	hash160 := hex.EncodeToString(pkHash.Hash160()[:])
	return fmt.Sprintf("^76a914%s88ac$", regexp.QuoteMeta(hash160)), nil
}
