package peer

// Service flag bits as carried in a peer's Version message (§6 service-flags
// vocabulary).
const (
	NodeNetwork        uint64 = 1
	NodeGetUTXO        uint64 = 2
	NodeBloom          uint64 = 4
	NodeWitness        uint64 = 8
	NodeXthin          uint64 = 16
	NodeBitcoinCash    uint64 = 32
	NodeCompactFilters uint64 = 64
	NodeNetworkLimited uint64 = 1024
)

var serviceFlagNames = []struct {
	bit  uint64
	name string
}{
	{NodeNetwork, "NODE_NETWORK"},
	{NodeGetUTXO, "NODE_GETUTXO"},
	{NodeBloom, "NODE_BLOOM"},
	{NodeWitness, "NODE_WITNESS"},
	{NodeXthin, "NODE_XTHIN"},
	{NodeBitcoinCash, "NODE_BITCOIN_CASH"},
	{NodeCompactFilters, "NODE_COMPACT_FILTERS"},
	{NodeNetworkLimited, "NODE_NETWORK_LIMITED"},
}

// DecodeServiceFlags decodes a peer's advertised services bitmask into its
// constituent flag names, for display/diagnostics (§6, P7). A zero mask
// decodes to a single placeholder entry rather than an empty list.
func DecodeServiceFlags(services uint64) []string {
	var names []string
	for _, f := range serviceFlagNames {
		if services&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return []string{"NODE_NONE"}
	}
	return names
}
