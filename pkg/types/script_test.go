package types

import "testing"

func TestScript_IsSpendable(t *testing.T) {
	tests := []struct {
		name string
		s    Script
		want bool
	}{
		{"empty", Script{}, true},
		{"single byte", Script{0x00}, true},
		{"op_return prefix", Script{opFalse, opReturn, 0x04, 0xde, 0xad}, false},
		{"op_false not op_return", Script{opFalse, 0x51}, true},
		{"ordinary p2pkh-ish", Script{opDup, opHash160}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.IsSpendable(); got != tt.want {
				t.Errorf("IsSpendable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScript_PubKeyHash(t *testing.T) {
	var hash [20]byte
	for i := range hash {
		hash[i] = byte(i + 1)
	}
	s := P2PKHScript(hash)
	if got := s.PubKeyHash(); got != "0102030405060708090a0b0c0d0e0f1011121314" {
		t.Errorf("PubKeyHash() = %s, want hex of hash", got)
	}

	other := Script{0x51, 0x52}
	if got := other.PubKeyHash(); got != UnknownPubKeyHash {
		t.Errorf("PubKeyHash() on non-P2PKH = %s, want %s", got, UnknownPubKeyHash)
	}
}
