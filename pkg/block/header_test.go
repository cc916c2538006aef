package block

import "testing"

func TestHeader_Hash_Deterministic(t *testing.T) {
	h := &Header{Version: 1, Timestamp: 1000, Bits: 0x1d00ffff, Nonce: 42}
	if h.Hash() != h.Hash() {
		t.Error("Hash() should be deterministic")
	}

	other := *h
	other.Nonce = 43
	if other.Hash() == h.Hash() {
		t.Error("changing nonce should change the hash")
	}
}

func TestHeader_IsRecent(t *testing.T) {
	h := &Header{Timestamp: 1000}
	if !h.IsRecent(1500, 600) {
		t.Error("500s old header should be within a 600s window")
	}
	if h.IsRecent(1700, 600) {
		t.Error("700s old header should be outside a 600s window")
	}
	if !h.IsRecent(900, 600) {
		t.Error("a header timestamped in the future relative to now is always recent")
	}
}
