package tx

import (
	"testing"

	"github.com/klingon-tech/uaas/pkg/types"
)

func TestTransaction_Hash_Deterministic(t *testing.T) {
	transaction := &Transaction{
		Version: 1,
		Inputs: []Input{
			{PrevOut: types.Outpoint{TxID: types.Hash{0x01}, Index: 0}, Sequence: 0xffffffff},
		},
		Outputs: []Output{
			{Value: 5000000000, Script: types.Script{0x76, 0xa9}},
		},
	}

	h1 := transaction.Hash()
	h2 := transaction.Hash()
	if h1 != h2 {
		t.Errorf("Hash() not deterministic: %s != %s", h1, h2)
	}

	other := *transaction
	other.LockTime = 1
	if other.Hash() == h1 {
		t.Error("changing locktime should change the hash")
	}
}

func TestTransaction_IsCoinbase(t *testing.T) {
	tx := &Transaction{}
	if !tx.IsCoinbase(0) {
		t.Error("blockIndex 0 should be coinbase")
	}
	if tx.IsCoinbase(1) {
		t.Error("blockIndex 1 should not be coinbase")
	}
}

func TestTransaction_TotalOutputValue(t *testing.T) {
	transaction := &Transaction{
		Outputs: []Output{
			{Value: 100},
			{Value: 250},
		},
	}
	if got := transaction.TotalOutputValue(); got != 350 {
		t.Errorf("TotalOutputValue() = %d, want 350", got)
	}
}

func TestDecode_RoundTripsThroughBytes(t *testing.T) {
	original := &Transaction{
		Version: 2,
		Inputs: []Input{
			{PrevOut: types.Outpoint{TxID: types.Hash{0xaa}, Index: 3}, ScriptSig: []byte{0x01, 0x02}, Sequence: 0xffffffff},
		},
		Outputs: []Output{
			{Value: 12345, Script: types.Script{0x76, 0xa9, 0x14}},
		},
		LockTime: 99,
	}

	decoded, err := Decode(original.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Hash() != original.Hash() {
		t.Errorf("decoded tx hash mismatch: got %s, want %s", decoded.Hash(), original.Hash())
	}
	if decoded.LockTime != original.LockTime {
		t.Errorf("LockTime = %d, want %d", decoded.LockTime, original.LockTime)
	}
}

func TestDecode_TruncatedDataErrors(t *testing.T) {
	if _, err := Decode([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error decoding truncated data")
	}
}
