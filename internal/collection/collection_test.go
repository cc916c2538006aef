package collection

import (
	"testing"

	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

func sampleTxWithScript(script []byte) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{Sequence: 1}},
		Outputs: []tx.Output{{Value: 100, Script: script}},
	}
}

func TestTryMatch_RegexMatchesScriptHex(t *testing.T) {
	c, err := New(Definition{Name: "op-return", LockingScriptRegex: "^6a"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx1 := sampleTxWithScript([]byte{0x6a, 0x01, 0x02})

	if c.matchesLockingScript(tx1) != true {
		t.Error("expected regex to match OP_RETURN-prefixed script")
	}
}

func TestTryMatch_NoRegexNeverMatchesOnScript(t *testing.T) {
	c, err := New(Definition{Name: "descendants-only", TrackDescendants: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx1 := sampleTxWithScript([]byte{0x6a})
	if c.matchesLockingScript(tx1) {
		t.Error("expected no regex to never match on script content")
	}
}

func TestIsDescendant_MatchesKnownInput(t *testing.T) {
	c, err := New(Definition{Name: "chain", TrackDescendants: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var parentHash types.Hash
	parentHash[0] = 0x01
	c.txs[parentHash] = struct{}{}

	child := &tx.Transaction{
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: parentHash, Index: 0}}},
		Outputs: []tx.Output{{Value: 1}},
	}
	if !c.isDescendant(child) {
		t.Error("expected child spending a tracked output to be a descendant")
	}
}

func TestAlreadyHaveTx_Idempotent(t *testing.T) {
	c, _ := New(Definition{Name: "any"})
	var h types.Hash
	h[0] = 5
	if c.AlreadyHaveTx(h) {
		t.Error("expected unknown hash absent before load")
	}
	c.LoadTxs([]string{h.String()})
	if !c.AlreadyHaveTx(h) {
		t.Error("expected hash present after LoadTxs")
	}
}

func TestNew_InvalidRegexErrors(t *testing.T) {
	if _, err := New(Definition{Name: "bad", LockingScriptRegex: "("}); err == nil {
		t.Error("expected error for unbalanced regex")
	}
}

func TestTryMatch_EnqueuesCollectionTxWriteOnce(t *testing.T) {
	c, err := New(Definition{Name: "op-return", LockingScriptRegex: "^6a"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := dbwriter.New(nil, 1, 0)

	t1 := sampleTxWithScript([]byte{0x6a})
	if !c.TryMatch(w, t1) {
		t.Fatal("expected first TryMatch to match")
	}
	if !c.TryMatch(w, t1) {
		t.Fatal("expected second TryMatch on same tx to still report matched (P5 idempotence)")
	}

	got := w.DrainPending()
	if len(got) != 1 {
		t.Fatalf("enqueued %d ops, want 1 (idempotent re-match must not re-enqueue)", len(got))
	}
	if got[0].Kind != dbwriter.CollectionTxWrite || got[0].CollectionName != "op-return" {
		t.Errorf("unexpected op: %+v", got[0])
	}
}
