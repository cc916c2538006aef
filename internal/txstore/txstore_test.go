package txstore

import (
	"testing"

	blockpkg "github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

func sampleTx(lockTime uint32) *tx.Transaction {
	return &tx.Transaction{
		Version:  1,
		Inputs:   []tx.Input{{Sequence: 0xffffffff}},
		Outputs:  []tx.Output{{Value: 5000, Script: types.Script{0x76, 0xa9}}},
		LockTime: lockTime,
	}
}

func TestProcessBlock_MarksConfirmedAndDrainsMempool(t *testing.T) {
	s := New()
	t1 := sampleTx(1)
	s.mempool[t1.Hash()] = struct{}{}

	b := &blockpkg.Block{Transactions: []*tx.Transaction{t1}}
	s.ProcessBlock(b, 100)

	if !s.TxExists(t1.Hash()) {
		t.Error("expected tx to exist after ProcessBlock")
	}
	if _, stillMempool := s.mempool[t1.Hash()]; stillMempool {
		t.Error("expected tx removed from mempool after confirmation")
	}
	if len(s.pendingDeletes) != 1 {
		t.Errorf("pendingDeletes = %d, want 1", len(s.pendingDeletes))
	}
	if len(s.pendingWrites) != 1 {
		t.Errorf("pendingWrites = %d, want 1", len(s.pendingWrites))
	}
}

func TestProcessBlock_DuplicateTxWarnsAndContinues(t *testing.T) {
	s := New()
	t1 := sampleTx(2)
	b := &blockpkg.Block{Transactions: []*tx.Transaction{t1, t1}}

	s.ProcessBlock(b, 50)

	if len(s.pendingWrites) != 1 {
		t.Errorf("pendingWrites = %d, want 1 (duplicate must not double-write)", len(s.pendingWrites))
	}
}

func TestTxExists_UnknownHash(t *testing.T) {
	s := New()
	var h types.Hash
	h[0] = 0xaa
	if s.TxExists(h) {
		t.Error("expected unknown hash to report absent")
	}
}

func TestLoadConfirmed_And_LoadMempool(t *testing.T) {
	s := New()
	hash := sampleTx(3).Hash()
	s.LoadConfirmed([]string{hash.String()})
	if !s.TxExists(hash) {
		t.Error("expected loaded confirmed hash to exist")
	}

	s2 := New()
	s2.LoadMempool([]string{hash.String()})
	if !s2.TxExists(hash) {
		t.Error("expected loaded mempool hash to exist")
	}
}
