package utxoset

import (
	"testing"

	"github.com/klingon-tech/uaas/pkg/types"
)

func outpoint(b byte, index uint32) types.Outpoint {
	var h types.Hash
	h[0] = b
	return types.Outpoint{TxID: h, Index: index}
}

func TestAdd_ThenGetSatoshis(t *testing.T) {
	s := New()
	op := outpoint(1, 0)
	s.Add(op, 5000, 100, "abc")
	got, ok := s.GetSatoshis(op)
	if !ok || got != 5000 {
		t.Fatalf("GetSatoshis = %d, %v", got, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestDelete_RemovesFromSet(t *testing.T) {
	s := New()
	op := outpoint(2, 0)
	s.Add(op, 100, 1, "")
	s.Delete(op)
	if s.Exists(op) {
		t.Error("expected outpoint removed after delete")
	}
	if _, ok := s.GetSatoshis(op); ok {
		t.Error("expected GetSatoshis to report absent")
	}
}

func TestAddThenDeleteSameBatch_CollapsesToNoWrite(t *testing.T) {
	s := New()
	op := outpoint(3, 0)
	s.Add(op, 100, 1, "")
	s.Delete(op)
	if len(s.pendingWrites) != 0 {
		t.Errorf("pendingWrites = %d, want 0", len(s.pendingWrites))
	}
	if len(s.pendingDeletes) != 1 {
		t.Errorf("pendingDeletes = %d, want 1 (write-then-delete becomes a single delete)", len(s.pendingDeletes))
	}
}

func TestLoad_EmptyRows(t *testing.T) {
	s := New()
	s.Load(nil)
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestGetSatoshis_UnknownOutpoint(t *testing.T) {
	s := New()
	if _, ok := s.GetSatoshis(outpoint(9, 0)); ok {
		t.Error("expected unknown outpoint to report absent")
	}
}
