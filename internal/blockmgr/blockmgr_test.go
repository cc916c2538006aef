package blockmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klingon-tech/uaas/internal/analyser"
	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/txstore"
	"github.com/klingon-tech/uaas/internal/utxoset"
	"github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

func newTestAnalyser(t *testing.T) *analyser.Analyser {
	t.Helper()
	reg, err := collection.NewRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return analyser.New(utxoset.New(), txstore.New(), reg)
}

func header(prev types.Hash, nonce uint32) *block.Header {
	return &block.Header{Version: 1, PrevHash: prev, Nonce: nonce, Timestamp: 1}
}

func blockWithHeader(h *block.Header) *block.Block {
	return &block.Block{Header: h, Transactions: []*tx.Transaction{{Version: 1}}}
}

func TestOnBlock_ExtendsTip(t *testing.T) {
	start := types.Hash{}
	m := New(start, 0, false, "")
	a := newTestAnalyser(t)
	w := dbwriter.New(nil, 1, 0)

	b := blockWithHeader(header(start, 1))
	m.OnBlock(w, a, b)

	if m.GetLastKnownBlockHash() != b.Header.Hash().String() {
		t.Errorf("lastHashProcessed not updated to new tip")
	}
	if m.Height() != 2 {
		t.Errorf("Height = %d, want 2", m.Height())
	}
}

func TestOnBlock_AlreadyKnownIsIgnored(t *testing.T) {
	start := types.Hash{}
	m := New(start, 0, false, "")
	a := newTestAnalyser(t)
	w := dbwriter.New(nil, 1, 0)

	b := blockWithHeader(header(start, 1))
	m.OnBlock(w, a, b)
	heightAfterFirst := m.Height()

	m.OnBlock(w, a, b)
	if m.Height() != heightAfterFirst {
		t.Errorf("Height changed on re-delivery of known block: %d -> %d", heightAfterFirst, m.Height())
	}
}

func TestOnBlock_OutOfOrderBuffersThenDrains(t *testing.T) {
	start := types.Hash{}
	m := New(start, 0, false, "")
	a := newTestAnalyser(t)
	w := dbwriter.New(nil, 1, 0)

	b1 := blockWithHeader(header(start, 1))
	b2 := blockWithHeader(header(b1.Header.Hash(), 2))

	// b2 arrives before its parent b1: must buffer, not process.
	m.OnBlock(w, a, b2)
	if m.Height() != 1 {
		t.Fatalf("Height = %d after out-of-order block, want unchanged 1", m.Height())
	}

	// b1 arrives, extends tip, and should drain b2 out of the buffer.
	m.OnBlock(w, a, b1)
	if m.GetLastKnownBlockHash() != b2.Header.Hash().String() {
		t.Errorf("buffered block was not drained after parent arrived")
	}
	if m.Height() != 3 {
		t.Errorf("Height = %d, want 3 after draining buffered block", m.Height())
	}
}

func TestOnBlock_FirstBufferedWinsForSamePrevHash(t *testing.T) {
	start := types.Hash{}
	m := New(start, 0, false, "")
	a := newTestAnalyser(t)
	w := dbwriter.New(nil, 1, 0)

	b1 := blockWithHeader(header(start, 1))
	competingA := blockWithHeader(header(b1.Header.Hash(), 10))
	competingB := blockWithHeader(header(b1.Header.Hash(), 20))

	m.OnBlock(w, a, competingA)
	m.OnBlock(w, a, competingB)
	m.OnBlock(w, a, b1)

	if m.GetLastKnownBlockHash() != competingA.Header.Hash().String() {
		t.Errorf("expected first-buffered block to win, got different tip")
	}
}

func TestHandleOrphanBlock_UnwindsOneStep(t *testing.T) {
	start := types.Hash{}
	m := New(start, 0, false, "")
	a := newTestAnalyser(t)
	w := dbwriter.New(nil, 1, 0)

	b1 := blockWithHeader(header(start, 1))
	m.OnBlock(w, a, b1)
	w.DrainPending()

	m.HandleOrphanBlock(w, a)

	if m.GetLastKnownBlockHash() != start.String() {
		t.Errorf("lastHashProcessed not rolled back to start hash")
	}
	if m.Height() != 1 {
		t.Errorf("Height = %d, want 1 after unwinding the one block", m.Height())
	}

	ops := w.DrainPending()
	var sawOrphanWrite, sawBlockDelete bool
	for _, op := range ops {
		if op.Kind == dbwriter.OrphanHeaderWrite {
			sawOrphanWrite = true
		}
		if op.Kind == dbwriter.BlockHeaderDelete {
			sawBlockDelete = true
		}
	}
	if !sawOrphanWrite || !sawBlockDelete {
		t.Errorf("expected both OrphanHeaderWrite and BlockHeaderDelete ops, got %+v", ops)
	}
}

func TestHasChainTip_FalseWithNoHeaders(t *testing.T) {
	m := New(types.Hash{}, 0, false, "")
	if m.HasChainTip() {
		t.Error("expected no chain tip with zero headers loaded")
	}
}

func TestGetStartBlockTimestamp_RequiresMoreThanFiveHeaders(t *testing.T) {
	m := New(types.Hash{}, 0, false, "")
	if _, ok := m.GetStartBlockTimestamp(); ok {
		t.Error("expected no start timestamp with zero headers loaded")
	}
}

func TestOnBlock_SaveBlocksWritesFullBlockToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.dat")
	start := types.Hash{}
	m := New(start, 0, true, path)
	a := newTestAnalyser(t)
	w := dbwriter.New(nil, 1, 0)

	b := blockWithHeader(header(start, 1))
	m.OnBlock(w, a, b)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading block file: %v", err)
	}
	want := b.Bytes()
	if len(data) != len(want) {
		t.Fatalf("block file length = %d, want %d matching b.Size() = %d", len(data), len(want), b.Size())
	}
	if uint32(len(data)) != b.Size() {
		t.Errorf("block file length = %d, want b.Size() = %d", len(data), b.Size())
	}
}
