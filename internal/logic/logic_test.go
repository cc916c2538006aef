package logic

import (
	"testing"

	"github.com/klingon-tech/uaas/internal/addrmgr"
	"github.com/klingon-tech/uaas/internal/analyser"
	"github.com/klingon-tech/uaas/internal/blockmgr"
	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/txstore"
	"github.com/klingon-tech/uaas/internal/utxoset"
	"github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

func newTestLogic(t *testing.T, detectOrphans bool) *Logic {
	t.Helper()
	reg, err := collection.NewRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	a := analyser.New(utxoset.New(), txstore.New(), reg)
	bm := blockmgr.New(types.Hash{}, 0, false, "")
	am := addrmgr.New()
	w := dbwriter.New(nil, 1, 0)
	return New(bm, a, am, w, detectOrphans)
}

func TestSetState_ConnectedSchedulesGetBlocks(t *testing.T) {
	l := newTestLogic(t, false)
	l.SetState(Connected)

	msgs := l.MessagesToSend()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if _, ok := msgs[0].(GetBlocksMsg); !ok {
		t.Errorf("expected GetBlocksMsg, got %T", msgs[0])
	}
}

func TestOnInv_SplitsTxAndBlockItems(t *testing.T) {
	l := newTestLogic(t, false)
	items := []InvItem{
		{Kind: InvTx, Hash: types.Hash{1}},
		{Kind: InvBlock, Hash: types.Hash{2}},
	}
	l.OnInv(items)

	msgs := l.MessagesToSend()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (GetData for tx, GetData for first block)", len(msgs))
	}
	txMsg, ok := msgs[0].(GetDataMsg)
	if !ok || len(txMsg.Items) != 1 || txMsg.Items[0].Kind != InvTx {
		t.Errorf("expected first message to request the tx item, got %+v", msgs[0])
	}
	blockMsg, ok := msgs[1].(GetDataMsg)
	if !ok || len(blockMsg.Items) != 1 || blockMsg.Items[0].Kind != InvBlock {
		t.Errorf("expected second message to request the block item, got %+v", msgs[1])
	}
}

func TestOnBlock_ReachingTipPromotesToReady(t *testing.T) {
	l := newTestLogic(t, false)
	l.state = Connected

	b := &block.Block{
		Header:       &block.Header{Timestamp: uint32(1 << 31)},
		Transactions: []*tx.Transaction{{Version: 1}},
	}
	l.OnBlock(b)

	if l.State() != Ready {
		t.Errorf("state = %v, want Ready after a block within the chain-tip window", l.State())
	}
}

func TestOnBroadcast_DedupesAgainstKnownTx(t *testing.T) {
	l := newTestLogic(t, false)
	txn := &tx.Transaction{Version: 1, Outputs: []tx.Output{{Value: 1}}}

	if !l.OnBroadcast(txn) {
		t.Fatal("expected first broadcast to be treated as new")
	}
	if l.OnBroadcast(txn) {
		t.Error("expected repeat broadcast of the same tx to be deduped")
	}
}

func TestRequestNextBlock_DrainsEmptyInventoryEntries(t *testing.T) {
	l := newTestLogic(t, false)
	hash := types.Hash{9}
	l.OnInv([]InvItem{{Kind: InvBlock, Hash: hash}})
	l.MessagesToSend()

	l.requestNextBlock(&hash)

	msgs := l.MessagesToSend()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if _, ok := msgs[0].(GetBlocksMsg); !ok {
		t.Errorf("expected fresh GetBlocks once inventory drains, got %T", msgs[0])
	}
}
