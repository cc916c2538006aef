package threadmgr

import (
	"testing"

	"github.com/klingon-tech/uaas/internal/addrmgr"
	"github.com/klingon-tech/uaas/internal/analyser"
	"github.com/klingon-tech/uaas/internal/blockmgr"
	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/logic"
	"github.com/klingon-tech/uaas/internal/peer"
	"github.com/klingon-tech/uaas/internal/txstore"
	"github.com/klingon-tech/uaas/internal/utxoset"
	"github.com/klingon-tech/uaas/pkg/types"
)

func newTestLogic(t *testing.T) *logic.Logic {
	t.Helper()
	reg, err := collection.NewRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	a := analyser.New(utxoset.New(), txstore.New(), reg)
	bm := blockmgr.New(types.Hash{}, 0, false, "")
	am := addrmgr.New()
	w := dbwriter.New(nil, 1, 0)
	return logic.New(bm, a, am, w, false)
}

func TestTracker_AllFinished_EmptyIsTrue(t *testing.T) {
	tr := NewTracker()
	if !tr.AllFinished() {
		t.Error("expected empty tracker to report all finished")
	}
}

func TestTracker_AllFinished_FalseUntilEveryPeerFinishes(t *testing.T) {
	tr := NewTracker()
	tr.Add("10.0.0.1", &PeerHandle{IP: "10.0.0.1", Status: Started})
	tr.Add("10.0.0.2", &PeerHandle{IP: "10.0.0.2", Status: Started})

	if tr.AllFinished() {
		t.Fatal("expected not all finished with two Started peers")
	}

	tr.SetStatus("10.0.0.1", Finished)
	if tr.AllFinished() {
		t.Fatal("expected not all finished with one peer still Started")
	}

	tr.SetStatus("10.0.0.2", Finished)
	if !tr.AllFinished() {
		t.Error("expected all finished once both peers reach Finished")
	}
}

func TestTracker_GetConnectedPeer_NoneConnected(t *testing.T) {
	tr := NewTracker()
	tr.Add("10.0.0.1", &PeerHandle{IP: "10.0.0.1", Status: Started})
	if h := tr.GetConnectedPeer(); h != nil {
		t.Errorf("expected no connected peer, got %+v", h)
	}
}

func TestTracker_SetStatus_UnknownIPIsNoOp(t *testing.T) {
	tr := NewTracker()
	tr.SetStatus("10.0.0.9", PeerConnected)
}

func TestManager_ReplacePeer_AdvancesRoundRobinIndexOnDialFailure(t *testing.T) {
	m := NewManager(nil)
	m.ConfigureDialing([]string{"203.0.113.1", "203.0.113.2"}, 8333, "uaas-test", 0, nil)

	m.replacePeer()
	if m.nextIP != 1 {
		t.Errorf("nextIP = %d, want 1 after first replacement attempt", m.nextIP)
	}

	m.replacePeer()
	if m.nextIP != 0 {
		t.Errorf("nextIP = %d, want 0 after wrapping around", m.nextIP)
	}
}

func TestManager_ReplacePeer_NoOpWithNoConfiguredIPs(t *testing.T) {
	m := NewManager(nil)
	m.replacePeer()
	if len(m.tracker.children) != 0 {
		t.Errorf("expected no tracked peers, got %d", len(m.tracker.children))
	}
}

func TestManager_ProcessPeerEvent_DisconnectMarksTrackerAndMayStop(t *testing.T) {
	tr := NewTracker()
	tr.Add("10.0.0.1", &PeerHandle{IP: "10.0.0.1", Status: Started})

	m := &Manager{tracker: tr}
	l := newTestLogic(t)
	keepLooping := m.processPeerEvent(peer.Event{IP: "10.0.0.1", Kind: peer.Disconnected}, l)
	if keepLooping {
		t.Error("expected loop to stop once the only tracked peer disconnects")
	}
	if tr.children["10.0.0.1"].Status != Finished {
		t.Errorf("status = %v, want Finished", tr.children["10.0.0.1"].Status)
	}
}
