// Package logic is component H: the server state machine that owns the
// Block Manager, Tx Analyser, and Address Manager, and paces outbound
// block requests against the inventory the network offers. It is the
// single goroutine that touches B through G (§5) — no locking required.
package logic

import (
	"github.com/klingon-tech/uaas/internal/addrmgr"
	"github.com/klingon-tech/uaas/internal/analyser"
	"github.com/klingon-tech/uaas/internal/blockmgr"
	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// State is the server's coarse connectivity/readiness state.
type State int

const (
	Starting State = iota
	Disconnected
	Connected
	Ready
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// InvKind distinguishes tx from block inventory items, mirroring the wire
// protocol's object-type tag.
type InvKind int

const (
	InvTx InvKind = iota
	InvBlock
)

// InvItem is one entry of an Inv/GetData message, decoupled from the wire
// codec's own type so Logic never imports it directly.
type InvItem struct {
	Kind InvKind
	Hash types.Hash
}

// GetBlocksMsg requests headers from locatorHash forward.
type GetBlocksMsg struct {
	LocatorHash types.Hash
}

// GetDataMsg requests the full objects named by Items.
type GetDataMsg struct {
	Items []InvItem
}

// BroadcastTxMsg asks the currently-connected peer to relay t.
type BroadcastTxMsg struct {
	Tx *tx.Transaction
}

// Logic orchestrates the Block Manager, Tx Analyser, and Address Manager,
// and accumulates outbound messages for Thread Manager to drain.
type Logic struct {
	state State

	blockMgr   *blockmgr.Manager
	analyser   *analyser.Analyser
	addrMgr    *addrmgr.Manager
	collection *collection.Registry
	writer     *dbwriter.Writer

	detectingOrphans    bool
	startBlockTimestamp *uint32

	sendQueue      []any
	blockInventory [][]InvItem
}

// New builds a Logic orchestrator over its already-constructed components.
func New(bm *blockmgr.Manager, a *analyser.Analyser, am *addrmgr.Manager, w *dbwriter.Writer, detectOrphans bool) *Logic {
	return &Logic{
		state:            Starting,
		blockMgr:         bm,
		analyser:         a,
		addrMgr:          am,
		collection:       a.Collections,
		writer:           w,
		detectingOrphans: detectOrphans,
	}
}

// State returns the current server state.
func (l *Logic) State() State { return l.state }

// SetState transitions the server state, scheduling an initial GetBlocks
// request from the current tip on entering Connected (including on
// reconnection).
func (l *Logic) SetState(s State) {
	log.Logic.Info().Str("state", s.String()).Msg("set_state")
	if s == Connected {
		l.requestNextBlock(nil)
	}
	l.state = s
}

// OnHeaders logs a Headers message; the core does not act on bare headers,
// it waits for the matching blocks to arrive via Inv/GetData.
func (l *Logic) OnHeaders() {
	log.Logic.Info().Msg("on_headers")
}

// isOrphan reports whether a block with the given timestamp predates the
// chain's first-seen block, the signal used to detect a superseded tip
// (§4.H). Orphan detection is a one-shot latch: once the start timestamp
// is known it is cached rather than re-derived from the Block Manager on
// every block.
func (l *Logic) isOrphan(timestamp uint32) bool {
	if !l.detectingOrphans {
		return false
	}
	if l.startBlockTimestamp == nil {
		ts, ok := l.blockMgr.GetStartBlockTimestamp()
		if !ok {
			return false
		}
		l.startBlockTimestamp = &ts
	}
	return *l.startBlockTimestamp > timestamp
}

// OnTx processes a standalone (not-yet-confirmed) transaction and, once
// the server is Ready, opportunistically flushes the write-behind buffers.
func (l *Logic) OnTx(t *tx.Transaction) {
	l.analyser.ProcessStandaloneTx(l.writer, t)
	if l.state == Ready {
		l.analyser.Utxo.Flush(l.writer)
	}
}

// FlushDatabaseCache flushes every write-behind buffer, but only once the
// server has caught up to the chain tip.
func (l *Logic) FlushDatabaseCache() {
	if l.state == Ready {
		l.analyser.Utxo.Flush(l.writer)
		l.analyser.Tx.Flush(l.writer)
	}
}

// TxExists reports whether hash is already known to the Tx Analyser.
func (l *Logic) TxExists(hash types.Hash) bool {
	return l.analyser.TxExists(hash)
}

// OnAddr forwards a peer Addr message to the Address Manager.
func (l *Logic) OnAddr(addrs []addrmgr.PeerAddr) {
	l.addrMgr.OnAddr(l.writer, addrs)
}

// MessagesToSend drains and returns every outbound message Logic has
// accumulated since the last call.
func (l *Logic) MessagesToSend() []any {
	msgs := l.sendQueue
	l.sendQueue = nil
	return msgs
}

// OnInv splits an inventory announcement into tx and block items. Every tx
// item is requested immediately with GetData; block items are appended as
// a new entry in the ordered block-inventory list, requesting the first
// block of that entry if the list was previously empty (§4.H).
func (l *Logic) OnInv(items []InvItem) {
	var txs, blocks []InvItem
	for _, item := range items {
		switch item.Kind {
		case InvTx:
			txs = append(txs, item)
		case InvBlock:
			blocks = append(blocks, item)
		}
	}

	if len(txs) > 0 {
		l.sendQueue = append(l.sendQueue, GetDataMsg{Items: txs})
	}

	wasEmpty := len(l.blockInventory) == 0
	l.blockInventory = append(l.blockInventory, blocks)
	if wasEmpty {
		l.requestNextBlock(nil)
	}
}

// getLastKnownBlockHash returns the hash to resume a GetBlocks request
// from.
func (l *Logic) getLastKnownBlockHash() string {
	return l.blockMgr.GetLastKnownBlockHash()
}

// requestNextBlock removes received from the head inventory entry (if a
// hash was supplied), drops any now-empty entries from the front of the
// list, then either requests the next block in the new head entry or, if
// every entry is drained, issues a fresh GetBlocks from the current tip.
func (l *Logic) requestNextBlock(received *types.Hash) {
	if received != nil && len(l.blockInventory) > 0 {
		head := l.blockInventory[0]
		filtered := head[:0]
		for _, item := range head {
			if item.Hash != *received {
				filtered = append(filtered, item)
			}
		}
		l.blockInventory[0] = filtered
	}

	for len(l.blockInventory) > 0 && len(l.blockInventory[0]) == 0 {
		l.blockInventory = l.blockInventory[1:]
	}

	if len(l.blockInventory) == 0 {
		hash, err := types.HexToHash(l.getLastKnownBlockHash())
		if err != nil {
			log.Logic.Error().Err(err).Msg("invalid last known block hash")
			return
		}
		l.sendQueue = append(l.sendQueue, GetBlocksMsg{LocatorHash: hash})
		return
	}

	first := l.blockInventory[0][0]
	l.sendQueue = append(l.sendQueue, GetDataMsg{Items: []InvItem{first}})
}

// OnBlock handles a block received from a peer (§4.H): if it looks like an
// orphan (predates the chain's first-seen block), the block inventory is
// dropped and the Block Manager unwinds its tip one step; otherwise the
// block is forwarded to the Block Manager. Either way, the next block
// request is paced from the outcome, and reaching the chain tip promotes
// the server to Ready.
func (l *Logic) OnBlock(b *block.Block) {
	var processedHash *types.Hash

	if l.isOrphan(b.Header.Timestamp) {
		l.blockInventory = nil
		l.blockMgr.HandleOrphanBlock(l.writer, l.analyser)
		log.Logic.Info().Msg("orphan block found, ignoring")
	} else {
		hash := b.Header.Hash()
		l.blockMgr.OnBlock(l.writer, l.analyser, b)
		processedHash = &hash
	}

	l.requestNextBlock(processedHash)

	if l.state != Ready && l.blockMgr.HasChainTip() {
		l.SetState(Ready)
	}
}

// OnBroadcast handles a tx submitted via the REST surface: deduplicates
// against the Tx Analyser, and if new, queues it for peer relay, processes
// it locally as a standalone tx, and flushes the write-behind buffers.
func (l *Logic) OnBroadcast(t *tx.Transaction) (isNew bool) {
	if l.analyser.TxExists(t.Hash()) {
		return false
	}
	l.sendQueue = append(l.sendQueue, BroadcastTxMsg{Tx: t})
	l.collection.RecordBroadcast(l.writer, t)
	l.OnTx(t)
	l.FlushDatabaseCache()
	return true
}

// OnMonitorAdd forwards a REST monitor-add request to the collection
// registry.
func (l *Logic) OnMonitorAdd(def collection.Definition) error {
	return l.collection.AddMonitor(l.writer, def)
}

// OnMonitorDelete forwards a REST monitor-delete request to the collection
// registry.
func (l *Logic) OnMonitorDelete(name string) error {
	return l.collection.DeleteMonitor(l.writer, name)
}

// Stop flushes every pending write-behind buffer and closes the Database
// Writer's queue, the final step before process exit (§4.H).
func (l *Logic) Stop() {
	l.analyser.Utxo.Flush(l.writer)
	l.analyser.Tx.Flush(l.writer)
	l.writer.Close()
}
