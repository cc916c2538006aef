// Package utxoset is component B: the in-memory unspent-output set and its
// write-behind buffer to the Database Writer. It is owned exclusively by the
// Logic goroutine (§5) — no locking is needed.
package utxoset

import (
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/store"
	"github.com/klingon-tech/uaas/pkg/types"
)

// entry is the in-memory record for one unspent output.
type entry struct {
	satoshis   uint64
	height     int32 // -1 means not yet confirmed in a block
	pubKeyHash string
}

// NotInBlock marks a utxo entry added from a mempool transaction rather than
// a confirmed block, mirroring the original's NOT_IN_BLOCK sentinel.
const NotInBlock int32 = -1

// Set holds the full unspent-output view plus the pending write-behind
// buffers that accumulate between flushes to the Database Writer.
type Set struct {
	utxo map[types.Outpoint]entry

	pendingWrites  map[types.Outpoint]store.UtxoEntry
	pendingDeletes []store.UtxoOutpoint
}

// New creates an empty Set.
func New() *Set {
	return &Set{
		utxo:          make(map[types.Outpoint]entry),
		pendingWrites: make(map[types.Outpoint]store.UtxoEntry),
	}
}

// Load replaces the in-memory set with rows already persisted, called once
// at startup before ingest resumes.
func (s *Set) Load(rows []store.UtxoEntry) {
	s.utxo = make(map[types.Outpoint]entry, len(rows))
	for _, r := range rows {
		hash, err := types.HexToHash(r.Hash)
		if err != nil {
			continue
		}
		op := types.Outpoint{TxID: hash, Index: r.Pos}
		s.utxo[op] = entry{satoshis: r.Satoshis, height: r.Height, pubKeyHash: r.PubKeyHash}
	}
}

// Add records a new unspent output and queues it for batch write. Any
// pending delete for the same outpoint is removed, so delete-then-write
// within a batch reaches the database as a single write.
func (s *Set) Add(outpoint types.Outpoint, satoshis uint64, height int32, pubKeyHash string) {
	s.utxo[outpoint] = entry{satoshis: satoshis, height: height, pubKeyHash: pubKeyHash}
	s.pendingWrites[outpoint] = store.UtxoEntry{
		Hash:       outpoint.TxID.String(),
		Pos:        outpoint.Index,
		Satoshis:   satoshis,
		Height:     height,
		PubKeyHash: pubKeyHash,
	}
	s.removePendingDelete(outpoint)
}

// Delete removes a spent output from the in-memory view and queues its
// removal. A pending write for the same outpoint in this batch is dropped,
// so add-then-delete within one batch reaches the database as a single
// delete (which also clears a row persisted by an earlier flush).
func (s *Set) Delete(outpoint types.Outpoint) {
	if _, ok := s.utxo[outpoint]; !ok {
		return
	}
	delete(s.utxo, outpoint)
	delete(s.pendingWrites, outpoint)
	s.pendingDeletes = append(s.pendingDeletes, store.UtxoOutpoint{
		Hash: outpoint.TxID.String(),
		Pos:  outpoint.Index,
	})
}

func (s *Set) removePendingDelete(outpoint types.Outpoint) {
	want := store.UtxoOutpoint{Hash: outpoint.TxID.String(), Pos: outpoint.Index}
	for i, d := range s.pendingDeletes {
		if d == want {
			s.pendingDeletes = append(s.pendingDeletes[:i], s.pendingDeletes[i+1:]...)
			return
		}
	}
}

// GetSatoshis returns the value of outpoint and whether it is currently
// unspent, backing the Tx Analyser's fee computation (an unknown input makes
// the whole fee 0 rather than failing the computation).
func (s *Set) GetSatoshis(outpoint types.Outpoint) (uint64, bool) {
	e, ok := s.utxo[outpoint]
	if !ok {
		return 0, false
	}
	return e.satoshis, true
}

// Exists reports whether outpoint is currently in the unspent set.
// Unspendable (OP_FALSE OP_RETURN) outputs are never added, so they are
// never reported as existing.
func (s *Set) Exists(outpoint types.Outpoint) bool {
	_, ok := s.utxo[outpoint]
	return ok
}

// Len returns the number of unspent outputs currently tracked.
func (s *Set) Len() int {
	return len(s.utxo)
}

// Flush enqueues the accumulated batch write and batch delete as two
// Database Writer operations and clears the pending buffers, mirroring
// update_db's two-send pattern.
func (s *Set) Flush(w *dbwriter.Writer) {
	if len(s.pendingWrites) > 0 {
		writes := make([]store.UtxoEntry, 0, len(s.pendingWrites))
		for _, e := range s.pendingWrites {
			writes = append(writes, e)
		}
		w.Enqueue(dbwriter.Op{Kind: dbwriter.UtxoBatchWrite, UtxoWrites: writes})
		s.pendingWrites = make(map[types.Outpoint]store.UtxoEntry)
	}
	if len(s.pendingDeletes) > 0 {
		w.Enqueue(dbwriter.Op{Kind: dbwriter.UtxoBatchDelete, UtxoDeletes: s.pendingDeletes})
		s.pendingDeletes = nil
	}
}

// HandleOrphanBlock drops every utxo entry created at height from the
// in-memory view and schedules the matching database rows for deletion, the
// one-step reorg unwind path (§4.G).
func (s *Set) HandleOrphanBlock(w *dbwriter.Writer, height uint32) {
	w.Enqueue(dbwriter.Op{Kind: dbwriter.UtxoDeleteAtHeight, Height: uint64(height)})
	heightAsInt32 := int32(height)
	for op, e := range s.utxo {
		if e.height == heightAsInt32 {
			delete(s.utxo, op)
			delete(s.pendingWrites, op)
		}
	}
}
