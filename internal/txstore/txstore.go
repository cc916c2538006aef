// Package txstore is component C: the confirmed-tx and mempool hash sets,
// with the write-behind buffer to the Database Writer. Owned exclusively by
// the Logic goroutine (§5) — no locking is needed.
package txstore

import (
	"encoding/hex"
	"time"

	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/internal/store"
	blockpkg "github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// Store tracks which transactions have been confirmed in a block and which
// are sitting in the mempool, plus the pending write-behind buffers.
type Store struct {
	confirmed       map[types.Hash]struct{}
	confirmedHeight map[types.Hash]uint64
	mempool         map[types.Hash]struct{}

	pendingWrites  []store.TxEntry
	pendingDeletes []string

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		confirmed:       make(map[types.Hash]struct{}),
		confirmedHeight: make(map[types.Hash]uint64),
		mempool:         make(map[types.Hash]struct{}),
		now:             time.Now,
	}
}

// LoadConfirmed seeds the confirmed set from persisted rows, called once at
// startup.
func (s *Store) LoadConfirmed(hashes []string) {
	for _, h := range hashes {
		hash, err := types.HexToHash(h)
		if err != nil {
			continue
		}
		s.confirmed[hash] = struct{}{}
	}
}

// LoadMempool seeds the mempool set from persisted rows, called once at
// startup.
func (s *Store) LoadMempool(hashes []string) {
	for _, h := range hashes {
		hash, err := types.HexToHash(h)
		if err != nil {
			continue
		}
		s.mempool[hash] = struct{}{}
	}
}

// ProcessBlock records every transaction in b as confirmed at height,
// draining any matching mempool entries into the pending mempool-delete
// batch. A transaction already marked confirmed indicates the same tx was
// processed twice in a block; the original panics here, but the indexer
// logs and continues rather than taking the whole process down over a
// duplicate it can safely ignore.
func (s *Store) ProcessBlock(b *blockpkg.Block, height uint64) {
	for blockIndex, t := range b.Transactions {
		hash := t.Hash()

		if _, inMempool := s.mempool[hash]; inMempool {
			delete(s.mempool, hash)
			s.pendingDeletes = append(s.pendingDeletes, hash.String())
		}

		if _, already := s.confirmed[hash]; already {
			log.TxStore.Warn().Str("tx", hash.String()).Uint64("height", height).
				Msg("transaction already confirmed, skipping duplicate entry")
			continue
		}
		s.confirmed[hash] = struct{}{}
		s.confirmedHeight[hash] = height

		s.pendingWrites = append(s.pendingWrites, store.TxEntry{
			Hash:       hash.String(),
			Height:     height,
			BlockIndex: uint32(blockIndex),
			Size:       uint32(len(t.Bytes())),
			Satoshis:   t.TotalOutputValue(),
		})
	}
}

// AddToMempool records t as an unconfirmed transaction with the given fee
// and enqueues its mempool row.
func (s *Store) AddToMempool(w *dbwriter.Writer, t *tx.Transaction, fee int64) {
	hash := t.Hash()
	s.mempool[hash] = struct{}{}

	w.Enqueue(dbwriter.Op{
		Kind: dbwriter.MempoolWrite,
		Mempool: store.MempoolEntry{
			Hash:     hash.String(),
			LockTime: t.LockTime,
			Fee:      fee,
			Age:      uint64(s.now().Unix()),
			TxHex:    hex.EncodeToString(t.Bytes()),
		},
	})
}

// Flush enqueues the accumulated confirmed-tx batch write and mempool
// batch delete, clearing the pending buffers.
func (s *Store) Flush(w *dbwriter.Writer) {
	if len(s.pendingWrites) > 0 {
		w.Enqueue(dbwriter.Op{Kind: dbwriter.TxBatchWrite, TxWrites: s.pendingWrites})
		s.pendingWrites = nil
	}
	if len(s.pendingDeletes) > 0 {
		w.Enqueue(dbwriter.Op{Kind: dbwriter.MempoolBatchDelete, MempoolDeletes: s.pendingDeletes})
		s.pendingDeletes = nil
	}
}

// TxExists reports whether hash is known either as confirmed or in the
// mempool.
func (s *Store) TxExists(hash types.Hash) bool {
	if _, ok := s.confirmed[hash]; ok {
		return true
	}
	_, ok := s.mempool[hash]
	return ok
}

// Rollback drops every confirmed-tx entry recorded at height and schedules
// the matching database rows for deletion, the one-step reorg unwind path
// (§4.G). The unwound transactions are not restored to mempool; the peer
// thread's normal re-announce traffic will reintroduce them if still valid.
func (s *Store) Rollback(w *dbwriter.Writer, height uint64) {
	w.Enqueue(dbwriter.Op{Kind: dbwriter.TxDeleteAtHeight, Height: height})
	for hash, h := range s.confirmedHeight {
		if h == height {
			delete(s.confirmed, hash)
			delete(s.confirmedHeight, hash)
		}
	}
}
