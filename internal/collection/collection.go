// Package collection is component D: named transaction monitors matched
// either by a locking-script regex or by descendant tracking, persisted to
// a shared collection table. Owned exclusively by the Logic goroutine
// (§5) — no locking is needed.
package collection

import (
	"encoding/hex"
	"regexp"

	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// Definition is a collection's static identity: its name, whether matched
// transactions' descendants are also tracked, and an optional locking
// script regex.
type Definition struct {
	Name               string
	TrackDescendants   bool
	LockingScriptRegex string
}

// Collection is a live monitor: its definition plus the set of transaction
// hashes it has already matched.
type Collection struct {
	def   Definition
	txs   map[types.Hash]struct{}
	regex *regexp.Regexp
}

// New compiles def's locking-script pattern (if any) and returns an empty
// Collection. A malformed pattern is reported so the caller can reject it
// at config-load or REST-monitor-add time rather than silently matching
// nothing.
func New(def Definition) (*Collection, error) {
	c := &Collection{def: def, txs: make(map[types.Hash]struct{})}
	if def.LockingScriptRegex != "" {
		re, err := regexp.Compile(def.LockingScriptRegex)
		if err != nil {
			return nil, err
		}
		c.regex = re
	}
	return c, nil
}

// Name returns the collection's identifier.
func (c *Collection) Name() string { return c.def.Name }

// TrackDescendants reports whether spends of a matched transaction's
// outputs should also be added to this collection.
func (c *Collection) TrackDescendants() bool { return c.def.TrackDescendants }

// LockingScriptRegex returns the raw pattern this collection was built
// with, used when persisting the monitor definition.
func (c *Collection) LockingScriptRegex() string { return c.def.LockingScriptRegex }

// AlreadyHaveTx reports whether hash has already been matched into this
// collection.
func (c *Collection) AlreadyHaveTx(hash types.Hash) bool {
	_, ok := c.txs[hash]
	return ok
}

// LoadTxs seeds the known-tx set from persisted rows, called once at
// startup.
func (c *Collection) LoadTxs(hashes []string) {
	for _, h := range hashes {
		hash, err := types.HexToHash(h)
		if err != nil {
			continue
		}
		c.txs[hash] = struct{}{}
	}
}

// matchesLockingScript reports whether any output script of t matches this
// collection's regex against the script's hex encoding.
func (c *Collection) matchesLockingScript(t *tx.Transaction) bool {
	if c.regex == nil {
		return false
	}
	for _, out := range t.Outputs {
		if c.regex.MatchString(hex.EncodeToString(out.Script)) {
			return true
		}
	}
	return false
}

// isDescendant reports whether t spends an output of any transaction
// already tracked by this collection.
func (c *Collection) isDescendant(t *tx.Transaction) bool {
	for _, in := range t.Inputs {
		if _, ok := c.txs[in.PrevOut.TxID]; ok {
			return true
		}
	}
	return false
}

// TryMatch runs t through both match strategies — locking-script pattern
// and descendant tracking. If either matches and t is not already
// recorded, it is added to the collection and queued for persistence, and
// TryMatch returns true.
func (c *Collection) TryMatch(w *dbwriter.Writer, t *tx.Transaction) bool {
	if !c.matchesLockingScript(t) && !(c.def.TrackDescendants && c.isDescendant(t)) {
		return false
	}
	hash := t.Hash()
	if _, ok := c.txs[hash]; ok {
		return true
	}
	c.txs[hash] = struct{}{}
	w.Enqueue(dbwriter.Op{
		Kind:            dbwriter.CollectionTxWrite,
		CollectionHash:  hash.String(),
		CollectionName:  c.def.Name,
		CollectionTxHex: hex.EncodeToString(t.Bytes()),
	})
	return true
}

// PersistDefinition queues this collection's definition for storage in the
// monitor table, so a dynamically-added collection (via the REST surface)
// survives a restart.
func (c *Collection) PersistDefinition(w *dbwriter.Writer) {
	w.Enqueue(dbwriter.Op{
		Kind:                         dbwriter.CollectionMonitorWrite,
		CollectionName:               c.def.Name,
		CollectionTrackDescendants:   c.def.TrackDescendants,
		CollectionLockingScriptRegex: c.def.LockingScriptRegex,
	})
}

// RemoveDefinition queues deletion of this collection's persisted
// definition, used when a monitor is deleted via the REST surface.
func RemoveDefinition(w *dbwriter.Writer, name string) {
	w.Enqueue(dbwriter.Op{Kind: dbwriter.CollectionMonitorDelete, CollectionName: name})
}
