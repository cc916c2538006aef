package collection

import (
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/store"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// BroadcastName is the reserved collection name recording every
// transaction the REST surface asked this node to broadcast.
const BroadcastName = "broadcast"

// Registry holds every active collection: the static configured list, any
// dynamically-added monitors, and the reserved broadcast collection.
type Registry struct {
	byName      map[string]*Collection
	dynamicFile string
	dynamic     map[string]Definition
}

// NewRegistry builds a Registry over defs, plus a broadcast collection that
// is always present regardless of configuration, then loads the dynamic
// monitor list from dynamicFile (§4.D: collections load at startup "from
// both a static configuration and a mutable file-backed 'dynamic' list"). A
// blank dynamicFile disables file-backed dynamic monitors.
func NewRegistry(defs []Definition, dynamicFile string) (*Registry, error) {
	r := &Registry{
		byName:      make(map[string]*Collection),
		dynamicFile: dynamicFile,
		dynamic:     make(map[string]Definition),
	}
	for _, d := range defs {
		c, err := New(d)
		if err != nil {
			return nil, err
		}
		r.byName[d.Name] = c
	}
	if _, ok := r.byName[BroadcastName]; !ok {
		c, _ := New(Definition{Name: BroadcastName})
		r.byName[BroadcastName] = c
	}

	fileDefs, err := loadDynamicFile(dynamicFile)
	if err != nil {
		return nil, err
	}
	for _, d := range fileDefs {
		if _, ok := r.byName[d.Name]; ok {
			continue
		}
		c, err := New(d)
		if err != nil {
			continue
		}
		r.byName[d.Name] = c
		r.dynamic[d.Name] = d
	}
	return r, nil
}

// dynamicDefs returns every currently-registered dynamic monitor definition,
// the contents written out wholesale on each add/delete.
func (r *Registry) dynamicDefs() []Definition {
	defs := make([]Definition, 0, len(r.dynamic))
	for _, d := range r.dynamic {
		defs = append(defs, d)
	}
	return defs
}

// LoadFromStore seeds every collection's known-tx set and restores any
// dynamically-added monitor definitions persisted from a previous run.
func (r *Registry) LoadFromStore(q *store.Queries) error {
	monitors, err := q.CollectionMonitorLoadAll()
	if err != nil {
		return err
	}
	for _, m := range monitors {
		if _, ok := r.byName[m.Name]; ok {
			continue
		}
		c, err := New(Definition{
			Name:               m.Name,
			TrackDescendants:   m.TrackDescendants,
			LockingScriptRegex: m.LockingScriptRegex,
		})
		if err != nil {
			continue
		}
		r.byName[m.Name] = c
	}
	for name, c := range r.byName {
		hashes, err := q.CollectionTxsForName(name)
		if err != nil {
			return err
		}
		c.LoadTxs(hashes)
	}
	return nil
}

// Run offers t to every collection except the broadcast collection,
// recording a match wherever try_match succeeds (P5 — idempotent under
// repeated calls on an already-matched tx).
func (r *Registry) Run(w *dbwriter.Writer, t *tx.Transaction) {
	for name, c := range r.byName {
		if name == BroadcastName {
			continue
		}
		c.TryMatch(w, t)
	}
}

// RecordBroadcast adds t to the broadcast collection unconditionally,
// bypassing the pattern-match predicate since every REST-originated
// broadcast is recorded by definition.
func (r *Registry) RecordBroadcast(w *dbwriter.Writer, t *tx.Transaction) {
	bc := r.byName[BroadcastName]
	hash := t.Hash()
	if bc.AlreadyHaveTx(hash) {
		return
	}
	bc.txs[hash] = struct{}{}
	w.Enqueue(dbwriter.Op{
		Kind:           dbwriter.CollectionTxWrite,
		CollectionHash: hash.String(),
		CollectionName: BroadcastName,
	})
}

// AddMonitor compiles and registers a new dynamic collection, persisting
// its definition to the dynamic-config file and, alongside it, to the
// collection_monitor table (the table backs CollectionTxsForName's tx-hash
// backfill; the file is the source of truth for the monitor list itself,
// per §4.D).
func (r *Registry) AddMonitor(w *dbwriter.Writer, def Definition) error {
	c, err := New(def)
	if err != nil {
		return err
	}
	r.byName[def.Name] = c
	r.dynamic[def.Name] = def
	c.PersistDefinition(w)
	return saveDynamicFile(r.dynamicFile, r.dynamicDefs())
}

// DeleteMonitor removes a dynamic collection by name, its persisted
// definition, and its entry in the dynamic-config file. The broadcast
// collection cannot be deleted. Returns an error only if rewriting the
// dynamic-config file fails; the in-memory and database removal still take
// effect.
func (r *Registry) DeleteMonitor(w *dbwriter.Writer, name string) error {
	if name == BroadcastName {
		return nil
	}
	delete(r.byName, name)
	RemoveDefinition(w, name)
	if _, ok := r.dynamic[name]; !ok {
		return nil
	}
	delete(r.dynamic, name)
	return saveDynamicFile(r.dynamicFile, r.dynamicDefs())
}

// TxExists reports whether hash has matched into any registered
// collection, used by the Tx Analyser's tx_exists check (§4.F).
func (r *Registry) TxExists(hash types.Hash) bool {
	for _, c := range r.byName {
		if c.AlreadyHaveTx(hash) {
			return true
		}
	}
	return false
}
