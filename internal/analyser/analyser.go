// Package analyser is component F: the Tx Analyser, orchestrating the UTXO
// set, Tx Store, and Collections for every transaction the indexer
// observes, whether standalone (mempool) or confirmed in a block. Owned
// exclusively by the Logic goroutine (§5) — no locking is needed.
package analyser

import (
	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/txstore"
	"github.com/klingon-tech/uaas/internal/utxoset"
	blockpkg "github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// notACoinbase is the blockindex process_standalone_tx uses when spending
// inputs of a tx that did not arrive in a block, so process_tx_inputs never
// takes the coinbase skip-path for mempool transactions.
const notACoinbase = 1

// Analyser ties together the UTXO set, the Tx Store, and the collection
// registry. It is the single entry point Logic calls for every
// transaction and block the indexer ingests.
type Analyser struct {
	Utxo        *utxoset.Set
	Tx          *txstore.Store
	Collections *collection.Registry
}

// New builds an Analyser from its already-constructed components.
func New(utxo *utxoset.Set, txStore *txstore.Store, collections *collection.Registry) *Analyser {
	return &Analyser{Utxo: utxo, Tx: txStore, Collections: collections}
}

// processOutputs adds every spendable output of t to the UTXO set at
// height, skipping unspendable (OP_FALSE OP_RETURN) outputs per P4.
func (a *Analyser) processOutputs(t *tx.Transaction, height int32, pubKeyHashOf func(types.Script) string) {
	hash := t.Hash()
	for index, out := range t.Outputs {
		if !out.Script.IsSpendable() {
			continue
		}
		outpoint := types.Outpoint{TxID: hash, Index: uint32(index)}
		a.Utxo.Add(outpoint, out.Value, height, pubKeyHashOf(out.Script))
	}
}

// processInputs spends every input of t against the UTXO set unless
// blockIndex is 0, the coinbase position whose inputs never reference a
// real prior output.
func (a *Analyser) processInputs(t *tx.Transaction, blockIndex int) {
	if blockIndex == 0 {
		return
	}
	for _, in := range t.Inputs {
		a.Utxo.Delete(in.PrevOut)
	}
}

// ProcessBlockTx processes a single transaction at its position within a
// block: spends its inputs, adds its outputs to the UTXO set at height,
// then runs it through the collection registry.
func (a *Analyser) ProcessBlockTx(w *dbwriter.Writer, t *tx.Transaction, height uint64, blockIndex int) {
	a.processInputs(t, blockIndex)
	a.processOutputs(t, int32(height), scriptPubKeyHash)
	a.Collections.Run(w, t)
}

// ProcessBlock processes every transaction in b at height: promotes
// mempool entries to confirmed, processes each tx's inputs/outputs/
// collections, then flushes every write-behind buffer once for the whole
// block.
func (a *Analyser) ProcessBlock(w *dbwriter.Writer, b *blockpkg.Block, height uint64) {
	a.Tx.ProcessBlock(b, height)

	for blockIndex, t := range b.Transactions {
		a.ProcessBlockTx(w, t, height, blockIndex)
	}

	a.Utxo.Flush(w)
	a.Tx.Flush(w)
}

// calcFee computes max(0, Σinputs − Σoutputs) from the UTXO set. Any input
// whose prior output is unknown makes the whole fee unknowable, so the
// computation returns 0 rather than an understated partial sum (P7).
func (a *Analyser) calcFee(t *tx.Transaction) int64 {
	var inputTotal uint64
	for _, in := range t.Inputs {
		satoshis, ok := a.Utxo.GetSatoshis(in.PrevOut)
		if !ok {
			return 0
		}
		inputTotal += satoshis
	}
	outputTotal := t.TotalOutputValue()
	if inputTotal < outputTotal {
		return 0
	}
	return int64(inputTotal - outputTotal)
}

// ProcessStandaloneTx processes a mempool (not-yet-confirmed) transaction:
// computes its fee, adds it to the mempool, spends its inputs, records its
// outputs at height -1 (unconfirmed), and runs it through the collection
// registry.
func (a *Analyser) ProcessStandaloneTx(w *dbwriter.Writer, t *tx.Transaction) {
	fee := a.calcFee(t)
	a.Tx.AddToMempool(w, t, fee)

	a.processInputs(t, notACoinbase)
	a.processOutputs(t, utxoset.NotInBlock, scriptPubKeyHash)
	a.Collections.Run(w, t)
}

// TxExists reports whether hash is known to the Tx Store or to any
// collection, per §4.F's tx_exists contract.
func (a *Analyser) TxExists(hash types.Hash) bool {
	return a.Tx.TxExists(hash) || a.Collections.TxExists(hash)
}

// HandleOrphanBlock unwinds every utxo entry and confirmed-tx row created
// at height, the one-step reorg path (§4.G).
func (a *Analyser) HandleOrphanBlock(w *dbwriter.Writer, height uint32) {
	a.Utxo.HandleOrphanBlock(w, height)
	a.Tx.Rollback(w, uint64(height))
}

// scriptPubKeyHash extracts the P2PKH pubkey hash for indexing, falling
// back to types.UnknownPubKeyHash for any other script shape.
func scriptPubKeyHash(s types.Script) string {
	return s.PubKeyHash()
}
