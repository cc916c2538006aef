package analyser

import (
	"testing"

	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/txstore"
	"github.com/klingon-tech/uaas/internal/utxoset"
	blockpkg "github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

func newAnalyser(t *testing.T) *Analyser {
	t.Helper()
	reg, err := collection.NewRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return New(utxoset.New(), txstore.New(), reg)
}

func coinbaseTx(value uint64) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{Sequence: 0xffffffff}},
		Outputs: []tx.Output{{Value: value, Script: types.Script{0x76, 0xa9}}},
	}
}

func TestProcessBlock_AddsSpendableOutputsToUtxo(t *testing.T) {
	a := newAnalyser(t)
	w := dbwriter.New(nil, 1, 0)
	cb := coinbaseTx(5000)
	b := &blockpkg.Block{Transactions: []*tx.Transaction{cb}}

	a.ProcessBlock(w, b, 10)

	op := types.Outpoint{TxID: cb.Hash(), Index: 0}
	got, ok := a.Utxo.GetSatoshis(op)
	if !ok || got != 5000 {
		t.Fatalf("GetSatoshis = %d, %v", got, ok)
	}
}

func TestProcessBlock_UnspendableOutputSkipped(t *testing.T) {
	a := newAnalyser(t)
	w := dbwriter.New(nil, 1, 0)
	unspendable := &tx.Transaction{
		Inputs:  []tx.Input{{Sequence: 1}},
		Outputs: []tx.Output{{Value: 1000, Script: types.Script{0x00, 0x6a}}},
	}
	b := &blockpkg.Block{Transactions: []*tx.Transaction{unspendable}}

	a.ProcessBlock(w, b, 1)

	op := types.Outpoint{TxID: unspendable.Hash(), Index: 0}
	if a.Utxo.Exists(op) {
		t.Error("expected unspendable output not added to utxo")
	}
}

func TestCalcFee_UnknownInputReturnsZero(t *testing.T) {
	a := newAnalyser(t)
	spender := &tx.Transaction{
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{Index: 0}, Sequence: 1}},
		Outputs: []tx.Output{{Value: 100}},
	}
	if got := a.calcFee(spender); got != 0 {
		t.Errorf("calcFee = %d, want 0 for unknown input", got)
	}
}

func TestCalcFee_KnownInputsComputesDifference(t *testing.T) {
	a := newAnalyser(t)
	parent := coinbaseTx(1000)
	op := types.Outpoint{TxID: parent.Hash(), Index: 0}
	a.Utxo.Add(op, 1000, 1, "")

	spender := &tx.Transaction{
		Inputs:  []tx.Input{{PrevOut: op, Sequence: 1}},
		Outputs: []tx.Output{{Value: 700}},
	}
	if got := a.calcFee(spender); got != 300 {
		t.Errorf("calcFee = %d, want 300", got)
	}
}

func TestTxExists_ReportsMempoolTx(t *testing.T) {
	a := newAnalyser(t)
	w := dbwriter.New(nil, 1, 0)
	t1 := coinbaseTx(1)
	a.ProcessStandaloneTx(w, t1)
	if !a.TxExists(t1.Hash()) {
		t.Error("expected mempool tx to be reported as existing")
	}
}
