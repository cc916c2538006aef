package block

import (
	"testing"

	"github.com/klingon-tech/uaas/pkg/tx"
)

func sampleBlock(numTxs int) *Block {
	txs := make([]*tx.Transaction, 0, numTxs)
	for i := 0; i < numTxs; i++ {
		txs = append(txs, &tx.Transaction{Version: 1, LockTime: uint32(i)})
	}
	return &Block{Header: &Header{Version: 1, Timestamp: 1}, Transactions: txs}
}

func TestBlock_BytesLengthMatchesSize(t *testing.T) {
	b := sampleBlock(3)
	if got, want := len(b.Bytes()), int(b.Size()); got != want {
		t.Errorf("len(Bytes()) = %d, want Size() = %d", got, want)
	}
}

func TestBlock_BytesIncludesHeaderAndEveryTx(t *testing.T) {
	b := sampleBlock(2)
	encoded := b.Bytes()

	if len(encoded) < len(b.Header.Bytes()) {
		t.Fatal("encoded block shorter than its header")
	}
	headerPrefix := encoded[:len(b.Header.Bytes())]
	for i, want := range b.Header.Bytes() {
		if headerPrefix[i] != want {
			t.Fatalf("header prefix mismatch at byte %d", i)
		}
	}
}

func TestBlock_VarIntTxCountSizeAt253TransactionsBoundary(t *testing.T) {
	under := sampleBlock(252)
	over := sampleBlock(253)

	underOverhead := int(under.Size()) - len(under.Header.Bytes())
	for _, t2 := range under.Transactions {
		underOverhead -= len(t2.Bytes())
	}
	overOverhead := int(over.Size()) - len(over.Header.Bytes())
	for _, t2 := range over.Transactions {
		overOverhead -= len(t2.Bytes())
	}

	if underOverhead != 1 {
		t.Errorf("varint overhead for 252 txs = %d, want 1", underOverhead)
	}
	if overOverhead != 3 {
		t.Errorf("varint overhead for 253 txs = %d, want 3", overOverhead)
	}
}
