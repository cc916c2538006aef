package peer

import (
	"github.com/gcash/bchd/wire"

	blockpkg "github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// decodeTx translates a wire-decoded transaction into the domain type the
// rest of the indexer operates on.
func decodeTx(msg *wire.MsgTx) (*tx.Transaction, error) {
	t := &tx.Transaction{
		Version:  uint32(msg.Version),
		LockTime: msg.LockTime,
	}
	for _, in := range msg.TxIn {
		t.Inputs = append(t.Inputs, tx.Input{
			PrevOut: types.Outpoint{
				TxID:  types.Hash(in.PreviousOutPoint.Hash),
				Index: in.PreviousOutPoint.Index,
			},
			ScriptSig: in.SignatureScript,
			Sequence:  in.Sequence,
		})
	}
	for _, out := range msg.TxOut {
		t.Outputs = append(t.Outputs, tx.Output{
			Value:  uint64(out.Value),
			Script: types.Script(out.PkScript),
		})
	}
	return t, nil
}

// encodeTx translates a domain transaction back into a wire message for
// broadcast.
func encodeTx(t *tx.Transaction) (*wire.MsgTx, error) {
	msg := wire.NewMsgTx(int32(t.Version))
	msg.LockTime = t.LockTime
	for _, in := range t.Inputs {
		outPoint := wire.NewOutPoint(&wire.ShaHash{}, in.PrevOut.Index)
		hash := wire.ShaHash(in.PrevOut.TxID)
		outPoint.Hash = hash
		msg.AddTxIn(wire.NewTxIn(outPoint, in.ScriptSig))
	}
	for _, out := range t.Outputs {
		msg.AddTxOut(wire.NewTxOut(int64(out.Value), out.Script))
	}
	return msg, nil
}

// decodeBlock translates a wire-decoded block into the domain type.
func decodeBlock(msg *wire.MsgBlock) (*blockpkg.Block, error) {
	b := &blockpkg.Block{
		Header: &blockpkg.Header{
			Version:    uint32(msg.Header.Version),
			PrevHash:   types.Hash(msg.Header.PrevBlock),
			MerkleRoot: types.Hash(msg.Header.MerkleRoot),
			Timestamp:  uint32(msg.Header.Timestamp.Unix()),
			Bits:       msg.Header.Bits,
			Nonce:      msg.Header.Nonce,
		},
	}
	for _, wt := range msg.Transactions {
		t, err := decodeTx(wt)
		if err != nil {
			return nil, err
		}
		b.Transactions = append(b.Transactions, t)
	}
	return b, nil
}
