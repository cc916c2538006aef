// Package tx defines the transaction type ingested and indexed by the
// analyser: lock-time, ordered inputs, ordered outputs.
package tx

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klingon-tech/uaas/pkg/types"
)

// Transaction is a decoded Bitcoin-SV-family transaction.
type Transaction struct {
	Version  uint32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32
}

// Input references a previous output being spent. A coinbase input carries
// a zero-value PrevOut; callers identify it by position (index 0 of the
// first transaction in a block), not by inspecting PrevOut, per §4.F.
type Input struct {
	PrevOut   types.Outpoint
	ScriptSig []byte
	Sequence  uint32
}

// Output carries a satoshi amount and a locking script.
type Output struct {
	Value  uint64
	Script types.Script
}

// Hash computes the transaction ID: the double-SHA256 of the canonical
// binary encoding, matching the wire serialisation used by the
// Bitcoin-SV-family codec.
func (t *Transaction) Hash() types.Hash {
	first := sha256.Sum256(t.Bytes())
	second := sha256.Sum256(first[:])
	return types.Hash(second)
}

// Bytes returns the canonical binary encoding used both for hashing and for
// the hex payload stored in the mempool/collection tables.
func (t *Transaction) Bytes() []byte {
	buf := make([]byte, 0, 128)
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)

	buf = appendVarInt(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		buf = appendVarInt(buf, uint64(len(in.ScriptSig)))
		buf = append(buf, in.ScriptSig...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = appendVarInt(buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = appendVarInt(buf, uint64(len(out.Script)))
		buf = append(buf, out.Script...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	return buf
}

// Decode parses the canonical binary encoding produced by Bytes, used by
// the REST raw-tx broadcast endpoint (§6).
func Decode(raw []byte) (*Transaction, error) {
	r := &byteReader{buf: raw}

	version, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	t := &Transaction{Version: version}

	numInputs, err := r.readVarInt()
	if err != nil {
		return nil, fmt.Errorf("reading input count: %w", err)
	}
	for i := uint64(0); i < numInputs; i++ {
		var txid types.Hash
		if err := r.readBytes(txid[:]); err != nil {
			return nil, fmt.Errorf("reading input %d prev txid: %w", i, err)
		}
		index, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("reading input %d prev index: %w", i, err)
		}
		scriptLen, err := r.readVarInt()
		if err != nil {
			return nil, fmt.Errorf("reading input %d script length: %w", i, err)
		}
		script := make([]byte, scriptLen)
		if err := r.readBytes(script); err != nil {
			return nil, fmt.Errorf("reading input %d script: %w", i, err)
		}
		sequence, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("reading input %d sequence: %w", i, err)
		}
		t.Inputs = append(t.Inputs, Input{
			PrevOut:   types.Outpoint{TxID: txid, Index: index},
			ScriptSig: script,
			Sequence:  sequence,
		})
	}

	numOutputs, err := r.readVarInt()
	if err != nil {
		return nil, fmt.Errorf("reading output count: %w", err)
	}
	for i := uint64(0); i < numOutputs; i++ {
		value, err := r.readUint64()
		if err != nil {
			return nil, fmt.Errorf("reading output %d value: %w", i, err)
		}
		scriptLen, err := r.readVarInt()
		if err != nil {
			return nil, fmt.Errorf("reading output %d script length: %w", i, err)
		}
		script := make([]byte, scriptLen)
		if err := r.readBytes(script); err != nil {
			return nil, fmt.Errorf("reading output %d script: %w", i, err)
		}
		t.Outputs = append(t.Outputs, Output{Value: value, Script: types.Script(script)})
	}

	lockTime, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("reading locktime: %w", err)
	}
	t.LockTime = lockTime

	return t, nil
}

// byteReader is a minimal little-endian cursor over a byte slice, the
// counterpart to appendVarInt and the field-by-field layout Bytes writes.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readBytes(dst []byte) error {
	if len(r.buf)-r.pos < len(dst) {
		return fmt.Errorf("unexpected end of data")
	}
	copy(dst, r.buf[r.pos:])
	r.pos += len(dst)
	return nil
}

func (r *byteReader) readUint32() (uint32, error) {
	var b [4]byte
	if err := r.readBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (r *byteReader) readUint64() (uint64, error) {
	var b [8]byte
	if err := r.readBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (r *byteReader) readVarInt() (uint64, error) {
	var prefix [1]byte
	if err := r.readBytes(prefix[:]); err != nil {
		return 0, err
	}
	switch prefix[0] {
	case 0xfd:
		var b [2]byte
		if err := r.readBytes(b[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b[:])), nil
	case 0xfe:
		v, err := r.readUint32()
		return uint64(v), err
	case 0xff:
		return r.readUint64()
	default:
		return uint64(prefix[0]), nil
	}
}

// appendVarInt appends a Bitcoin-style compact size integer.
func appendVarInt(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= math.MaxUint16:
		buf = append(buf, 0xfd)
		return binary.LittleEndian.AppendUint16(buf, uint16(n))
	case n <= math.MaxUint32:
		buf = append(buf, 0xfe)
		return binary.LittleEndian.AppendUint32(buf, uint32(n))
	default:
		buf = append(buf, 0xff)
		return binary.LittleEndian.AppendUint64(buf, n)
	}
}

// IsCoinbase reports whether this is the coinbase transaction of a block:
// position zero, whose single input does not reference a prior outpoint.
func (t *Transaction) IsCoinbase(blockIndex int) bool {
	return blockIndex == 0
}

// TotalOutputValue sums all output values, saturating rather than
// overflowing (a malformed tx should never panic the analyser).
func (t *Transaction) TotalOutputValue() uint64 {
	var total uint64
	for _, out := range t.Outputs {
		if total > math.MaxUint64-out.Value {
			return math.MaxUint64
		}
		total += out.Value
	}
	return total
}
