package block

import (
	"encoding/binary"
	"math"

	"github.com/klingon-tech/uaas/pkg/tx"
)

// Block is a header plus an ordered sequence of transactions. The first
// transaction (index 0) is the coinbase and has no spendable predecessors.
type Block struct {
	Header       *Header
	Transactions []*tx.Transaction
}

// Bytes returns the canonical binary encoding of the full block — header,
// varint transaction count, then each transaction's own canonical encoding
// — the layout appended to the block file (§6 "Block file: append-only
// sequence of canonically-serialised blocks").
func (b *Block) Bytes() []byte {
	buf := make([]byte, 0, b.Size())
	buf = append(buf, b.Header.Bytes()...)
	buf = appendVarInt(buf, uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		buf = append(buf, t.Bytes()...)
	}
	return buf
}

// Size returns the serialised byte size of the block, used for the
// blocks.blocksize column and the optional block-file append.
func (b *Block) Size() uint32 {
	size := len(b.Header.Bytes()) + varIntSize(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		size += len(t.Bytes())
	}
	return uint32(size)
}

// appendVarInt appends a Bitcoin-style compact size integer, mirroring
// pkg/tx's encoding so the transaction count prefix matches the wire codec.
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

// varIntSize returns the encoded length of n as a compact size integer.
func varIntSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= math.MaxUint16:
		return 3
	case n <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}
