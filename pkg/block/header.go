// Package block defines the block and header types ingested by the Block
// Manager.
package block

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/klingon-tech/uaas/pkg/types"
)

// Header is a Bitcoin-SV-family block header: version, prev-hash,
// merkle-root, timestamp, bits, nonce. It self-hashes deterministically.
type Header struct {
	Version    uint32
	PrevHash   types.Hash
	MerkleRoot types.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Bytes returns the canonical 80-byte header encoding used for hashing.
func (h *Header) Bytes() []byte {
	buf := make([]byte, 0, 80)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint32(buf, h.Bits)
	buf = binary.LittleEndian.AppendUint32(buf, h.Nonce)
	return buf
}

// Hash computes the double-SHA256 block hash.
func (h *Header) Hash() types.Hash {
	first := sha256.Sum256(h.Bytes())
	second := sha256.Sum256(first[:])
	return types.Hash(second)
}

// IsRecent reports whether the header's timestamp is within window seconds
// of now. Used by Block Manager's has_chain_tip (§4.G): the tip is
// considered current once its header is within 600s of wall-clock.
func (h *Header) IsRecent(now uint32, window uint32) bool {
	if now < h.Timestamp {
		return true
	}
	return now-h.Timestamp <= window
}
