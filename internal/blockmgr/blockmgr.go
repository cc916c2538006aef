// Package blockmgr is component G: the chain-order view over received
// block headers, the out-of-order orphan buffer keyed by prev-hash, and the
// one-step tip-reorg handler. Owned exclusively by the Logic goroutine
// (§5) — no locking is needed.
package blockmgr

import (
	"os"
	"time"

	"github.com/klingon-tech/uaas/internal/analyser"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/internal/store"
	"github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/types"
)

// ChainTipWindow bounds how stale the known tip's timestamp may be and
// still be considered the real chain tip (§4.G has_chain_tip, 10 minutes).
const ChainTipWindow = 600

// blockWithPosition pairs a buffered block with the block-file offset it
// was already written at, if any — a block read back from the block file
// at startup already has a position; one received live from a peer does
// not until it is written.
type blockWithPosition struct {
	block    *block.Block
	position *uint64
}

// Manager holds the ordered chain of headers seen so far, the hash→height
// index, and the orphan buffer of blocks that arrived before their parent.
type Manager struct {
	startBlockHash string
	saveBlocks     bool
	blockFile      string

	headers     []*block.Header
	hashToIndex map[types.Hash]uint32

	lastHashProcessed types.Hash
	height            uint32

	orphanBuffer map[types.Hash]blockWithPosition

	blockFileHandle *os.File
}

// New creates a Manager starting from startBlockHash at startBlockHeight+1,
// matching the original's height initialisation.
func New(startBlockHash types.Hash, startBlockHeight uint64, saveBlocks bool, blockFile string) *Manager {
	return &Manager{
		startBlockHash:    startBlockHash.String(),
		saveBlocks:        saveBlocks,
		blockFile:         blockFile,
		hashToIndex:       make(map[types.Hash]uint32),
		lastHashProcessed: startBlockHash,
		height:            uint32(startBlockHeight) + 1,
		orphanBuffer:      make(map[types.Hash]blockWithPosition),
	}
}

// LoadHeaders seeds the header chain from persisted rows, ordered by
// height, called once at startup when startup_load_from_database is set.
func (m *Manager) LoadHeaders(rows []store.BlockHeaderEntry) {
	for _, r := range rows {
		h := headerFromRow(r)
		hash := h.Hash()
		m.hashToIndex[hash] = uint32(r.Height)
		m.headers = append(m.headers, h)
		m.height = uint32(r.Height) + 1
	}
	if len(m.headers) > 0 {
		m.lastHashProcessed = m.headers[len(m.headers)-1].Hash()
	}
}

func headerFromRow(r store.BlockHeaderEntry) *block.Header {
	prevHash, _ := types.HexToHash(r.PrevHash)
	merkleRoot, _ := types.HexToHash(r.MerkleRoot)
	return &block.Header{
		Version:    r.Version,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		Timestamp:  r.Timestamp,
		Bits:       r.Bits,
		Nonce:      r.Nonce,
	}
}

func rowFromHeader(h *block.Header, height uint32, position uint64, blockSize, numTxs uint32) store.BlockHeaderEntry {
	return store.BlockHeaderEntry{
		Height:     uint64(height),
		Hash:       h.Hash().String(),
		Version:    h.Version,
		PrevHash:   h.PrevHash.String(),
		MerkleRoot: h.MerkleRoot.String(),
		Timestamp:  h.Timestamp,
		Bits:       h.Bits,
		Nonce:      h.Nonce,
		Offset:     position,
		BlockSize:  blockSize,
		NumTxs:     numTxs,
	}
}

// HasChainTip reports whether the most recently known header's timestamp
// is within ChainTipWindow seconds of wall-clock, i.e. whether the node
// believes it has caught up to the real chain tip (§4.G).
func (m *Manager) HasChainTip() bool {
	if len(m.headers) == 0 {
		return false
	}
	last := m.headers[len(m.headers)-1]
	return last.IsRecent(uint32(time.Now().Unix()), ChainTipWindow)
}

// GetLastKnownBlockHash returns the hash of the most recently processed
// block, or the configured start hash if no blocks have been processed yet.
func (m *Manager) GetLastKnownBlockHash() string {
	if len(m.headers) == 0 {
		return m.startBlockHash
	}
	return m.headers[len(m.headers)-1].Hash().String()
}

// Height returns the height the next block to be processed will occupy.
func (m *Manager) Height() uint32 { return m.height }

// GetStartBlockTimestamp returns the timestamp of the first known header,
// which Logic uses as the reference point for orphan detection, but only
// once more than 5 headers are known — with 5 or fewer it reports no
// opinion.
func (m *Manager) GetStartBlockTimestamp() (uint32, bool) {
	if len(m.headers) <= 5 {
		return 0, false
	}
	return m.headers[0].Timestamp, true
}

// writeBlockToFile appends b to the block file if save_blocks is enabled,
// returning the byte offset it was written at, or 0 if disabled.
func (m *Manager) writeBlockToFile(b *block.Block) (uint64, error) {
	if !m.saveBlocks {
		return 0, nil
	}
	if m.blockFileHandle == nil {
		f, err := os.OpenFile(m.blockFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return 0, err
		}
		m.blockFileHandle = f
	}
	info, err := m.blockFileHandle.Stat()
	if err != nil {
		return 0, err
	}
	offset := uint64(info.Size())
	if _, err := m.blockFileHandle.Write(b.Bytes()); err != nil {
		return 0, err
	}
	return offset, nil
}

// processBlock applies a connected block to the Tx Analyser and advances
// the chain view. b must already be known to extend lastHashProcessed.
func (m *Manager) processBlock(w *dbwriter.Writer, a *analyser.Analyser, b *block.Block) {
	hash := b.Header.Hash()
	log.BlockMgr.Info().Str("hash", hash.String()).Uint32("height", m.height).Msg("processing block")

	m.lastHashProcessed = hash
	a.ProcessBlock(w, b, uint64(m.height))
	m.hashToIndex[hash] = m.height
	m.headers = append(m.headers, b.Header)
	m.height++
}

// drainOrphanBuffer processes every buffered block that now chains from
// lastHashProcessed, in order, exactly as process_block_queue does.
func (m *Manager) drainOrphanBuffer(w *dbwriter.Writer, a *analyser.Analyser) {
	for {
		entry, ok := m.orphanBuffer[m.lastHashProcessed]
		if !ok {
			return
		}
		delete(m.orphanBuffer, m.lastHashProcessed)

		position := uint64(0)
		if entry.position != nil {
			position = *entry.position
		} else {
			pos, err := m.writeBlockToFile(entry.block)
			if err != nil {
				log.BlockMgr.Error().Err(err).Msg("writing buffered block to block file")
			}
			position = pos
		}
		row := rowFromHeader(entry.block.Header, m.height, position, entry.block.Size(), uint32(len(entry.block.Transactions)))
		w.Enqueue(dbwriter.Op{Kind: dbwriter.BlockHeaderWrite, BlockHeader: row})
		m.processBlock(w, a, entry.block)
	}
}

// OnBlock handles a block received from a peer (§4.G): already-known
// blocks are ignored, a block extending the tip is written and processed
// immediately (then drains anything it unblocked), and any other block is
// buffered keyed by its prev-hash pending its parent's arrival.
func (m *Manager) OnBlock(w *dbwriter.Writer, a *analyser.Analyser, b *block.Block) {
	hash := b.Header.Hash()
	if _, known := m.hashToIndex[hash]; known {
		return
	}

	if b.Header.PrevHash == m.lastHashProcessed {
		position, err := m.writeBlockToFile(b)
		if err != nil {
			log.BlockMgr.Error().Err(err).Msg("writing block to block file")
		}
		row := rowFromHeader(b.Header, m.height, position, b.Size(), uint32(len(b.Transactions)))
		w.Enqueue(dbwriter.Op{Kind: dbwriter.BlockHeaderWrite, BlockHeader: row})
		m.processBlock(w, a, b)
		m.drainOrphanBuffer(w, a)
		return
	}

	if _, buffered := m.orphanBuffer[b.Header.PrevHash]; !buffered {
		m.orphanBuffer[b.Header.PrevHash] = blockWithPosition{block: b}
	}
}

// HandleOrphanBlock unwinds the single most-recently-processed block: it
// is removed from the known-header chain, filed to the orphans table, and
// deleted from blocks — the one-step tip-reorg path (§4.G). Deeper reorgs
// are out of scope; the node instead waits for a longer competing chain to
// re-arrive as a fresh sequence of blocks.
func (m *Manager) HandleOrphanBlock(w *dbwriter.Writer, a *analyser.Analyser) {
	log.BlockMgr.Warn().Msg("orphan block detected, unwinding tip")
	m.orphanBuffer = make(map[types.Hash]blockWithPosition)

	if len(m.headers) == 0 {
		return
	}
	last := m.headers[len(m.headers)-1]
	lastHash := last.Hash()
	m.headers = m.headers[:len(m.headers)-1]
	delete(m.hashToIndex, lastHash)
	m.height--

	row := rowFromHeader(last, m.height, 0, 0, 0)
	w.Enqueue(dbwriter.Op{Kind: dbwriter.OrphanHeaderWrite, BlockHeader: row, OrphanCreatedAt: uint32(time.Now().Unix())})
	w.Enqueue(dbwriter.Op{Kind: dbwriter.BlockHeaderDelete, BlockHeaderHash: lastHash.String()})

	a.HandleOrphanBlock(w, m.height)
	if len(m.headers) > 0 {
		m.lastHashProcessed = m.headers[len(m.headers)-1].Hash()
	} else {
		startHash, _ := types.HexToHash(m.startBlockHash)
		m.lastHashProcessed = startHash
	}
}

// Close releases the block file handle, if open.
func (m *Manager) Close() error {
	if m.blockFileHandle == nil {
		return nil
	}
	return m.blockFileHandle.Close()
}
