// Package dbwriter is the single-consumer task that drains a work queue of
// persistence operations against the relational store with bounded-retry
// semantics (§4.A). It is the sole owner of the write path: no other
// goroutine issues mutations against the store's connection.
package dbwriter

import (
	"os"
	"time"

	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/internal/store"
)

// OpKind tags the variant carried by an Op, mirroring the original
// DBOperationType enum one-for-one (§4.A), extended with the delete-by-height
// and audit operations the indexer needs beyond the original's batching.
type OpKind int

const (
	UtxoBatchWrite OpKind = iota
	UtxoBatchDelete
	UtxoDeleteAtHeight
	TxBatchWrite
	TxDeleteAtHeight
	MempoolWrite
	MempoolBatchDelete
	BlockHeaderWrite
	BlockHeaderDelete
	OrphanHeaderWrite
	ConnectionLogWrite
	AddrWrite
	CollectionTxWrite
	CollectionMonitorWrite
	CollectionMonitorDelete
)

// Op is one persistence operation. Exactly one field matching Kind is set.
type Op struct {
	Kind OpKind

	UtxoWrites      []store.UtxoEntry
	UtxoDeletes     []store.UtxoOutpoint
	Height          uint64
	TxWrites        []store.TxEntry
	Mempool         store.MempoolEntry
	MempoolDeletes  []string
	BlockTable      string
	BlockHeader     store.BlockHeaderEntry
	BlockHeaderHash string
	OrphanCreatedAt uint32
	Connection      store.ConnectionLogEntry

	AddrIP       string
	AddrServices uint64
	AddrPort     uint16

	CollectionHash               string
	CollectionName               string
	CollectionTxHex              string
	CollectionTrackDescendants   bool
	CollectionLockingScriptRegex string
}

// Writer drains Ops from a channel and applies them in arrival order.
type Writer struct {
	q       *store.Queries
	ops     chan Op
	retries int
	delay   time.Duration
	onFatal func(error)
}

// DefaultQueueSize is the bounded-channel high-water mark (§9 Back-pressure).
// When the queue is at capacity, Enqueue blocks, which is how Logic is made
// to yield and drain rather than ingesting further blocks unboundedly.
const DefaultQueueSize = 4096

// New creates a Writer over the given query layer.
func New(q *store.Queries, retries int, msDelay int) *Writer {
	return &Writer{
		q:       q,
		ops:     make(chan Op, DefaultQueueSize),
		retries: retries,
		delay:   time.Duration(msDelay) * time.Millisecond,
		onFatal: func(err error) {
			log.DBWriter.Fatal().Err(err).Msg("database writer exhausted retries, exiting")
			os.Exit(1)
		},
	}
}

// Enqueue submits an operation for asynchronous persistence. Blocks if the
// queue is at its high-water mark.
func (w *Writer) Enqueue(op Op) {
	w.ops <- op
}

// Run drains the op channel until it is closed, applying each op with
// bounded retry. Intended to run in its own goroutine for the lifetime of
// the process.
func (w *Writer) Run() {
	for op := range w.ops {
		w.apply(op)
	}
}

// Close signals Run to return once the queue drains.
func (w *Writer) Close() {
	close(w.ops)
}

// DrainPending returns every op currently queued without blocking, for use
// by component tests that enqueue through a Writer but never start Run.
func (w *Writer) DrainPending() []Op {
	var ops []Op
	for {
		select {
		case op := <-w.ops:
			ops = append(ops, op)
		default:
			return ops
		}
	}
}

func (w *Writer) apply(op Op) {
	var err error
	switch op.Kind {
	case UtxoBatchWrite:
		err = w.retry(func() error { return w.q.UtxoBatchWrite(op.UtxoWrites) })
	case UtxoBatchDelete:
		err = w.retry(func() error { return w.q.UtxoBatchDelete(op.UtxoDeletes) })
	case UtxoDeleteAtHeight:
		err = w.retry(func() error { return w.q.UtxoDeleteAtHeight(op.Height) })
	case TxBatchWrite:
		err = w.retry(func() error { return w.q.TxBatchWrite(op.TxWrites) })
	case TxDeleteAtHeight:
		err = w.retry(func() error { return w.q.TxDeleteAtHeight(op.Height) })
	case MempoolWrite:
		err = w.retry(func() error { return w.q.MempoolWrite(op.Mempool) })
	case MempoolBatchDelete:
		err = w.retry(func() error { return w.q.MempoolBatchDelete(op.MempoolDeletes) })
	case BlockHeaderWrite:
		table := op.BlockTable
		if table == "" {
			table = "blocks"
		}
		err = w.retry(func() error { return w.q.BlockHeaderWrite(table, op.BlockHeader) })
	case BlockHeaderDelete:
		err = w.retry(func() error { return w.q.BlockHeaderDelete(op.BlockHeaderHash) })
	case OrphanHeaderWrite:
		err = w.retry(func() error { return w.q.OrphanHeaderWrite(op.BlockHeader, op.OrphanCreatedAt) })
	case ConnectionLogWrite:
		err = w.retry(func() error { return w.q.ConnectionLogWrite(op.Connection) })
	case AddrWrite:
		err = w.retry(func() error { return w.q.AddrWrite(op.AddrIP, op.AddrServices, op.AddrPort) })
	case CollectionTxWrite:
		err = w.retry(func() error {
			return w.q.CollectionTxWrite(op.CollectionHash, op.CollectionName, op.CollectionTxHex)
		})
	case CollectionMonitorWrite:
		err = w.retry(func() error {
			return w.q.CollectionMonitorWrite(op.CollectionName, op.CollectionTrackDescendants, op.CollectionLockingScriptRegex)
		})
	case CollectionMonitorDelete:
		err = w.retry(func() error { return w.q.CollectionMonitorDelete(op.CollectionName) })
	}
	if err != nil {
		w.onFatal(err)
	}
}

// retry attempts fn up to w.retries times (at least once) with a fixed
// inter-attempt delay, matching the original `retry(delay::Fixed::from_millis(200).take(3), ...)`
// pattern used throughout uaas::database.
func (w *Writer) retry(fn func() error) error {
	var err error
	attempts := w.retries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		log.DBWriter.Warn().Err(err).Int("attempt", i+1).Msg("database operation failed, retrying")
		if i < attempts-1 {
			time.Sleep(w.delay)
		}
	}
	return err
}
