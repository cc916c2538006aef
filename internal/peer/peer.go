// Package peer is component I: one worker per configured peer endpoint,
// wrapping the bchd wire/peer codec to perform the version handshake and
// translate inbound wire messages into the domain-level events Logic
// understands. Each Connection owns its own socket and liveness timer; it
// shares nothing with Logic except by message passing (§5).
package peer

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/gcash/bchd/chaincfg"
	"github.com/gcash/bchd/peer"
	"github.com/gcash/bchd/wire"

	"github.com/klingon-tech/uaas/internal/addrmgr"
	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/internal/logic"
	blockpkg "github.com/klingon-tech/uaas/pkg/block"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// EventKind tags the variant carried by an Event (§4.I).
type EventKind int

const (
	Connected EventKind = iota
	Disconnected
	AddrEvent
	TxEvent
	BlockEvent
	HeadersEvent
	InvEvent
	StopEvent
)

// Event is one message sent from a Connection to the Thread Manager.
type Event struct {
	Time time.Time
	IP   string
	Kind EventKind

	Detail string
	Addrs  []addrmgr.PeerAddr
	Tx     *tx.Transaction
	Block  *blockpkg.Block
	Inv    []logic.InvItem
}

// Connection manages one outbound peer connection: handshake, the liveness
// timer, and translation of inbound wire messages to Events.
type Connection struct {
	ip            string
	port          int
	userAgent     string
	timeoutPeriod time.Duration

	events  chan<- Event
	running int32

	p *peer.Peer
}

// NewConnection dials ip:port, performs the version handshake (protocol
// version per the codec, services = NODE_BITCOIN_CASH, a random 64-bit
// nonce, the configured user-agent, relay=true, wall-clock timestamp), and
// registers listeners that forward inbound messages as Events (§4.I). A nil
// params defaults to mainnet.
func NewConnection(ip string, port int, userAgent string, timeoutPeriod time.Duration, events chan<- Event, params *chaincfg.Params) (*Connection, error) {
	c := &Connection{
		ip:            ip,
		port:          port,
		userAgent:     userAgent,
		timeoutPeriod: timeoutPeriod,
		events:        events,
		running:       1,
	}
	cfg := newPeerConfig(userAgent, params, c)

	addr := fmt.Sprintf("%s:%d", ip, port)
	p, err := peer.NewOutboundPeer(cfg, addr)
	if err != nil {
		return nil, err
	}
	c.p = p

	conn, err := net.Dial("tcp", p.Addr())
	if err != nil {
		return nil, err
	}
	p.AssociateConnection(conn)

	c.emit(Event{Kind: Connected, Detail: addr})
	go c.watchLiveness()
	return c, nil
}

// newPeerConfig builds the bchd peer.Config for a handshake against params
// (a nil params defaults to mainnet), advertising userAgent and wiring c's
// listeners.
func newPeerConfig(userAgent string, params *chaincfg.Params, c *Connection) *peer.Config {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &peer.Config{
		UserAgentName:    userAgent,
		UserAgentVersion: "",
		ChainParams:      params,
		Services:         wire.SFNodeBitcoinCash,
		ProtocolVersion:  wire.ProtocolVersion,
		TrickleInterval:  time.Second,
		Listeners: peer.MessageListeners{
			OnVersion:   c.onVersion,
			OnAddr:      c.onAddr,
			OnTx:        c.onTx,
			OnBlock:     c.onBlock,
			OnHeaders:   c.onHeaders,
			OnInv:       c.onInv,
			OnFeeFilter: c.onFeeFilter,
			OnSendCmpct: c.onSendCmpct,
		},
	}
}

// watchLiveness disconnects the peer if it falls silent for longer than
// timeoutPeriod, or if one 1-second tick is observed to take more than 2
// seconds, the clock jump of e.g. a laptop waking from suspend (§4.I
// wait_for_messages).
func (c *Connection) watchLiveness() {
	if c.timeoutPeriod <= 0 {
		return
	}
	const clockJumpTolerance = 2 * time.Second

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := time.Now()
	for range ticker.C {
		if !c.Connected() {
			return
		}
		now := time.Now()
		elapsed := now.Sub(last)
		last = now

		if elapsed > clockJumpTolerance {
			log.Peer.Warn().Str("ip", c.ip).Dur("elapsed", elapsed).Msg("clock jump detected, disconnecting")
			c.Disconnect()
			return
		}
		lastRecv := c.p.LastRecv()
		if lastRecv == 0 {
			continue
		}
		if now.Sub(time.Unix(lastRecv, 0)) > c.timeoutPeriod {
			log.Peer.Warn().Str("ip", c.ip).Msg("peer timed out, disconnecting")
			c.Disconnect()
			return
		}
	}
}

func (c *Connection) emit(e Event) {
	e.Time = time.Now()
	e.IP = c.ip
	c.events <- e
}

func (c *Connection) onVersion(p *peer.Peer, msg *wire.MsgVersion) *wire.MsgReject {
	log.Peer.Info().Str("ip", c.ip).Uint64("services", uint64(msg.Services)).
		Strs("flags", DecodeServiceFlags(uint64(msg.Services))).Msg("peer version received")
	return nil
}

func (c *Connection) onAddr(p *peer.Peer, msg *wire.MsgAddr) {
	addrs := make([]addrmgr.PeerAddr, 0, len(msg.AddrList))
	for _, a := range msg.AddrList {
		addrs = append(addrs, addrmgr.PeerAddr{
			IP:       a.IP.String(),
			Services: uint64(a.Services),
			Port:     a.Port,
		})
	}
	c.emit(Event{Kind: AddrEvent, Addrs: addrs})
}

func (c *Connection) onTx(p *peer.Peer, msg *wire.MsgTx) {
	t, err := decodeTx(msg)
	if err != nil {
		log.Peer.Warn().Err(err).Str("ip", c.ip).Msg("failed to decode inbound tx")
		return
	}
	c.emit(Event{Kind: TxEvent, Tx: t})
}

func (c *Connection) onBlock(p *peer.Peer, msg *wire.MsgBlock, buf []byte) {
	b, err := decodeBlock(msg)
	if err != nil {
		log.Peer.Warn().Err(err).Str("ip", c.ip).Msg("failed to decode inbound block")
		return
	}
	c.emit(Event{Kind: BlockEvent, Block: b})
}

func (c *Connection) onHeaders(p *peer.Peer, msg *wire.MsgHeaders) {
	c.emit(Event{Kind: HeadersEvent})
}

func (c *Connection) onInv(p *peer.Peer, msg *wire.MsgInv) {
	items := make([]logic.InvItem, 0, len(msg.InvList))
	for _, iv := range msg.InvList {
		kind := logic.InvTx
		if iv.Type == wire.InvTypeBlock {
			kind = logic.InvBlock
		}
		items = append(items, logic.InvItem{Kind: kind, Hash: types.Hash(iv.Hash)})
	}
	c.emit(Event{Kind: InvEvent, Inv: items})
}

// onFeeFilter replies with minfee=0, a side-effect handled directly by the
// connection rather than routed through Logic (§4.I).
func (c *Connection) onFeeFilter(p *peer.Peer, msg *wire.MsgFeeFilter) {
	c.p.QueueMessage(wire.NewMsgFeeFilter(0), nil)
}

// onSendCmpct replies with {enable=0, version=1}, declining compact-block
// relay, a side-effect handled directly by the connection (§4.I).
func (c *Connection) onSendCmpct(p *peer.Peer, msg *wire.MsgSendCmpct) {
	c.p.QueueMessage(wire.NewMsgSendCmpct(false, 1), nil)
}

// Send transmits an outbound message translated from a logic.* queue entry.
func (c *Connection) Send(msg any) {
	switch m := msg.(type) {
	case logic.GetBlocksMsg:
		getBlocks := wire.NewMsgGetBlocks(&wire.ShaHash{})
		hash := wire.ShaHash(m.LocatorHash)
		getBlocks.AddBlockLocatorHash(&hash)
		c.p.QueueMessage(getBlocks, nil)
	case logic.GetDataMsg:
		getData := wire.NewMsgGetData()
		for _, item := range m.Items {
			invType := wire.InvTypeTx
			if item.Kind == logic.InvBlock {
				invType = wire.InvTypeBlock
			}
			hash := wire.ShaHash(item.Hash)
			_ = getData.AddInvVect(wire.NewInvVect(invType, &hash))
		}
		c.p.QueueMessage(getData, nil)
	case logic.BroadcastTxMsg:
		wireTx, err := encodeTx(m.Tx)
		if err != nil {
			log.Peer.Warn().Err(err).Msg("failed to encode broadcast tx")
			return
		}
		c.p.QueueMessage(wireTx, nil)
	}
}

// RandomNonce generates the 64-bit handshake nonce (§6).
func RandomNonce() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Disconnect tears down the connection and emits a Disconnected event.
func (c *Connection) Disconnect() {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return
	}
	c.p.Disconnect()
	c.emit(Event{Kind: Disconnected})
}

// Connected reports whether the underlying peer connection is still live.
func (c *Connection) Connected() bool {
	return atomic.LoadInt32(&c.running) == 1 && c.p.Connected()
}
