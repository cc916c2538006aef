// Package threadmgr is component J: the event-channel multiplexer that
// owns the Thread Tracker, creates/retires Peer Connections, and pumps
// both the peer-event channel and the REST-event channel into Logic with
// a bounded poll budget (§4.J).
package threadmgr

import (
	"time"

	"github.com/gcash/bchd/chaincfg"

	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/internal/logic"
	"github.com/klingon-tech/uaas/internal/peer"
	"github.com/klingon-tech/uaas/pkg/tx"
)

// pollBudget is the interleave period between the peer-event channel and
// the REST-event channel, per §4.J's 100ms poll loop.
const pollBudget = 100 * time.Millisecond

// PeerStatus mirrors the original's per-thread lifecycle states.
type PeerStatus int

const (
	Started PeerStatus = iota
	PeerConnected
	PeerDisconnected
	Finished
)

// PeerHandle tracks one Peer Connection's lifecycle.
type PeerHandle struct {
	IP        string
	Status    PeerStatus
	StartedAt time.Time
	Conn      *peer.Connection
}

// Tracker is the {IP → PeerHandle} registry (§4.J Thread Tracker).
type Tracker struct {
	children map[string]*PeerHandle
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{children: make(map[string]*PeerHandle)}
}

// Add registers a newly created peer handle.
func (t *Tracker) Add(ip string, h *PeerHandle) { t.children[ip] = h }

// SetStatus updates the tracked status for ip, a no-op if ip is unknown.
func (t *Tracker) SetStatus(ip string, status PeerStatus) {
	if h, ok := t.children[ip]; ok {
		h.Status = status
	}
}

// AllFinished reports whether every tracked peer has reached Finished.
func (t *Tracker) AllFinished() bool {
	for _, h := range t.children {
		if h.Status != Finished {
			return false
		}
	}
	return true
}

// GetConnectedPeer returns the first handle currently in PeerConnected
// status, or nil if none is connected.
func (t *Tracker) GetConnectedPeer() *PeerHandle {
	for _, h := range t.children {
		if h.Status == PeerConnected && h.Conn != nil && h.Conn.Connected() {
			return h
		}
	}
	return nil
}

// Finish marks ip as Finished and disconnects its connection if still live.
func (t *Tracker) Finish(ip string) {
	if h, ok := t.children[ip]; ok {
		if h.Conn != nil {
			h.Conn.Disconnect()
		}
		h.Status = Finished
	}
}

// StopAll disconnects every tracked peer.
func (t *Tracker) StopAll() {
	for ip, h := range t.children {
		if h.Conn != nil {
			h.Conn.Disconnect()
		}
		_ = ip
	}
}

// RestEventKind tags the variant carried by a RestEvent (§6 REST surface).
type RestEventKind int

const (
	RestBroadcast RestEventKind = iota
	RestAddMonitor
	RestDeleteMonitor
)

// RestEvent is one request forwarded from the REST surface into the
// Thread Manager's event loop.
type RestEvent struct {
	Kind        RestEventKind
	Tx          *tx.Transaction
	Monitor     collection.Definition
	MonitorName string
}

// Manager owns the peer-event channel, the Thread Tracker, and the loop
// that drains both the peer-event and REST-event channels into Logic.
type Manager struct {
	tracker  *Tracker
	peerEvts chan peer.Event
	restEvts <-chan RestEvent

	ips       []string
	nextIP    int
	port      int
	userAgent string
	timeout   time.Duration
	params    *chaincfg.Params
}

// NewManager creates a Manager with its own peer-event channel, reading
// REST events from restEvts.
func NewManager(restEvts <-chan RestEvent) *Manager {
	return &Manager{
		tracker:  NewTracker(),
		peerEvts: make(chan peer.Event, 256),
		restEvts: restEvts,
	}
}

// PeerEvents returns the channel Peer Connections send their events on.
func (m *Manager) PeerEvents() chan<- peer.Event { return m.peerEvts }

// Tracker exposes the Thread Tracker for callers that need to register new
// connections directly (e.g. startup and round-robin replacement).
func (m *Manager) Tracker() *Tracker { return m.tracker }

// ConfigureDialing records the configured peer IP list and dial parameters
// so that a disconnected peer can be replaced by the next IP in a
// round-robin cycle (spec.md §7, "may create a replacement for the next
// IP in a round-robin cycle").
func (m *Manager) ConfigureDialing(ips []string, port int, userAgent string, timeout time.Duration, params *chaincfg.Params) {
	m.ips = ips
	m.port = port
	m.userAgent = userAgent
	m.timeout = timeout
	m.params = params
}

// replacePeer dials the next IP in the configured round-robin cycle and
// registers it in the Thread Tracker, skipping IPs already tracked and
// still live.
func (m *Manager) replacePeer() {
	if len(m.ips) == 0 {
		return
	}
	for range m.ips {
		ip := m.ips[m.nextIP]
		m.nextIP = (m.nextIP + 1) % len(m.ips)

		if h, ok := m.tracker.children[ip]; ok && h.Status != Finished && h.Status != PeerDisconnected {
			continue
		}
		conn, err := peer.NewConnection(ip, m.port, m.userAgent, m.timeout, m.peerEvts, m.params)
		if err != nil {
			log.ThreadMgr.Warn().Err(err).Str("ip", ip).Msg("round-robin replacement dial failed")
			return
		}
		m.tracker.Add(ip, &PeerHandle{IP: ip, Status: Started, StartedAt: time.Now(), Conn: conn})
		return
	}
}

// processPeerEvent applies one peer event to Logic and the Thread Tracker,
// returning false when the enclosing loop should terminate (§4.J
// process_event).
func (m *Manager) processPeerEvent(e peer.Event, l *logic.Logic) bool {
	log.ThreadMgr.Info().Str("ip", e.IP).Int("kind", int(e.Kind)).Msg("peer event")

	switch e.Kind {
	case peer.Connected:
		m.tracker.SetStatus(e.IP, PeerConnected)
		l.SetState(logic.Connected)

	case peer.Disconnected:
		m.tracker.SetStatus(e.IP, PeerDisconnected)
		l.SetState(logic.Disconnected)
		m.tracker.Finish(e.IP)
		m.replacePeer()
		if m.tracker.AllFinished() {
			return false
		}

	case peer.TxEvent:
		l.OnTx(e.Tx)
	case peer.BlockEvent:
		l.OnBlock(e.Block)
	case peer.AddrEvent:
		l.OnAddr(e.Addrs)
	case peer.HeadersEvent:
		l.OnHeaders()
	case peer.InvEvent:
		l.OnInv(e.Inv)
	case peer.StopEvent:
		m.tracker.StopAll()
		return false
	}
	return true
}

// dispatchOutbound drains Logic's outbound message queue and sends each
// message through the currently-connected peer, if any.
func (m *Manager) dispatchOutbound(l *logic.Logic) {
	for _, msg := range l.MessagesToSend() {
		h := m.tracker.GetConnectedPeer()
		if h == nil {
			continue
		}
		h.Conn.Send(msg)
	}
}

// processRestEvent applies one REST-originated event to Logic, relaying a
// new broadcast tx through the currently-connected peer.
func (m *Manager) processRestEvent(e RestEvent, l *logic.Logic) {
	switch e.Kind {
	case RestBroadcast:
		if !l.OnBroadcast(e.Tx) {
			log.ThreadMgr.Info().Str("tx", e.Tx.Hash().String()).Msg("broadcast tx already exists")
			return
		}
		m.dispatchOutbound(l)

	case RestAddMonitor:
		if err := l.OnMonitorAdd(e.Monitor); err != nil {
			log.ThreadMgr.Warn().Err(err).Str("name", e.Monitor.Name).Msg("failed to add monitor")
		}

	case RestDeleteMonitor:
		if err := l.OnMonitorDelete(e.MonitorName); err != nil {
			log.ThreadMgr.Warn().Err(err).Str("name", e.MonitorName).Msg("failed to delete monitor")
		}
	}
}

// Run interleaves the peer-event channel and the REST-event channel with a
// 100ms poll budget, dispatching to Logic, until a Stop event or every
// tracked peer finishes (§4.J process_messages).
func (m *Manager) Run(l *logic.Logic) {
	for {
		select {
		case e := <-m.peerEvts:
			keepLooping := m.processPeerEvent(e, l)
			m.dispatchOutbound(l)
			if !keepLooping {
				return
			}
		case <-time.After(pollBudget):
		}

		select {
		case e := <-m.restEvts:
			m.processRestEvent(e, l)
		default:
		}
	}
}
