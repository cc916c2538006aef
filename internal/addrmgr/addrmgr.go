// Package addrmgr is component E: a deduplicated set of peer addresses seen
// via Addr messages, write-through to the addr table on first sighting.
// Owned exclusively by the Logic goroutine (§5) — no locking is needed.
package addrmgr

import (
	"github.com/klingon-tech/uaas/internal/dbwriter"
)

// PeerAddr is one entry of an inbound Addr message.
type PeerAddr struct {
	IP       string
	Services uint64
	Port     uint16
}

// Manager tracks every peer IP already recorded, so repeat sightings in
// later Addr messages don't re-write the same row.
type Manager struct {
	seen map[string]struct{}
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{seen: make(map[string]struct{})}
}

// Load seeds the seen-IP set from persisted rows, called once at startup.
func (m *Manager) Load(ips []string) {
	for _, ip := range ips {
		m.seen[ip] = struct{}{}
	}
}

// OnAddr processes an inbound Addr message: every address not already seen
// is recorded and queued for a write-through insert.
func (m *Manager) OnAddr(w *dbwriter.Writer, addrs []PeerAddr) {
	for _, a := range addrs {
		if _, ok := m.seen[a.IP]; ok {
			continue
		}
		m.seen[a.IP] = struct{}{}
		w.Enqueue(dbwriter.Op{
			Kind:         dbwriter.AddrWrite,
			AddrIP:       a.IP,
			AddrServices: a.Services,
			AddrPort:     a.Port,
		})
	}
}

// Len returns the number of distinct peer IPs recorded.
func (m *Manager) Len() int {
	return len(m.seen)
}
