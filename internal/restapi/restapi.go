// Package restapi is the external REST surface: raw-tx broadcast and
// dynamic collection-monitor management. It is not part of the core
// component chain (A-J) — it only turns HTTP requests into RestEvents for
// the Thread Manager's event loop to pick up (§6).
package restapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/klingon-tech/uaas/config"
	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/internal/threadmgr"
	"github.com/klingon-tech/uaas/pkg/tx"
	"github.com/klingon-tech/uaas/pkg/types"
)

// Version is reported by GET /version.
const Version = "1.0.0"

// API serves the REST surface, forwarding every mutating request onto
// the REST-event channel for the Thread Manager to apply against Logic.
type API struct {
	events chan<- threadmgr.RestEvent
}

// New creates an API that forwards events onto events.
func New(events chan<- threadmgr.RestEvent) *API {
	return &API{events: events}
}

// Run builds the router and serves it on addr. Blocks until the server
// exits.
func (a *API) Run(addr string) error {
	r := mux.NewRouter()
	r.HandleFunc("/tx/raw", a.postTxRaw).Methods(http.MethodPost)
	r.HandleFunc("/collection/monitor", a.postCollectionMonitor).Methods(http.MethodPost)
	r.HandleFunc("/collection/monitor", a.deleteCollectionMonitor).Methods(http.MethodDelete)
	r.HandleFunc("/version", a.getVersion).Methods(http.MethodGet)

	log.REST.Info().Str("addr", addr).Msg("REST server listening")
	return http.ListenAndServe(addr, r)
}

type txRawResponse struct {
	Status string `json:"status"`
	Hash   string `json:"hash"`
}

// postTxRaw decodes a hex-encoded raw transaction and enqueues a broadcast
// event.
func (a *API) postTxRaw(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	raw, err := types.HexToBytes(string(body))
	if err != nil {
		http.Error(w, "invalid hex", http.StatusBadRequest)
		return
	}

	t, err := tx.Decode(raw)
	if err != nil {
		http.Error(w, "invalid transaction", http.StatusBadRequest)
		return
	}

	a.events <- threadmgr.RestEvent{Kind: threadmgr.RestBroadcast, Tx: t}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txRawResponse{Status: "broadcast", Hash: t.Hash().String()})
}

// postCollectionMonitor decodes a CollectionConfig-shaped body and enqueues
// an add-monitor event. The body's regex becomes the monitor's
// locking-script pattern; an address field is not compiled here, so a body
// carrying only an address yields a monitor with no script pattern.
func (a *API) postCollectionMonitor(w http.ResponseWriter, r *http.Request) {
	var cc config.CollectionConfig
	if err := json.NewDecoder(r.Body).Decode(&cc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	def := collection.Definition{Name: cc.Name, TrackDescendants: cc.TrackDescendants, LockingScriptRegex: cc.Regex}
	a.events <- threadmgr.RestEvent{Kind: threadmgr.RestAddMonitor, Monitor: def}
	w.WriteHeader(http.StatusAccepted)
}

type monitorDeleteRequest struct {
	Name string `json:"name"`
}

// deleteCollectionMonitor decodes a monitor name and enqueues a
// delete-monitor event.
func (a *API) deleteCollectionMonitor(w http.ResponseWriter, r *http.Request) {
	var req monitorDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.events <- threadmgr.RestEvent{Kind: threadmgr.RestDeleteMonitor, MonitorName: req.Name}
	w.WriteHeader(http.StatusAccepted)
}

type versionResponse struct {
	Version string `json:"version"`
}

func (a *API) getVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(versionResponse{Version: Version})
}
