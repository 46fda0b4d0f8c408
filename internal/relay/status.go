package relay

import (
	"encoding/json"
	"net/http"
	"time"
)

// PeerInfo describes one active connection.
type PeerInfo struct {
	ID          string    `json:"id"`
	Remote      string    `json:"remote"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// Status is the body of GET /status.
type Status struct {
	StartedAt time.Time  `json:"started_at"`
	LastHash  string     `json:"last_hash,omitempty"`
	Peers     []PeerInfo `json:"peers"`
}

// Status returns the relay's current status.
func (r *Relay) Status() Status {
	st := Status{
		StartedAt: r.startedAt,
		Peers:     r.reg.Peers(),
	}
	if h := r.mgr.LastHash(); !h.IsZero() {
		st.LastHash = h.String()
	}
	return st
}

func (r *Relay) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r.Status()); err != nil {
		r.log.Warn("status encode failed", "err", err)
	}
}
