package wire

import (
	"github.com/gorilla/websocket"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Reassembler rebuilds snapshots from a stream of frames. It has two states:
// idle, and awaiting the payload for a pending header.
//
//	idle --header--> awaiting --binary--> (yield snapshot) idle
//
// A header that arrives while awaiting replaces the pending one, so a lost
// binary frame never wedges the stream. Binary frames with no pending header,
// keep-alives and all other frame types are ignored.
type Reassembler struct {
	pending *Header
	last    Header
}

// Feed consumes one frame. It returns a snapshot when the frame completes a
// header+payload pair and nil otherwise. A malformed header is reported as
// an error and leaves the state unchanged.
func (r *Reassembler) Feed(messageType int, data []byte) (*snapshot.Snapshot, error) {
	switch messageType {
	case websocket.TextMessage:
		h, err := decodeHeader(data)
		if err != nil {
			return nil, err
		}
		if h.IsKeepAlive() {
			return nil, nil
		}
		r.pending = &h
		return nil, nil

	case websocket.BinaryMessage:
		if r.pending == nil {
			return nil, nil
		}
		h := *r.pending
		r.pending = nil
		r.last = h
		return snapshotOf(h, data), nil
	}
	return nil, nil
}

// Last returns the header of the most recently completed snapshot.
func (r *Reassembler) Last() Header { return r.last }

// Awaiting reports whether a header is waiting for its payload.
func (r *Reassembler) Awaiting() bool { return r.pending != nil }

// Reset discards any pending header.
func (r *Reassembler) Reset() { r.pending = nil }
