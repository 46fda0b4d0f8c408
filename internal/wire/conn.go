// Package wire carries clipboard snapshots over a WebSocket.
//
// Every update is two frames, in order, on one connection:
//
//	text   {"mimeType":…,"sizeBytes":…,"contentHash":…,"altText":…,"fileName":…,"seen":…}
//	binary <payload>
//
// seen counts the snapshots the sender had acknowledged (Ack) on the
// connection when it sent this one, which lets the receiver tell whether its
// own sends crossed the update in flight (Crossed).
//
// An empty text frame with no binary follow-up is a keep-alive. Liveness is
// additionally checked with WebSocket ping/pong and a read deadline.
package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"go.klb.dev/bounceboard/internal/snapshot"
)

const (
	// MaxMessageSize is the largest frame we will read (64 MiB).
	MaxMessageSize = 64 * 1024 * 1024

	// DefaultPingInterval is how often KeepAlive pings the remote end.
	DefaultPingInterval = 5 * time.Second

	writeDeadline = 5 * time.Second
)

// ErrClosed is returned by Recv when the remote end closed the connection
// cleanly.
var ErrClosed = errors.New("wire: connection closed")

// Conn wraps a *websocket.Conn with header+payload framing. Send is safe for
// concurrent use; Recv must be called from a single goroutine.
type Conn struct {
	ws          *websocket.Conn
	readTimeout time.Duration

	wmu sync.Mutex // serializes header+payload pairs and keep-alives
	asm Reassembler

	sent       atomic.Uint64
	acked      atomic.Uint64
	remoteSeen atomic.Int64 // -1 until the remote reports it

	closeOnce sync.Once
}

// New wraps ws. The remote end is considered dead if nothing, not even a
// pong, arrives within two ping intervals.
func New(ws *websocket.Conn, pingInterval time.Duration) *Conn {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	c := &Conn{
		ws:          ws,
		readTimeout: 2 * pingInterval,
	}
	c.remoteSeen.Store(-1)
	ws.SetReadLimit(MaxMessageSize)
	c.extendRead()
	ws.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})
	return c
}

func (c *Conn) extendRead() {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// Send writes the header frame for s followed by its payload frame. No other
// write can land between the two.
func (c *Conn) Send(s *snapshot.Snapshot) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	h := HeaderOf(s)
	seen := c.acked.Load()
	h.Seen = &seen
	hdr, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("header encode: %w", err)
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	defer func() { _ = c.ws.SetWriteDeadline(time.Time{}) }()

	if err := c.ws.WriteMessage(websocket.TextMessage, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, s.Payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	c.sent.Add(1)
	return nil
}

// Recv blocks until a complete snapshot arrives. Malformed headers are
// logged and skipped. Any read error discards the partial frame state and is
// returned; the connection is unusable afterwards.
func (c *Conn) Recv() (*snapshot.Snapshot, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.asm.Reset()
			if IsClosed(err) {
				return nil, fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return nil, err
		}
		c.extendRead()

		s, err := c.asm.Feed(mt, data)
		if err != nil {
			slog.Warn("dropping malformed frame", "remote", c.RemoteAddr(), "err", err)
			continue
		}
		if s != nil {
			if seen := c.asm.Last().Seen; seen != nil {
				c.remoteSeen.Store(int64(*seen))
			} else {
				c.remoteSeen.Store(-1)
			}
			return s, nil
		}
	}
}

// Ack records that the snapshot Recv returned last has been handled. Sends
// after Ack tell the remote end that snapshot is no longer in flight.
func (c *Conn) Ack() { c.acked.Add(1) }

// Crossed reports whether snapshots sent on c were still in flight when the
// remote end sent the one Recv returned last, so the remote may have applied
// them on top of it. It is false when the remote does not report what it had
// seen.
func (c *Conn) Crossed() bool {
	seen := c.remoteSeen.Load()
	return seen >= 0 && uint64(seen) < c.sent.Load()
}

// KeepAlive pings the remote end every interval until ctx is done or a write
// fails. Each tick sends a WebSocket ping and an empty keep-alive text frame.
func (c *Conn) KeepAlive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		c.wmu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
		err := c.ws.WriteMessage(websocket.TextMessage, nil)
		_ = c.ws.SetWriteDeadline(time.Time{})
		c.wmu.Unlock()
		if err != nil {
			return fmt.Errorf("keep-alive: %w", err)
		}
	}
}

// Close sends a normal-closure frame (best effort) and closes the socket.
// It is safe to call more than once.
func (c *Conn) Close() error {
	return c.CloseWithReason(websocket.CloseNormalClosure, "")
}

// CloseWithReason closes with an explicit close code and reason.
func (c *Conn) CloseWithReason(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// IsClosed reports whether err is the ordinary end of a connection rather
// than a fault worth logging loudly.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
