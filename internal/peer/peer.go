// Package peer implements a bounceboard client: it keeps one connection to
// a relay alive, sends local clipboard changes up and applies the updates
// the relay forwards down.
package peer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/bounceboard/internal/clipsync"
	"go.klb.dev/bounceboard/internal/history"
	"go.klb.dev/bounceboard/internal/logging"
	"go.klb.dev/bounceboard/internal/snapshot"
	"go.klb.dev/bounceboard/internal/wire"
)

// DefaultRetryDelay is the pause between a lost session and the next dial.
const DefaultRetryDelay = 5 * time.Second

// ErrInvalidKey means the relay refused our access key. Retrying cannot fix
// it, so Run returns instead of reconnecting.
var ErrInvalidKey = errors.New("relay rejected the access key")

// Config holds peer settings.
type Config struct {
	// URL is the relay endpoint. It is passed through NormalizeURL.
	URL          string
	TLS          *tls.Config
	Interval     time.Duration
	PingInterval time.Duration
	RetryDelay   time.Duration
	Recorder     history.Recorder
}

// Status is a point-in-time view of a Peer.
type Status struct {
	Relay       string    `json:"relay"` // relay URL with the key removed
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`
	Reconnects  int       `json:"reconnects"`
	LastHash    string    `json:"last_hash,omitempty"`
}

// Peer connects a local clipboard to a relay.
type Peer struct {
	cfg    Config
	url    string
	mgr    *clipsync.Manager
	dialer *websocket.Dialer
	log    *slog.Logger

	mu          sync.Mutex
	connectedAt time.Time // zero while disconnected
	reconnects  int
}

// New validates cfg and returns a Peer over mgr.
func New(cfg Config, mgr *clipsync.Manager) (*Peer, error) {
	u, err := NormalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = clipsync.DefaultInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = wire.DefaultPingInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Recorder == nil {
		cfg.Recorder = history.Nop{}
	}
	return &Peer{
		cfg: cfg,
		url: u,
		mgr: mgr,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig:  cfg.TLS,
		},
		log: slog.With("component", "peer"),
	}, nil
}

// Run keeps a session with the relay alive until ctx is done, reconnecting
// after a fixed delay whenever a session ends. It returns nil on
// cancellation and ErrInvalidKey if the relay refuses the key.
func (p *Peer) Run(ctx context.Context) error {
	for {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrInvalidKey) {
			return err
		}
		p.log.Warn("connection ended, retrying", "err", err, "in", p.cfg.RetryDelay)
		p.mu.Lock()
		p.reconnects++
		p.mu.Unlock()

		t := time.NewTimer(p.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one connection: a watcher sending local changes, a listener
// applying remote ones and a keep-alive. When any of them fails the others
// are cancelled, and session returns only after all three have stopped.
func (p *Peer) session(ctx context.Context) error {
	ws, resp, err := p.dialer.DialContext(ctx, p.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return ErrInvalidKey
		}
		return fmt.Errorf("dial: %w", err)
	}

	c := wire.New(ws, p.cfg.PingInterval)
	defer c.Close()
	p.log.Info("connected to relay", "remote", c.RemoteAddr())
	p.setConnected(time.Now())
	defer p.setConnected(time.Time{})

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = c.Close() })
	defer stop()

	// turn keeps polls and applies apart, so the seen count in each header
	// covers exactly the remote updates the poll could observe.
	var turn sync.Mutex
	g.Go(func() error {
		t := time.NewTicker(p.cfg.Interval)
		defer t.Stop()
		for {
			if err := p.pollAndSend(gctx, c, &turn); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-t.C:
			}
		}
	})
	g.Go(func() error {
		for {
			s, err := c.Recv()
			if err != nil {
				return fmt.Errorf("receive: %w", err)
			}
			if err := p.apply(gctx, c, &turn, s); err != nil {
				return err
			}
		}
	})
	g.Go(func() error {
		return c.KeepAlive(gctx, p.cfg.PingInterval)
	})

	return g.Wait()
}

// pollAndSend sends the local clipboard to the relay if it changed.
func (p *Peer) pollAndSend(ctx context.Context, c *wire.Conn, turn *sync.Mutex) error {
	turn.Lock()
	defer turn.Unlock()

	s, err := p.mgr.PollForChange(ctx)
	if err != nil || s == nil {
		return err
	}
	logging.Snapshot(p.log, "local clipboard changed", s)
	p.record(s)
	if err := c.Send(s); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (p *Peer) apply(ctx context.Context, c *wire.Conn, turn *sync.Mutex, s *snapshot.Snapshot) error {
	turn.Lock()
	defer turn.Unlock()

	applied, err := p.mgr.ApplyIncoming(ctx, s)
	if err != nil {
		return err
	}
	c.Ack()
	if applied {
		logging.Snapshot(p.log, "applied remote update", s)
		p.record(s)
	}
	return nil
}

// Status returns the peer's current connection state.
func (p *Peer) Status() Status {
	p.mu.Lock()
	st := Status{
		Relay:       redactKey(p.url),
		Connected:   !p.connectedAt.IsZero(),
		ConnectedAt: p.connectedAt,
		Reconnects:  p.reconnects,
	}
	p.mu.Unlock()
	if h := p.mgr.LastHash(); !h.IsZero() {
		st.LastHash = h.String()
	}
	return st
}

func (p *Peer) setConnected(at time.Time) {
	p.mu.Lock()
	p.connectedAt = at
	p.mu.Unlock()
}

func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}

func (p *Peer) record(s *snapshot.Snapshot) {
	if err := p.cfg.Recorder.Record(s); err != nil {
		p.log.Warn("history record failed", "err", err)
	}
}
