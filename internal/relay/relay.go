// Package relay implements the central node of a bounceboard network. It
// accepts WebSocket connections from peers, keeps its own clipboard in sync,
// and forwards every update it receives to all other connected peers.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/bounceboard/internal/clipsync"
	"go.klb.dev/bounceboard/internal/history"
	"go.klb.dev/bounceboard/internal/keys"
	"go.klb.dev/bounceboard/internal/logging"
	"go.klb.dev/bounceboard/internal/snapshot"
	"go.klb.dev/bounceboard/internal/wire"
)

const shutdownTimeout = 5 * time.Second

// Config holds relay settings.
type Config struct {
	// Key is the shared access key every peer must present.
	Key string
	// Interval is the local clipboard poll period.
	Interval time.Duration
	// PingInterval is the transport keep-alive period.
	PingInterval time.Duration
	// TLS, when non-nil, makes Serve speak HTTPS/WSS.
	TLS *tls.Config
	// Recorder receives every local change and every applied remote update.
	Recorder history.Recorder
}

// Relay routes clipboard snapshots between peers.
type Relay struct {
	cfg       Config
	mgr       *clipsync.Manager
	reg       *Registry
	upgrader  websocket.Upgrader
	startedAt time.Time
	log       *slog.Logger

	// fanout orders every apply-and-send step (incoming updates, local
	// changes, bootstraps) so all peers observe the same sequence.
	fanout sync.Mutex
}

// New returns a Relay over mgr.
func New(cfg Config, mgr *clipsync.Manager) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = clipsync.DefaultInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = wire.DefaultPingInterval
	}
	if cfg.Recorder == nil {
		cfg.Recorder = history.Nop{}
	}
	return &Relay{
		cfg: cfg,
		mgr: mgr,
		reg: NewRegistry(),
		upgrader: websocket.Upgrader{
			// Peers are not browsers; the access key is the only gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startedAt: time.Now(),
		log:       slog.With("component", "relay"),
	}
}

// Handler returns the relay's HTTP routes:
//
//	GET /ws/     WebSocket endpoint
//	GET /status  JSON status
//
// Both require ?key=<access key> and answer 403 otherwise.
func (r *Relay) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Group(func(g chi.Router) {
		g.Use(r.requireKey)
		g.Get("/ws", r.handleWS)
		g.Get("/ws/", r.handleWS)
		g.Get("/status", r.handleStatus)
	})
	return router
}

func (r *Relay) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !keys.Valid(r.cfg.Key, req.URL.Query().Get("key")) {
			r.log.Warn("rejected request", "remote", req.RemoteAddr, "path", req.URL.Path, "reason", "invalid key")
			http.Error(w, "invalid key", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Run polls the relay's own clipboard until ctx is done and broadcasts every
// local change to all peers.
func (r *Relay) Run(ctx context.Context) error {
	err := r.mgr.Watch(ctx, r.cfg.Interval, func(_ context.Context, s *snapshot.Snapshot) error {
		logging.Snapshot(r.log, "local clipboard changed", s)
		r.record(s)

		r.fanout.Lock()
		defer r.fanout.Unlock()
		// A remote update applied since the poll has already reached every
		// peer and replaced this one.
		if r.mgr.LastHash() != s.Hash {
			r.log.Debug("local change superseded", "hash", s.Hash.Short())
			return nil
		}
		n := r.Broadcast(s, "")
		r.log.Debug("broadcast local change", "recipients", n)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Serve accepts connections on ln until ctx is done. Active WebSocket
// sessions are closed on the way out.
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	if r.cfg.TLS != nil {
		ln = tls.NewListener(ln, r.cfg.TLS)
	}
	srv := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(r.log.Handler(), slog.LevelDebug),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// Broadcast sends s to every connection except the one with id except and
// returns how many sends succeeded. A connection whose send fails is removed
// and closed; the others are unaffected.
func (r *Relay) Broadcast(s *snapshot.Snapshot, except string) (delivered int) {
	for _, m := range r.reg.Others(except) {
		if err := m.conn.Send(s); err != nil {
			r.log.Warn("send failed, dropping connection", "conn", m.id, "remote", m.remote, "err", err)
			r.drop(m.id)
			continue
		}
		delivered++
	}
	return delivered
}

// Peers returns the active connections.
func (r *Relay) Peers() []PeerInfo { return r.reg.Peers() }

func (r *Relay) drop(id string) {
	if c, ok := r.reg.Remove(id); ok {
		_ = c.Close()
	}
}

func (r *Relay) record(s *snapshot.Snapshot) {
	if err := r.cfg.Recorder.Record(s); err != nil {
		r.log.Warn("history record failed", "err", err)
	}
}
