package relay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"go.klb.dev/bounceboard/internal/logging"
	"go.klb.dev/bounceboard/internal/snapshot"
	"go.klb.dev/bounceboard/internal/wire"
)

func (r *Relay) handleWS(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		r.log.Warn("websocket upgrade failed", "remote", req.RemoteAddr, "err", err)
		return
	}
	r.serve(req.Context(), wire.New(ws, r.cfg.PingInterval), req.RemoteAddr)
}

// serve registers c, sends it the relay's current clipboard, then relays
// everything it sends until the connection or ctx ends.
func (r *Relay) serve(ctx context.Context, c *wire.Conn, remote string) {
	id := uuid.NewString()
	log := r.log.With("conn", id, "remote", remote)

	m := r.reg.Add(id, remote, c)
	log.Info("peer connected", "total", r.reg.Len())
	defer func() {
		r.drop(id)
		log.Info("peer disconnected", "total", r.reg.Len())
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Unblocks Recv on shutdown or keep-alive failure.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	go func() {
		if err := c.KeepAlive(ctx, r.cfg.PingInterval); err != nil {
			log.Debug("keep-alive failed", "err", err)
			cancel()
		}
	}()

	if !r.bootstrap(ctx, m, log) {
		return
	}

	for {
		s, err := c.Recv()
		if err != nil {
			if wire.IsClosed(err) || ctx.Err() != nil {
				log.Debug("connection closed", "err", err)
			} else {
				log.Info("connection lost", "err", err)
			}
			return
		}
		r.handleIncoming(ctx, m, s, log)
		c.Ack()
	}
}

// bootstrap sends a newly connected peer the relay's current clipboard so
// late joiners converge without waiting for the next change.
func (r *Relay) bootstrap(ctx context.Context, m *Member, log *slog.Logger) bool {
	r.fanout.Lock()
	defer r.fanout.Unlock()

	cur, err := r.mgr.Current(ctx)
	if err != nil {
		log.Warn("bootstrap read failed", "err", err)
		return ctx.Err() == nil
	}
	if cur == nil {
		return true
	}
	if err := m.conn.Send(cur); err != nil {
		log.Warn("bootstrap send failed", "err", err)
		return false
	}
	logging.Snapshot(log, "sent current clipboard", cur)
	return true
}

// handleIncoming applies s locally and forwards it to every other peer.
// Forwarding does not depend on whether the apply changed anything.
//
// If the member sent s before it had handled everything the relay sent it,
// it may apply that older update on top of s. It is then sent s back so it
// ends on the relay's state.
func (r *Relay) handleIncoming(ctx context.Context, from *Member, s *snapshot.Snapshot, log *slog.Logger) {
	r.fanout.Lock()
	defer r.fanout.Unlock()

	from.Touch()
	crossed := from.conn.Crossed()
	applied, err := r.mgr.ApplyIncoming(ctx, s)
	if err != nil {
		return
	}
	if applied {
		logging.Snapshot(log, "applied remote update", s)
		r.record(s)
	} else {
		log.Debug("remote update already current", "hash", s.Hash.Short())
	}
	n := r.Broadcast(s, from.id)
	log.Debug("forwarded update", "recipients", n)

	if crossed {
		if err := from.conn.Send(s); err != nil {
			log.Warn("resync send failed, dropping connection", "err", err)
			r.drop(from.id)
			return
		}
		log.Debug("resynced sender after crossed update", "hash", s.Hash.Short())
	}
}
