// Package clipsync turns a platform clipboard into a deduplicated change
// stream and applies remote updates at most once per distinct content hash.
//
// A Manager is the single owner of the last-applied hash for a process. Both
// directions (local poll, remote apply) pass through one exclusive section,
// so a poll can never observe the clipboard half-way through an apply and
// mistake the old content for a fresh local change.
package clipsync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.klb.dev/bounceboard/internal/clip"
	"go.klb.dev/bounceboard/internal/snapshot"
)

// DefaultInterval is the poll period used by Watch when none is given.
const DefaultInterval = time.Second

// Manager polls a clip.Capability and caches the hash of the content most
// recently read or written.
type Manager struct {
	capability clip.Capability
	scratchDir string

	// sem is the exclusive section. It is a channel rather than a mutex so
	// that waiting for it honours context cancellation.
	sem chan struct{}

	// lastHash is written only inside the exclusive section. Readers outside
	// it load it without waiting on a slow capability call.
	lastHash atomic.Pointer[snapshot.Hash]
}

// New returns a Manager over c. scratchDir receives materialized file-drop
// payloads on apply.
func New(c clip.Capability, scratchDir string) *Manager {
	return &Manager{
		capability: c,
		scratchDir: scratchDir,
		sem:        make(chan struct{}, 1),
	}
}

// exclusive runs fn inside the exclusive section on its own goroutine.
// Capability calls block on external processes; running them off the
// caller's goroutine keeps the caller cancellable. If ctx ends first,
// exclusive returns ctx.Err() and fn still completes, holding the section
// until it does.
func (m *Manager) exclusive(ctx context.Context, fn func()) error {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		defer func() { <-m.sem }()
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the clipboard contents, or nil if the platform cannot read
// the clipboard right now. It does not touch the cache.
func (m *Manager) Current(ctx context.Context) (*snapshot.Snapshot, error) {
	var s *snapshot.Snapshot
	if err := m.exclusive(ctx, func() { s = m.read() }); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) read() *snapshot.Snapshot {
	s, err := m.capability.Get()
	if err != nil {
		slog.Debug("clipboard read failed", "backend", m.capability.Name(), "err", err)
		return nil
	}
	return s
}

// PollForChange reads the clipboard and returns it if its hash differs from
// the cached one, updating the cache. It returns nil when nothing changed or
// nothing could be read.
func (m *Manager) PollForChange(ctx context.Context) (*snapshot.Snapshot, error) {
	var changed *snapshot.Snapshot
	if err := m.exclusive(ctx, func() {
		s := m.read()
		if s == nil || s.Hash == m.LastHash() {
			return
		}
		h := s.Hash
		m.lastHash.Store(&h)
		changed = s
	}); err != nil {
		return nil, err
	}
	return changed, nil
}

// ApplyIncoming writes s to the clipboard unless its hash is already cached.
// It reports whether the clipboard was written. A failed write is logged and
// reported as not applied; the cache keeps its previous value.
func (m *Manager) ApplyIncoming(ctx context.Context, s *snapshot.Snapshot) (bool, error) {
	var applied bool
	if err := m.exclusive(ctx, func() {
		if s.Hash == m.LastHash() {
			return
		}
		if err := m.capability.Set(s, m.scratchDir); err != nil {
			slog.Warn("clipboard write failed, update skipped",
				"backend", m.capability.Name(),
				"mime", s.MIMEType,
				"hash", s.Hash.Short(),
				"err", err,
			)
			return
		}
		h := s.Hash
		m.lastHash.Store(&h)
		applied = true
	}); err != nil {
		return false, err
	}
	return applied, nil
}

// LastHash returns the cached hash; the zero Hash means nothing has been
// read or applied yet.
func (m *Manager) LastHash() snapshot.Hash {
	if h := m.lastHash.Load(); h != nil {
		return *h
	}
	return snapshot.Hash{}
}

// Watch polls every interval (DefaultInterval when zero) and calls onChange
// for every detected change. It returns ctx.Err() once ctx is done, or the
// first error onChange returns.
func (m *Manager) Watch(ctx context.Context, interval time.Duration, onChange func(context.Context, *snapshot.Snapshot) error) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		s, err := m.PollForChange(ctx)
		if err != nil {
			return err
		}
		if s != nil {
			if err := onChange(ctx, s); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
