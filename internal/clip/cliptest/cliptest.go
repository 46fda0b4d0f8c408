// Package cliptest provides an in-memory clip.Capability for tests.
package cliptest

import (
	"sync"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Memory is a concurrency-safe in-memory clipboard.
type Memory struct {
	mu      sync.Mutex
	current *snapshot.Snapshot
	sets    []*snapshot.Snapshot
	setErr  error
	getErr  error
	block   chan struct{}
}

// New returns an empty Memory clipboard.
func New() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get() (*snapshot.Snapshot, error) {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.current, nil
}

func (m *Memory) Set(s *snapshot.Snapshot, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.current = s
	m.sets = append(m.sets, s)
	return nil
}

// Copy simulates a local user copy: it changes the clipboard without
// recording a Set.
func (m *Memory) Copy(s *snapshot.Snapshot) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

// Current returns the clipboard contents.
func (m *Memory) Current() *snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Sets returns every snapshot written through Set, oldest first.
func (m *Memory) Sets() []*snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*snapshot.Snapshot(nil), m.sets...)
}

// FailSet makes subsequent Set calls return err; nil restores them.
func (m *Memory) FailSet(err error) {
	m.mu.Lock()
	m.setErr = err
	m.mu.Unlock()
}

// FailGet makes subsequent Get calls return err; nil restores them.
func (m *Memory) FailGet(err error) {
	m.mu.Lock()
	m.getErr = err
	m.mu.Unlock()
}

// Block makes Get wait until the returned release func is called.
func (m *Memory) Block() (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.block = ch
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.block = nil
			m.mu.Unlock()
			close(ch)
		})
	}
}
