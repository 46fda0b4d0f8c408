// Package clip provides access to the system clipboard across platforms.
//
// Every backend satisfies Capability. Build constraints select the native
// backend for the running OS once, at startup:
//
//	native_linux.go   xclip, all TARGETS including file drops
//	native_darwin.go  osascript/JXA against NSPasteboard
//	native_windows.go golang.design/x/clipboard (text and PNG)
//	native_other.go   none; text-only backend alone
//
// New wraps the native backend in a Fallback so that any native failure
// degrades to plain-text sync through the generic Text backend instead of
// stalling.
package clip

import (
	"errors"

	"go.klb.dev/bounceboard/internal/snapshot"
)

var (
	// ErrUnsupported is returned by Set when the backend has no native format
	// for the snapshot and no text rendition applies.
	ErrUnsupported = errors.New("clip: unsupported content type")

	// ErrNoScratchDir is returned when a file snapshot must be materialized
	// but the caller supplied no scratch directory.
	ErrNoScratchDir = errors.New("clip: no scratch directory for file payload")
)

// Capability is the interface that all platform clipboard implementations
// satisfy. Implementations block on the OS and are not safe for concurrent
// use; callers serialize access.
type Capability interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Get returns the current clipboard contents in the most preferred
	// available format. It returns nil, nil if the clipboard holds nothing
	// the backend can read.
	Get() (*snapshot.Snapshot, error)

	// Set replaces the clipboard contents with s. File snapshots are written
	// into scratchDir before the clipboard is pointed at them.
	Set(s *snapshot.Snapshot, scratchDir string) error
}

// Options configures New.
type Options struct {
	// XclipAlt enables the `xclip -alt-text` set path on Linux.
	XclipAlt bool
	// Runner executes clipboard tools. Nil means ExecRunner.
	Runner Runner
}

// New returns the capability for the running OS: the native backend wrapped
// in a Fallback to the text-only backend, or the text-only backend alone when
// the OS has no native implementation.
func New(opts Options) Capability {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	generic := NewText()
	native := newNative(opts, &Scratch{})
	if native == nil {
		return generic
	}
	return NewFallback(native, generic)
}
