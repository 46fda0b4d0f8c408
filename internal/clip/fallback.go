package clip

import (
	"errors"
	"fmt"
	"log/slog"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Fallback wraps a native backend and retries every failed operation on a
// text-only backend. Native errors are logged here and never reach the
// caller unless the fallback fails too.
type Fallback struct {
	native  Capability
	generic Capability
}

// NewFallback returns a Capability that prefers native and degrades to generic.
func NewFallback(native, generic Capability) *Fallback {
	return &Fallback{native: native, generic: generic}
}

func (f *Fallback) Name() string {
	return fmt.Sprintf("%s (fallback: %s)", f.native.Name(), f.generic.Name())
}

func (f *Fallback) Get() (*snapshot.Snapshot, error) {
	s, err := f.native.Get()
	if err == nil && s != nil {
		return s, nil
	}
	if err != nil {
		slog.Warn("native clipboard read failed, defaulting to text-only",
			"backend", f.native.Name(), "err", err)
	}
	return f.generic.Get()
}

func (f *Fallback) Set(s *snapshot.Snapshot, scratchDir string) error {
	err := f.native.Set(s, scratchDir)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnsupported) {
		slog.Info("content type not supported natively, falling back to text",
			"backend", f.native.Name(), "mime", s.MIMEType)
	} else {
		slog.Warn("native clipboard write failed, defaulting to text-only",
			"backend", f.native.Name(), "mime", s.MIMEType, "err", err)
	}
	if gerr := f.generic.Set(s, scratchDir); gerr != nil {
		return errors.Join(err, gerr)
	}
	return nil
}
