//go:build windows

package clip

import (
	"fmt"
	"log/slog"

	"golang.design/x/clipboard"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// windowsBackend reads and writes CF_UNICODETEXT and PNG through
// golang.design/x/clipboard. Other formats go through the Fallback.
type windowsBackend struct{}

// clipboard.Init is called here rather than in init() so that CLI
// sub-commands that never construct a backend don't log spurious warnings.
func newNative(_ Options, _ *Scratch) Capability {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed, clipboard sync is text-only", "err", err)
		return nil
	}
	return &windowsBackend{}
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func (b *windowsBackend) Get() (*snapshot.Snapshot, error) {
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		s := snapshot.New(snapshot.MIMEPNG, img)
		if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
			s = s.WithAltText(string(text))
		}
		return s, nil
	}
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		return snapshot.New(snapshot.MIMEText, text), nil
	}
	return nil, nil
}

func (b *windowsBackend) Set(s *snapshot.Snapshot, _ string) error {
	switch s.MIMEType {
	case snapshot.MIMEText:
		clipboard.Write(clipboard.FmtText, s.Payload)
	case snapshot.MIMEPNG:
		clipboard.Write(clipboard.FmtImage, s.Payload)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, s.MIMEType)
	}
	return nil
}
