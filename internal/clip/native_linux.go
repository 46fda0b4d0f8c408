//go:build linux

package clip

import (
	"log/slog"
	"os/exec"
)

func newNative(opts Options, scratch *Scratch) Capability {
	if _, ok := opts.Runner.(ExecRunner); ok {
		if _, err := exec.LookPath(xclipBin); err != nil {
			slog.Warn("xclip not found, clipboard sync is text-only", "err", err)
			return nil
		}
	}
	return NewXclip(opts.Runner, scratch, opts.XclipAlt)
}
