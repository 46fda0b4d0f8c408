//go:build !darwin && !windows && !linux

package clip

// No native backend: the text-only backend serves alone.
func newNative(_ Options, _ *Scratch) Capability { return nil }
