//go:build darwin

package clip

func newNative(opts Options, scratch *Scratch) Capability {
	return NewOsascript(opts.Runner, scratch)
}
