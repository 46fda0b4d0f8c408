package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/viper"

	"go.klb.dev/bounceboard/internal/clip"
	"go.klb.dev/bounceboard/internal/clipsync"
	"go.klb.dev/bounceboard/internal/history"
	"go.klb.dev/bounceboard/internal/tlsconf"
)

const defaultInterval = clipsync.DefaultInterval

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newScratchDir creates the per-process directory that receives file-drop
// payloads. cleanup removes it.
func newScratchDir() (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", "bb_")
	if err != nil {
		return "", nil, fmt.Errorf("scratch dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("scratch dir cleanup failed", "dir", dir, "err", err)
		}
	}, nil
}

// newManager builds the clipboard manager for this OS.
func newManager(v *viper.Viper, scratchDir string) *clipsync.Manager {
	c := clip.New(clip.Options{XclipAlt: v.GetBool("xclip-alt")})
	slog.Info("clipboard backend", "name", c.Name())
	return clipsync.New(c, scratchDir)
}

// openRecorder returns the history recorder selected by --save and
// --history-db, and a func that releases it.
func openRecorder(v *viper.Viper) (history.Recorder, func(), error) {
	var (
		recs    history.Multi
		closers []func() error
	)
	if dir := v.GetString("save"); dir != "" {
		d, err := history.NewDir(dir)
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, d)
		slog.Info("saving clipboard history", "dir", dir)
	}
	if path := v.GetString("history-db"); path != "" {
		b, err := history.OpenBolt(path)
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, b)
		closers = append(closers, b.Close)
		slog.Info("recording clipboard history", "db", path)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("history close failed", "err", err)
			}
		}
	}
	switch len(recs) {
	case 0:
		return history.Nop{}, closeAll, nil
	case 1:
		return recs[0], closeAll, nil
	}
	return recs, closeAll, nil
}

// localIPv4s returns the non-loopback IPv4 addresses of this host, falling
// back to loopback when there are none.
func localIPv4s() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		slog.Warn("listing interface addresses", "err", err)
	}
	var out []string
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
			out = append(out, ip4.String())
		}
	}
	if len(out) == 0 {
		out = []string{"127.0.0.1"}
	}
	return out
}

// connectionURLs returns the URLs clients pass to "bounceboard client".
func connectionURLs(secure bool, port int, key string, hosts []string) []string {
	scheme := "https"
	if !secure {
		scheme = "http"
	}
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		u := url.URL{
			Scheme:   scheme,
			Host:     net.JoinHostPort(h, strconv.Itoa(port)),
			Path:     "/",
			RawQuery: url.Values{"key": {key}}.Encode(),
		}
		out = append(out, u.String())
	}
	return out
}

// clientTLS picks the TLS policy for connecting to a relay at rawURL:
// skip verification (--insecure), system roots (--system-ca), or by default
// pin the certificate a relay derives from the access key in the URL.
func clientTLS(v *viper.Viper, rawURL string) (*tls.Config, error) {
	switch {
	case v.GetBool("insecure"):
		return tlsconf.InsecureClient(), nil
	case v.GetBool("system-ca"):
		return &tls.Config{MinVersion: tls.VersionTLS12, NextProtos: []string{"http/1.1"}}, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	cfg, err := tlsconf.PinnedClient(u.Query().Get("key"))
	if errors.Is(err, tlsconf.ErrWeakKey) {
		return nil, fmt.Errorf("%w; a short key cannot pin the relay certificate, use --system-ca or --insecure", err)
	}
	return cfg, err
}
