package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/bounceboard/internal/peer"
)

var errMissingURL = errors.New("no relay URL: pass one as an argument or set --url")

func newClientCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "client <url>",
		Short: "Sync this machine's clipboard with a relay",
		Long: `Connects to a bounceboard relay and keeps this machine's clipboard in
sync with it. <url> is one of the URLs the server prints, for example

  bounceboard client 'https://192.168.1.20:4444/?key=mfrggzdf'

The client reconnects after --retry whenever the connection drops. It exits
if the relay rejects the access key.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, args []string) error { return runClient(v, args) },
	}

	f := cmd.Flags()
	f.String("url", "", "relay URL (alternative to the positional argument)")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.Bool("system-ca", false, "verify the relay certificate against the system roots instead of pinning it")
	f.Duration("retry", peer.DefaultRetryDelay, "delay before reconnecting")
	addSyncFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runClient(v *viper.Viper, args []string) error {
	setupLogging(v)

	raw := v.GetString("url")
	if len(args) == 1 {
		raw = args[0]
	}
	if raw == "" {
		return errMissingURL
	}

	var cfg peer.Config
	cfg.URL = raw
	cfg.Interval = v.GetDuration("interval")
	cfg.RetryDelay = v.GetDuration("retry")
	if u, err := peer.NormalizeURL(raw); err == nil && strings.HasPrefix(u, "wss:") {
		if cfg.TLS, err = clientTLS(v, u); err != nil {
			return err
		}
	}

	scratch, cleanup, err := newScratchDir()
	if err != nil {
		return err
	}
	defer cleanup()

	rec, closeRec, err := openRecorder(v)
	if err != nil {
		return err
	}
	defer closeRec()
	cfg.Recorder = rec

	p, err := peer.New(cfg, newManager(v, scratch))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	slog.Info("bounceboard client starting", "version", Version)
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	g.Go(func() error {
		defer cancelRun()
		return p.Run(runCtx)
	})
	g.Go(func() error {
		serveLocal(runCtx, func() localStatus {
			st := p.Status()
			return localStatus{Role: "client", Version: Version, Peer: &st}
		})
		return nil
	})
	return g.Wait()
}
