package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/bounceboard/internal/keys"
	"go.klb.dev/bounceboard/internal/relay"
	"go.klb.dev/bounceboard/internal/tlsconf"
)

func newServerCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the relay (and sync this machine's clipboard)",
		Long: `Starts the bounceboard relay. Every connected client shares this
machine's clipboard. A connection URL is printed for each network interface.

Without --cert/--tls-key the relay serves a self-signed certificate whose key
is derived from the access key; clients pin it automatically. --plain serves
unencrypted ws:// instead.

Config file search order:
  /etc/bounceboard/bounceboard.toml
  $HOME/.config/bounceboard/bounceboard.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → BOUNCEBOARD_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runServer(cmd, v) },
	}

	f := cmd.Flags()
	f.IntP("port", "p", 4444, "TCP listen port")
	f.StringP("key", "k", "", "access key (generated when empty)")
	f.String("cert", "", "TLS certificate file (PEM)")
	f.String("tls-key", "", "TLS private key file (PEM)")
	f.Bool("plain", false, "serve without TLS")
	addSyncFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServer(cmd *cobra.Command, v *viper.Viper) error {
	setupLogging(v)

	key := v.GetString("key")
	if key == "" {
		var err error
		if key, err = keys.Generate(); err != nil {
			return err
		}
	}

	tlsCfg, err := serverTLS(v, key)
	if err != nil {
		return err
	}

	port := v.GetInt("port")
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listen :%d: %w", port, err)
	}

	scratch, cleanup, err := newScratchDir()
	if err != nil {
		ln.Close()
		return err
	}
	defer cleanup()

	rec, closeRec, err := openRecorder(v)
	if err != nil {
		ln.Close()
		return err
	}
	defer closeRec()

	rl := relay.New(relay.Config{
		Key:      key,
		Interval: v.GetDuration("interval"),
		TLS:      tlsCfg,
		Recorder: rec,
	}, newManager(v, scratch))

	slog.Info("bounceboard server starting",
		"version", Version,
		"addr", ln.Addr(),
		"tls", tlsCfg != nil,
	)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Connect clients with:")
	for _, u := range connectionURLs(tlsCfg != nil, port, key, localIPv4s()) {
		fmt.Fprintf(out, "  bounceboard client '%s'\n", u)
	}

	ctx, stop := signalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rl.Serve(gctx, ln) })
	g.Go(func() error { return rl.Run(gctx) })
	g.Go(func() error {
		serveLocal(gctx, func() localStatus {
			st := rl.Status()
			return localStatus{Role: "server", Version: Version, Relay: &st}
		})
		return nil
	})
	err = g.Wait()
	slog.Info("bounceboard server stopped")
	return err
}

func serverTLS(v *viper.Viper, key string) (*tls.Config, error) {
	cert, certKey := v.GetString("cert"), v.GetString("tls-key")
	switch {
	case v.GetBool("plain"):
		return nil, nil
	case cert != "" && certKey != "":
		return tlsconf.LoadServer(cert, certKey)
	case cert != "" || certKey != "":
		return nil, fmt.Errorf("--cert and --tls-key must be given together")
	}
	cfg, err := tlsconf.Derived(key)
	if errors.Is(err, tlsconf.ErrWeakKey) {
		return nil, fmt.Errorf("%w; run 'bounceboard keygen' for a key, or use --cert/--tls-key or --plain", err)
	}
	return cfg, err
}
