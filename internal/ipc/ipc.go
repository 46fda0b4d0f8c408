// Package ipc is the local control channel of a running bounceboard
// daemon. The server or client process serves a small HTTP API on a Unix
// socket; "bounceboard status" probes the socket first and only falls back
// to asking a relay over the network when no daemon is listening.
//
// The socket is restricted to its owner, so requests carry no access key.
package ipc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"
)

// BaseURL is the host part used for requests over the socket. The host name
// is ignored by the dialer.
const BaseURL = "http://bounceboard"

// SocketPath returns the socket path: $BOUNCEBOARD_SOCKET when set, else
// bounceboard.sock in $XDG_RUNTIME_DIR or the temp dir.
func SocketPath() string {
	if s := os.Getenv("BOUNCEBOARD_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a daemon appears to be listening on the socket.
// It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates the socket, removing a stale one left by a crashed run. It
// refuses to take over a socket another daemon is still serving.
func Listen() (net.Listener, error) {
	if IsRunning() {
		return nil, errors.New("ipc: another bounceboard daemon owns " + SocketPath())
	}
	return listenIPC(SocketPath())
}

// Serve serves h on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	defer stop()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Client returns an HTTP client whose connections go to the socket.
func Client() *http.Client {
	path := SocketPath()
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(context.Context, string, string) (net.Conn, error) {
				return dialIPC(path)
			},
		},
	}
}
