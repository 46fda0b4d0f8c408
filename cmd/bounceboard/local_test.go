//go:build !windows

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bounceboard/internal/ipc"
	"go.klb.dev/bounceboard/internal/peer"
)

func TestLocalStatusOverIPC(t *testing.T) {
	dir, err := os.MkdirTemp("", "bbcmd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("BOUNCEBOARD_SOCKET", filepath.Join(dir, "s.sock"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		serveLocal(ctx, func() localStatus {
			return localStatus{Role: "client", Version: "test", Peer: &peer.Status{
				Relay:       "wss://relay:4444/ws/",
				Connected:   true,
				ConnectedAt: time.Now().Add(-time.Minute),
				Reconnects:  2,
			}}
		})
	}()
	require.Eventually(t, ipc.IsRunning, 2*time.Second, 5*time.Millisecond)

	st, body, err := fetchLocalStatus(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(body), `"role":"client"`)
	require.NotNil(t, st.Peer)
	assert.Equal(t, 2, st.Peer.Reconnects)

	var out bytes.Buffer
	printLocalStatus(&out, st)
	assert.Contains(t, out.String(), "wss://relay:4444/ws/")
	assert.Contains(t, out.String(), "a minute ago")

	cancel()
	<-done
}
