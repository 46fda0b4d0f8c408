package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"go.klb.dev/bounceboard/internal/ipc"
	"go.klb.dev/bounceboard/internal/peer"
	"go.klb.dev/bounceboard/internal/relay"
)

// localStatus is what a daemon reports on its IPC socket.
type localStatus struct {
	Role    string        `json:"role"`
	Version string        `json:"version"`
	Relay   *relay.Status `json:"relay,omitempty"`
	Peer    *peer.Status  `json:"peer,omitempty"`
}

// serveLocal runs the IPC control API until ctx is done. A missing socket
// is logged and otherwise ignored; the daemon works without it.
func serveLocal(ctx context.Context, status func() localStatus) {
	ln, err := ipc.Listen()
	if err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
		return
	}
	slog.Info("IPC socket listening", "path", ipc.SocketPath())

	router := chi.NewRouter()
	router.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status())
	})
	if err := ipc.Serve(ctx, ln, router); err != nil {
		slog.Warn("IPC server stopped", "err", err)
	}
}

func fetchLocalStatus(ctx context.Context) (localStatus, []byte, error) {
	var st localStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ipc.BaseURL+"/status", nil)
	if err != nil {
		return st, nil, err
	}
	resp, err := ipc.Client().Do(req)
	if err != nil {
		return st, nil, fmt.Errorf("ipc status: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return st, nil, fmt.Errorf("ipc status: %w", err)
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, nil, fmt.Errorf("ipc status decode: %w", err)
	}
	return st, body, nil
}

func printLocalStatus(w io.Writer, st localStatus) {
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Role:\t%s\n", st.Role)
	fmt.Fprintf(tw, "Version:\t%s\n", st.Version)
	fmt.Fprintf(tw, "Transport:\tipc (%s)\n", ipc.SocketPath())
	if p := st.Peer; p != nil {
		fmt.Fprintf(tw, "Relay:\t%s\n", p.Relay)
		if p.Connected {
			fmt.Fprintf(tw, "Connected:\t%s\n", humanize.Time(p.ConnectedAt))
		} else {
			fmt.Fprintf(tw, "Connected:\tno\n")
		}
		fmt.Fprintf(tw, "Reconnects:\t%d\n", p.Reconnects)
		if p.LastHash != "" {
			fmt.Fprintf(tw, "Clipboard:\t%s\n", p.LastHash[:min(12, len(p.LastHash))])
		}
	}
	_ = tw.Flush()

	if st.Relay != nil {
		fmt.Fprintln(w)
		printStatus(w, *st.Relay)
	}
}
