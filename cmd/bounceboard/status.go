package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/bounceboard/internal/ipc"
	"go.klb.dev/bounceboard/internal/peer"
	"go.klb.dev/bounceboard/internal/relay"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status <url>",
		Short: "Show the peers connected to a relay",
		Long: `Queries a running relay for its connected peers. <url> is the same URL
passed to "bounceboard client".

Without a URL the request goes to the bounceboard daemon on this machine via
its IPC socket.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runStatus(cmd, v, args) },
	}

	f := cmd.Flags()
	f.String("url", "", "relay URL (alternative to the positional argument)")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.Bool("system-ca", false, "verify the relay certificate against the system roots instead of pinning it")
	f.Bool("json", false, "output raw JSON")
	f.Duration("timeout", 10*time.Second, "request timeout")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper, args []string) error {
	raw := v.GetString("url")
	if len(args) == 1 {
		raw = args[0]
	}
	if raw == "" {
		if !ipc.IsRunning() {
			return errMissingURL
		}
		st, body, err := fetchLocalStatus(cmd.Context())
		if err != nil {
			return err
		}
		if v.GetBool("json") {
			_, err := cmd.OutOrStdout().Write(body)
			return err
		}
		printLocalStatus(cmd.OutOrStdout(), st)
		return nil
	}

	statusURL, err := statusEndpoint(raw)
	if err != nil {
		return err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if strings.HasPrefix(statusURL, "https:") {
		if transport.TLSClientConfig, err = clientTLS(v, statusURL); err != nil {
			return err
		}
	}
	client := &http.Client{Transport: transport, Timeout: v.GetDuration("timeout")}

	st, body, err := fetchStatus(cmd.Context(), client, statusURL)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		_, err := out.Write(body)
		return err
	}
	printStatus(out, st)
	return nil
}

// statusEndpoint maps a client URL to the relay's https://host/status?key=…
func statusEndpoint(raw string) (string, error) {
	ws, err := peer.NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ws)
	if err != nil {
		return "", err
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = "/status"
	return u.String(), nil
}

func fetchStatus(ctx context.Context, client *http.Client, statusURL string) (relay.Status, []byte, error) {
	var st relay.Status
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return st, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, nil, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return st, nil, fmt.Errorf("status: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return st, nil, peer.ErrInvalidKey
	default:
		return st, nil, fmt.Errorf("status: %s", resp.Status)
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, nil, fmt.Errorf("status decode: %w", err)
	}
	return st, body, nil
}

func printStatus(w io.Writer, st relay.Status) {
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Started:\t%s (%s)\n", st.StartedAt.Format(time.RFC3339), humanize.Time(st.StartedAt))
	if st.LastHash != "" {
		fmt.Fprintf(tw, "Clipboard:\t%s\n", st.LastHash[:min(12, len(st.LastHash))])
	}
	fmt.Fprintln(tw)
	_ = tw.Flush()

	if len(st.Peers) == 0 {
		fmt.Fprintln(w, "No peers connected.")
		return
	}

	tw = tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tREMOTE\tCONNECTED\tLAST SEEN\n")
	fmt.Fprintf(tw, "--\t------\t---------\t---------\n")
	for _, p := range st.Peers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.ID[:min(8, len(p.ID))], p.Remote,
			humanize.Time(p.ConnectedAt), humanize.Time(p.LastSeen))
	}
	_ = tw.Flush()
}
