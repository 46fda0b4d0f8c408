package peer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL turns a connection URL as printed by the relay
// (https://host:port/?key=…) into the WebSocket endpoint to dial
// (wss://host:port/ws/?key=…). ws, wss and http URLs are accepted too, and
// a /ws path is kept as is.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("url has no host")
	}

	switch strings.TrimRight(u.Path, "/") {
	case "":
		u.Path = "/ws/"
	case "/ws":
	default:
		return "", fmt.Errorf("unexpected url path %q", u.Path)
	}

	if u.Query().Get("key") == "" {
		return "", errors.New("url has no key parameter")
	}
	u.Fragment, u.RawFragment = "", ""
	return u.String(), nil
}
