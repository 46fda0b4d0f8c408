//go:build windows

package ipc

import (
	"errors"
	"net"
)

// TODO: serve the control API on a named pipe via github.com/Microsoft/go-winio;
// until then Windows daemons run without it.
var errNoPipes = errors.New("ipc: not supported on windows")

func socketPath() string { return `\\.\pipe\bounceboard` }

func listenIPC(string) (net.Listener, error) { return nil, errNoPipes }

func dialIPC(string) (net.Conn, error) { return nil, errNoPipes }
