package clip

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultToolTimeout = 5 * time.Second

// Runner runs external clipboard tools. It exists so backends can be driven
// by a fake in tests.
type Runner interface {
	// Output runs the command and returns its stdout.
	Output(name string, args ...string) ([]byte, error)

	// Input runs the command with stdin as its standard input. Stdout and
	// stderr are discarded: tools like xclip fork a selection owner that
	// keeps inherited pipes open indefinitely.
	Input(stdin []byte, name string, args ...string) error
}

// ExecRunner is the os/exec Runner. Every invocation is bounded by Timeout
// (5s when zero).
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) timeout() time.Duration {
	if r.Timeout <= 0 {
		return defaultToolTimeout
	}
	return r.Timeout
}

func (r ExecRunner) Output(name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (r ExecRunner) Input(stdin []byte, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
