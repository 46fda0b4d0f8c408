package clip

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.klb.dev/bounceboard/internal/snapshot"
)

const defaultScratchName = "clipboard.bin"

// Scratch materializes file payloads on disk so the OS clipboard can point
// at them. It keeps at most one file: writing a new one removes the previous.
type Scratch struct {
	mu   sync.Mutex
	last string
}

// Materialize writes data to dir/name, replacing the file written by the
// previous call, and returns the new path.
func (sc *Scratch) Materialize(dir, name string, data []byte) (string, error) {
	if dir == "" {
		return "", ErrNoScratchDir
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = defaultScratchName
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.last != "" {
		if err := os.Remove(sc.last); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("remove previous scratch file: %w", err)
		}
		sc.last = ""
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	sc.last = path
	return path, nil
}

// Last returns the path of the outstanding scratch file, if any.
func (sc *Scratch) Last() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.last
}

// Clear removes the outstanding scratch file.
func (sc *Scratch) Clear() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.last == "" {
		return nil
	}
	err := os.Remove(sc.last)
	sc.last = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// readFile loads a file dropped onto the clipboard as a file snapshot.
func readFile(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clipboard file: %w", err)
	}
	return snapshot.NewFile(filepath.Base(path), data), nil
}
