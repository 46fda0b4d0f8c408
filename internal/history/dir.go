package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Dir writes each snapshot under root as
//
//	<root>/<YYYY-MM-DD>/<hash>.json   metadata
//	<root>/<YYYY-MM-DD>/<hash>.bin    payload
//
// The same content recorded twice on one day overwrites itself.
type Dir struct {
	root string
	now  func() time.Time
}

// NewDir creates root if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	return &Dir{root: root, now: time.Now}, nil
}

func (d *Dir) Record(s *snapshot.Snapshot) error {
	at := d.now()
	day := filepath.Join(d.root, at.Format(time.DateOnly))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return fmt.Errorf("history dir: %w", err)
	}

	meta, err := json.Marshal(entryOf(s, at))
	if err != nil {
		return fmt.Errorf("history meta: %w", err)
	}
	base := filepath.Join(day, s.Hash.String())
	if err := os.WriteFile(base+".json", meta, 0o644); err != nil {
		return fmt.Errorf("history meta: %w", err)
	}
	if err := os.WriteFile(base+".bin", s.Payload, 0o644); err != nil {
		return fmt.Errorf("history payload: %w", err)
	}
	return nil
}
