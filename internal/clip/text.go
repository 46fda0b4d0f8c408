package clip

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Text is the generic text-only backend, available wherever
// github.com/atotto/clipboard finds a clipboard tool. It is the last resort
// of every Fallback.
type Text struct {
	readAll  func() (string, error)
	writeAll func(string) error
}

var errNoUtility = errors.New("no clipboard utility available")

// NewText returns the text-only backend.
func NewText() *Text {
	return &Text{
		readAll: func() (string, error) {
			if clipboard.Unsupported {
				return "", errNoUtility
			}
			return clipboard.ReadAll()
		},
		writeAll: func(text string) error {
			if clipboard.Unsupported {
				return errNoUtility
			}
			return clipboard.WriteAll(text)
		},
	}
}

func (t *Text) Name() string { return "text-only" }

func (t *Text) Get() (*snapshot.Snapshot, error) {
	text, err := t.readAll()
	if err != nil {
		return nil, fmt.Errorf("text clipboard read: %w", err)
	}
	if text == "" {
		return nil, nil
	}
	return snapshot.NewText(text), nil
}

// Set writes the text rendition of s. Snapshots without one (images,
// file drops) are rejected with ErrUnsupported.
func (t *Text) Set(s *snapshot.Snapshot, _ string) error {
	text, ok := s.Text()
	if !ok {
		return fmt.Errorf("%w: %s has no text rendition", ErrUnsupported, s.MIMEType)
	}
	if err := t.writeAll(text); err != nil {
		return fmt.Errorf("text clipboard write: %w", err)
	}
	return nil
}
