// Package snapshot defines the clipboard content model shared by every
// bounceboard component.
//
// A Snapshot is an immutable descriptor of one clipboard state plus its raw
// payload. Its identity is the SHA-256 digest of the payload: two snapshots
// with the same hash are the same clipboard content regardless of who
// produced them.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"unicode/utf8"
)

// MIME types understood by the capability backends.
const (
	MIMEPNG  = "image/png"
	MIMEHTML = "text/html"
	MIMERTF  = "text/rtf"
	MIMEText = "text/plain"
	MIMEGIF  = "image/gif"
	MIMEFile = "application/x-file"
)

// PreferenceOrder is the order in which native formats are probed on read.
// The first format present on the clipboard wins.
var PreferenceOrder = []string{MIMEPNG, MIMEHTML, MIMERTF, MIMEText}

// Hash is a SHA-256 content digest.
type Hash [sha256.Size]byte

// Sum returns the content hash of payload.
func Sum(payload []byte) Hash {
	return Hash(sha256.Sum256(payload))
}

// ParseHash decodes a lowercase hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parse hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// IsZero reports whether h is the unset digest.
func (h Hash) IsZero() bool { return h == Hash{} }

// String returns the lowercase hex form used on the wire and on disk.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string { return h.String()[:12] }

// Snapshot is one clipboard state. Treat it as a value: never mutate a
// Snapshot after construction, build a new one instead.
type Snapshot struct {
	MIMEType string
	Size     uint64
	Hash     Hash
	// AltText is a plain-text rendition for consumers that cannot handle
	// MIMEType. Empty means none.
	AltText string
	// FileName is set only for MIMEFile snapshots.
	FileName string
	Payload  []byte
}

// New builds a snapshot for payload, computing size and hash.
func New(mime string, payload []byte) *Snapshot {
	return &Snapshot{
		MIMEType: mime,
		Size:     uint64(len(payload)),
		Hash:     Sum(payload),
		Payload:  payload,
	}
}

// NewText builds a text/plain snapshot.
func NewText(text string) *Snapshot {
	return New(MIMEText, []byte(text))
}

// NewFile builds a file-drop snapshot carrying name.
func NewFile(name string, contents []byte) *Snapshot {
	s := New(MIMEFile, contents)
	s.FileName = name
	return s
}

// WithAltText returns a copy of s carrying alt as its plain-text fallback.
func (s *Snapshot) WithAltText(alt string) *Snapshot {
	c := *s
	c.AltText = alt
	return &c
}

// Verify reports whether the recorded hash and size match the payload.
func (s *Snapshot) Verify() bool {
	return s.Hash == Sum(s.Payload) && s.Size == uint64(len(s.Payload))
}

// Same reports whether s and other carry the same content. A nil snapshot is
// never the same as anything.
func (s *Snapshot) Same(other *Snapshot) bool {
	if s == nil || other == nil {
		return false
	}
	return s.Hash == other.Hash
}

// Text returns the best plain-text rendition of s: the payload itself for
// text/plain, the alt text when present, or the payload when it decodes as
// UTF-8. File drops never have a text rendition.
func (s *Snapshot) Text() (text string, ok bool) {
	switch {
	case s.MIMEType == MIMEText:
		return string(s.Payload), true
	case s.AltText != "":
		return s.AltText, true
	case s.MIMEType == MIMEFile:
		return "", false
	case utf8.Valid(s.Payload):
		return string(s.Payload), true
	}
	return "", false
}

// Preferred reports whether mime is one of the PreferenceOrder formats.
func Preferred(mime string) bool {
	return slices.Contains(PreferenceOrder, mime)
}
