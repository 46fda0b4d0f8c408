// Package history persists clipboard snapshots as they pass through a relay
// or peer. It is a side channel: recording failures are logged by callers and
// never affect synchronization.
package history

import (
	"errors"
	"time"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Recorder stores one snapshot.
type Recorder interface {
	Record(s *snapshot.Snapshot) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(*snapshot.Snapshot) error { return nil }

// Multi records to every recorder in turn and joins their errors.
type Multi []Recorder

func (m Multi) Record(s *snapshot.Snapshot) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Entry is the metadata stored alongside each payload.
type Entry struct {
	MIMEType    string  `json:"mimeType"`
	SizeBytes   uint64  `json:"sizeBytes"`
	ContentHash string  `json:"contentHash"`
	AltText     string  `json:"altText,omitempty"`
	FileName    string  `json:"fileName,omitempty"`
	Time        float64 `json:"time"` // unix seconds
}

func entryOf(s *snapshot.Snapshot, at time.Time) Entry {
	return Entry{
		MIMEType:    s.MIMEType,
		SizeBytes:   s.Size,
		ContentHash: s.Hash.String(),
		AltText:     s.AltText,
		FileName:    s.FileName,
		Time:        float64(at.UnixNano()) / float64(time.Second),
	}
}

// At returns the entry's timestamp.
func (e Entry) At() time.Time {
	sec := int64(e.Time)
	nsec := int64((e.Time - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
