package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Header is the structured frame that announces a payload. It carries every
// Snapshot field except the payload itself.
type Header struct {
	MIMEType    string `json:"mimeType"`
	SizeBytes   uint64 `json:"sizeBytes"`
	ContentHash string `json:"contentHash,omitempty"`
	AltText     string `json:"altText,omitempty"`
	FileName    string `json:"fileName,omitempty"`

	// Seen is how many snapshots the sender had received on this connection
	// when it sent this one. Nil when the sender does not report it.
	Seen *uint64 `json:"seen,omitempty"`
}

// HeaderOf returns the header frame for s.
func HeaderOf(s *snapshot.Snapshot) Header {
	return Header{
		MIMEType:    s.MIMEType,
		SizeBytes:   s.Size,
		ContentHash: s.Hash.String(),
		AltText:     s.AltText,
		FileName:    s.FileName,
	}
}

// IsKeepAlive reports whether h is the empty keep-alive header.
func (h Header) IsKeepAlive() bool { return h.MIMEType == "" }

// decodeHeader parses a text frame. An empty frame decodes as a keep-alive.
func decodeHeader(data []byte) (Header, error) {
	var h Header
	if len(bytes.TrimSpace(data)) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("header decode: %w", err)
	}
	return h, nil
}

// snapshotOf joins a header with the payload that followed it. The content
// hash is always taken from the payload: a sender may omit it, and a
// mismatching one is logged and replaced.
func snapshotOf(h Header, payload []byte) *snapshot.Snapshot {
	s := snapshot.New(h.MIMEType, payload)
	s.AltText = h.AltText
	s.FileName = h.FileName

	if h.ContentHash != "" && h.ContentHash != s.Hash.String() {
		slog.Warn("header hash does not match payload, using payload hash",
			"mime", h.MIMEType,
			"header_hash", h.ContentHash,
			"payload_hash", s.Hash.String(),
		)
	}
	if h.SizeBytes != s.Size {
		slog.Debug("header size does not match payload",
			"mime", h.MIMEType, "header_size", h.SizeBytes, "payload_size", s.Size)
	}
	return s
}
