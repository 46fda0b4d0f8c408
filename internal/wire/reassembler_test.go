package wire

import (
	"encoding/json"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bounceboard/internal/snapshot"
)

func headerFrame(t *testing.T, h Header) []byte {
	t.Helper()
	b, err := json.Marshal(h)
	require.NoError(t, err)
	return b
}

func TestReassemblerPair(t *testing.T) {
	var r Reassembler
	src := snapshot.NewText("hello")

	s, err := r.Feed(websocket.TextMessage, headerFrame(t, HeaderOf(src)))
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.True(t, r.Awaiting())

	s, err = r.Feed(websocket.BinaryMessage, src.Payload)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.Same(src))
	assert.Equal(t, "hello", string(s.Payload))
	assert.False(t, r.Awaiting())
}

func TestReassemblerLastHeaderWins(t *testing.T) {
	var r Reassembler
	_, err := r.Feed(websocket.TextMessage, headerFrame(t, Header{MIMEType: snapshot.MIMEPNG, SizeBytes: 10}))
	require.NoError(t, err)
	_, err = r.Feed(websocket.TextMessage, headerFrame(t, Header{MIMEType: snapshot.MIMEText, SizeBytes: 2}))
	require.NoError(t, err)

	s, err := r.Feed(websocket.BinaryMessage, []byte("hi"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, snapshot.MIMEText, s.MIMEType)
}

func TestReassemblerIgnoresStrayPayload(t *testing.T) {
	var r Reassembler
	s, err := r.Feed(websocket.BinaryMessage, []byte("orphan"))
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, r.Awaiting())
}

func TestReassemblerKeepAlive(t *testing.T) {
	var r Reassembler
	_, err := r.Feed(websocket.TextMessage, headerFrame(t, Header{MIMEType: snapshot.MIMEText, SizeBytes: 1}))
	require.NoError(t, err)

	// Keep-alives between header and payload do not disturb the pair.
	for _, ka := range [][]byte{nil, []byte("  "), headerFrame(t, Header{})} {
		s, err := r.Feed(websocket.TextMessage, ka)
		require.NoError(t, err)
		assert.Nil(t, s)
		assert.True(t, r.Awaiting())
	}

	s, err := r.Feed(websocket.BinaryMessage, []byte("x"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "x", string(s.Payload))
}

func TestReassemblerMalformedHeader(t *testing.T) {
	var r Reassembler
	_, err := r.Feed(websocket.TextMessage, []byte("{not json"))
	assert.Error(t, err)
	assert.False(t, r.Awaiting())
}

func TestReassemblerRecomputesHash(t *testing.T) {
	var r Reassembler
	payload := []byte("content")

	for _, hash := range []string{"", "deadbeef"} {
		_, err := r.Feed(websocket.TextMessage, headerFrame(t, Header{
			MIMEType: snapshot.MIMEText, SizeBytes: 99, ContentHash: hash,
		}))
		require.NoError(t, err)
		s, err := r.Feed(websocket.BinaryMessage, payload)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, snapshot.Sum(payload), s.Hash, "hash %q", hash)
		assert.Equal(t, uint64(len(payload)), s.Size)
	}
}

func TestReassemblerCarriesAltTextAndFileName(t *testing.T) {
	var r Reassembler
	src := snapshot.NewFile("notes.pdf", []byte("%PDF"))
	_, err := r.Feed(websocket.TextMessage, headerFrame(t, HeaderOf(src)))
	require.NoError(t, err)
	s, err := r.Feed(websocket.BinaryMessage, src.Payload)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "notes.pdf", s.FileName)
	assert.Equal(t, src.AltText, s.AltText)
	assert.Equal(t, snapshot.MIMEFile, s.MIMEType)
}

func TestReassemblerKeepsSeenCount(t *testing.T) {
	var r Reassembler
	src := snapshot.NewText("hi")

	h := HeaderOf(src)
	seen := uint64(3)
	h.Seen = &seen
	_, err := r.Feed(websocket.TextMessage, headerFrame(t, h))
	require.NoError(t, err)
	_, err = r.Feed(websocket.BinaryMessage, src.Payload)
	require.NoError(t, err)
	require.NotNil(t, r.Last().Seen)
	assert.Equal(t, uint64(3), *r.Last().Seen)

	// Senders that do not report it leave Seen nil.
	_, err = r.Feed(websocket.TextMessage, []byte(`{"mimeType":"text/plain","sizeBytes":2}`))
	require.NoError(t, err)
	_, err = r.Feed(websocket.BinaryMessage, src.Payload)
	require.NoError(t, err)
	assert.Nil(t, r.Last().Seen)
}
