package snapshot

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComputesHashAndSize(t *testing.T) {
	payload := []byte("hello")
	s := New(MIMEText, payload)

	assert.Equal(t, uint64(5), s.Size)
	assert.Equal(t, Hash(sha256.Sum256(payload)), s.Hash)
	assert.True(t, s.Verify())
}

func TestHashStringRoundTrip(t *testing.T) {
	h := Sum([]byte("clip"))
	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Len(t, h.Short(), 12)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
	_, err = ParseHash("zz")
	assert.Error(t, err)
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := New(MIMEText, []byte("a"))
	c := *s
	c.Payload = []byte("b")
	assert.False(t, c.Verify())
}

func TestSame(t *testing.T) {
	a := NewText("x")
	b := NewText("x").WithAltText("ignored")
	assert.True(t, a.Same(b))
	assert.False(t, a.Same(NewText("y")))
	assert.False(t, a.Same(nil))
	var n *Snapshot
	assert.False(t, n.Same(a))
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		want string
		ok   bool
	}{
		{"plain", NewText("hi"), "hi", true},
		{"alt text wins", New(MIMEHTML, []byte("<b>hi</b>")).WithAltText("hi"), "hi", true},
		{"utf8 payload", New(MIMERTF, []byte(`{\rtf1 hi}`)), `{\rtf1 hi}`, true},
		{"binary", New(MIMEPNG, []byte{0x89, 'P', 'N', 'G', 0xff}), "", false},
		{"file", NewFile("a.txt", []byte("data")), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.snap.Text()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithAltTextCopies(t *testing.T) {
	s := New(MIMEHTML, []byte("<i>x</i>"))
	alt := s.WithAltText("x")
	assert.Empty(t, s.AltText)
	assert.Equal(t, "x", alt.AltText)
	assert.Equal(t, s.Hash, alt.Hash)
}

func TestPreferred(t *testing.T) {
	assert.True(t, Preferred(MIMEPNG))
	assert.False(t, Preferred(MIMEFile))
	assert.False(t, Preferred(MIMEGIF))
}
