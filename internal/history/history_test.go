package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bounceboard/internal/snapshot"
)

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[i]
		if i < len(ts)-1 {
			i++
		}
		return t
	}
}

func TestDirRecord(t *testing.T) {
	root := filepath.Join(t.TempDir(), "hist")
	d, err := NewDir(root)
	require.NoError(t, err)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	d.now = fixedClock(at)

	s := snapshot.New(snapshot.MIMEHTML, []byte("<b>x</b>")).WithAltText("x")
	require.NoError(t, d.Record(s))

	base := filepath.Join(root, "2026-03-14", s.Hash.String())
	payload, err := os.ReadFile(base + ".bin")
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", string(payload))

	raw, err := os.ReadFile(base + ".json")
	require.NoError(t, err)
	var e Entry
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, snapshot.MIMEHTML, e.MIMEType)
	assert.Equal(t, uint64(8), e.SizeBytes)
	assert.Equal(t, s.Hash.String(), e.ContentHash)
	assert.Equal(t, "x", e.AltText)
	assert.WithinDuration(t, at, e.At(), time.Millisecond)
}

func TestBoltListNewestFirst(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer b.Close()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = fixedClock(t0, t0.Add(time.Second), t0.Add(2*time.Second))

	for _, txt := range []string{"one", "two", "one"} {
		require.NoError(t, b.Record(snapshot.NewText(txt)))
	}

	all, err := b.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, snapshot.NewText("one").Hash.String(), all[0].ContentHash)
	assert.Equal(t, snapshot.NewText("two").Hash.String(), all[1].ContentHash)

	two, err := b.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	payload, err := b.Payload(snapshot.NewText("two").Hash)
	require.NoError(t, err)
	assert.Equal(t, "two", string(payload))

	_, err = b.Payload(snapshot.NewText("never").Hash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltSameInstant(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer b.Close()
	b.now = fixedClock(time.Unix(100, 0))

	require.NoError(t, b.Record(snapshot.NewText("a")))
	require.NoError(t, b.Record(snapshot.NewText("b")))

	all, err := b.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

type failRecorder struct{ err error }

func (f failRecorder) Record(*snapshot.Snapshot) error { return f.err }

func TestMulti(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	boom := errors.New("disk full")

	m := Multi{Nop{}, failRecorder{boom}, d}
	err = m.Record(snapshot.NewText("x"))
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, Multi{Nop{}, d}.Record(snapshot.NewText("y")))
}
