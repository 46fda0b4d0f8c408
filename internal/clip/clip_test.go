package clip

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// fakeRunner answers Output calls from a table keyed by the joined argv and
// records Input calls.
type fakeRunner struct {
	outputs map[string][]byte
	fail    map[string]error
	inputs  []fakeInput
}

type fakeInput struct {
	stdin []byte
	argv  string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string][]byte{}, fail: map[string]error{}}
}

func argv(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (f *fakeRunner) Output(name string, args ...string) ([]byte, error) {
	key := argv(name, args...)
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	out, ok := f.outputs[key]
	if !ok {
		return nil, fmt.Errorf("unexpected command %q", key)
	}
	return out, nil
}

func (f *fakeRunner) Input(stdin []byte, name string, args ...string) error {
	key := argv(name, args...)
	if err, ok := f.fail[key]; ok {
		return err
	}
	f.inputs = append(f.inputs, fakeInput{stdin: stdin, argv: key})
	return nil
}

func (f *fakeRunner) xclipTarget(target string, out []byte) {
	f.outputs[argv("xclip", "-selection", "clipboard", "-t", target, "-o")] = out
}

// memCapability is an in-memory Capability.
type memCapability struct {
	name    string
	current *snapshot.Snapshot
	getErr  error
	setErr  error
	sets    int
}

func (m *memCapability) Name() string { return m.name }

func (m *memCapability) Get() (*snapshot.Snapshot, error) {
	return m.current, m.getErr
}

func (m *memCapability) Set(s *snapshot.Snapshot, _ string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.current = s
	return nil
}

func TestXclipGetPrefersPNGWithAltText(t *testing.T) {
	run := newFakeRunner()
	png := []byte{0x89, 'P', 'N', 'G'}
	run.xclipTarget("TARGETS", []byte("TARGETS\ntext/plain\nimage/png\nSTRING\n"))
	run.xclipTarget("image/png", png)
	run.xclipTarget("STRING", []byte("caption"))

	s, err := NewXclip(run, &Scratch{}, false).Get()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, snapshot.MIMEPNG, s.MIMEType)
	assert.Equal(t, png, s.Payload)
	assert.Equal(t, "caption", s.AltText)
	assert.True(t, s.Verify())
}

func TestXclipGetPlainTextHasNoAltText(t *testing.T) {
	run := newFakeRunner()
	run.xclipTarget("TARGETS", []byte("text/plain\nSTRING\nUTF8_STRING"))
	run.xclipTarget("text/plain", []byte("hello"))

	s, err := NewXclip(run, &Scratch{}, false).Get()
	require.NoError(t, err)
	assert.Equal(t, snapshot.MIMEText, s.MIMEType)
	assert.Equal(t, "hello", string(s.Payload))
	assert.Empty(t, s.AltText)
}

func TestXclipGetFileDrop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("file body"), 0o600))

	run := newFakeRunner()
	run.xclipTarget("TARGETS", []byte("text/uri-list\ntext/plain"))
	run.xclipTarget("text/uri-list", []byte("file://"+path+"\n"))

	s, err := NewXclip(run, &Scratch{}, false).Get()
	require.NoError(t, err)
	assert.Equal(t, snapshot.MIMEFile, s.MIMEType)
	assert.Equal(t, "notes.txt", s.FileName)
	assert.Equal(t, "file body", string(s.Payload))
}

func TestXclipGetUnownedSelection(t *testing.T) {
	run := newFakeRunner()
	targets := argv("xclip", "-selection", "clipboard", "-t", "TARGETS", "-o")
	run.fail[targets] = errors.New("xclip: exit status 1: Error: target TARGETS not available")

	s, err := NewXclip(run, &Scratch{}, false).Get()
	assert.NoError(t, err)
	assert.Nil(t, s)

	run.fail[targets] = errors.New("xclip: exit status 1: Error: Can't open display: (null)")
	_, err = NewXclip(run, &Scratch{}, false).Get()
	assert.Error(t, err)
}

func TestXclipGetNothingReadable(t *testing.T) {
	run := newFakeRunner()
	run.xclipTarget("TARGETS", []byte("TIMESTAMP\nMULTIPLE"))

	s, err := NewXclip(run, &Scratch{}, false).Get()
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestXclipGetToolFailure(t *testing.T) {
	run := newFakeRunner()
	run.fail[argv("xclip", "-selection", "clipboard", "-t", "TARGETS", "-o")] = errors.New("exit status 1")

	_, err := NewXclip(run, &Scratch{}, false).Get()
	assert.Error(t, err)
}

func TestXclipSet(t *testing.T) {
	tests := []struct {
		name      string
		alt       bool
		snap      *snapshot.Snapshot
		wantArgv  string
		wantStdin string
	}{
		{
			name:      "plain text",
			snap:      snapshot.NewText("hi"),
			wantArgv:  "xclip -selection clipboard -t text/plain -i",
			wantStdin: "hi",
		},
		{
			name:      "alt text as STRING",
			snap:      snapshot.New(snapshot.MIMEHTML, []byte("<b>hi</b>")).WithAltText("hi"),
			wantArgv:  "xclip -selection clipboard -t STRING -i",
			wantStdin: "hi",
		},
		{
			name:      "alt text with -alt-text",
			alt:       true,
			snap:      snapshot.New(snapshot.MIMEHTML, []byte("<b>hi</b>")).WithAltText("hi"),
			wantArgv:  "xclip -selection clipboard -t text/html -alt-text hi -i",
			wantStdin: "<b>hi</b>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newFakeRunner()
			require.NoError(t, NewXclip(run, &Scratch{}, tt.alt).Set(tt.snap, ""))
			require.Len(t, run.inputs, 1)
			assert.Equal(t, tt.wantArgv, run.inputs[0].argv)
			assert.Equal(t, tt.wantStdin, string(run.inputs[0].stdin))
		})
	}
}

func TestXclipSetFileReplacesPreviousTempFile(t *testing.T) {
	dir := t.TempDir()
	run := newFakeRunner()
	x := NewXclip(run, &Scratch{}, false)

	require.NoError(t, x.Set(snapshot.NewFile("a.txt", []byte("one")), dir))
	require.NoError(t, x.Set(snapshot.NewFile("b.txt", []byte("two")), dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.txt", entries[0].Name())

	require.Len(t, run.inputs, 2)
	assert.Equal(t, "xclip -selection clipboard -t text/uri-list -i", run.inputs[1].argv)
	assert.Equal(t, "file://"+filepath.Join(dir, "b.txt")+"\n", string(run.inputs[1].stdin))
}

func TestXclipSetFileNeedsScratchDir(t *testing.T) {
	err := NewXclip(newFakeRunner(), &Scratch{}, false).Set(snapshot.NewFile("a", []byte("x")), "")
	assert.ErrorIs(t, err, ErrNoScratchDir)
}

func TestFirstFileURI(t *testing.T) {
	path, ok := firstFileURI("# comment\nfile:///tmp/a%20b.txt\nfile:///tmp/c")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/a b.txt", path)

	_, ok = firstFileURI("https://example.com/x")
	assert.False(t, ok)
}

func osascriptKey(script string) string {
	return argv("osascript", "-l", "JavaScript", "-e", script)
}

func TestOsascriptGetHTMLWithAltText(t *testing.T) {
	run := newFakeRunner()
	run.outputs[osascriptKey(jxaTypes)] = []byte(`["public.html","public.utf8-plain-text"]` + "\n")
	run.outputs[osascriptKey(fmt.Sprintf(jxaReadHex, `"public.html"`))] = []byte(hex.EncodeToString([]byte("<p>x</p>")))
	run.outputs[osascriptKey(fmt.Sprintf(jxaReadHex, `"public.utf8-plain-text"`))] = []byte(hex.EncodeToString([]byte("x")))

	s, err := NewOsascript(run, &Scratch{}).Get()
	require.NoError(t, err)
	assert.Equal(t, snapshot.MIMEHTML, s.MIMEType)
	assert.Equal(t, "<p>x</p>", string(s.Payload))
	assert.Equal(t, "x", s.AltText)
}

func TestOsascriptGetUnsupportedTypes(t *testing.T) {
	run := newFakeRunner()
	run.outputs[osascriptKey(jxaTypes)] = []byte(`["com.adobe.pdf"]`)

	_, err := NewOsascript(run, &Scratch{}).Get()
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOsascriptGetMalformedOutput(t *testing.T) {
	run := newFakeRunner()
	run.outputs[osascriptKey(jxaTypes)] = []byte(`not json`)

	_, err := NewOsascript(run, &Scratch{}).Get()
	assert.Error(t, err)
}

func TestOsascriptSetUnsupported(t *testing.T) {
	err := NewOsascript(newFakeRunner(), &Scratch{}).Set(snapshot.New("application/pdf", []byte("%PDF")), t.TempDir())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOsascriptSetFile(t *testing.T) {
	dir := t.TempDir()
	run := newFakeRunner()
	path := filepath.Join(dir, "pic.png")
	run.outputs[argv("osascript", "-e", fmt.Sprintf("set the clipboard to POSIX file %q", path))] = nil

	require.NoError(t, NewOsascript(run, &Scratch{}).Set(snapshot.NewFile("pic.png", []byte{1, 2}), dir))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)
}

func TestFallbackGet(t *testing.T) {
	text := snapshot.NewText("fallback")

	t.Run("native result wins", func(t *testing.T) {
		native := &memCapability{name: "native", current: snapshot.NewText("native")}
		s, err := NewFallback(native, &memCapability{current: text}).Get()
		require.NoError(t, err)
		assert.Equal(t, "native", string(s.Payload))
	})
	t.Run("native error degrades", func(t *testing.T) {
		native := &memCapability{name: "native", getErr: errors.New("xclip missing")}
		s, err := NewFallback(native, &memCapability{current: text}).Get()
		require.NoError(t, err)
		assert.Same(t, text, s)
	})
	t.Run("native empty degrades", func(t *testing.T) {
		s, err := NewFallback(&memCapability{name: "native"}, &memCapability{current: text}).Get()
		require.NoError(t, err)
		assert.Same(t, text, s)
	})
}

func TestFallbackSet(t *testing.T) {
	native := &memCapability{name: "native", setErr: fmt.Errorf("%w: image/gif", ErrUnsupported)}
	generic := &memCapability{name: "generic"}
	f := NewFallback(native, generic)

	require.NoError(t, f.Set(snapshot.NewText("x"), ""))
	assert.Equal(t, 1, generic.sets)

	generic.setErr = ErrUnsupported
	err := f.Set(snapshot.New(snapshot.MIMEGIF, []byte{0}), "")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTextBackend(t *testing.T) {
	var written string
	b := &Text{
		readAll:  func() (string, error) { return "copied", nil },
		writeAll: func(s string) error { written = s; return nil },
	}

	s, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, snapshot.NewText("copied").Hash, s.Hash)

	require.NoError(t, b.Set(snapshot.New(snapshot.MIMEHTML, []byte("<i>a</i>")).WithAltText("a"), ""))
	assert.Equal(t, "a", written)

	err = b.Set(snapshot.New(snapshot.MIMEPNG, []byte{0xff, 0xfe}), "")
	assert.ErrorIs(t, err, ErrUnsupported)

	b.readAll = func() (string, error) { return "", nil }
	s, err = b.Get()
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestScratchKeepsOneFile(t *testing.T) {
	dir := t.TempDir()
	sc := &Scratch{}

	first, err := sc.Materialize(dir, "../escape.txt", []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), first)

	second, err := sc.Materialize(dir, "", []byte("2"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, defaultScratchName), second)
	assert.NoFileExists(t, first)
	assert.Equal(t, second, sc.Last())

	require.NoError(t, sc.Clear())
	assert.NoFileExists(t, second)
	assert.Empty(t, sc.Last())
}
