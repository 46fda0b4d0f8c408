package clip

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.klb.dev/bounceboard/internal/snapshot"
)

const (
	xclipBin      = "xclip"
	targetTargets = "TARGETS"
	targetString  = "STRING"
	targetURIList = "text/uri-list"
)

// Xclip is the Linux backend. It reads every X11 selection target through
// `xclip -o` and writes through `xclip -i`.
type Xclip struct {
	run     Runner
	scratch *Scratch
	// alt passes `-alt-text` so a single set carries both the rich target
	// and its plain-text rendition. Needs an xclip build with that flag.
	alt bool
}

// NewXclip returns the xclip backend.
func NewXclip(run Runner, scratch *Scratch, alt bool) *Xclip {
	return &Xclip{run: run, scratch: scratch, alt: alt}
}

func (x *Xclip) Name() string { return "Linux xclip" }

func (x *Xclip) target(t string) ([]byte, error) {
	return x.run.Output(xclipBin, "-selection", "clipboard", "-t", t, "-o")
}

func (x *Xclip) targets() ([]string, error) {
	out, err := x.target(targetTargets)
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			targets = append(targets, line)
		}
	}
	return targets, nil
}

func (x *Xclip) Get() (*snapshot.Snapshot, error) {
	targets, err := x.targets()
	if err != nil {
		if unowned(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("xclip targets: %w", err)
	}

	if slices.Contains(targets, targetURIList) {
		if s, err := x.getFile(); err != nil || s != nil {
			return s, err
		}
	}

	for _, mime := range snapshot.PreferenceOrder {
		if !slices.Contains(targets, mime) {
			continue
		}
		data, err := x.target(mime)
		if err != nil {
			return nil, fmt.Errorf("xclip read %s: %w", mime, err)
		}
		s := snapshot.New(mime, data)
		if mime != snapshot.MIMEText && slices.Contains(targets, targetString) {
			alt, err := x.target(targetString)
			if err != nil {
				return nil, fmt.Errorf("xclip read %s: %w", targetString, err)
			}
			s = s.WithAltText(string(alt))
		}
		return s, nil
	}
	return nil, nil
}

// unowned reports whether xclip failed because no client owns the clipboard
// selection, as after login before anything was copied.
func unowned(err error) bool {
	return strings.Contains(err.Error(), "not available")
}

// getFile resolves the first file:// URI on the clipboard. It returns nil,
// nil when the uri-list names no local file.
func (x *Xclip) getFile() (*snapshot.Snapshot, error) {
	data, err := x.target(targetURIList)
	if err != nil {
		return nil, fmt.Errorf("xclip read %s: %w", targetURIList, err)
	}
	path, ok := firstFileURI(string(data))
	if !ok {
		return nil, nil
	}
	return readFile(path)
}

func (x *Xclip) Set(s *snapshot.Snapshot, scratchDir string) error {
	target := s.MIMEType
	data := s.Payload

	if s.MIMEType == snapshot.MIMEFile {
		path, err := x.scratch.Materialize(scratchDir, s.FileName, s.Payload)
		if err != nil {
			return err
		}
		target = targetURIList
		data = []byte(fileURI(path) + "\n")
	}

	args := []string{"-selection", "clipboard", "-t", target}
	switch {
	case s.AltText != "" && x.alt:
		args = append(args, "-alt-text", s.AltText)
	case s.AltText != "":
		// Stock xclip serves a single target, so text-bearing content is
		// published as its plain-text rendition.
		args[3] = targetString
		data = []byte(s.AltText)
	}
	args = append(args, "-i")

	if err := x.run.Input(data, xclipBin, args...); err != nil {
		return fmt.Errorf("xclip write %s: %w", target, err)
	}
	return nil
}

// firstFileURI returns the local path of the first file:// entry in a
// text/uri-list body.
func firstFileURI(list string) (string, bool) {
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme != "file" || u.Path == "" {
			return "", false
		}
		return u.Path, true
	}
	return "", false
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}
