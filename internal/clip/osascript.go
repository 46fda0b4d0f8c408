package clip

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"go.klb.dev/bounceboard/internal/snapshot"
)

const (
	osascriptBin = "osascript"

	utiPNG     = "public.png"
	utiGIF     = "com.compuserve.gif"
	utiRTF     = "public.rtf"
	utiHTML    = "public.html"
	utiText    = "public.utf8-plain-text"
	utiFileURL = "public.file-url"
)

var utiToMIME = map[string]string{
	utiPNG:  snapshot.MIMEPNG,
	utiGIF:  snapshot.MIMEGIF,
	utiRTF:  snapshot.MIMERTF,
	utiHTML: snapshot.MIMEHTML,
	utiText: snapshot.MIMEText,
}

var mimeToUTI = func() map[string]string {
	m := make(map[string]string, len(utiToMIME))
	for uti, mime := range utiToMIME {
		m[mime] = uti
	}
	return m
}()

const jxaTypes = `ObjC.import("AppKit");
const items = $.NSPasteboard.generalPasteboard.pasteboardItems.js;
items.length ? JSON.stringify(ObjC.deepUnwrap(items[0].types)) : "[]"`

const jxaReadHex = `ObjC.import("AppKit");
const data = $.NSPasteboard.generalPasteboard.pasteboardItems.js[0].dataForType(%s);
let hex = "";
for (let i = 0; i < data.length; i++) {
    hex += ("0" + data.bytes[i].toString(16)).slice(-2);
}
hex`

const jxaFilePath = `ObjC.import("AppKit");
const item = $.NSPasteboard.generalPasteboard.pasteboardItems.js[0];
const str = $.NSString.alloc.initWithDataEncoding(item.dataForType("public.file-url"), $.NSUTF8StringEncoding);
ObjC.unwrap($.NSURL.URLWithString(str).path)`

const jxaWrite = `ObjC.import("AppKit");
const pb = $.NSPasteboard.generalPasteboard;
pb.clearContents;
pb.setDataForType($.NSData.dataWithContentsOfFile(%s), %s);`

const jxaWriteText = `
pb.setDataForType($.NSData.dataWithContentsOfFile(%s), "public.utf8-plain-text");`

// Osascript is the macOS backend. It drives NSPasteboard through JXA
// scripts run by osascript; binary data crosses the process boundary as hex.
type Osascript struct {
	run     Runner
	scratch *Scratch
}

// NewOsascript returns the macOS backend.
func NewOsascript(run Runner, scratch *Scratch) *Osascript {
	return &Osascript{run: run, scratch: scratch}
}

func (o *Osascript) Name() string { return "macOS NSPasteboard" }

func (o *Osascript) jxa(script string) ([]byte, error) {
	return o.run.Output(osascriptBin, "-l", "JavaScript", "-e", script)
}

func (o *Osascript) types() ([]string, error) {
	out, err := o.jxa(jxaTypes)
	if err != nil {
		return nil, fmt.Errorf("pasteboard types: %w", err)
	}
	var utis []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(out))), &utis); err != nil {
		return nil, fmt.Errorf("pasteboard types: %w", err)
	}
	return utis, nil
}

func (o *Osascript) read(uti string) ([]byte, error) {
	out, err := o.jxa(fmt.Sprintf(jxaReadHex, strconv.Quote(uti)))
	if err != nil {
		return nil, fmt.Errorf("pasteboard read %s: %w", uti, err)
	}
	data, err := hex.DecodeString(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("pasteboard read %s: %w", uti, err)
	}
	return data, nil
}

func (o *Osascript) Get() (*snapshot.Snapshot, error) {
	utis, err := o.types()
	if err != nil {
		return nil, err
	}

	if slices.Contains(utis, utiFileURL) {
		out, err := o.jxa(jxaFilePath)
		if err != nil {
			return nil, fmt.Errorf("pasteboard file url: %w", err)
		}
		return readFile(strings.TrimSpace(string(out)))
	}

	for _, mime := range snapshot.PreferenceOrder {
		uti := mimeToUTI[mime]
		if !slices.Contains(utis, uti) {
			continue
		}
		data, err := o.read(uti)
		if err != nil {
			return nil, err
		}
		s := snapshot.New(mime, data)
		if mime != snapshot.MIMEText && slices.Contains(utis, utiText) {
			if text, err := o.read(utiText); err == nil && len(text) > 0 {
				s = s.WithAltText(string(text))
			}
		}
		return s, nil
	}
	if len(utis) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, strings.Join(utis, ", "))
	}
	return nil, nil
}

func (o *Osascript) Set(s *snapshot.Snapshot, scratchDir string) error {
	if s.MIMEType == snapshot.MIMEFile {
		path, err := o.scratch.Materialize(scratchDir, s.FileName, s.Payload)
		if err != nil {
			return err
		}
		script := fmt.Sprintf("set the clipboard to POSIX file %s", strconv.Quote(path))
		if _, err := o.run.Output(osascriptBin, "-e", script); err != nil {
			return fmt.Errorf("pasteboard set file: %w", err)
		}
		return nil
	}

	uti, ok := mimeToUTI[s.MIMEType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupported, s.MIMEType)
	}

	// NSData reads the payload from disk; these files are transient and
	// removed before returning.
	dataPath, err := writeTemp(scratchDir, s.Payload)
	if err != nil {
		return err
	}
	defer os.Remove(dataPath)

	script := fmt.Sprintf(jxaWrite, strconv.Quote(dataPath), strconv.Quote(uti))
	if s.AltText != "" {
		textPath, err := writeTemp(scratchDir, []byte(s.AltText))
		if err != nil {
			return err
		}
		defer os.Remove(textPath)
		script += fmt.Sprintf(jxaWriteText, strconv.Quote(textPath))
	}

	if _, err := o.jxa(script); err != nil {
		return fmt.Errorf("pasteboard set %s: %w", uti, err)
	}
	return nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "bb-set-")
	if err != nil {
		return "", fmt.Errorf("pasteboard temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("pasteboard temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("pasteboard temp file: %w", err)
	}
	return f.Name(), nil
}
