// Package logging configures the global slog logger for bounceboard and
// formats clipboard events for it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"

	"go.klb.dev/bounceboard/internal/snapshot"
)

const previewLen = 120

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat converts a string to a Format, returning FormatAuto for unknown values.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "tint", "human":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParseLevel converts a string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Setup configures the global slog logger. Call once after flag/viper parsing.
func Setup(format Format, level slog.Level) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, format, level)))
}

// NewHandler returns the handler Setup would install, writing to w.
func NewHandler(w io.Writer, format Format, level slog.Level) slog.Handler {
	useTint := format == FormatText || (format == FormatAuto && IsTTY(w))

	var h slog.Handler
	if useTint {
		h = tinter.NewHandler(w, &tinter.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}
	return h
}

// Snapshot logs a clipboard event at INFO on l (slog.Default when nil) with
// the MIME type and a human-readable size. At DEBUG it adds the hash and a
// text preview of up to 120 characters.
func Snapshot(l *slog.Logger, msg string, s *snapshot.Snapshot, attrs ...any) {
	if l == nil {
		l = slog.Default()
	}
	args := append([]any{
		"mime", s.MIMEType,
		"size", humanize.IBytes(s.Size),
	}, attrs...)
	if s.FileName != "" {
		args = append(args, "file", s.FileName)
	}
	l.Info(msg, args...)

	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	dbg := []any{"hash", s.Hash.Short()}
	if text, ok := s.Text(); ok {
		dbg = append(dbg, "preview", Preview(text))
	}
	l.Debug(msg+" detail", dbg...)
}

// Preview truncates text to 120 runes for log lines.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "…"
}
