// Package logging builds the slog logger for sqlshift. The TUI owns the
// terminal, so records go to a file or to journald unless stderr is requested.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// Options selects where and at which level records are written.
type Options struct {
	Level string // debug, info, warn, error
	Sink  string // file, journal, stderr
	File  string
}

// New returns a logger plus a closer for any file it opened.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: level}

	switch opts.Sink {
	case "stderr":
		return slog.New(slog.NewTextHandler(os.Stderr, hopts)), nopCloser{}, nil
	case "journal":
		if journal.Enabled() {
			return slog.New(NewJournalHandler(level)), nopCloser{}, nil
		}
		// journald not reachable; fall through to the file sink
	}

	if opts.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, hopts)), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, hopts)), f, nil
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// JournalHandler sends records to systemd-journald with attributes as fields.
type JournalHandler struct {
	level  slog.Leveler
	fields map[string]string
	groups []string
	send   func(msg string, p journal.Priority, vars map[string]string) error
}

// NewJournalHandler creates a handler that writes through journal.Send.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, send: journal.Send}
}

func (h *JournalHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	vars := map[string]string{"SYSLOG_IDENTIFIER": "sqlshift"}
	for k, v := range h.fields {
		vars[k] = v
	}
	prefix := strings.Join(h.groups, "_")
	r.Attrs(func(a slog.Attr) bool {
		addField(vars, prefix, a)
		return true
	})
	return h.send(r.Message, priority(r.Level), vars)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = make(map[string]string, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		clone.fields[k] = v
	}
	prefix := strings.Join(h.groups, "_")
	for _, a := range attrs {
		addField(clone.fields, prefix, a)
	}
	return &clone
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// Journal field names must be uppercase ASCII letters, digits and underscores.
func addField(vars map[string]string, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "_" + key
	}
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	key = strings.TrimLeft(key, "_")
	if key == "" {
		return
	}
	vars[key] = a.Value.Resolve().String()
}

func priority(l slog.Level) journal.Priority {
	switch {
	case l >= slog.LevelError:
		return journal.PriErr
	case l >= slog.LevelWarn:
		return journal.PriWarning
	case l >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}
