package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sqlshift.log")
	logger, closer, err := New(Options{Level: "debug", Sink: "file", File: path})
	require.NoError(t, err)

	logger.Debug("token restored", "state", "authenticated")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token restored")
	assert.Contains(t, string(data), "state=authenticated")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestJournalHandlerFields(t *testing.T) {
	var gotMsg string
	var gotPri journal.Priority
	var gotVars map[string]string

	h := NewJournalHandler(slog.LevelInfo)
	h.send = func(msg string, p journal.Priority, vars map[string]string) error {
		gotMsg, gotPri, gotVars = msg, p, vars
		return nil
	}

	logger := slog.New(h).With("component", "session").WithGroup("http")
	logger.Warn("revoke failed", "status-code", 502)

	assert.Equal(t, "revoke failed", gotMsg)
	assert.Equal(t, journal.PriWarning, gotPri)
	assert.Equal(t, "sqlshift", gotVars["SYSLOG_IDENTIFIER"])
	assert.Equal(t, "session", gotVars["COMPONENT"])
	assert.Equal(t, "502", gotVars["HTTP_STATUS_CODE"])
}

func TestJournalHandlerLevel(t *testing.T) {
	h := NewJournalHandler(slog.LevelWarn)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	r := slog.NewRecord(time.Now(), slog.LevelDebug, "x", 0)
	assert.Equal(t, journal.PriDebug, priority(r.Level))
}
