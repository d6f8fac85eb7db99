package converter

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/sqlshift/pkg/core"
)

func TestSamplesExistForEveryDialect(t *testing.T) {
	for _, d := range core.Dialects {
		assert.NotEmpty(t, Sample(d), d)
	}
	assert.Contains(t, Sample(core.DialectSQLServer), "TOP 10")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1"), 0o644))

	rec := &recorder{}
	got, err := LoadFile(path, rec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
	assert.Equal(t, []string{`File "q.sql" loaded successfully`}, rec.titles())
}

func TestLoadFileRejectsBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644))

	rec := &recorder{}
	_, err := LoadFile(path, rec)
	require.Error(t, err)
	assert.Equal(t, []string{"Error reading file"}, rec.titles())
}

func TestSaveFileIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	path, err := SaveFile(dir, "SELECT 1;", rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DownloadName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", string(data))
	assert.Equal(t, []string{"Query downloaded as SQL file"}, rec.titles())
}

type fakeClipboard struct {
	got string
	err error
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.err != nil {
		return f.err
	}
	f.got = text
	return nil
}

func TestCopierFallsBack(t *testing.T) {
	primary := &fakeClipboard{err: errors.New("no xclip")}
	var buf bytes.Buffer
	c := &Copier{Primary: primary, Fallback: OSC52{Out: &buf}}

	rec := &recorder{}
	require.NoError(t, c.Copy("SELECT 1", rec))
	assert.True(t, strings.HasPrefix(buf.String(), "\x1b]52;"), "OSC 52 sequence written")
	assert.Equal(t, []string{"SQL query copied to clipboard"}, rec.titles())
}

func TestCopierBothFail(t *testing.T) {
	c := &Copier{Primary: &fakeClipboard{err: errors.New("a")}, Fallback: &fakeClipboard{err: errors.New("b")}}
	rec := &recorder{}
	assert.Error(t, c.Copy("x", rec))
	assert.Equal(t, []string{"Failed to copy to clipboard"}, rec.titles())
}

func TestHighlightKeepsText(t *testing.T) {
	out := Highlight("SELECT 1", true)
	assert.Contains(t, out, "SELECT")
}
