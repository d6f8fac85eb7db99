package converter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modoterra/sqlshift/pkg/core"
)

func TestPanelSuccessReplacesOutputAndClearsError(t *testing.T) {
	p := NewPanel(core.DialectSQLServer)
	p.SetQuery("SELECT TOP 1 * FROM t")

	seq := p.Begin()
	p.ApplyResult(seq, core.ConversionResult{}, errors.New("network"))
	assert.Equal(t, StatusError, p.Status)
	assert.Error(t, p.Err)

	seq = p.Begin()
	assert.Equal(t, StatusConverting, p.Status)
	p.ApplyResult(seq, core.ConversionResult{Success: true, ConvertedQuery: "SELECT * FROM t LIMIT 1"}, nil)

	assert.Equal(t, StatusSuccess, p.Status)
	assert.Equal(t, "SELECT * FROM t LIMIT 1", p.Output)
	assert.NoError(t, p.Err)
	assert.True(t, p.HasOutput())
}

func TestPanelFailureKeepsQuery(t *testing.T) {
	p := NewPanel(core.DialectSQLServer)
	p.SetQuery("MERGE INTO t USING s ON 1=1")

	seq := p.Begin()
	p.ApplyResult(seq, core.ConversionResult{Success: false, Warnings: []string{"MERGE unsupported"}}, nil)
	assert.Equal(t, "MERGE INTO t USING s ON 1=1", p.Query)
	assert.Equal(t, StatusError, p.Status)
	assert.Equal(t, []string{"MERGE unsupported"}, p.Warnings)

	seq = p.Begin()
	p.ApplyResult(seq, core.ConversionResult{}, errors.New("unreachable"))
	assert.Equal(t, "MERGE INTO t USING s ON 1=1", p.Query)
}

func TestPanelIgnoresStaleResults(t *testing.T) {
	p := NewPanel(core.DialectSQLServer)
	first := p.Begin()
	second := p.Begin()

	assert.False(t, p.ApplyResult(first, core.ConversionResult{Success: true, ConvertedQuery: "old"}, nil))
	assert.True(t, p.ApplyResult(second, core.ConversionResult{Success: true, ConvertedQuery: "new"}, nil))
	assert.Equal(t, "new", p.Output)
}

func TestPanelReset(t *testing.T) {
	p := NewPanel(core.DialectMySQL)
	p.SetQuery("SELECT 1")
	seq := p.Begin()
	p.ApplyResult(seq, core.ConversionResult{Success: true, ConvertedQuery: "SELECT 1"}, nil)

	p.Reset()
	assert.Empty(t, p.Query)
	assert.Empty(t, p.Output)
	assert.Equal(t, StatusIdle, p.Status)
	assert.Equal(t, core.DialectMySQL, p.Dialect)
	assert.False(t, p.ApplyResult(seq, core.ConversionResult{Success: true}, nil), "reset keeps the sequence moving")
}

func TestPanelSetQueryClearsEmptyError(t *testing.T) {
	p := NewPanel(core.DialectSQLServer)
	p.Reject(ErrEmptyQuery)
	p.SetQuery("SELECT 1")
	assert.NoError(t, p.Err)
}

func TestPanelSetOutput(t *testing.T) {
	p := NewPanel(core.DialectSQLServer)
	assert.False(t, p.SetOutput(p.Seq, "x"), "nothing on display")

	seq := p.Begin()
	p.ApplyResult(seq, core.ConversionResult{Success: true, ConvertedQuery: "select 1"}, nil)
	assert.True(t, p.SetOutput(seq, "SELECT 1"))
	assert.Equal(t, "SELECT 1", p.Output)

	assert.False(t, p.SetOutput(seq-1, "stale"))
	p.Reset()
	assert.False(t, p.SetOutput(seq, "late"))
	assert.Empty(t, p.Output)
}
