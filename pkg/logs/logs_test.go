package logs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/sqlshift/pkg/core"
)

var t0 = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func sampleRecords() []core.LogRecord {
	return []core.LogRecord{
		{ID: "a1", Type: "error", Severity: "high", Title: "Conversion failed", Message: "MERGE unsupported", Endpoint: "/sql-migration/convert", CreatedAt: t0},
		{ID: "b2", Type: "info", Severity: "low", Title: "Token generated", Endpoint: "/auth/generate", Owner: "alice", CreatedAt: t0.Add(time.Hour)},
		{ID: "c3", Type: "warning", Severity: "medium", Title: "Slow query", Location: "eu-west", CreatedAt: t0.Add(2 * time.Hour)},
		{ID: "d4", Type: "error", Severity: "critical", Title: "Backend down", Message: "connection refused", CreatedAt: t0.Add(3 * time.Hour)},
	}
}

func ids(rs []core.LogRecord) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestApplySortsNewestFirst(t *testing.T) {
	got := Apply(sampleRecords(), Filter{})
	assert.Equal(t, []string{"d4", "c3", "b2", "a1"}, ids(got))
}

func TestFilterIsConjunctive(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"type only", Filter{Type: "error"}, []string{"d4", "a1"}},
		{"type and severity", Filter{Type: "error", Severity: "HIGH"}, []string{"a1"}},
		{"search title", Filter{Search: "token"}, []string{"b2"}},
		{"search message", Filter{Search: "REFUSED"}, []string{"d4"}},
		{"search endpoint", Filter{Search: "sql-migration"}, []string{"a1"}},
		{"search owner", Filter{Search: "alice"}, []string{"b2"}},
		{"search location", Filter{Search: "eu-west"}, []string{"c3"}},
		{"search and type disagree", Filter{Search: "token", Type: "error"}, nil},
		{"from inclusive", Filter{From: t0.Add(2 * time.Hour)}, []string{"d4", "c3"}},
		{"to inclusive", Filter{To: t0.Add(time.Hour)}, []string{"b2", "a1"}},
		{"range", Filter{From: t0.Add(time.Hour), To: t0.Add(2 * time.Hour), Severity: "medium"}, []string{"c3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sampleRecords(), tt.filter)))
		})
	}
}

func TestFilterActive(t *testing.T) {
	assert.False(t, Filter{}.Active())
	assert.False(t, Filter{Search: "  "}.Active())
	assert.True(t, Filter{Type: "info"}.Active())
	assert.True(t, Filter{To: t0}.Active())
}

func TestPaginateClamps(t *testing.T) {
	tests := []struct {
		n, page, size int
		want          Page
	}{
		{0, 1, 10, Page{Number: 1, TotalPages: 1}},
		{0, 5, 10, Page{Number: 1, TotalPages: 1}},
		{25, 0, 10, Page{Number: 1, TotalPages: 3, Total: 25, Start: 0, End: 10}},
		{25, 3, 10, Page{Number: 3, TotalPages: 3, Total: 25, Start: 20, End: 25}},
		{25, 9, 10, Page{Number: 3, TotalPages: 3, Total: 25, Start: 20, End: 25}},
		{20, 2, 10, Page{Number: 2, TotalPages: 2, Total: 20, Start: 10, End: 20}},
		{5, -3, 10, Page{Number: 1, TotalPages: 1, Total: 5, Start: 0, End: 5}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d page=%d", tt.n, tt.page), func(t *testing.T) {
			got := Paginate(tt.n, tt.page, tt.size)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Number, 1)
			assert.LessOrEqual(t, got.Number, got.TotalPages)
		})
	}
}

func TestPageNeighbours(t *testing.T) {
	first := Paginate(25, 1, 10)
	assert.False(t, first.HasPrev())
	assert.True(t, first.HasNext())

	middle := Paginate(25, 2, 10)
	assert.True(t, middle.HasPrev())
	assert.True(t, middle.HasNext())

	last := Paginate(25, 3, 10)
	assert.True(t, last.HasPrev())
	assert.False(t, last.HasNext())

	empty := Paginate(0, 1, 10)
	assert.False(t, empty.HasPrev())
	assert.False(t, empty.HasNext())
}

func TestFacets(t *testing.T) {
	sev, types := Facets(sampleRecords())
	assert.Equal(t, []string{"critical", "high", "medium", "low"}, sev)
	assert.Equal(t, []string{"error", "info", "warning"}, types)
}

func TestCycle(t *testing.T) {
	opts := []string{"error", "info"}
	assert.Equal(t, "error", Cycle("", opts))
	assert.Equal(t, "info", Cycle("error", opts))
	assert.Equal(t, "", Cycle("info", opts))
	assert.Equal(t, "", Cycle("gone", opts))
	assert.Equal(t, "", Cycle("", nil))
}

func TestSeverityClass(t *testing.T) {
	assert.Equal(t, ClassHigh, SeverityClass("Critical"))
	assert.Equal(t, ClassHigh, SeverityClass("high"))
	assert.Equal(t, ClassMedium, SeverityClass("MEDIUM"))
	assert.Equal(t, ClassLow, SeverityClass("low"))
	assert.Equal(t, ClassNeutral, SeverityClass("debug"))
	assert.Equal(t, "•", TypeGlyph("trace"))
	assert.Equal(t, "✗", TypeGlyph("ERROR"))
}

func TestViewPagingAndSelection(t *testing.T) {
	var records []core.LogRecord
	for i := range 23 {
		records = append(records, core.LogRecord{ID: fmt.Sprintf("r%02d", i), Type: "info", CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	v := NewView(10)
	v.Refresh(records, t0)

	assert.Equal(t, 3, v.Page().TotalPages)
	require.Len(t, v.Items(), 10)
	assert.Equal(t, "r22", v.Items()[0].ID)

	v.Prev()
	assert.Equal(t, 1, v.Page().Number)

	v.GoTo(99)
	assert.Equal(t, 3, v.Page().Number)
	assert.Len(t, v.Items(), 3)

	v.Select(10)
	rec, ok := v.Selected()
	require.True(t, ok)
	assert.Equal(t, "r00", rec.ID)

	v.SetFilter(Filter{Search: "r1"})
	assert.Equal(t, 1, v.Page().Number, "filter change returns to page one")
	assert.Equal(t, 10, v.Page().Total)
}

func TestViewRefreshClampsPage(t *testing.T) {
	v := NewView(2)
	v.Refresh(sampleRecords(), t0)
	v.Next()
	assert.Equal(t, 2, v.Page().Number)

	v.Refresh(sampleRecords()[:1], t0.Add(time.Minute))
	assert.Equal(t, 1, v.Page().Number)
	assert.Equal(t, t0.Add(time.Minute), v.FetchedAt())

	v.Refresh(nil, t0)
	_, ok := v.Selected()
	assert.False(t, ok)
	assert.Empty(t, v.Items())
}

func TestParseRange(t *testing.T) {
	from, to, err := ParseRange("2026-10-01", "2026-10-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(-9*time.Hour), from)
	assert.Equal(t, time.Date(2026, 10, 1, 23, 59, 59, 999999999, time.UTC), to)
	assert.True(t, Filter{From: from, To: to}.Match(core.LogRecord{CreatedAt: t0}))

	from, to, err = ParseRange("", "2026-10-01 10:30", time.UTC)
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.Equal(t, time.Date(2026, 10, 1, 10, 30, 0, 0, time.UTC), to)

	_, _, err = ParseRange("yesterday", "", time.UTC)
	assert.Error(t, err)

	_, _, err = ParseRange("2026-10-02", "2026-10-01", time.UTC)
	assert.Error(t, err)
}
