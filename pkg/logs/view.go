package logs

import (
	"time"

	"github.com/modoterra/sqlshift/pkg/core"
)

// View is the logs panel state: the fetched batch plus filter, page and selection.
type View struct {
	records  []core.LogRecord
	filtered []core.LogRecord

	filter    Filter
	page      int
	pageSize  int
	selected  int
	fetchedAt time.Time
}

// NewView returns an empty view showing pageSize records per page.
func NewView(pageSize int) *View {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &View{page: 1, pageSize: pageSize}
}

// Refresh replaces the batch. Filter and page are kept; the page is clamped.
func (v *View) Refresh(records []core.LogRecord, at time.Time) {
	v.records = records
	v.fetchedAt = at
	v.recompute()
}

// Records returns the unfiltered batch.
func (v *View) Records() []core.LogRecord { return v.records }

// FetchedAt is when the batch was last replaced.
func (v *View) FetchedAt() time.Time { return v.fetchedAt }

// Filter returns the active filter.
func (v *View) Filter() Filter { return v.filter }

// SetFilter replaces the filter and returns to the first page.
func (v *View) SetFilter(f Filter) {
	v.filter = f
	v.page = 1
	v.recompute()
}

// Page describes the current page.
func (v *View) Page() Page {
	return Paginate(len(v.filtered), v.page, v.pageSize)
}

// Items returns the records on the current page.
func (v *View) Items() []core.LogRecord {
	p := v.Page()
	return v.filtered[p.Start:p.End]
}

// GoTo moves to page n, clamped into range.
func (v *View) GoTo(n int) {
	v.page = Paginate(len(v.filtered), n, v.pageSize).Number
	v.selected = 0
}

// Next moves forward one page if possible.
func (v *View) Next() { v.GoTo(v.page + 1) }

// Prev moves back one page if possible.
func (v *View) Prev() { v.GoTo(v.page - 1) }

// Select sets the cursor within the current page.
func (v *View) Select(i int) {
	items := v.Items()
	switch {
	case len(items) == 0:
		v.selected = 0
	case i < 0:
		v.selected = 0
	case i >= len(items):
		v.selected = len(items) - 1
	default:
		v.selected = i
	}
}

// Cursor is the selected index within the current page.
func (v *View) Cursor() int { return v.selected }

// Selected returns the record under the cursor.
func (v *View) Selected() (core.LogRecord, bool) {
	items := v.Items()
	if v.selected < 0 || v.selected >= len(items) {
		return core.LogRecord{}, false
	}
	return items[v.selected], true
}

func (v *View) recompute() {
	v.filtered = Apply(v.records, v.filter)
	v.page = Paginate(len(v.filtered), v.page, v.pageSize).Number
	v.Select(v.selected)
}
