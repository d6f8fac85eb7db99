// Package logs filters, sorts and pages the log records fetched from the
// conversion service.
package logs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modoterra/sqlshift/pkg/core"
)

// Filter narrows a batch of records. Zero fields are inactive.
type Filter struct {
	Search   string
	Severity string
	Type     string
	From     time.Time
	To       time.Time
}

// Active reports whether any field is set.
func (f Filter) Active() bool {
	return strings.TrimSpace(f.Search) != "" || f.Severity != "" || f.Type != "" ||
		!f.From.IsZero() || !f.To.IsZero()
}

// Match reports whether r satisfies every active field. Date bounds are inclusive.
func (f Filter) Match(r core.LogRecord) bool {
	if f.Severity != "" && !strings.EqualFold(r.Severity, f.Severity) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(r.Type, f.Type) {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		for _, field := range []string{r.Title, r.Message, r.Endpoint, r.Location, r.Owner, r.ID} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
	return true
}

// Apply returns the records matching f, newest first. The input is not modified.
func Apply(records []core.LogRecord, f Filter) []core.LogRecord {
	out := make([]core.LogRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Facets lists the distinct severities and types in records, sorted.
func Facets(records []core.LogRecord) (severities, types []string) {
	seenSev := map[string]bool{}
	seenType := map[string]bool{}
	for _, r := range records {
		if s := strings.ToLower(r.Severity); s != "" && !seenSev[s] {
			seenSev[s] = true
			severities = append(severities, s)
		}
		if t := strings.ToLower(r.Type); t != "" && !seenType[t] {
			seenType[t] = true
			types = append(types, t)
		}
	}
	sort.Slice(severities, func(i, j int) bool {
		ri, rj := SeverityRank(severities[i]), SeverityRank(severities[j])
		if ri != rj {
			return ri > rj
		}
		return severities[i] < severities[j]
	})
	sort.Strings(types)
	return severities, types
}

// Cycle returns the value after current in options, wrapping through "" (all).
func Cycle(current string, options []string) string {
	if current == "" {
		if len(options) == 0 {
			return ""
		}
		return options[0]
	}
	for i, o := range options {
		if o == current {
			if i+1 < len(options) {
				return options[i+1]
			}
			return ""
		}
	}
	return ""
}

// Date layouts accepted by ParseRange.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04", time.DateOnly}

// ParseRange reads an inclusive date range typed by the user. A bare date as
// the upper bound covers that whole day. Either side may be empty.
func ParseRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	start, _, err := parseDate(from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
	}
	end, dayOnly, err := parseDate(to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
	}
	if dayOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("range ends before it starts")
	}
	return start, end, nil
}

func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, layout == time.DateOnly, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%q is not a date (use YYYY-MM-DD)", s)
}
