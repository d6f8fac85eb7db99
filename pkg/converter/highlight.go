package converter

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// Highlight renders PostgreSQL source with terminal colours. It falls back to
// the plain text when highlighting fails.
func Highlight(sql string, dark bool) string {
	style := "github"
	if dark {
		style = "monokai"
	}
	var b strings.Builder
	if err := quick.Highlight(&b, sql, "postgresql", "terminal256", style); err != nil {
		return sql
	}
	return b.String()
}
