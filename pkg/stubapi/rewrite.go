package stubapi

import (
	"regexp"
	"strings"

	"github.com/modoterra/sqlshift/pkg/core"
)

// A rewrite is one literal dialect-to-PostgreSQL substitution.
type rewrite struct {
	re      *regexp.Regexp
	repl    string
	warning string
}

var rewrites = map[core.Dialect][]rewrite{
	core.DialectSQLServer: {
		{regexp.MustCompile(`(?i)\bGETDATE\(\)`), "NOW()", ""},
		{regexp.MustCompile(`(?i)\bISNULL\(`), "COALESCE(", ""},
		{regexp.MustCompile(`(?i)\bLEN\(`), "LENGTH(", ""},
		{regexp.MustCompile(`\[([^\]]+)\]`), `"$1"`, ""},
		{regexp.MustCompile(`(?i)\bNVARCHAR\b`), "VARCHAR", ""},
	},
	core.DialectOracle: {
		{regexp.MustCompile(`(?i)\bSYSDATE\b`), "CURRENT_TIMESTAMP", ""},
		{regexp.MustCompile(`(?i)\bNVL\(`), "COALESCE(", ""},
		{regexp.MustCompile(`(?i)\bVARCHAR2\b`), "VARCHAR", ""},
		{regexp.MustCompile(`(?i)\s+FROM\s+dual\b`), "", "FROM dual removed"},
	},
	core.DialectMySQL: {
		{regexp.MustCompile("`([^`]+)`"), `"$1"`, ""},
		{regexp.MustCompile(`(?i)\bIFNULL\(`), "COALESCE(", ""},
		{regexp.MustCompile(`(?i)\bDATE_SUB\(NOW\(\),\s*INTERVAL\s+(\d+)\s+DAY\)`), "NOW() - INTERVAL '$1 days'", "DATE_SUB rewritten as interval arithmetic"},
	},
}

var topN = regexp.MustCompile(`(?i)\bSELECT\s+TOP\s+(\d+)\s+`)

// unsupported constructs produce a failed conversion.
var unsupported = []struct {
	re  *regexp.Regexp
	msg string
}{
	{regexp.MustCompile(`(?i)\bCONNECT\s+BY\b`), "CONNECT BY hierarchies are not supported; rewrite with WITH RECURSIVE"},
	{regexp.MustCompile(`(?i)\bPIVOT\b`), "PIVOT is not supported; use crosstab() or conditional aggregation"},
}

// convert applies the literal rewrites of every dialect, since the wire
// request carries only the query. It is a development stand-in, not a SQL
// translator.
func convert(query string) (string, []string, bool) {
	for _, u := range unsupported {
		if u.re.MatchString(query) {
			return "", []string{u.msg}, false
		}
	}

	var warnings []string
	out := query
	if m := topN.FindStringSubmatch(out); m != nil {
		out = topN.ReplaceAllString(out, "SELECT ")
		out = strings.TrimRight(out, "; \n\t") + "\nLIMIT " + m[1]
		warnings = append(warnings, "TOP rewritten as LIMIT; check ORDER BY placement")
	}
	for _, d := range core.Dialects {
		for _, rw := range rewrites[d] {
			if rw.warning != "" && rw.re.MatchString(out) {
				warnings = append(warnings, rw.warning)
			}
			out = rw.re.ReplaceAllString(out, rw.repl)
		}
	}
	return out, warnings, true
}

var (
	spaceRun = regexp.MustCompile(`\s+`)
	clauses  = regexp.MustCompile(`(?i)\s+\b(FROM|WHERE|GROUP BY|ORDER BY|HAVING|LIMIT|JOIN|LEFT JOIN|RIGHT JOIN|INNER JOIN|UNION)\b`)
	comments = regexp.MustCompile(`--[^\n]*`)
)

// format puts each major clause on its own line.
func format(query string) string {
	q := minify(query)
	return strings.TrimSpace(clauses.ReplaceAllStringFunc(q, func(m string) string {
		return "\n" + strings.ToUpper(strings.TrimSpace(m))
	}))
}

// minify strips line comments and collapses whitespace.
func minify(query string) string {
	q := comments.ReplaceAllString(query, "")
	return strings.TrimSpace(spaceRun.ReplaceAllString(q, " "))
}
