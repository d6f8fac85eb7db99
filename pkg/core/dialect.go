package core

import (
	"fmt"
	"strings"
)

// Dialect identifies the source SQL vendor syntax being converted to PostgreSQL.
type Dialect string

const (
	DialectSQLServer Dialect = "sqlserver"
	DialectOracle    Dialect = "oracle"
	DialectMySQL     Dialect = "mysql"
)

// Dialects lists every known dialect in display order.
var Dialects = []Dialect{DialectSQLServer, DialectOracle, DialectMySQL}

// Label returns the human-readable vendor name.
func (d Dialect) Label() string {
	switch d {
	case DialectSQLServer:
		return "SQL Server"
	case DialectOracle:
		return "Oracle"
	case DialectMySQL:
		return "MySQL"
	default:
		return string(d)
	}
}

// ParseDialect accepts the canonical name or a few common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlserver", "mssql", "tsql":
		return DialectSQLServer, nil
	case "oracle", "plsql":
		return DialectOracle, nil
	case "mysql":
		return DialectMySQL, nil
	}
	return "", fmt.Errorf("unknown dialect %q: expected sqlserver, oracle or mysql", s)
}

// ConversionResult is the decoded response of a conversion request.
type ConversionResult struct {
	Success        bool     `json:"success"`
	ConvertedQuery string   `json:"converted_query"`
	Warnings       []string `json:"warnings"`
}

// FormatResult is the decoded response of a format or minify request.
type FormatResult struct {
	Success        bool     `json:"success"`
	FormattedQuery string   `json:"formatted_query"`
	Warnings       []string `json:"warnings"`
}
