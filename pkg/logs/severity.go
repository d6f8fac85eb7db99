package logs

import "strings"

// Class groups severities for colouring.
type Class int

const (
	ClassNeutral Class = iota
	ClassLow
	ClassMedium
	ClassHigh
)

// SeverityClass maps a severity label onto its colour class.
func SeverityClass(severity string) Class {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return ClassHigh
	case "medium":
		return ClassMedium
	case "low":
		return ClassLow
	default:
		return ClassNeutral
	}
}

// SeverityRank orders severities; higher is worse.
func SeverityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// TypeGlyph returns the marker shown beside a record type.
func TypeGlyph(typ string) string {
	switch strings.ToLower(typ) {
	case "error":
		return "✗"
	case "warning":
		return "!"
	case "info":
		return "i"
	case "success":
		return "✓"
	default:
		return "•"
	}
}
