package core

import (
	"testing"
	"time"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input     string
		want      Dialect
		wantError bool
	}{
		{"sqlserver", DialectSQLServer, false},
		{"MSSQL", DialectSQLServer, false},
		{" oracle ", DialectOracle, false},
		{"mysql", DialectMySQL, false},
		{"postgres", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialectLabel(t *testing.T) {
	if DialectSQLServer.Label() != "SQL Server" {
		t.Errorf("label: got %q", DialectSQLServer.Label())
	}
	if Dialect("db2").Label() != "db2" {
		t.Errorf("unknown dialect label should fall back to its name")
	}
}

func TestSessionRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{Expiry: now.Add(5 * time.Minute)}
	if got := s.Remaining(now); got != 5*time.Minute {
		t.Errorf("remaining: got %v", got)
	}
	if got := (Session{}).Remaining(now); got != 0 {
		t.Errorf("remaining without expiry: got %v", got)
	}
}
