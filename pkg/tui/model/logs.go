package model

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/sqlshift/pkg/logs"
)

// fetchLogsCmd loads the batch. Transport failures already raise a notice in
// the API client, so errors only reach the status line.
func fetchLogsCmd(src LogSource, timeout time.Duration) tea.Cmd {
	return guard(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		records, err := src.ListLogs(ctx)
		return logsMsg{records: records, at: time.Now(), err: err}
	})
}

func (a App) fetchLogs() (tea.Model, tea.Cmd) {
	if a.deps.Logs == nil {
		return a, nil
	}
	a.logsLoading = true
	return a, tea.Batch(fetchLogsCmd(a.deps.Logs, a.deps.Timeout), a.spinner.Tick)
}

func logColumns(width int) []table.Column {
	fixed := 17 + 10 + 9 + 2*5
	rest := max(width-fixed, 20)
	title := rest * 3 / 5
	return []table.Column{
		{Title: "Created", Width: 17},
		{Title: "Type", Width: 10},
		{Title: "Severity", Width: 9},
		{Title: "Title", Width: title},
		{Title: "Endpoint", Width: rest - title},
	}
}

// syncLogsTable copies the current page of the view into the table and pager.
func (a *App) syncLogsTable() {
	items := a.logView.Items()
	rows := make([]table.Row, 0, len(items))
	for _, r := range items {
		rows = append(rows, table.Row{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			logs.TypeGlyph(r.Type) + " " + r.Type,
			r.Severity,
			r.Title,
			r.Endpoint,
		})
	}
	a.table.SetRows(rows)
	if len(rows) > 0 {
		a.table.SetCursor(a.logView.Cursor())
	}

	p := a.logView.Page()
	a.pager.TotalPages = p.TotalPages
	a.pager.Page = p.Number - 1
}

func (a App) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.inspect {
		switch msg.String() {
		case "esc", "enter", "backspace":
			a.inspect = false
		}
		return a, nil
	}

	switch msg.String() {
	case "j", "down":
		a.logView.Select(a.logView.Cursor() + 1)
	case "k", "up":
		a.logView.Select(a.logView.Cursor() - 1)
	case "right", "n":
		a.logView.Next()
	case "left", "p":
		a.logView.Prev()
	case "home", "g":
		a.logView.GoTo(1)
	case "end", "G":
		a.logView.GoTo(a.logView.Page().TotalPages)

	case "enter":
		if _, ok := a.logView.Selected(); ok {
			a.inspect = true
		}
		return a, nil

	case "/":
		a.mode = ModeSearch
		a.search.SetValue(a.logView.Filter().Search)
		a.search.Focus()
		return a, textinput.Blink

	case "v":
		sev, _ := logs.Facets(a.logView.Records())
		f := a.logView.Filter()
		f.Severity = logs.Cycle(f.Severity, sev)
		a.logView.SetFilter(f)
		a.statusMsg = "severity: " + orAll(f.Severity)

	case "t":
		_, types := logs.Facets(a.logView.Records())
		f := a.logView.Filter()
		f.Type = logs.Cycle(f.Type, types)
		a.logView.SetFilter(f)
		a.statusMsg = "type: " + orAll(f.Type)

	case "D":
		a.prompt = NewDateRangePrompt(a.logView.Filter())
		a.mode = ModePrompt
		return a, textinput.Blink

	case "c":
		a.logView.SetFilter(logs.Filter{})
		a.search.SetValue("")
		a.statusMsg = "filters cleared"

	case "r":
		if a.logsLoading {
			return a, nil
		}
		m, cmd := a.fetchLogs()
		return m, cmd

	default:
		return a, nil
	}
	a.syncLogsTable()
	return a, nil
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.search.SetValue("")
		a.search.Blur()
	case "enter":
		a.mode = ModeNormal
		a.search.Blur()
	default:
		var cmd tea.Cmd
		a.search, cmd = a.search.Update(msg)
		f := a.logView.Filter()
		f.Search = a.search.Value()
		a.logView.SetFilter(f)
		a.syncLogsTable()
		return a, cmd
	}
	f := a.logView.Filter()
	f.Search = a.search.Value()
	a.logView.SetFilter(f)
	a.syncLogsTable()
	return a, nil
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
