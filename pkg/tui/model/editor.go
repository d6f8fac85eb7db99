package model

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/sqlshift/pkg/logs"
)

// PromptKind says what a submitted prompt does.
type PromptKind int

const (
	PromptUpload PromptKind = iota
	PromptSave
	PromptDateRange
)

// PromptField is a named text input in the prompt form.
type PromptField struct {
	Label string
	Input textinput.Model
}

// PromptModel is the small inline form used for file paths and date ranges.
type PromptModel struct {
	kind      PromptKind
	title     string
	fields    []PromptField
	activeIdx int
	err       string
}

// NewUploadPrompt asks for a SQL file to load into the editor.
func NewUploadPrompt() *PromptModel {
	return newPrompt(PromptUpload, "Upload SQL file", newField("path", "", "./query.sql"))
}

// NewSavePrompt asks where to write the converted query.
func NewSavePrompt(dest string) *PromptModel {
	return newPrompt(PromptSave, "Download converted query", newField("path", dest, "directory or file"))
}

// NewDateRangePrompt edits the logs date filter, pre-filled from f.
func NewDateRangePrompt(f logs.Filter) *PromptModel {
	return newPrompt(PromptDateRange, "Filter by date",
		newField("from", formatBound(f.From), "YYYY-MM-DD"),
		newField("to", formatBound(f.To), "YYYY-MM-DD"),
	)
}

func newPrompt(kind PromptKind, title string, fields ...PromptField) *PromptModel {
	fields[0].Input.Focus()
	return &PromptModel{kind: kind, title: title, fields: fields}
}

func newField(label, value, placeholder string) PromptField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.SetValue(value)
	ti.CharLimit = 256
	return PromptField{Label: label, Input: ti}
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	h, m, _ := t.Clock()
	if (h == 0 && m == 0) || (h == 23 && m == 59) {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02 15:04")
}

// Value returns the text of the named field.
func (e *PromptModel) Value(label string) string {
	for _, f := range e.fields {
		if f.Label == label {
			return strings.TrimSpace(f.Input.Value())
		}
	}
	return ""
}

// HandleKey processes key events in prompt mode.
func (e *PromptModel) HandleKey(a App, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.prompt = nil
		return a, nil

	case "enter":
		return e.submit(a)

	case "tab", "down":
		e.fields[e.activeIdx].Input.Blur()
		e.activeIdx = (e.activeIdx + 1) % len(e.fields)
		e.fields[e.activeIdx].Input.Focus()
		return a, textinput.Blink

	case "shift+tab", "up":
		e.fields[e.activeIdx].Input.Blur()
		e.activeIdx = (e.activeIdx - 1 + len(e.fields)) % len(e.fields)
		e.fields[e.activeIdx].Input.Focus()
		return a, textinput.Blink

	default:
		var cmd tea.Cmd
		e.fields[e.activeIdx].Input, cmd = e.fields[e.activeIdx].Input.Update(msg)
		return a, cmd
	}
}

func (e *PromptModel) submit(a App) (tea.Model, tea.Cmd) {
	switch e.kind {
	case PromptUpload:
		path := e.Value("path")
		if path == "" {
			e.err = "path is required"
			return a, nil
		}
		a.mode = ModeNormal
		a.prompt = nil
		a.panel.Uploading = true
		return a, tea.Batch(loadFileCmd(path, a.notifier()), a.spinner.Tick)

	case PromptSave:
		a.mode = ModeNormal
		a.prompt = nil
		return a, saveFileCmd(e.Value("path"), a.panel.Output, a.notifier())

	case PromptDateRange:
		from, to, err := logs.ParseRange(e.Value("from"), e.Value("to"), time.Local)
		if err != nil {
			e.err = err.Error()
			return a, nil
		}
		f := a.logView.Filter()
		f.From, f.To = from, to
		a.logView.SetFilter(f)
		a.syncLogsTable()
		a.mode = ModeNormal
		a.prompt = nil
		return a, nil
	}
	return a, nil
}

// View renders the prompt form.
func (e *PromptModel) View(width int) string {
	s := titleStyle.Render(" "+e.title+" ") + "\n\n"
	for i, f := range e.fields {
		prefix := "  "
		if i == e.activeIdx {
			prefix = "▸ "
		}
		s += prefix + dimStyle.Render(f.Label+": ") + f.Input.View() + "\n"
	}
	if e.err != "" {
		s += "\n" + errorStyle.Render("  "+e.err) + "\n"
	}
	s += "\n" + helpStyle.Render("  tab:next  shift+tab:prev  enter:apply  esc:cancel")
	return s
}
