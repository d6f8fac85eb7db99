package model

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/sqlshift/pkg/converter"
	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/notify"
)

func convertCmd(svc *converter.Service, seq int, d core.Dialect, query string, timeout time.Duration) tea.Cmd {
	return guard(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := svc.Convert(ctx, d, query)
		return convertMsg{seq: seq, res: res, err: err}
	})
}

// reshapeCmd formats or minifies the input, or the output of submission seq
// when output is set.
func reshapeCmd(svc *converter.Service, op, query string, output bool, seq int, timeout time.Duration) tea.Cmd {
	return guard(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var out string
		var ok bool
		switch {
		case op == "minify" && output:
			out, ok = svc.MinifyOutput(ctx, query)
		case op == "minify":
			out, ok = svc.Minify(ctx, query)
		case output:
			out, ok = svc.FormatOutput(ctx, query)
		default:
			out, ok = svc.Format(ctx, query)
		}
		return reshapeMsg{op: op, query: out, ok: ok, output: output, seq: seq}
	})
}

func loadFileCmd(path string, n notify.Notifier) tea.Cmd {
	return guard(func() tea.Msg {
		q, err := converter.LoadFile(path, n)
		return fileLoadedMsg{query: q, err: err}
	})
}

func saveFileCmd(dest, content string, n notify.Notifier) tea.Cmd {
	return guard(func() tea.Msg {
		path, err := converter.SaveFile(dest, content, n)
		return fileSavedMsg{path: path, err: err}
	})
}

func copyCmd(c *converter.Copier, text string, n notify.Notifier) tea.Cmd {
	return guard(func() tea.Msg {
		return copiedMsg{err: c.Copy(text, n)}
	})
}

func (a App) notifier() notify.Notifier {
	if a.deps.Notices == nil {
		return nil
	}
	return a.deps.Notices
}

func (a App) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.query.Blur()
		a.panel.SetQuery(a.query.Value())
		return a, nil
	case "ctrl+s":
		a.mode = ModeNormal
		a.query.Blur()
		return a.startConvert()
	}
	var cmd tea.Cmd
	a.query, cmd = a.query.Update(msg)
	a.panel.SetQuery(a.query.Value())
	return a, cmd
}

func (a App) handleConverterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "i", "enter":
		a.mode = ModeEditQuery
		return a, a.query.Focus()

	case "c":
		return a.startConvert()

	case "d":
		a.panel.Dialect = a.nextDialect()
		a.statusMsg = "dialect: " + a.panel.Dialect.Label()

	case "f", "m":
		if a.panel.Formatting || a.panel.Minifying || a.query.Value() == "" {
			return a, nil
		}
		return a.startReshape(msg.String(), a.query.Value(), false)

	case "F", "M":
		if a.panel.Formatting || a.panel.Minifying || !a.panel.HasOutput() {
			return a, nil
		}
		return a.startReshape(strings.ToLower(msg.String()), a.panel.Output, true)

	case "y":
		if !a.panel.HasOutput() || a.deps.Copier == nil {
			a.statusMsg = "nothing to copy"
			return a, nil
		}
		return a, copyCmd(a.deps.Copier, a.panel.Output, a.notifier())

	case "w":
		if !a.panel.HasOutput() {
			a.statusMsg = "nothing to download"
			return a, nil
		}
		a.prompt = NewSavePrompt(".")
		a.mode = ModePrompt
		return a, nil

	case "o":
		a.prompt = NewUploadPrompt()
		a.mode = ModePrompt
		return a, nil

	case "s":
		a.setQuery(converter.Sample(a.panel.Dialect))

	case "x":
		a.panel.Reset()
		a.query.Reset()
		a.completed = 0
		a.renderOutput()

	case "j", "down", "k", "up", "pgdown", "pgup":
		var cmd tea.Cmd
		a.output, cmd = a.output.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) startReshape(key, query string, output bool) (tea.Model, tea.Cmd) {
	op := "format"
	if key == "m" {
		op = "minify"
		a.panel.Minifying = true
	} else {
		a.panel.Formatting = true
	}
	return a, tea.Batch(reshapeCmd(a.deps.Converter, op, query, output, a.panel.Seq, a.deps.Timeout), a.spinner.Tick)
}

func (a App) startConvert() (tea.Model, tea.Cmd) {
	if a.panel.Status == converter.StatusConverting {
		return a, nil
	}
	q := a.query.Value()
	a.panel.SetQuery(q)
	if err := a.deps.Converter.Validate(a.panel.Dialect, q); err != nil {
		a.panel.Reject(err)
		a.statusMsg = err.Error()
		return a, nil
	}
	seq := a.panel.Begin()
	a.started = time.Now()
	a.completed = 0
	a.renderOutput()
	return a, tea.Batch(
		convertCmd(a.deps.Converter, seq, a.panel.Dialect, q, a.deps.Timeout),
		a.spinner.Tick,
	)
}

// nextDialect cycles through the enabled dialects.
func (a App) nextDialect() core.Dialect {
	n := len(core.Dialects)
	start := 0
	for i, d := range core.Dialects {
		if d == a.panel.Dialect {
			start = i
		}
	}
	for step := 1; step <= n; step++ {
		d := core.Dialects[(start+step)%n]
		if a.deps.Converter.Enabled(d) {
			return d
		}
	}
	return a.panel.Dialect
}

func (a *App) setQuery(q string) {
	a.query.SetValue(q)
	a.panel.SetQuery(q)
}

// renderOutput refreshes the output viewport from the panel.
func (a *App) renderOutput() {
	if !a.panel.HasOutput() {
		a.output.SetContent("")
		return
	}
	a.output.SetContent(converter.Highlight(a.panel.Output, a.dark))
	a.output.GotoTop()
}
