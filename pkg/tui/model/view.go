package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/modoterra/sqlshift/pkg/converter"
	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/logs"
	"github.com/modoterra/sqlshift/pkg/notify"
	"github.com/modoterra/sqlshift/pkg/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "255", Dark: "229"}).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"}).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	gateStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 4).
			Align(lipgloss.Center)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("63")).
			Padding(0, 2)

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "245"})
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "241"})
)

// View renders the TUI. A panic while rendering shows the crash screen.
func (a App) View() (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = a.renderCrash(&crashInfo{err: fmt.Sprint(r)})
		}
	}()

	if a.width == 0 || a.height == 0 {
		return "loading..."
	}
	if a.crash != nil {
		return a.renderCrash(a.crash)
	}

	// Prompt overlay
	if a.mode == ModePrompt && a.prompt != nil {
		promptView := a.prompt.View(a.width - 4)
		return paneStyle.Width(a.width - 4).Height(a.height - 2).Render(promptView)
	}

	if !a.initialized {
		return a.center(a.spinner.View() + " Checking saved session...")
	}
	if !a.session.Authenticated {
		return lipgloss.JoinVertical(lipgloss.Left,
			a.center(a.renderGate()),
			a.renderNotices(),
			a.renderStatusBar(),
		)
	}

	header := a.renderHeader()
	var body string
	if a.tab == TabLogs {
		body = a.renderLogsTab()
	} else {
		body = a.renderConverterTab()
	}
	bodyH := a.height - lipgloss.Height(header) - 1 - len(a.notices)
	body = paneStyle.Width(a.width - 4).Height(max(bodyH-2, 3)).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, a.renderNotices(), a.renderStatusBar())
}

func (a App) center(s string) string {
	h := a.height - 2 - len(a.notices)
	return lipgloss.Place(a.width, max(h, 1), lipgloss.Center, lipgloss.Center, s)
}

func (a App) renderGate() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Authentication Required") + "\n\n")
	b.WriteString("Generate an access token to use the SQL converter.\n\n")
	if a.busy != "" {
		b.WriteString(a.spinner.View() + " " + a.busy)
	} else {
		b.WriteString(buttonStyle.Render("Generate Token & Login"))
		b.WriteString("\n\n" + helpStyle.Render("enter"))
	}
	return gateStyle.Render(b.String())
}

func (a App) renderHeader() string {
	tabs := []string{" sqlshift "}
	for _, t := range []struct {
		tab   Tab
		label string
	}{{TabConverter, "1 Converter"}, {TabLogs, "2 Logs"}} {
		if a.tab == t.tab {
			tabs = append(tabs, activeTabStyle.Render(t.label))
		} else {
			tabs = append(tabs, tabStyle.Render(t.label))
		}
	}
	left := titleStyle.Render(tabs[0]) + strings.Join(tabs[1:], " ")
	right := a.sessionLabel()
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-1, 1)
	return left + strings.Repeat(" ", gap) + right
}

func (a App) sessionLabel() string {
	if a.busy != "" {
		return a.spinner.View() + " " + a.busy
	}
	if a.session.Expiry.IsZero() {
		return okStyle.Render("● signed in")
	}
	label := "session " + humanize.RelTime(a.now, a.session.Expiry, "left", "over")
	if a.sessionState == session.StateExpiring {
		return warnStyle.Render("● " + label)
	}
	return okStyle.Render("●") + " " + dimStyle.Render(label)
}

func (a App) renderConverterTab() string {
	var b strings.Builder

	b.WriteString(dimStyle.Render("Source dialect: "))
	for i, d := range core.Dialects {
		if i > 0 {
			b.WriteString("  ")
		}
		switch {
		case d == a.panel.Dialect:
			b.WriteString(activeTabStyle.Render(d.Label()))
		case !a.deps.Converter.Enabled(d):
			b.WriteString(dimStyle.Render(d.Label() + " (unavailable)"))
		default:
			b.WriteString(tabStyle.Render(d.Label()))
		}
	}
	b.WriteString(dimStyle.Render("  → PostgreSQL") + "\n\n")

	editorTitle := "Query"
	if a.mode == ModeEditQuery {
		editorTitle += dimStyle.Render(" [editing]")
	}
	b.WriteString(titleStyle.Render(editorTitle) + "\n")
	b.WriteString(a.query.View() + "\n")
	if a.panel.Err != nil && a.panel.Status != converter.StatusError {
		b.WriteString(errorStyle.Render(a.panel.Err.Error()) + "\n")
	}

	switch {
	case a.panel.Formatting:
		b.WriteString(a.spinner.View() + " Formatting...\n")
	case a.panel.Minifying:
		b.WriteString(a.spinner.View() + " Minifying...\n")
	case a.panel.Uploading:
		b.WriteString(a.spinner.View() + " Loading file...\n")
	}

	b.WriteString("\n" + titleStyle.Render("PostgreSQL") + "\n")
	switch a.panel.Status {
	case converter.StatusConverting:
		b.WriteString(a.spinner.View() + " Converting...\n" + a.progress.ViewAs(a.completed) + "\n")
	case converter.StatusSuccess:
		b.WriteString(a.output.View() + "\n")
	case converter.StatusError:
		if a.panel.Err != nil {
			b.WriteString(errorStyle.Render("✖ "+a.panel.Err.Error()) + "\n")
		} else {
			b.WriteString(errorStyle.Render("✖ Conversion failed") + "\n")
		}
	default:
		b.WriteString(dimStyle.Render("Converted query will appear here.") + "\n")
	}
	for _, w := range a.panel.Warnings {
		b.WriteString(warnStyle.Render("! "+w) + "\n")
	}
	return b.String()
}

func (a App) renderLogsTab() string {
	if a.logsLoading && !a.logsLoaded {
		return a.spinner.View() + " Loading logs..."
	}
	if a.inspect {
		return a.renderInspector()
	}

	var b strings.Builder
	title := "System Logs"
	if a.logsLoading {
		title += " " + a.spinner.View()
	} else if !a.logView.FetchedAt().IsZero() {
		title += dimStyle.Render("  fetched " + humanize.RelTime(a.logView.FetchedAt(), a.now, "ago", "from now"))
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	b.WriteString(a.renderFilters() + "\n")
	if a.mode == ModeSearch {
		b.WriteString(a.search.View() + "\n")
	}

	if len(a.logView.Records()) == 0 {
		b.WriteString("\n" + dimStyle.Render("No logs found"))
		return b.String()
	}
	if len(a.logView.Items()) == 0 {
		b.WriteString("\n" + dimStyle.Render("No logs match the current filters"))
		return b.String()
	}

	b.WriteString(a.table.View() + "\n")
	p := a.logView.Page()
	prev, next := " ", " "
	if p.HasPrev() {
		prev = "‹"
	}
	if p.HasNext() {
		next = "›"
	}
	b.WriteString(fmt.Sprintf("%s %s %s  %s", prev, a.pager.View(), next,
		dimStyle.Render(fmt.Sprintf("page %d of %d · showing %d-%d of %d", p.Number, p.TotalPages, p.Start+1, p.End, p.Total))))
	return b.String()
}

func (a App) renderFilters() string {
	f := a.logView.Filter()
	parts := []string{
		"search: " + orAll(f.Search),
		"severity: " + orAll(f.Severity),
		"type: " + orAll(f.Type),
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		parts = append(parts, "date: "+orAll(formatBound(f.From))+" → "+orAll(formatBound(f.To)))
	}
	return dimStyle.Render(strings.Join(parts, "  "))
}

func (a App) renderInspector() string {
	r, ok := a.logView.Selected()
	if !ok {
		return dimStyle.Render("no log selected")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(logs.TypeGlyph(r.Type)+" "+r.Title) + "\n\n")
	fmt.Fprintf(&b, "ID:        %s\n", dimStyle.Render(r.ID))
	fmt.Fprintf(&b, "Type:      %s\n", r.Type)
	fmt.Fprintf(&b, "Severity:  %s\n", colorSeverity(r.Severity))
	fmt.Fprintf(&b, "Endpoint:  %s\n", r.Endpoint)
	fmt.Fprintf(&b, "Location:  %s\n", r.Location)
	fmt.Fprintf(&b, "Owner:     %s\n", r.Owner)
	fmt.Fprintf(&b, "Created:   %s %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		dimStyle.Render("("+humanize.RelTime(r.CreatedAt, a.now, "ago", "from now")+")"))
	b.WriteString("\n" + r.Message + "\n")
	return b.String()
}

func colorSeverity(s string) string {
	switch logs.SeverityClass(s) {
	case logs.ClassHigh:
		return severityHigh.Render(s)
	case logs.ClassMedium:
		return severityMedium.Render(s)
	case logs.ClassLow:
		return severityLow.Render(s)
	default:
		return dimStyle.Render(s)
	}
}

func (a App) renderNotices() string {
	if len(a.notices) == 0 {
		return ""
	}
	lines := make([]string, 0, len(a.notices))
	for _, n := range a.notices {
		lines = append(lines, notify.Render(n))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	var right string
	switch {
	case a.mode == ModeSearch:
		right = "enter:apply esc:clear"
	case a.mode == ModeEditQuery:
		right = "ctrl+s:convert esc:done"
	case !a.session.Authenticated:
		right = "enter:login ctrl+t:theme q:quit"
	case a.tab == TabLogs && a.inspect:
		right = "esc:back"
	case a.tab == TabLogs:
		right = "j/k:nav ←/→:page enter:inspect /:search v:severity t:type D:dates c:clear r:reload z:dismiss tab:converter q:quit"
	default:
		right = "i:edit c:convert d:dialect f/m:format/minify F/M:output y:copy w:download o:upload s:sample x:reset z:dismiss tab:logs R:refresh L:logout q:quit"
	}

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func (a App) renderCrash(c *crashInfo) string {
	var b strings.Builder
	b.WriteString(errorStyle.Bold(true).Render("Something went wrong") + "\n\n")
	b.WriteString(c.err + "\n\n")
	b.WriteString(helpStyle.Render("r:try again  q:quit"))
	return b.String()
}
