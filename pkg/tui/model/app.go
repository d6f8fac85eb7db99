package model

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/sqlshift/pkg/converter"
	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/logs"
	"github.com/modoterra/sqlshift/pkg/notify"
	"github.com/modoterra/sqlshift/pkg/session"
	"github.com/modoterra/sqlshift/pkg/state"
)

// Tab identifies which panel is shown once authenticated.
type Tab int

const (
	TabConverter Tab = iota
	TabLogs
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeEditQuery
	ModeSearch
	ModePrompt
)

// LogSource fetches the log records shown in the Logs tab.
type LogSource interface {
	ListLogs(ctx context.Context) ([]core.LogRecord, error)
}

// Deps wires the App to the services it drives.
type Deps struct {
	Session   *session.Store
	Converter *converter.Service
	Logs      LogSource
	Notices   *notify.Center
	Copier    *converter.Copier
	Themes    ThemeStore

	// Dark is the background decided by ApplyTheme before start-up.
	Dark          bool
	PageSize      int
	CheckInterval time.Duration
	MinDuration   time.Duration
	Timeout       time.Duration
	Logger        *slog.Logger
}

// App is the root Bubble Tea model.
type App struct {
	deps Deps

	// Session
	initialized  bool
	session      core.Session
	sessionState session.State
	busy         string

	// UI
	tab       Tab
	mode      Mode
	width     int
	height    int
	dark      bool
	now       time.Time
	notices   []notify.Notice
	lastCheck time.Time
	statusMsg string

	// Converter
	panel     converter.Panel
	query     textarea.Model
	spinner   spinner.Model
	progress  progress.Model
	output    viewport.Model
	started   time.Time
	completed float64

	// Logs
	logView     *logs.View
	logsLoaded  bool
	logsLoading bool
	table       table.Model
	pager       paginator.Model
	search      textinput.Model
	inspect     bool

	prompt *PromptModel

	// Fed by notice and session subscriptions.
	events chan tea.Msg

	// Set when Update or a command panicked.
	crash *crashInfo
}

type crashInfo struct {
	err   string
	stack string
}

// New creates the TUI model. deps.Session and deps.Converter are required.
func New(deps Deps) App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CheckInterval <= 0 {
		deps.CheckInterval = time.Minute
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 10 * time.Second
	}

	ta := textarea.New()
	ta.Placeholder = "Paste or type the SQL query to convert..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	si := textinput.New()
	si.Placeholder = "search title, message, endpoint..."
	si.CharLimit = 128

	pg := paginator.New()
	pg.Type = paginator.Dots
	pg.ActiveDot = "●"
	pg.InactiveDot = "○"

	tbl := table.New(
		table.WithColumns(logColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	events := make(chan tea.Msg, 32)
	push := func(m tea.Msg) {
		select {
		case events <- m:
		default: // the tick poll catches up
		}
	}
	if deps.Notices != nil {
		deps.Notices.Subscribe(func(notify.Notice) { push(noticeMsg{}) })
	}
	if deps.Session != nil {
		deps.Session.Subscribe(func(session.Event) { push(sessionEventMsg{}) })
	}

	return App{
		deps:     deps,
		events:   events,
		dark:     deps.Dark,
		now:      time.Now(),
		tab:      TabConverter,
		mode:     ModeNormal,
		panel:    converter.NewPanel(firstEnabled(deps.Converter)),
		query:    ta,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		output:   viewport.New(80, 10),
		logView:  logs.NewView(deps.PageSize),
		table:    tbl,
		pager:    pg,
		search:   si,
	}
}

func firstEnabled(svc *converter.Service) core.Dialect {
	for _, d := range core.Dialects {
		if svc == nil || svc.Enabled(d) {
			return d
		}
	}
	return core.DialectSQLServer
}

// Init restores the session and starts the clock.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		initSessionCmd(a.deps.Session),
		tickCmd(),
		waitEvent(a.events),
		tea.SetWindowTitle("sqlshift"),
	)
}

// tickMsg drives notice expiry and the session expiry check.
type tickMsg time.Time

// noticeMsg says a notice was raised.
type noticeMsg struct{}

// sessionEventMsg says the session store changed state.
type sessionEventMsg struct{}

// waitEvent delivers the next subscription message.
func waitEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

// sessionMsg reports that a session operation finished.
type sessionMsg struct{ op string }

// expiryMsg carries the outcome of an expiry check.
type expiryMsg session.ExpiryStatus

// convertMsg carries a conversion outcome for submission seq.
type convertMsg struct {
	seq int
	res core.ConversionResult
	err error
}

// reshapeMsg carries a format or minify outcome. Output reshapes belong to
// submission seq.
type reshapeMsg struct {
	op     string
	query  string
	ok     bool
	output bool
	seq    int
}

// fileLoadedMsg carries an uploaded query.
type fileLoadedMsg struct {
	query string
	err   error
}

// fileSavedMsg reports where the output was written.
type fileSavedMsg struct {
	path string
	err  error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct{ err error }

// logsMsg carries a fetched batch of log records.
type logsMsg struct {
	records []core.LogRecord
	at      time.Time
	err     error
}

// errorMsg carries an error to display.
type errorMsg struct{ err error }

// panicMsg is produced by a command that panicked.
type panicMsg crashInfo

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// guard turns a panic inside a command into a panicMsg.
func guard(fn func() tea.Msg) tea.Cmd {
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = panicMsg{err: fmt.Sprint(r), stack: string(debug.Stack())}
			}
		}()
		return fn()
	}
}

func initSessionCmd(s *session.Store) tea.Cmd {
	return guard(func() tea.Msg {
		s.Init(context.Background())
		return sessionMsg{op: "init"}
	})
}

func (a App) loginCmd() tea.Cmd {
	s, timeout := a.deps.Session, a.deps.Timeout
	return guard(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.Login(ctx)
		return sessionMsg{op: "login"}
	})
}

func (a App) logoutCmd() tea.Cmd {
	s, timeout := a.deps.Session, a.deps.Timeout
	return guard(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.Logout(ctx)
		return sessionMsg{op: "logout"}
	})
}

func (a App) refreshCmd() tea.Cmd {
	s, timeout := a.deps.Session, a.deps.Timeout
	return guard(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.Refresh(ctx)
		return sessionMsg{op: "refresh"}
	})
}

func expiryCmd(s *session.Store, now time.Time) tea.Cmd {
	return guard(func() tea.Msg {
		return expiryMsg(s.CheckExpiry(now))
	})
}

func saveThemeCmd(ts ThemeStore, t state.Theme) tea.Cmd {
	if ts == nil {
		return nil
	}
	return guard(func() tea.Msg {
		if err := ts.SetTheme(t); err != nil {
			return errorMsg{fmt.Errorf("save theme: %w", err)}
		}
		return nil
	})
}

// Update handles messages. A panic is recovered into the crash screen.
func (a App) Update(msg tea.Msg) (m tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			a.deps.Logger.Error("tui panic", "err", r)
			a.crash = &crashInfo{err: fmt.Sprint(r), stack: string(debug.Stack())}
			m, cmd = a, nil
		}
	}()
	return a.update(msg)
}

func (a App) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case tickMsg:
		a.now = time.Time(msg)
		a.pollNotices()
		cmds := []tea.Cmd{tickCmd()}
		if a.initialized && a.session.Authenticated && a.now.Sub(a.lastCheck) >= a.deps.CheckInterval {
			a.lastCheck = a.now
			cmds = append(cmds, expiryCmd(a.deps.Session, a.now))
		}
		return a, tea.Batch(cmds...)

	case panicMsg:
		a.deps.Logger.Error("command panic", "err", msg.err)
		c := crashInfo(msg)
		a.crash = &c
		return a, nil

	case sessionMsg:
		return a.handleSession(msg)

	case noticeMsg:
		a.pollNotices()
		return a, waitEvent(a.events)

	case sessionEventMsg:
		// Only the lifecycle label; sessionMsg handles sign-in and sign-out.
		a.sessionState = a.deps.Session.State()
		return a, waitEvent(a.events)

	case expiryMsg:
		a.syncSession()
		if session.ExpiryStatus(msg).Kind == session.ExpiryExpired {
			a.signedOut()
			a.statusMsg = "session expired"
		}
		a.pollNotices()
		return a, nil

	case spinner.TickMsg:
		if !a.spinning() {
			return a, nil
		}
		if a.panel.Status == converter.StatusConverting && a.deps.MinDuration > 0 {
			a.completed = min(0.95, float64(time.Since(a.started))/float64(a.deps.MinDuration))
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case convertMsg:
		if !a.panel.ApplyResult(msg.seq, msg.res, msg.err) {
			return a, nil
		}
		a.completed = 1
		a.renderOutput()
		a.pollNotices()
		return a, nil

	case reshapeMsg:
		a.panel.Formatting = false
		a.panel.Minifying = false
		switch {
		case !msg.ok:
		case msg.output:
			if a.panel.SetOutput(msg.seq, msg.query) {
				a.renderOutput()
			}
		default:
			a.setQuery(msg.query)
		}
		a.pollNotices()
		return a, nil

	case fileLoadedMsg:
		a.panel.Uploading = false
		if msg.err == nil {
			a.setQuery(msg.query)
		}
		a.pollNotices()
		return a, nil

	case fileSavedMsg:
		if msg.err == nil {
			a.statusMsg = "saved " + msg.path
		}
		a.pollNotices()
		return a, nil

	case copiedMsg:
		a.pollNotices()
		return a, nil

	case logsMsg:
		a.logsLoading = false
		if msg.err != nil {
			a.statusMsg = "Failed to fetch logs: " + msg.err.Error()
			a.pollNotices()
			return a, nil
		}
		a.logsLoaded = true
		a.logView.Refresh(msg.records, msg.at)
		a.syncLogsTable()
		return a, nil

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.mode == ModeEditQuery {
		var cmd tea.Cmd
		a.query, cmd = a.query.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) handleSession(msg sessionMsg) (tea.Model, tea.Cmd) {
	a.busy = ""
	wasAuthenticated := a.session.Authenticated
	a.initialized = true
	a.syncSession()
	a.pollNotices()

	switch {
	case a.session.Authenticated && !wasAuthenticated:
		// Check expiry on the next tick.
		a.lastCheck = time.Time{}
		a.statusMsg = "signed in"
	case !a.session.Authenticated && wasAuthenticated:
		a.signedOut()
		a.statusMsg = "signed out"
	case msg.op == "refresh":
		a.dismissAction(session.RefreshAction.Key)
	}
	return a, nil
}

// syncSession copies the store's view into the model.
func (a *App) syncSession() {
	a.session = a.deps.Session.Snapshot()
	a.sessionState = a.deps.Session.State()
}

// signedOut drops everything fetched under the old token.
func (a *App) signedOut() {
	a.mode = ModeNormal
	a.prompt = nil
	a.inspect = false
	a.logsLoaded = false
	a.logView.Refresh(nil, time.Time{})
	a.syncLogsTable()
	a.query.Blur()
	a.dismissAction(session.RefreshAction.Key)
}

func (a *App) pollNotices() {
	if a.deps.Notices == nil {
		return
	}
	a.notices = a.deps.Notices.Active(time.Now())
}

func (a *App) dismissAction(key string) {
	if a.deps.Notices == nil {
		return
	}
	for _, n := range a.deps.Notices.Active(time.Now()) {
		if n.Action != nil && n.Action.Key == key {
			a.deps.Notices.Dismiss(n.ID)
		}
	}
	a.pollNotices()
}

// dismissAll clears every notice on screen, sticky ones included.
func (a *App) dismissAll() {
	if a.deps.Notices == nil {
		return
	}
	for _, n := range a.deps.Notices.Active(time.Now()) {
		a.deps.Notices.Dismiss(n.ID)
	}
	a.pollNotices()
}

func (a App) spinning() bool {
	return a.busy != "" || a.logsLoading || a.panel.Status == converter.StatusConverting ||
		a.panel.Formatting || a.panel.Minifying || a.panel.Uploading
}

// layout sizes the components after a resize.
func (a *App) layout() {
	inner := max(a.width-6, 20)
	half := max((a.height-12)/2, 3)

	a.query.SetWidth(inner)
	a.query.SetHeight(half)
	a.output.Width = inner
	a.output.Height = half
	a.progress.Width = min(inner, 60)
	a.search.Width = min(inner-10, 60)

	a.table.SetColumns(logColumns(inner))
	a.table.SetHeight(max(a.height-14, 3))
	a.renderOutput()
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	// Crash screen
	if a.crash != nil {
		switch msg.String() {
		case "r":
			return a.retry()
		case "q":
			return a, tea.Quit
		}
		return a, nil
	}

	// Prompt overlay
	if a.mode == ModePrompt && a.prompt != nil {
		return a.prompt.HandleKey(a, msg)
	}

	if a.mode == ModeEditQuery {
		return a.handleEditKey(msg)
	}
	if a.mode == ModeSearch {
		return a.handleSearchKey(msg)
	}

	switch msg.String() {
	case "ctrl+t":
		return a.toggleTheme()
	case "q":
		return a, tea.Quit
	}

	if !a.initialized {
		return a, nil
	}

	// Gate
	if !a.session.Authenticated {
		if msg.String() == "enter" && a.busy == "" {
			a.busy = "Authenticating..."
			return a, tea.Batch(a.loginCmd(), a.spinner.Tick)
		}
		return a, nil
	}

	switch msg.String() {
	case "L":
		if a.busy != "" {
			return a, nil
		}
		a.busy = "Logging out..."
		return a, tea.Batch(a.logoutCmd(), a.spinner.Tick)
	case "R":
		if a.busy != "" {
			return a, nil
		}
		a.busy = "Refreshing session..."
		return a, tea.Batch(a.refreshCmd(), a.spinner.Tick)
	case "z":
		a.dismissAll()
		return a, nil
	case "tab":
		if a.tab == TabConverter {
			return a.switchTab(TabLogs)
		}
		return a.switchTab(TabConverter)
	case "1":
		return a.switchTab(TabConverter)
	case "2":
		return a.switchTab(TabLogs)
	}

	if a.tab == TabLogs {
		return a.handleLogsKey(msg)
	}
	return a.handleConverterKey(msg)
}

func (a App) switchTab(t Tab) (tea.Model, tea.Cmd) {
	a.tab = t
	if t == TabLogs && !a.logsLoaded && !a.logsLoading {
		return a.fetchLogs()
	}
	return a, nil
}

func (a App) toggleTheme() (tea.Model, tea.Cmd) {
	t := nextTheme(a.dark)
	a.dark = ApplyTheme(t)
	a.renderOutput()
	a.statusMsg = "theme: " + string(t)
	return a, saveThemeCmd(a.deps.Themes, t)
}

// retry leaves the crash screen with fresh panel state.
func (a App) retry() (tea.Model, tea.Cmd) {
	a.crash = nil
	a.mode = ModeNormal
	a.prompt = nil
	a.panel = converter.NewPanel(a.panel.Dialect)
	a.query.Reset()
	a.inspect = false
	a.logView.SetFilter(logs.Filter{})
	a.search.SetValue("")
	a.syncLogsTable()
	a.renderOutput()
	a.statusMsg = "recovered"
	return a, nil
}
