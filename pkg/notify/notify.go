// Package notify carries user-facing notices ("toasts") from any layer to
// whichever front end is attached.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// Level is the notice severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Action is a one-click follow-up offered with a notice.
type Action struct {
	Key   string
	Label string
}

// Notice is a single notification.
type Notice struct {
	ID     string
	Level  Level
	Title  string
	Detail string
	Action *Action
	At     time.Time
	// Sticky notices stay until dismissed.
	Sticky bool
}

// Notifier is the write side used by services.
type Notifier interface {
	Notify(n Notice)
}

// Center is a thread-safe notice queue with subscribers.
type Center struct {
	mu      sync.Mutex
	notices []Notice
	subs    map[int]func(Notice)
	nextSub int
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewCenter creates a center keeping non-sticky notices visible for ttl.
func NewCenter(ttl time.Duration) *Center {
	return &Center{
		subs: make(map[int]func(Notice)),
		ttl:  ttl,
		max:  50,
		now:  time.Now,
	}
}

// Notify records n and fans it out to subscribers.
func (c *Center) Notify(n Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = c.now()
	}

	c.mu.Lock()
	c.notices = append(c.notices, n)
	if len(c.notices) > c.max {
		c.notices = c.notices[len(c.notices)-c.max:]
	}
	subs := make([]func(Notice), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

// Subscribe registers fn for every future notice.
func (c *Center) Subscribe(fn func(Notice)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Active returns undismissed notices still within their TTL, oldest first.
func (c *Center) Active(now time.Time) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Notice
	for _, n := range c.notices {
		if n.Sticky || now.Sub(n.At) < c.ttl {
			out = append(out, n)
		}
	}
	return out
}

// Dismiss removes the notice with the given ID.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return
		}
	}
}

// Helpers for the common shapes.

func Success(n Notifier, title string) { send(n, LevelSuccess, title, "") }
func Info(n Notifier, title string)    { send(n, LevelInfo, title, "") }
func Warn(n Notifier, title, detail string) {
	send(n, LevelWarning, title, detail)
}
func Error(n Notifier, title, detail string) {
	send(n, LevelError, title, detail)
}

func send(n Notifier, level Level, title, detail string) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: level, Title: title, Detail: detail})
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Glyph returns the marker drawn before a notice of the given level.
func Glyph(l Level) string {
	switch l {
	case LevelSuccess:
		return successStyle.Render("✓")
	case LevelWarning:
		return warnStyle.Render("!")
	case LevelError:
		return errorStyle.Render("✖")
	default:
		return infoStyle.Render("•")
	}
}

// Render formats a notice on one line.
func Render(n Notice) string {
	s := Glyph(n.Level) + " " + n.Title
	if n.Detail != "" {
		s += " " + detailStyle.Render("("+n.Detail+")")
	}
	if n.Action != nil {
		s += " " + detailStyle.Render("["+n.Action.Key+": "+n.Action.Label+"]")
	}
	return s
}

// Writer prints notices as they arrive, for plain CLI commands.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a notifier that prints to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (wr *Writer) Notify(n Notice) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	fmt.Fprintln(wr.w, Render(n))
}
