package converter

import "github.com/modoterra/sqlshift/pkg/core"

// Status is where the panel is in the convert cycle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConverting Status = "converting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Panel is the converter's view state. It has no I/O; callers feed it results.
type Panel struct {
	Query    string
	Dialect  core.Dialect
	Status   Status
	Output   string
	Warnings []string
	Err      error

	// Seq increments on every submission; results for an older Seq are ignored.
	Seq int

	Formatting bool
	Minifying  bool
	Uploading  bool
}

// NewPanel returns an idle panel for dialect d.
func NewPanel(d core.Dialect) Panel {
	return Panel{Dialect: d, Status: StatusIdle}
}

// Begin marks a submission in flight and returns its sequence number.
func (p *Panel) Begin() int {
	p.Seq++
	p.Status = StatusConverting
	return p.Seq
}

// Reject records a client-side validation error; nothing was sent.
func (p *Panel) Reject(err error) {
	p.Err = err
}

// ApplyResult records the outcome of submission seq.
// Success replaces the output and clears any previous error. Failure keeps
// the source query untouched.
func (p *Panel) ApplyResult(seq int, res core.ConversionResult, err error) bool {
	if seq != p.Seq {
		return false
	}
	switch {
	case err != nil:
		p.Status = StatusError
		p.Err = err
	case res.Success:
		p.Status = StatusSuccess
		p.Output = res.ConvertedQuery
		p.Warnings = res.Warnings
		p.Err = nil
	default:
		p.Status = StatusError
		p.Output = ""
		p.Warnings = res.Warnings
		p.Err = nil
	}
	return true
}

// SetQuery replaces the editor text (format, minify, upload, sample).
func (p *Panel) SetQuery(q string) {
	p.Query = q
	if p.Err == ErrEmptyQuery && q != "" {
		p.Err = nil
	}
}

// SetOutput replaces the converted query after an output format or minify.
// It is ignored when submission seq is no longer the one on display.
func (p *Panel) SetOutput(seq int, q string) bool {
	if seq != p.Seq || !p.HasOutput() {
		return false
	}
	p.Output = q
	return true
}

// Reset returns to a blank input, keeping the dialect. Results still in
// flight are dropped.
func (p *Panel) Reset() {
	*p = Panel{Dialect: p.Dialect, Status: StatusIdle, Seq: p.Seq + 1}
}

// HasOutput reports whether a converted query is on display.
func (p *Panel) HasOutput() bool {
	return p.Status == StatusSuccess && p.Output != ""
}
