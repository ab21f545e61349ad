// Package report collects the human-readable log of a single pipeline step.
package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/vaultfix/internal/models"
	"github.com/starford/vaultfix/internal/storage"
)

// Report buffers lines and events for one step and persists them on Save.
type Report struct {
	title   string
	path    string
	verbose bool
	logger  *slog.Logger
	now     func() time.Time

	lines  []string
	events []models.Event
}

// Option configures a Report.
type Option func(*Report)

// WithPath sets the file the report is written to on Save.
func WithPath(path string) Option {
	return func(r *Report) { r.path = path }
}

// WithVerbose echoes every line through the logger as it is recorded.
func WithVerbose(v bool) Option {
	return func(r *Report) { r.verbose = v }
}

// WithLogger sets the structured logger used for echoing.
func WithLogger(l *slog.Logger) Option {
	return func(r *Report) { r.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Report) { r.now = now }
}

// New returns an empty report with the given title.
func New(title string, opts ...Option) *Report {
	r := &Report{
		title:  title,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Log appends a line.
func (r *Report) Log(msg string) {
	r.lines = append(r.lines, msg)
	if r.verbose {
		r.logger.Info(msg, "report", r.title)
	}
}

// Logf appends a formatted line.
func (r *Report) Logf(format string, args ...any) {
	r.Log(fmt.Sprintf(format, args...))
}

// Event records a vault action and logs its one-line rendering.
func (r *Report) Event(action, src, dst, detail string) {
	e := models.Event{Action: action, Src: src, Dst: dst, Detail: detail, At: r.now()}
	r.events = append(r.events, e)
	r.Log(Format(e))
}

// Format renders an event as a single report line.
func Format(e models.Event) string {
	var b strings.Builder
	b.WriteString(e.Action)
	if e.Src != "" {
		b.WriteString(": ")
		b.WriteString(e.Src)
	}
	if e.Dst != "" {
		b.WriteString(" -> ")
		b.WriteString(e.Dst)
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

// Title returns the report title.
func (r *Report) Title() string { return r.title }

// Lines returns a copy of the recorded lines.
func (r *Report) Lines() []string {
	return append([]string(nil), r.lines...)
}

// Events returns a copy of the recorded events.
func (r *Report) Events() []models.Event {
	return append([]models.Event(nil), r.events...)
}

// Save writes the title, a timestamp and every line to the report path.
// A report without a path is not persisted.
func (r *Report) Save() error {
	if r.path == "" {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s\n\n", r.title, r.now().Format("2006-01-02 15:04:05"))
	b.WriteString(strings.Join(r.lines, "\n"))
	if len(r.lines) > 0 {
		b.WriteString("\n")
	}
	if err := storage.WriteFileAtomic(r.path, []byte(b.String())); err != nil {
		return fmt.Errorf("report: save %s: %w", r.path, err)
	}
	return nil
}
