package event

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAdded   = lipgloss.Color("#16a34a")
	colorRemoved = lipgloss.Color("#dc2626")
	colorConnect = lipgloss.Color("#2563eb")
	colorClosed  = lipgloss.Color("#6b7280")
	colorFailed  = lipgloss.Color("#d97706")
	colorMessage = lipgloss.Color("#06b6d4")
	colorDimmed  = lipgloss.Color("#6b7280")
)

var kindColors = map[Kind]lipgloss.Color{
	PipeAdded:        colorAdded,
	PipeRemoved:      colorRemoved,
	SessionConnected: colorConnect,
	SessionClosed:    colorClosed,
	SessionFailed:    colorFailed,
	Message:          colorMessage,
}

var kindLabels = map[Kind]string{
	PipeAdded:        "added",
	PipeRemoved:      "removed",
	SessionConnected: "connect",
	SessionClosed:    "closed",
	SessionFailed:    "failed",
	Message:          "message",
}

// Console renders events as single colored lines. One mutex serializes all
// writers so concurrent sessions never interleave partial lines.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color}
}

func (c *Console) Publish(e Event) {
	line := c.format(e)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

func (c *Console) format(e Event) string {
	ts := e.At.Format("15:04:05.000")
	label := fmt.Sprintf("%-7s", kindLabels[e.Kind])

	if c.color {
		ts = lipgloss.NewStyle().Foreground(colorDimmed).Render(ts)
		label = lipgloss.NewStyle().Foreground(kindColors[e.Kind]).Render(label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s", ts, label, e.Pipe)

	switch e.Kind {
	case PipeAdded:
		if e.Info != nil && e.Info.HasCounts() {
			fmt.Fprintf(&b, "  [%s/%s]", fmtCount(e.Info.CurrentInstances), fmtCount(e.Info.MaxInstances))
		}
		if e.Info != nil {
			if owner := e.Info.Metadata["owner"]; owner != "" {
				fmt.Fprintf(&b, "  %s", owner)
			}
		}
	case SessionClosed:
		if e.Reason != "" {
			fmt.Fprintf(&b, "  %s", e.Reason)
		}
	case SessionFailed:
		fmt.Fprintf(&b, "  %s", e.Reason)
		if e.Err != "" {
			fmt.Fprintf(&b, ": %s", sanitize(e.Err))
		}
	case Message:
		desc := e.Classification
		if e.Encoding != "" {
			desc += "/" + e.Encoding
		}
		fmt.Fprintf(&b, "  %dB  %s  %s", e.Size, desc, sanitize(e.Payload))
	}

	return b.String()
}

func fmtCount(v int64) string {
	if v < 0 {
		return "?"
	}
	return fmt.Sprintf("%d", v)
}

// sanitize keeps an event on one console line. Payload text may carry CR/LF
// (they count as printable); they are shown escaped rather than executed.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
