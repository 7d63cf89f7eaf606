package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// TerminalChannel prints notifications as single colored lines.
type TerminalChannel struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewTerminalChannel creates a TerminalChannel writing to out, or stdout when
// out is nil.
func NewTerminalChannel(out io.Writer, colorEnabled bool) *TerminalChannel {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalChannel{out: out, color: colorEnabled}
}

// Name returns the name of the channel.
func (t *TerminalChannel) Name() string {
	return "terminal"
}

// IsEnabled returns whether the channel is enabled.
func (t *TerminalChannel) IsEnabled() bool {
	return true
}

// Send prints the notification.
func (t *TerminalChannel) Send(_ context.Context, n Notification) error {
	line := FormatNotification(n, t.color)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.out, line)
	return err
}

// FormatNotification formats a notification for terminal display.
func FormatNotification(n Notification, colorEnabled bool) string {
	var indicator string
	var c *color.Color

	switch n.Level {
	case LevelError:
		indicator = "❌ ERROR"
		c = color.New(color.FgRed, color.Bold)
	case LevelWarning:
		indicator = "⚠️  WARN"
		c = color.New(color.FgYellow)
	default:
		indicator = "ℹ️  INFO"
		c = color.New(color.FgCyan)
	}

	if colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	timestamp := n.Timestamp.Format("15:04:05")
	return fmt.Sprintf("%s | %s", c.Sprintf("[%s] %s", timestamp, indicator), n.Message)
}
