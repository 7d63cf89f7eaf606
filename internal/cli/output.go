package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"wheel-tracker/internal/models"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Output writes command results as styled text or as JSON.
type Output struct {
	w        io.Writer
	jsonMode bool
	colored  bool
}

// NewOutput creates an Output for cmd. Color follows the terminal unless
// --json is set.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		w:        cmd.OutOrStdout(),
		jsonMode: jsonMode,
		colored:  !jsonMode && !color.NoColor,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON writes v as indented JSON.
func (o *Output) JSON(v interface{}) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.w, args...)
}

func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.w, format, args...)
}

func (o *Output) Success(format string, args ...interface{}) { o.line(color.FgGreen, format, args...) }
func (o *Output) Error(format string, args ...interface{})   { o.line(color.FgRed, format, args...) }
func (o *Output) Warning(format string, args ...interface{}) { o.line(color.FgYellow, format, args...) }
func (o *Output) Info(format string, args ...interface{})    { o.line(color.FgCyan, format, args...) }
func (o *Output) Bold(format string, args ...interface{})    { o.line(color.Bold, format, args...) }
func (o *Output) Dim(format string, args ...interface{})     { o.line(color.Faint, format, args...) }

func (o *Output) line(attr color.Attribute, format string, args ...interface{}) {
	o.Println(o.paint(attr).Sprintf(format, args...))
}

// paint returns a style that is switched on only when o writes color.
func (o *Output) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if o.colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// FormatPnL formats a gain or loss with its sign, green for a gain and red
// for a loss.
func (o *Output) FormatPnL(pnl decimal.NullDecimal) string {
	if !pnl.Valid {
		return "-"
	}
	text := FormatPnL(pnl.Decimal)
	switch pnl.Decimal.Sign() {
	case 1:
		return o.paint(color.FgGreen).Sprint(text)
	case -1:
		return o.paint(color.FgRed).Sprint(text)
	}
	return text
}

// FormatMoneyness colors a moneyness percentage: red under threshold, yellow
// within five points of it.
func (o *Output) FormatMoneyness(m decimal.NullDecimal, threshold decimal.Decimal) string {
	text := FormatPercent(m)
	if !m.Valid {
		return text
	}
	switch {
	case m.Decimal.LessThan(threshold):
		return o.paint(color.FgRed).Sprint(text)
	case m.Decimal.LessThan(threshold.Add(decimal.NewFromInt(5))):
		return o.paint(color.FgYellow).Sprint(text)
	}
	return o.paint(color.FgGreen).Sprint(text)
}

// Status colors a trade status.
func (o *Output) Status(status models.TradeStatus) string {
	if status == models.StatusOpen {
		return o.paint(color.FgCyan).Sprint(status)
	}
	return o.paint(color.Faint).Sprint(status)
}

// Box prints lines inside a frame headed by title.
func (o *Output) Box(title string, lines []string) {
	inner := visibleLen(title)
	for _, l := range lines {
		inner = max(inner, visibleLen(l))
	}

	frame := o.paint(color.Faint)
	rule := strings.Repeat("─", inner+2)
	edge := frame.Sprint("│")

	o.Println(frame.Sprint("┌" + rule + "┐"))
	o.Printf("%s %s %s\n", edge, o.paint(color.Bold).Sprint(pad(title, inner)), edge)
	o.Println(frame.Sprint("├" + rule + "┤"))
	for _, l := range lines {
		o.Printf("%s %s %s\n", edge, pad(l, inner), edge)
	}
	o.Println(frame.Sprint("└" + rule + "┘"))
}

// Table lays out rows in columns sized to their widest visible cell.
type Table struct {
	out     *Output
	headers []string
	rows    [][]string
}

func NewTable(out *Output, headers ...string) *Table {
	return &Table{out: out, headers: headers}
}

func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the header, a rule and every row. Cells beyond the header
// count are dropped.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	measure := func(cells []string) {
		for i, c := range cells {
			if i < len(widths) {
				widths[i] = max(widths[i], visibleLen(c))
			}
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}

	t.out.Println(t.join(t.headers, widths, t.out.paint(color.Bold)))

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w)
	}
	t.out.Println(t.out.paint(color.Faint).Sprint(strings.Join(rule, "──")))

	for _, row := range t.rows {
		t.out.Println(t.join(row, widths, nil))
	}
}

func (t *Table) join(cells []string, widths []int, style *color.Color) string {
	parts := make([]string, 0, len(widths))
	for i, c := range cells {
		if i >= len(widths) {
			break
		}
		cell := pad(c, widths[i])
		if style != nil {
			cell = style.Sprint(cell)
		}
		parts = append(parts, cell)
	}
	return strings.Join(parts, "  ")
}

// visibleLen is the printed width of s, ignoring color escapes.
func visibleLen(s string) int {
	return utf8.RuneCountInString(ansiEscape.ReplaceAllString(s, ""))
}

func pad(s string, width int) string {
	if n := width - visibleLen(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
