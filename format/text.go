package format

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"tlog.app/go/errors"
)

type (
	// TextWriter draws a view as boxed nodes followed by their edges.
	TextWriter struct {
		Color bool

		title, label, dst, unknown, edge *color.Color
	}
)

func NewTextWriter(colored bool) *TextWriter {
	w := &TextWriter{
		Color: colored,

		title:   color.New(color.Bold, color.Underline),
		label:   color.New(color.FgYellow, color.Bold),
		dst:     color.New(color.FgCyan),
		unknown: color.New(color.FgRed, color.Bold),
		edge:    color.New(color.Faint),
	}

	for _, c := range []*color.Color{w.title, w.label, w.dst, w.unknown, w.edge} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return w
}

func WriteText(w io.Writer, v View, colored bool) error {
	return NewTextWriter(colored).Write(w, v)
}

func (t *TextWriter) Write(w io.Writer, v View) (err error) {
	var b strings.Builder

	b.WriteString(t.title.Sprint(v.Title))
	b.WriteString("\n\n")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)

	for _, n := range v.Nodes {
		if n.Unknown && t.Color {
			box = box.BorderForeground(lipgloss.Color("1"))
		} else {
			box = box.UnsetBorderForeground()
		}

		b.WriteString(box.Render(t.node(n)))
		b.WriteByte('\n')

		for _, s := range v.Succs(n.ID) {
			b.WriteString(t.edge.Sprint("  -> "))
			b.WriteString(v.Nodes[s].Label)
			b.WriteByte('\n')
		}

		b.WriteByte('\n')
	}

	_, err = io.WriteString(w, b.String())
	if err != nil {
		return errors.Wrap(err, "write")
	}

	return nil
}

func (t *TextWriter) node(n Node) string {
	var b strings.Builder

	b.WriteString(t.label.Sprint(n.Label))

	for _, l := range Align(n.Lines) {
		b.WriteByte('\n')

		if strings.Contains(l, "UNKNOWN<") {
			l = t.unknown.Sprint(l)
		}

		b.WriteString(l)
	}

	if n.Dst != "" {
		if len(n.Lines) != 0 {
			b.WriteByte('\n')
		}

		b.WriteByte('\n')
		b.WriteString(t.dst.Sprint("Dst: "))
		b.WriteString(n.Dst)
	}

	return b.String()
}

// Align pads destinations so that = signs of consecutive lines form a column.
// Empty lines break the column.
func Align(lines []string) []string {
	r := make([]string, len(lines))

	for i := 0; i < len(lines); {
		j := i
		w := 0

		for ; j < len(lines) && lines[j] != ""; j++ {
			dst, _, _ := strings.Cut(lines[j], " = ")
			w = max(w, runewidth.StringWidth(dst))
		}

		for k := i; k < j; k++ {
			dst, src, ok := strings.Cut(lines[k], " = ")
			if !ok {
				r[k] = lines[k]
				continue
			}

			r[k] = runewidth.FillRight(dst, w) + " = " + src
		}

		if j < len(lines) {
			r[j] = ""
		}

		i = j + 1
	}

	return r
}
