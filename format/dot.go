package format

import (
	"io"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
)

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// WriteDot writes v in graphviz format.
func WriteDot(w io.Writer, v View) error {
	b := AppendDot(nil, v)

	_, err := w.Write(b)
	if err != nil {
		return errors.Wrap(err, "write")
	}

	return nil
}

func AppendDot(b []byte, v View) []byte {
	b = app(b, 0, "digraph \"%s\" {\n", dotEscaper.Replace(v.Title))
	b = app(b, 1, "node [shape=box fontname=\"monospace\"];\n")

	for _, n := range v.Nodes {
		b = app(b, 1, "n%d [label=\"", n.ID)

		for _, l := range n.Text() {
			b = append(b, dotEscaper.Replace(l)...)
			b = append(b, `\l`...)
		}

		b = append(b, '"')

		if n.Unknown {
			b = append(b, " color=red"...)
		}

		b = append(b, "];\n"...)
	}

	for _, e := range v.Edges {
		b = app(b, 1, "n%d -> n%d;\n", e.From, e.To)
	}

	b = app(b, 0, "}\n")

	return b
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.AppendPrintf(b, f, args...)
	return b
}
