package format

import (
	"sort"

	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/irgraph/asm"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
	"github.com/slowlang/irgraph/symtab"
)

type (
	// View is a graph ready to be drawn.
	View struct {
		Title string `msgpack:"title"`
		Nodes []Node `msgpack:"nodes"`
		Edges []Edge `msgpack:"edges"`
	}

	Node struct {
		ID    int    `msgpack:"id"`
		Label string `msgpack:"label"`

		// Lines of assignment blocks. Blocks are separated by an empty line.
		Lines []string `msgpack:"lines"`
		Dst   string   `msgpack:"dst,omitempty"`

		// Unknown is set if some instruction of the block was not translated.
		Unknown bool `msgpack:"unknown,omitempty"`
	}

	Edge struct {
		From int `msgpack:"from"`
		To   int `msgpack:"to"`
	}

	// Namer appends the display name of a label.
	Namer func(b []byte, l symtab.Label, s symtab.Symbol) []byte
)

const (
	TitleIR           = "IR graph"
	TitleIRSimplified = "IR graph (simplified)"
	TitleAsm          = "asm flow"
)

// LongNamer renders name:0xoffset.
func LongNamer(b []byte, l symtab.Label, s symtab.Symbol) []byte {
	switch {
	case s.Name != "" && s.Resolved:
		return hfmt.AppendPrintf(b, "%s:%#x", s.Name, s.Offset)
	case s.Name != "":
		return append(b, s.Name...)
	case s.Resolved:
		return hfmt.AppendPrintf(b, "%#x", s.Offset)
	default:
		return hfmt.AppendPrintf(b, "L%d", int(l))
	}
}

// ShortNamer renders the name, or loc_OFFSET for unnamed labels.
func ShortNamer(b []byte, l symtab.Label, s symtab.Symbol) []byte {
	switch {
	case s.Name != "":
		return append(b, s.Name...)
	case s.Resolved:
		return hfmt.AppendPrintf(b, "loc_%X", s.Offset)
	default:
		return hfmt.AppendPrintf(b, "L%d", int(l))
	}
}

// Export builds the view of g.
// Edges are created only for destinations present in the graph.
func Export(g *ir.Graph, title string, n Namer) View {
	if n == nil {
		n = LongNamer
	}

	lf := labelFormatter(g.Syms, n)

	v := View{Title: title}
	ids := make(map[symtab.Label]int, g.Len())

	for _, b := range g.Blocks() {
		id := len(v.Nodes)
		ids[b.Label] = id

		node := Node{
			ID:    id,
			Label: string(lf(nil, b.Label)),
			Dst:   string(g.Exprs.AppendExpr(nil, b.Dst, lf)),
		}

		for i, ab := range b.Irs {
			if i != 0 {
				node.Lines = append(node.Lines, "")
			}

			node.Lines = append(node.Lines, assignLines(g.Exprs, ab, lf)...)

			node.Unknown = node.Unknown || hasUnknown(g.Exprs, ab)
		}

		node.Unknown = node.Unknown || g.Exprs.Contains(b.Dst, expr.KindUnknown)

		v.Nodes = append(v.Nodes, node)
	}

	g.Edges(func(from, to symtab.Label) {
		v.Edges = append(v.Edges, Edge{From: ids[from], To: ids[to]})
	})

	return v
}

// ExportAsm builds the view of disassembled blocks.
func ExportAsm(blocks []asm.Block, syms *symtab.Pool, n Namer) View {
	if n == nil {
		n = LongNamer
	}

	lf := labelFormatter(syms, n)

	v := View{Title: TitleAsm}
	ids := make(map[symtab.Label]int, len(blocks))

	for _, b := range blocks {
		ids[b.Label] = len(v.Nodes)

		node := Node{
			ID:    len(v.Nodes),
			Label: string(lf(nil, b.Label)),
		}

		for _, ins := range b.Instrs {
			node.Lines = append(node.Lines, string(hfmt.AppendPrintf(nil, "%#x  %s", ins.Addr, ins.String())))
		}

		v.Nodes = append(v.Nodes, node)
	}

	for _, b := range blocks {
		for _, s := range b.Succs {
			to, ok := ids[s]
			if !ok {
				continue
			}

			v.Edges = append(v.Edges, Edge{From: ids[b.Label], To: to})
		}
	}

	return v
}

// Text is the full node text: label, assignments and destination.
func (n Node) Text() []string {
	r := make([]string, 0, len(n.Lines)+3)

	r = append(r, n.Label)
	r = append(r, n.Lines...)

	if n.Dst != "" {
		if len(n.Lines) != 0 {
			r = append(r, "")
		}

		r = append(r, "Dst: "+n.Dst)
	}

	return r
}

// Succs returns node ids n has edges to.
func (v View) Succs(id int) (r []int) {
	for _, e := range v.Edges {
		if e.From == id {
			r = append(r, e.To)
		}
	}

	return r
}

// assignLines renders pairs of ab sorted by destination.
func assignLines(p *expr.Pool, ab ir.AssignBlock, lf expr.LabelFormatter) []string {
	type line struct {
		dst, src string
	}

	ls := make([]line, len(ab.Pairs))

	for i, pair := range ab.Pairs {
		ls[i] = line{
			dst: string(p.AppendExpr(nil, pair.Dst, lf)),
			src: string(p.AppendExpr(nil, pair.Src, lf)),
		}
	}

	sort.SliceStable(ls, func(i, j int) bool {
		return ls[i].dst < ls[j].dst
	})

	r := make([]string, len(ls))

	for i, l := range ls {
		r[i] = l.dst + " = " + l.src
	}

	return r
}

func hasUnknown(p *expr.Pool, ab ir.AssignBlock) bool {
	for _, pair := range ab.Pairs {
		if p.Contains(pair.Dst, expr.KindUnknown) || p.Contains(pair.Src, expr.KindUnknown) {
			return true
		}
	}

	return false
}

func labelFormatter(syms *symtab.Pool, n Namer) expr.LabelFormatter {
	return func(b []byte, l symtab.Label) []byte {
		return n(b, l, syms.Symbol(l))
	}
}
