package ir

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/irgraph/asm"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/set"
	"github.com/slowlang/irgraph/symtab"
)

type (
	Pair struct {
		Dst expr.Expr
		Src expr.Expr
	}

	// AssignBlock is the effect of one instruction.
	// All sources are read before any destination is written.
	AssignBlock struct {
		Pairs []Pair
		Instr *asm.Instr
	}

	Block struct {
		Label symtab.Label
		Irs   []AssignBlock

		// Dst is where control goes after the last AssignBlock.
		Dst expr.Expr
	}

	Graph struct {
		Exprs *expr.Pool
		Syms  *symtab.Pool

		Entries []symtab.Label

		blocks []*Block // indexed by label
		n      int

		removed map[symtab.Label]loc.PC
	}

	Counts struct {
		Blocks       int
		AssignBlocks int
		Pairs        int
	}
)

func New(exprs *expr.Pool, syms *symtab.Pool) *Graph {
	return &Graph{
		Exprs:   exprs,
		Syms:    syms,
		removed: make(map[symtab.Label]loc.PC),
	}
}

// Add inserts b. It reports false if the label is already taken.
func (g *Graph) Add(b *Block) bool {
	if g.Has(b.Label) {
		return false
	}

	for int(b.Label) >= len(g.blocks) {
		g.blocks = append(g.blocks, nil)
	}

	g.blocks[b.Label] = b
	g.n++

	return true
}

func (g *Graph) Block(l symtab.Label) *Block {
	if l < 0 || int(l) >= len(g.blocks) {
		return nil
	}

	return g.blocks[l]
}

func (g *Graph) Has(l symtab.Label) bool {
	return g.Block(l) != nil
}

// Remove deletes the block.
// The caller location is kept to report edges left pointing to it.
func (g *Graph) Remove(l symtab.Label) {
	if !g.Has(l) {
		return
	}

	g.blocks[l] = nil
	g.n--

	g.removed[l] = loc.Caller(1)
}

func (g *Graph) Len() int { return g.n }

func (g *Graph) IsEntry(l symtab.Label) bool {
	for _, e := range g.Entries {
		if e == l {
			return true
		}
	}

	return false
}

// Blocks returns blocks in label order.
func (g *Graph) Blocks() []*Block {
	r := make([]*Block, 0, g.n)

	for _, b := range g.blocks {
		if b != nil {
			r = append(r, b)
		}
	}

	return r
}

func (g *Graph) Labels() []symtab.Label {
	r := make([]symtab.Label, 0, g.n)

	for l, b := range g.blocks {
		if b != nil {
			r = append(r, symtab.Label(l))
		}
	}

	return r
}

// Leaves calls f for every possible destination of dst.
// Conditional destinations are split into their branches.
func (g *Graph) Leaves(dst expr.Expr, f func(x expr.Expr)) {
	if dst == expr.Nil {
		f(dst)
		return
	}

	n := g.Exprs.Node(dst)

	if n.Kind == expr.KindCond {
		g.Leaves(n.Args[1], f)
		g.Leaves(n.Args[2], f)

		return
	}

	f(dst)
}

// DstLabels returns the labels dst may jump to, in order, without duplicates.
func (g *Graph) DstLabels(dst expr.Expr) (r []symtab.Label) {
	g.Leaves(dst, func(x expr.Expr) {
		l, ok := g.Exprs.LabelOf(x)
		if !ok {
			return
		}

		for _, q := range r {
			if q == l {
				return
			}
		}

		r = append(r, l)
	})

	return r
}

// IsExit reports whether some destination of dst leaves the graph.
func (g *Graph) IsExit(dst expr.Expr) (exit bool) {
	g.Leaves(dst, func(x expr.Expr) {
		l, ok := g.Exprs.LabelOf(x)
		if !ok || !g.Has(l) {
			exit = true
		}
	})

	return exit
}

// Succs returns in-graph successors of l.
func (g *Graph) Succs(l symtab.Label) (r []symtab.Label) {
	b := g.Block(l)
	if b == nil {
		return nil
	}

	for _, s := range g.DstLabels(b.Dst) {
		if g.Has(s) {
			r = append(r, s)
		}
	}

	return r
}

// Preds computes predecessor lists of all blocks.
func (g *Graph) Preds() map[symtab.Label][]symtab.Label {
	preds := make(map[symtab.Label][]symtab.Label, g.n)

	g.Edges(func(from, to symtab.Label) {
		preds[to] = append(preds[to], from)
	})

	return preds
}

// Edges calls f for every edge in label order.
func (g *Graph) Edges(f func(from, to symtab.Label)) {
	for _, b := range g.Blocks() {
		for _, s := range g.Succs(b.Label) {
			f(b.Label, s)
		}
	}
}

func (g *Graph) Reachable() set.Bits[symtab.Label] {
	var seen set.Bits[symtab.Label]

	q := make([]symtab.Label, 0, len(g.Entries))

	for _, e := range g.Entries {
		if g.Has(e) && !seen.IsSet(e) {
			seen.Set(e)
			q = append(q, e)
		}
	}

	for len(q) != 0 {
		l := q[len(q)-1]
		q = q[:len(q)-1]

		for _, s := range g.Succs(l) {
			if seen.IsSet(s) {
				continue
			}

			seen.Set(s)
			q = append(q, s)
		}
	}

	return seen
}

// Prune removes blocks unreachable from entries.
// A graph without entries is left as is.
func (g *Graph) Prune() (removed []symtab.Label) {
	if len(g.Entries) == 0 {
		return nil
	}

	live := g.Reachable()

	for _, l := range g.Labels() {
		if live.IsSet(l) {
			continue
		}

		g.Remove(l)
		removed = append(removed, l)
	}

	return removed
}

func (g *Graph) Counts() (c Counts) {
	for _, b := range g.Blocks() {
		c.Blocks++
		c.AssignBlocks += len(b.Irs)

		for _, ab := range b.Irs {
			c.Pairs += len(ab.Pairs)
		}
	}

	return c
}

// Shrunk reports whether no counter of c grew compared to prev.
func (c Counts) Shrunk(prev Counts) bool {
	return c.Blocks <= prev.Blocks && c.AssignBlocks <= prev.AssignBlocks && c.Pairs <= prev.Pairs
}

// JmpTarget reports the target of a block consisting of a single unconditional jump.
func (b *Block) JmpTarget(p *expr.Pool) (symtab.Label, bool) {
	if len(b.Irs) != 0 {
		return symtab.NoLabel, false
	}

	return p.LabelOf(b.Dst)
}

func (ab AssignBlock) Copy() AssignBlock {
	ab.Pairs = append([]Pair(nil), ab.Pairs...)

	return ab
}

func (p Pair) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyInt(b, "dst", int(p.Dst))
	b = e.AppendKeyInt(b, "src", int(p.Src))

	return b
}
