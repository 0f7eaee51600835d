package opt

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
	"github.com/slowlang/irgraph/symtab"
)

// RemoveEmptyAssignBlocks drops assignment blocks without pairs.
// Unreachable blocks left without assignment blocks and without
// predecessors are removed as well.
func RemoveEmptyAssignBlocks(ctx context.Context, g *ir.Graph) (changed bool) {
	tr := tlog.SpanFromContext(ctx)

	abs := 0

	for _, b := range g.Blocks() {
		irs := b.Irs[:0]

		for _, ab := range b.Irs {
			if len(ab.Pairs) != 0 {
				irs = append(irs, ab)
			}
		}

		abs += len(b.Irs) - len(irs)
		b.Irs = irs
	}

	blocks := 0

	for len(g.Entries) != 0 {
		live := g.Reachable()
		preds := g.Preds()

		removed := 0

		for _, b := range g.Blocks() {
			if len(b.Irs) != 0 || live.IsSet(b.Label) || len(preds[b.Label]) != 0 {
				continue
			}

			g.Remove(b.Label)
			removed++
		}

		if removed == 0 {
			break
		}

		blocks += removed
	}

	tr.V("pass").Printw("drop empty", "assign_blocks", abs, "blocks", blocks)

	return abs != 0 || blocks != 0
}

// RemoveJmpBlocks removes blocks doing nothing but jumping to a label.
// Every destination referring to such a block is redirected to
// the end of the jump chain. Entries and chains closed into a cycle are kept.
// Blocks unreachable from entries are pruned.
func RemoveJmpBlocks(ctx context.Context, g *ir.Graph) (changed bool) {
	tr := tlog.SpanFromContext(ctx)
	p := g.Exprs

	jmp := make(map[symtab.Label]symtab.Label)

	for _, b := range g.Blocks() {
		if g.IsEntry(b.Label) {
			continue
		}

		if t, ok := b.JmpTarget(p); ok {
			jmp[b.Label] = t
		}
	}

	redirect := make(map[symtab.Label]symtab.Label, len(jmp))

	for _, l := range g.Labels() {
		if _, ok := jmp[l]; !ok {
			continue
		}

		if t, ok := chainEnd(jmp, l); ok {
			redirect[l] = t
		}
	}

	rewritten := 0

	for _, b := range g.Blocks() {
		if _, ok := redirect[b.Label]; ok {
			continue
		}

		dst := p.Replace(b.Dst, func(x expr.Expr) (expr.Expr, bool) {
			l, ok := p.LabelOf(x)
			if !ok {
				return x, false
			}

			t, ok := redirect[l]
			if !ok {
				return x, false
			}

			return p.Label(t), true
		})

		dst = sameBranches(p, dst)

		if dst == b.Dst {
			continue
		}

		if tr.If("elide") {
			tr.Printw("redirect", "block", b.Label, "from", p.String(b.Dst), "to", p.String(dst))
		}

		b.Dst = dst
		rewritten++
	}

	for _, l := range g.Labels() {
		if _, ok := redirect[l]; ok {
			g.Remove(l)
		}
	}

	pruned := g.Prune()

	tr.V("pass").Printw("elide jumps", "elided", len(redirect), "rewritten", rewritten, "pruned", len(pruned))

	return len(redirect) != 0 || rewritten != 0 || len(pruned) != 0
}

// MergeBlocks appends a block to its only predecessor
// if the predecessor unconditionally jumps to it.
func MergeBlocks(ctx context.Context, g *ir.Graph) (changed bool) {
	tr := tlog.SpanFromContext(ctx)
	p := g.Exprs

	preds := g.Preds()
	merged := 0

	for _, al := range g.Labels() {
		a := g.Block(al)

		for a != nil {
			bl, ok := p.LabelOf(a.Dst)
			if !ok || bl == al || g.IsEntry(bl) || len(preds[bl]) != 1 {
				break
			}

			b := g.Block(bl)
			if b == nil {
				break
			}

			if tr.If("merge") {
				tr.Printw("merge", "into", al, "block", bl, "assign_blocks", len(a.Irs), "with", len(b.Irs))
			}

			a.Irs = append(a.Irs, b.Irs...)
			a.Dst = b.Dst

			for _, s := range g.Succs(al) {
				for i, q := range preds[s] {
					if q == bl {
						preds[s][i] = al
					}
				}

				preds[s] = uniq(preds[s])
			}

			delete(preds, bl)
			g.Remove(bl)

			merged++
		}
	}

	pruned := g.Prune()

	tr.V("pass").Printw("merge blocks", "merged", merged, "pruned", len(pruned))

	return merged != 0 || len(pruned) != 0
}

// chainEnd follows jump-only blocks starting at l.
// It fails if the chain loops.
func chainEnd(jmp map[symtab.Label]symtab.Label, l symtab.Label) (symtab.Label, bool) {
	visited := map[symtab.Label]struct{}{}

	for {
		t, ok := jmp[l]
		if !ok {
			return l, true
		}

		if _, ok := visited[l]; ok {
			return symtab.NoLabel, false
		}

		visited[l] = struct{}{}
		l = t
	}
}

func sameBranches(p *expr.Pool, x expr.Expr) expr.Expr {
	if p.Kind(x) != expr.KindCond {
		return x
	}

	n := p.Node(x)
	if n.Args[1] != n.Args[2] {
		return x
	}

	return n.Args[1]
}

func uniq(ls []symtab.Label) []symtab.Label {
	r := ls[:0]

outer:
	for _, l := range ls {
		for _, q := range r {
			if q == l {
				continue outer
			}
		}

		r = append(r, l)
	}

	return r
}
