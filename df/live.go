package df

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
	"github.com/slowlang/irgraph/set"
	"github.com/slowlang/irgraph/symtab"
)

type (
	Regs = set.Bits[expr.Expr]

	// Live is register liveness at block boundaries.
	Live struct {
		g *ir.Graph

		// ExitLive registers are read by whoever the graph exits to.
		ExitLive Regs

		In  map[symtab.Label]Regs
		Out map[symtab.Label]Regs

		all Regs // every register mentioned in the graph
	}

	worklist struct {
		heap.Heap[symtab.Label]

		queued set.Bits[symtab.Label]
	}
)

// Liveness solves backward register liveness over g.
func Liveness(ctx context.Context, g *ir.Graph, exitLive []expr.Expr) *Live {
	tr := tlog.SpanFromContext(ctx)

	lv := &Live{
		g:        g,
		ExitLive: set.MakeBits(exitLive...),
		In:       make(map[symtab.Label]Regs, g.Len()),
		Out:      make(map[symtab.Label]Regs, g.Len()),
	}

	lv.all = lv.ExitLive.Copy()

	for _, b := range g.Blocks() {
		for _, ab := range b.Irs {
			for _, p := range ab.Pairs {
				lv.regs(&lv.all, p.Dst)
				lv.regs(&lv.all, p.Src)
			}
		}

		lv.regs(&lv.all, b.Dst)
	}

	po := postorder(g)
	preds := g.Preds()

	w := &worklist{Heap: heap.Heap[symtab.Label]{Less: func(d []symtab.Label, i, j int) bool {
		return po[d[i]] < po[d[j]]
	}}}

	for _, l := range g.Labels() {
		w.push(l)
	}

	iters := 0

	for w.Len() != 0 {
		l := w.Pop()
		w.queued.Clear(l)
		iters++

		out := lv.blockOut(l)
		in := lv.blockIn(g.Block(l), out)

		lv.Out[l] = out

		if old, ok := lv.In[l]; ok && old.Equal(in) {
			continue
		}

		lv.In[l] = in

		for _, p := range preds[l] {
			w.push(p)
		}
	}

	if tr.If("live") {
		for _, l := range g.Labels() {
			tr.Printw("live", "block", l, "in", lv.In[l], "out", lv.Out[l])
		}
	}

	tr.V("live").Printw("liveness solved", "blocks", g.Len(), "iters", iters, "regs", lv.all.Size())

	return lv
}

// AssignIn transfers live registers backward through ab.
// All sources of ab are read before any destination is written.
func (lv *Live) AssignIn(ab ir.AssignBlock, live Regs) Regs {
	if lv.unknown(ab) {
		return lv.all.Copy()
	}

	var defs, uses Regs

	for _, p := range ab.Pairs {
		if lv.g.Exprs.Kind(p.Dst) == expr.KindReg {
			defs.Set(p.Dst)
		} else {
			lv.regs(&uses, p.Dst)
		}

		lv.regs(&uses, p.Src)
	}

	in := live.Copy()
	in.AndNot(defs)
	in.Or(uses)

	return in
}

func (lv *Live) blockOut(l symtab.Label) (out Regs) {
	b := lv.g.Block(l)

	for _, s := range lv.g.Succs(l) {
		out.Or(lv.In[s])
	}

	if lv.g.IsExit(b.Dst) {
		out.Or(lv.ExitLive)
	}

	return out
}

func (lv *Live) blockIn(b *ir.Block, out Regs) Regs {
	live := out.Copy()
	lv.regs(&live, b.Dst)

	for i := len(b.Irs) - 1; i >= 0; i-- {
		live = lv.AssignIn(b.Irs[i], live)
	}

	return live
}

// regs adds registers read by x.
// For a memory destination that is its address.
func (lv *Live) regs(s *Regs, x expr.Expr) {
	lv.g.Exprs.Walk(x, func(x expr.Expr, n expr.Node) bool {
		if n.Kind == expr.KindReg {
			s.Set(x)
		}

		return true
	})
}

func (lv *Live) unknown(ab ir.AssignBlock) bool {
	for _, p := range ab.Pairs {
		if lv.g.Exprs.Contains(p.Dst, expr.KindUnknown) || lv.g.Exprs.Contains(p.Src, expr.KindUnknown) {
			return true
		}
	}

	return false
}

func (w *worklist) push(l symtab.Label) {
	if w.queued.IsSet(l) {
		return
	}

	w.queued.Set(l)
	w.Push(l)
}

// postorder numbers blocks so that successors mostly come before predecessors.
// Blocks unreachable from entries are numbered last in label order.
func postorder(g *ir.Graph) map[symtab.Label]int {
	po := make(map[symtab.Label]int, g.Len())

	var seen set.Bits[symtab.Label]

	var dfs func(l symtab.Label)
	dfs = func(l symtab.Label) {
		seen.Set(l)

		for _, s := range g.Succs(l) {
			if !seen.IsSet(s) {
				dfs(s)
			}
		}

		po[l] = len(po)
	}

	for _, e := range g.Entries {
		if g.Has(e) && !seen.IsSet(e) {
			dfs(e)
		}
	}

	for _, l := range g.Labels() {
		if !seen.IsSet(l) {
			dfs(l)
		}
	}

	return po
}
