package df

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
)

// DeadSimp removes assignments to registers nobody reads.
// Memory writes and untranslated effects are always kept.
// Assignment blocks left empty are removed.
// It repeats until nothing changes and reports whether anything did.
func DeadSimp(ctx context.Context, g *ir.Graph, exitLive []expr.Expr) (changed bool) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "df: dead code")
	defer tr.Finish("changed", &changed)

	for round := 0; ; round++ {
		lv := Liveness(ctx, g, exitLive)

		pairs, abs := 0, 0

		for _, b := range g.Blocks() {
			p, a := lv.sweep(ctx, b)

			pairs += p
			abs += a
		}

		tr.V("dead").Printw("dead code round", "round", round, "pairs", pairs, "assign_blocks", abs)

		if pairs == 0 && abs == 0 {
			return changed
		}

		changed = true
	}
}

// sweep drops dead pairs of b walking backward from its live-out.
func (lv *Live) sweep(ctx context.Context, b *ir.Block) (pairs, abs int) {
	out := lv.Out[b.Label]

	live := out.Copy()
	lv.regs(&live, b.Dst)

	irs := b.Irs[:0]
	keep := make([]bool, len(b.Irs))

	for i := len(b.Irs) - 1; i >= 0; i-- {
		ab := b.Irs[i]

		var kept []ir.Pair

		for _, p := range ab.Pairs {
			if lv.g.Exprs.Kind(p.Dst) == expr.KindReg && !live.IsSet(p.Dst) {
				if tr := tlog.SpanFromContext(ctx); tr.If("dead") {
					tr.Printw("dead pair", "block", b.Label, "dst", lv.g.Exprs.String(p.Dst), "src", lv.g.Exprs.String(p.Src))
				}

				pairs++

				continue
			}

			kept = append(kept, p)
		}

		if len(kept) == len(ab.Pairs) {
			keep[i] = true
			live = lv.AssignIn(ab, live)

			continue
		}

		if len(kept) == 0 {
			abs++
			continue
		}

		ab.Pairs = kept
		b.Irs[i] = ab
		keep[i] = true

		live = lv.AssignIn(ab, live)
	}

	for i, ab := range b.Irs {
		if keep[i] {
			irs = append(irs, ab)
		}
	}

	b.Irs = irs

	return pairs, abs
}
