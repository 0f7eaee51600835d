package opt

import (
	"context"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
)

type normalized struct {
	irs []ir.AssignBlock
	dst expr.Expr

	changed bool
}

// Normalize rewrites every expression of g to the form s produces.
// Register assignments that normalize to r = r are dropped.
//
// Blocks are processed by up to jobs goroutines, jobs <= 0 means no limit.
// The graph is only written after all of them finished.
func Normalize(ctx context.Context, g *ir.Graph, s expr.Simplifier, jobs int) (changed bool, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "opt: normalize", "jobs", jobs)
	defer tr.Finish("changed", &changed, "err", &err)

	blocks := g.Blocks()
	res := make([]normalized, len(blocks))

	eg, ctx := errgroup.WithContext(ctx)

	if jobs > 0 {
		eg.SetLimit(jobs)
	}

	for i, b := range blocks {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "block %v", b.Label)
			}

			res[i] = normalizeBlock(g.Exprs, s, b)

			return nil
		})
	}

	err = eg.Wait()
	if err != nil {
		return false, err
	}

	for i, b := range blocks {
		if !res[i].changed {
			continue
		}

		b.Irs = res[i].irs
		b.Dst = res[i].dst

		changed = true

		if tr.If("dump") {
			tr.Printw("normalized", "block", b.Label, "assign_blocks", len(b.Irs), "dst", g.Exprs.String(b.Dst))
		}
	}

	return changed, nil
}

func normalizeBlock(p *expr.Pool, s expr.Simplifier, b *ir.Block) (r normalized) {
	r.irs = make([]ir.AssignBlock, len(b.Irs))

	for i, ab := range b.Irs {
		nab := ir.AssignBlock{Instr: ab.Instr}

		if ab.Pairs != nil {
			nab.Pairs = make([]ir.Pair, 0, len(ab.Pairs))
		}

		for _, pair := range ab.Pairs {
			np := ir.Pair{
				Dst: s.Simplify(pair.Dst),
				Src: s.Simplify(pair.Src),
			}

			if np != pair {
				r.changed = true
			}

			if np.Dst == np.Src && p.Kind(np.Dst) == expr.KindReg {
				r.changed = true
				continue
			}

			nab.Pairs = append(nab.Pairs, np)
		}

		r.irs[i] = nab
	}

	r.dst = s.Simplify(b.Dst)

	if r.dst != b.Dst {
		r.changed = true
	}

	return r
}
