package opt

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/df"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
)

type (
	State int

	Options struct {
		Simplifier expr.Simplifier

		// ExitLive registers are live wherever control leaves the graph.
		ExitLive []expr.Expr

		Jobs int
	}

	Stats struct {
		Iters int

		Before ir.Counts
		After  ir.Counts

		Passes []Pass
	}

	Pass struct {
		Iter    int
		Rule    string
		Changed bool
		Counts  ir.Counts
	}

	rule struct {
		name string
		run  func(ctx context.Context, g *ir.Graph) (bool, error)

		// pruning rules leave no unreachable blocks behind
		pruning bool
	}
)

const (
	Running State = iota
	Converged
)

// Simplify normalizes g once and then applies dead code elimination,
// drop-empty, jump elision and block merging until none of them changes the graph.
//
// The graph is validated after each rule.
// An error wraps ir.ErrInconsistent and names the rule which broke it.
func Simplify(ctx context.Context, g *ir.Graph, opts Options) (st Stats, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "opt: simplify", "blocks", g.Len())
	defer tr.Finish("iters", &st.Iters, "err", &err)

	if opts.Simplifier == nil {
		opts.Simplifier = expr.Simp{Pool: g.Exprs}
	}

	rules := []rule{
		{name: "dead_simp", run: func(ctx context.Context, g *ir.Graph) (bool, error) {
			return df.DeadSimp(ctx, g, opts.ExitLive), nil
		}},
		{name: "remove_empty_assignblks", run: infallible(RemoveEmptyAssignBlocks)},
		{name: "remove_jmp_blocks", run: infallible(RemoveJmpBlocks), pruning: true},
		{name: "merge_blocks", run: infallible(MergeBlocks), pruning: true},
	}

	st.Before = g.Counts()
	prev := st.Before

	apply := func(iter int, r rule) (bool, error) {
		changed, err := r.run(ctx, g)
		if err != nil {
			return false, errors.Wrap(err, "%v", r.name)
		}

		c := g.Counts()

		st.Passes = append(st.Passes, Pass{Iter: iter, Rule: r.name, Changed: changed, Counts: c})

		tr.V("pass").Printw("pass", "iter", iter, "rule", r.name, "changed", changed, "blocks", c.Blocks, "assign_blocks", c.AssignBlocks, "pairs", c.Pairs)

		err = check(g, r.pruning)
		if err != nil {
			return false, errors.Wrap(err, "after %v", r.name)
		}

		if !c.Shrunk(prev) {
			return false, errors.Wrap(ir.ErrInconsistent, "after %v: graph grew: %+v -> %+v", r.name, prev, c)
		}

		prev = c

		return changed, nil
	}

	normalize := rule{name: "simplify", run: func(ctx context.Context, g *ir.Graph) (bool, error) {
		return Normalize(ctx, g, opts.Simplifier, opts.Jobs)
	}}

	state := Running

	for state == Running {
		st.Iters++

		changed := false

		if st.Iters == 1 {
			changed, err = apply(st.Iters, normalize)
			if err != nil {
				return st, err
			}
		}

		for _, r := range rules {
			ch, err := apply(st.Iters, r)
			if err != nil {
				return st, err
			}

			changed = changed || ch
		}

		if !changed {
			state = Converged
		}
	}

	st.After = g.Counts()

	tr.Printw("simplified", "state", state.String(), "iters", st.Iters,
		"blocks", st.After.Blocks, "blocks_before", st.Before.Blocks,
		"pairs", st.After.Pairs, "pairs_before", st.Before.Pairs)

	return st, nil
}

func check(g *ir.Graph, reachable bool) error {
	err := g.Validate()
	if err != nil || !reachable {
		return err
	}

	return g.ValidateReachable()
}

func infallible(f func(context.Context, *ir.Graph) bool) func(context.Context, *ir.Graph) (bool, error) {
	return func(ctx context.Context, g *ir.Graph) (bool, error) {
		return f(ctx, g), nil
	}
}

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Converged:
		return "converged"
	default:
		return "unknown"
	}
}
