package ir

import (
	"tlog.app/go/errors"

	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/symtab"
)

var ErrInconsistent = errors.New("inconsistent graph")

// Validate checks the invariants every rewrite must keep.
func (g *Graph) Validate() error {
	for l, b := range g.blocks {
		if b == nil {
			continue
		}

		if b.Label != symtab.Label(l) {
			return errors.Wrap(ErrInconsistent, "label collision: block %v stored as %v", b.Label, l)
		}

		if b.Dst == expr.Nil {
			return errors.Wrap(ErrInconsistent, "block %v: no destination", b.Label)
		}

		for _, t := range g.DstLabels(b.Dst) {
			if g.Has(t) {
				continue
			}

			if pc, ok := g.removed[t]; ok {
				return errors.Wrap(ErrInconsistent, "dangling edge %v -> %v: block removed at %v", b.Label, t, pc)
			}
		}
	}

	for _, e := range g.Entries {
		if !g.Has(e) {
			return errors.Wrap(ErrInconsistent, "entry %v: no block", e)
		}
	}

	return nil
}

// ValidateReachable checks that every block is reachable from entries.
func (g *Graph) ValidateReachable() error {
	if len(g.Entries) == 0 {
		return nil
	}

	live := g.Reachable()

	for _, l := range g.Labels() {
		if !live.IsSet(l) {
			return errors.Wrap(ErrInconsistent, "block %v: unreachable", l)
		}
	}

	return nil
}
