package ir

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/asm"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/symtab"
)

type (
	// Lifter translates one instruction into its effect.
	// dst is expr.Nil unless the instruction transfers control.
	Lifter interface {
		Lift(e *Env, ins asm.Instr) (pairs []Pair, dst expr.Expr, err error)
	}

	Env struct {
		Exprs *expr.Pool
		Syms  *symtab.Pool

		// Next is the label of the instruction following the lifted one.
		Next symtab.Label
	}

	Builder struct {
		*Graph

		Lifter Lifter

		// Errs are untranslatable instructions found so far.
		Errs []error
	}
)

var ErrUntranslatable = errors.New("untranslatable instruction")

func NewBuilder(g *Graph, l Lifter) *Builder {
	return &Builder{
		Graph:  g,
		Lifter: l,
	}
}

func (b *Builder) AddBlocks(ctx context.Context, blocks []asm.Block) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "ir: build graph", "blocks", len(blocks))
	defer tr.Finish("err", &err)

	for _, ab := range blocks {
		_, err = b.AddBlock(ctx, ab)
		if err != nil {
			return errors.Wrap(err, "block %v", ab.Label)
		}
	}

	tr.Printw("graph built", "blocks", b.Len(), "untranslatable", len(b.Errs))

	return nil
}

// AddBlock translates ab and adds it to the graph.
// A label already present is left untouched and false is returned.
func (b *Builder) AddBlock(ctx context.Context, ab asm.Block) (added bool, err error) {
	if b.Has(ab.Label) {
		return false, nil
	}

	irb := &Block{
		Label: ab.Label,
		Dst:   expr.Nil,
	}

	env := &Env{
		Exprs: b.Exprs,
		Syms:  b.Syms,
	}

	for i, ins := range ab.Instrs {
		env.Next = b.Syms.LabelAt(ins.Next())

		pairs, dst, err := b.Lifter.Lift(env, ins)
		if err != nil {
			err = errors.Wrap(ErrUntranslatable, "%#x %v: %v", ins.Addr, ins, err)
			b.Errs = append(b.Errs, err)

			tlog.SpanFromContext(ctx).Printw("untranslatable instruction", "block", ab.Label, "addr", tlog.FormatNext("%#x"), ins.Addr, "instr", ins.String(), "err", err, "", tlog.Error)

			u := b.Exprs.Unknown(ins.String())
			pairs, dst = []Pair{{Dst: u, Src: u}}, expr.Nil

			if ins.Flow() != asm.FlowNone && i == len(ab.Instrs)-1 {
				dst = b.opaqueDst(ab, ins, u)
			}
		}

		if dst != expr.Nil && i != len(ab.Instrs)-1 {
			return false, errors.New("control transfer at %#x before the end of block", ins.Addr)
		}

		irb.Irs = append(irb.Irs, AssignBlock{Pairs: pairs, Instr: &ins})

		if dst != expr.Nil {
			irb.Dst = dst
		}
	}

	if irb.Dst == expr.Nil {
		irb.Dst = b.fallDst(ab)
	}

	return b.Add(irb), nil
}

func (b *Builder) fallDst(ab asm.Block) expr.Expr {
	if len(ab.Succs) == 1 {
		return b.Exprs.Label(ab.Succs[0])
	}

	if n := len(ab.Instrs); n != 0 {
		return b.Exprs.Label(b.Syms.LabelAt(ab.Instrs[n-1].Next()))
	}

	return b.Exprs.Unknown("empty block")
}

// opaqueDst keeps the successors of an untranslated control transfer.
// Returns and transfers without known targets leave the graph through u.
func (b *Builder) opaqueDst(ab asm.Block, ins asm.Instr, u expr.Expr) expr.Expr {
	if ins.Flow() == asm.FlowReturn {
		return u
	}

	switch len(ab.Succs) {
	case 1:
		return b.Exprs.Label(ab.Succs[0])
	case 2:
		return b.Exprs.Cond(u, b.Exprs.Label(ab.Succs[0]), b.Exprs.Label(ab.Succs[1]))
	default:
		return u
	}
}
