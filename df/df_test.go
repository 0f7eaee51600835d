package df

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
	"github.com/slowlang/irgraph/symtab"
)

type fixture struct {
	*ir.Graph
	p *expr.Pool

	r0, r1, r2, sp expr.Expr
}

func newFixture() *fixture {
	p := expr.NewPool()

	return &fixture{
		Graph: ir.New(p, symtab.New()),
		p:     p,

		r0: p.Reg("r0", 64),
		r1: p.Reg("r1", 64),
		r2: p.Reg("r2", 64),
		sp: p.Reg("sp", 64),
	}
}

func (f *fixture) block(t *testing.T, off uint64, dst expr.Expr, irs ...[]ir.Pair) *ir.Block {
	t.Helper()

	b := &ir.Block{Label: f.Syms.LabelAt(off), Dst: dst}

	for _, pairs := range irs {
		b.Irs = append(b.Irs, ir.AssignBlock{Pairs: pairs})
	}

	require.True(t, f.Add(b))

	if len(f.Entries) == 0 {
		f.Entries = append(f.Entries, b.Label)
	}

	return b
}

func (f *fixture) one(dst, src expr.Expr) []ir.Pair {
	return []ir.Pair{{Dst: dst, Src: src}}
}

func (f *fixture) c(v uint64) expr.Expr { return f.p.Const(v, 64) }

func (f *fixture) lines(b *ir.Block) (r [][]string) {
	for _, ab := range b.Irs {
		var l []string

		for _, p := range ab.Pairs {
			l = append(l, f.p.String(p.Dst)+" = "+f.p.String(p.Src))
		}

		r = append(r, l)
	}

	return r
}

func TestDeadSimpLaterOverwrite(t *testing.T) {
	f := newFixture()

	b := f.block(t, 0x100, f.r1,
		f.one(f.r0, f.c(1)),
		f.one(f.r1, f.p.Op("+", 64, f.r0, f.c(1))),
		f.one(f.r0, f.c(2)),
	)

	changed := DeadSimp(context.Background(), f.Graph, nil)
	assert.True(t, changed)

	assert.Equal(t, [][]string{
		{"r0 = 0x1"},
		{"r1 = r0 + 0x1"},
	}, f.lines(b))

	assert.False(t, DeadSimp(context.Background(), f.Graph, nil))
}

func TestDeadSimpExitLive(t *testing.T) {
	f := newFixture()

	b := f.block(t, 0x100, f.p.Reg("lr", 64),
		f.one(f.r0, f.c(1)),
		f.one(f.r2, f.c(3)),
	)

	assert.True(t, DeadSimp(context.Background(), f.Graph, []expr.Expr{f.r0}))

	assert.Equal(t, [][]string{{"r0 = 0x1"}}, f.lines(b))
}

func TestDeadSimpParallel(t *testing.T) {
	f := newFixture()

	// r0 reads r1 before r1 is overwritten in the same assignment block
	b := f.block(t, 0x100, f.r0,
		f.one(f.r1, f.c(5)),
		[]ir.Pair{{Dst: f.r1, Src: f.c(0)}, {Dst: f.r0, Src: f.r1}},
	)

	DeadSimp(context.Background(), f.Graph, nil)

	assert.Equal(t, [][]string{
		{"r1 = 0x5"},
		{"r0 = r1"},
	}, f.lines(b))
}

func TestDeadSimpKeepsEffects(t *testing.T) {
	f := newFixture()

	u := f.p.Unknown("frob r1")

	b := f.block(t, 0x100, f.c(0),
		f.one(f.r1, f.c(7)),
		[]ir.Pair{{Dst: u, Src: u}},
		f.one(f.p.Mem(f.r2, 64), f.r0),
		f.one(f.r2, f.c(5)),
		nil,
	)

	DeadSimp(context.Background(), f.Graph, nil)

	// r1 is read by the untranslated instruction, the final r2 is dead.
	// The empty assignment block is left for drop-empty.
	assert.Equal(t, [][]string{
		{"r1 = 0x7"},
		{"UNKNOWN<frob r1> = UNKNOWN<frob r1>"},
		{"@64[r2] = r0"},
		nil,
	}, f.lines(b))
}

func TestDeadSimpAcrossBlocks(t *testing.T) {
	f := newFixture()

	exit := f.Syms.LabelAt(0x300)
	loop := f.Syms.LabelAt(0x200)

	head := f.block(t, 0x100, f.p.Label(loop),
		f.one(f.r0, f.c(10)),
		f.one(f.r1, f.c(0)),
		f.one(f.r2, f.c(99)),
	)

	// r0 and r1 are carried around the loop, r1 is stored at the exit
	body := f.block(t, 0x200, f.p.Cond(f.p.Op("==", 1, f.r0, f.c(0)), f.p.Label(exit), f.p.Label(loop)),
		f.one(f.r1, f.p.Op("+", 64, f.r1, f.r0)),
		f.one(f.r0, f.p.Op("-", 64, f.r0, f.c(1))),
	)

	tail := f.block(t, 0x300, f.p.Reg("lr", 64),
		f.one(f.p.Mem(f.sp, 64), f.r1),
		f.one(f.r0, f.c(0)),
	)

	assert.True(t, DeadSimp(context.Background(), f.Graph, nil))

	assert.Equal(t, [][]string{{"r0 = 0xA"}, {"r1 = 0x0"}}, f.lines(head))
	assert.Len(t, body.Irs, 2)
	assert.Equal(t, [][]string{{"@64[sp] = r1"}}, f.lines(tail))

	lv := Liveness(context.Background(), f.Graph, nil)

	in := lv.In[body.Label]
	assert.True(t, in.IsSet(f.r0))
	assert.True(t, in.IsSet(f.r1))
	assert.False(t, in.IsSet(f.r2))
	assert.True(t, in.IsSet(f.sp))
}

func TestDeadSimpChain(t *testing.T) {
	f := newFixture()

	next := f.Syms.LabelAt(0x200)

	f.block(t, 0x100, f.p.Label(next),
		f.one(f.r0, f.c(1)),
	)

	b := f.block(t, 0x200, f.c(0),
		f.one(f.r1, f.r0),
		f.one(f.r2, f.r1),
	)

	assert.True(t, DeadSimp(context.Background(), f.Graph, nil))

	assert.Empty(t, f.Block(f.Entries[0]).Irs)
	assert.Empty(t, b.Irs)

	c := f.Counts()
	assert.Equal(t, 0, c.Pairs)
}
