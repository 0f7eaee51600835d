package ir_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/irgraph/asm"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
	"github.com/slowlang/irgraph/lift"
	"github.com/slowlang/irgraph/symtab"
)

const listing = `.org 0x1000
main:
	mov r0, 1
	frob r1
	beq r0, 0, out
	add r0, r0, 1
out:
	ret`

func build(t *testing.T, text string) (*ir.Builder, *symtab.Pool) {
	t.Helper()

	p, err := asm.ParseListing("t.s", []byte(text))
	require.NoError(t, err)

	syms := symtab.New()

	for _, l := range p.Labels {
		_, err = syms.Add(l.Name, l.Addr)
		require.NoError(t, err)
	}

	d := &asm.Disassembler{Syms: syms}

	blocks, err := d.DisMultiBlock(context.Background(), p, 0x1000)
	require.NoError(t, err)

	b := ir.NewBuilder(ir.New(expr.NewPool(), syms), lift.Lifter{})

	err = b.AddBlocks(context.Background(), blocks)
	require.NoError(t, err)

	return b, syms
}

func TestBuilder(t *testing.T) {
	b, syms := build(t, listing)
	p := b.Exprs

	main, _ := syms.ByName("main")
	out, _ := syms.ByName("out")
	mid, ok := syms.ByOffset(0x100c)
	require.True(t, ok)

	require.Equal(t, 3, b.Len())

	mb := b.Block(main)
	require.NotNil(t, mb)
	require.Len(t, mb.Irs, 3)

	assert.Equal(t, uint64(0x1000), mb.Irs[0].Instr.Addr)
	assert.Equal(t, "frob r1", mb.Irs[1].Instr.String())

	u := mb.Irs[1].Pairs[0]
	assert.Equal(t, expr.KindUnknown, p.Kind(u.Dst))
	assert.Equal(t, u.Dst, u.Src)

	require.Len(t, b.Errs, 1)
	assert.ErrorIs(t, b.Errs[0], ir.ErrUntranslatable)

	assert.Equal(t, []symtab.Label{out, mid}, b.Succs(main))

	// fallthrough from the add block
	assert.Equal(t, p.Label(out), b.Block(mid).Dst)
	assert.Equal(t, p.Reg("lr", 64), b.Block(out).Dst)

	require.NoError(t, b.Validate())
}

func TestBuilderIdempotent(t *testing.T) {
	b, syms := build(t, listing)

	main, _ := syms.ByName("main")
	before := b.Block(main)

	added, err := b.AddBlock(context.Background(), asm.Block{Label: main})
	require.NoError(t, err)
	assert.False(t, added)

	assert.Same(t, before, b.Block(main))
	assert.Equal(t, 3, b.Len())
}

func TestBuilderEarlyTransfer(t *testing.T) {
	b := ir.NewBuilder(ir.New(expr.NewPool(), symtab.New()), lift.Lifter{})

	l := b.Syms.LabelAt(0x10)

	_, err := b.AddBlock(context.Background(), asm.Block{
		Label: l,
		Instrs: []asm.Instr{
			{Addr: 0x10, Size: asm.InstrSize, Mnemonic: "ret"},
			{Addr: 0x14, Size: asm.InstrSize, Mnemonic: "nop"},
		},
	})
	assert.Error(t, err)
	assert.False(t, b.Has(l))
}

func TestBuilderUntranslatableBranch(t *testing.T) {
	b, syms := build(t, `.org 0x1000
main:
	mov r0, 1
	beq r0, [r1], out
	st [r0], 2
	ret
out:
	st [r0], 3
	ret`)
	p := b.Exprs

	main, _ := syms.ByName("main")
	out, _ := syms.ByName("out")
	next, ok := syms.ByOffset(0x1008)
	require.True(t, ok)

	require.Len(t, b.Errs, 1)
	require.Equal(t, 3, b.Len())

	mb := b.Block(main)
	require.NotNil(t, mb)

	assert.Equal(t, expr.KindCond, p.Kind(mb.Dst))
	assert.True(t, p.Contains(mb.Dst, expr.KindUnknown))
	assert.Equal(t, []symtab.Label{out, next}, b.DstLabels(mb.Dst))
	assert.Equal(t, []symtab.Label{out, next}, b.Succs(main))

	b.Entries = []symtab.Label{main}

	require.NoError(t, b.Validate())
	require.NoError(t, b.ValidateReachable())
}

func TestBuilderUntranslatableExit(t *testing.T) {
	b, syms := build(t, `.org 0x1000
main:
	beq r0, 0, far
	ret 1
far:
	jmp [r1]
	mov r0, 2`)
	p := b.Exprs

	far, _ := syms.ByName("far")
	ret, ok := syms.ByOffset(0x1004)
	require.True(t, ok)

	require.Len(t, b.Errs, 2)
	require.Equal(t, 3, b.Len())

	for _, l := range []symtab.Label{ret, far} {
		blk := b.Block(l)
		require.NotNil(t, blk)

		assert.Equal(t, expr.KindUnknown, p.Kind(blk.Dst), "block %v", l)
		assert.Empty(t, b.Succs(l), "block %v", l)
		assert.True(t, b.IsExit(blk.Dst), "block %v", l)
	}
}
