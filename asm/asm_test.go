package asm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/irgraph/symtab"
)

const sample = `; sample listing
.org 0x1000
.entry main
main:
	mov r0, 5
	beq r0, 0, done
	st [sp-8], r0
loop:	add r0, r0, -1
	bne r0, 0, loop
	call printf
done:
	ret`

func TestParseListing(t *testing.T) {
	p, err := ParseListing("sample.s", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "main", p.Entry)
	assert.Equal(t, []LabelDef{
		{Name: "main", Addr: 0x1000},
		{Name: "loop", Addr: 0x100c},
		{Name: "done", Addr: 0x1018},
	}, p.Labels)

	require.Len(t, p.Instrs, 7)

	assert.Equal(t, Instr{
		Addr:     0x1008,
		Size:     InstrSize,
		Mnemonic: "st",
		Args: []Arg{
			{Kind: ArgMem, Ident: "sp", Imm: -8},
			{Kind: ArgIdent, Ident: "r0"},
		},
	}, p.Instrs[2])

	assert.Equal(t, "add r0, r0, -0x1", p.Instrs[3].String())
	assert.Equal(t, "st [sp-0x8], r0", p.Instrs[2].String())
	assert.Equal(t, FlowCondJump, p.Instrs[4].Flow())
	assert.Equal(t, "ret", p.Instrs[6].String())
}

func TestParseListingErrors(t *testing.T) {
	for _, text := range []string{
		"a:\na:\n",
		".bogus 1\n",
		".org -16\n",
		"mov r0, [\n",
	} {
		_, err := ParseListing("bad.s", []byte(text))
		assert.Error(t, err, "%q", text)
	}
}

func TestDisMultiBlock(t *testing.T) {
	p, err := ParseListing("sample.s", []byte(sample))
	require.NoError(t, err)

	syms := symtab.New()

	for _, l := range p.Labels {
		_, err = syms.Add(l.Name, l.Addr)
		require.NoError(t, err)
	}

	d := &Disassembler{Syms: syms}

	blocks, err := d.DisMultiBlock(context.Background(), p, 0x1000)
	require.NoError(t, err)
	require.Len(t, blocks, 5)

	at := func(addr uint64) symtab.Label {
		l, ok := syms.ByOffset(addr)
		require.True(t, ok, "%#x", addr)
		return l
	}

	main, _ := syms.ByName("main")
	loop, _ := syms.ByName("loop")
	done, _ := syms.ByName("done")

	assert.Equal(t, main, blocks[0].Label)
	assert.Len(t, blocks[0].Instrs, 2)
	assert.Equal(t, []symtab.Label{done, at(0x1008)}, blocks[0].Succs)

	assert.Equal(t, []symtab.Label{loop}, blocks[1].Succs)

	assert.Equal(t, loop, blocks[2].Label)
	assert.Equal(t, []symtab.Label{loop, at(0x1014)}, blocks[2].Succs)

	assert.Equal(t, []symtab.Label{done}, blocks[3].Succs)

	assert.Equal(t, done, blocks[4].Label)
	assert.Empty(t, blocks[4].Succs)

	_, err = d.DisMultiBlock(context.Background(), p, 0x2000)
	assert.Error(t, err)
}
