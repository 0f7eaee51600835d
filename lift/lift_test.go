package lift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/irgraph/asm"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
	"github.com/slowlang/irgraph/symtab"
)

func newEnv(t *testing.T) *ir.Env {
	t.Helper()

	syms := symtab.New()

	_, err := syms.Add("done", 0x2000)
	require.NoError(t, err)

	return &ir.Env{
		Exprs: expr.NewPool(),
		Syms:  syms,
		Next:  syms.LabelAt(0x1004),
	}
}

func parse(t *testing.T, text string) asm.Instr {
	t.Helper()

	p, err := asm.ParseListing("t.s", []byte(".org 0x1000\n"+text+"\n"))
	require.NoError(t, err)
	require.Len(t, p.Instrs, 1)

	return p.Instrs[0]
}

func render(e *ir.Env, pairs []ir.Pair, dst expr.Expr) (r []string) {
	for _, p := range pairs {
		r = append(r, e.Exprs.String(p.Dst)+" = "+e.Exprs.String(p.Src))
	}

	if dst != expr.Nil {
		r = append(r, "Dst: "+e.Exprs.String(dst))
	}

	return r
}

func TestLift(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out []string
	}{
		{in: "nop"},
		{in: "mov r1, 7", out: []string{"r1 = 0x7"}},
		{in: "add r0, r1, r2", out: []string{"r0 = r1 + r2"}},
		{in: "neg r3, r4", out: []string{"r3 = -r4"}},
		{in: "ld r2, [sp+16]", out: []string{"r2 = @64[sp + 0x10]"}},
		{in: "st [r1], r2", out: []string{"@64[r1 + 0x0] = r2"}},
		{in: "push r5", out: []string{"sp = sp - 0x8", "@64[sp - 0x8] = r5"}},
		{in: "pop r5", out: []string{"r5 = @64[sp]", "sp = sp + 0x8"}},
		{in: "jmp done", out: []string{"Dst: L0"}},
		{in: "beq r0, 0, done", out: []string{"Dst: (r0 == 0x0) ? L0 : L1"}},
		{in: "bge r0, r1, done", out: []string{"Dst: (r0 <s r1) ? L1 : L0"}},
		{in: "ret", out: []string{"Dst: lr"}},
		{in: "hlt", out: []string{"Dst: hlt()"}},
		{in: "call done", out: []string{
			"r0 = call_func_ret(L0, sp, r0, r1, r2, r3)",
			"sp = call_func_stack(L0, sp)",
			"Dst: L1",
		}},
	} {
		t.Run(tc.in, func(t *testing.T) {
			e := newEnv(t)

			pairs, dst, err := Lifter{}.Lift(e, parse(t, tc.in))
			require.NoError(t, err)

			assert.Equal(t, tc.out, render(e, pairs, dst))
		})
	}
}

func TestLiftSymbolicTarget(t *testing.T) {
	e := newEnv(t)

	_, dst, err := Lifter{}.Lift(e, parse(t, "call puts"))
	require.NoError(t, err)

	l, ok := e.Syms.ByName("puts")
	require.True(t, ok)
	assert.False(t, e.Syms.Symbol(l).Resolved)

	assert.Equal(t, e.Exprs.Label(e.Next), dst)
}

func TestLiftErrors(t *testing.T) {
	for _, in := range []string{
		"frob r0",
		"add r0, r1",
		"mov 5, r0",
		"mov r0, [r1]",
		"ld r0, r1",
		"pop sp",
		"st [x], r0",
	} {
		e := newEnv(t)

		_, _, err := Lifter{}.Lift(e, parse(t, in))
		assert.Error(t, err, "%v", in)
	}
}
