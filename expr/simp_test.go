package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimp(t *testing.T) {
	p := NewPool()
	s := Simp{Pool: p}

	r0, r1 := p.Reg("r0", 64), p.Reg("r1", 64)
	c := func(v uint64) Expr { return p.Const(v, 64) }
	op := func(o string, a, b Expr) Expr { return p.Op(o, 64, a, b) }

	for _, tc := range []struct {
		name string
		in   Expr
		exp  Expr
	}{
		{"fold", op("+", c(2), c(3)), c(5)},
		{"fold_nested", op("*", op("+", c(1), c(2)), c(4)), c(12)},
		{"wrap", op("-", c(0), c(1)), c(^uint64(0))},
		{"const_last", op("+", c(1), r0), op("+", r0, c(1))},
		{"add_zero", op("+", r0, c(0)), r0},
		{"mul_one", op("*", c(1), r0), r0},
		{"and_zero", op("&", r0, c(0)), c(0)},
		{"xor_self", op("^", r0, r0), c(0)},
		{"sub_self", op("-", r1, r1), c(0)},
		{"reassoc", op("+", op("+", r0, c(1)), c(2)), op("+", r0, c(3))},
		{"neg_neg", p.Op("-", 64, p.Op("-", 64, r0)), r0},
		{"mem_addr", p.Mem(op("+", r0, c(0)), 64), p.Mem(r0, 64)},
		{"cond_same", p.Cond(r0, r1, r1), r1},
		{"cond_true", p.Cond(c(1), r0, r1), r0},
		{"cond_false", p.Cond(op("==", c(1), c(2)), r0, r1), r1},
		{"shift_out", p.Op("<<", 8, p.Const(1, 8), p.Const(9, 8)), p.Const(0, 8)},
		{"signed_lt", p.Op("<s", 1, c(^uint64(0)), c(0)), p.Const(1, 1)},
		{"call_kept", p.Op("call", 64, r0), p.Op("call", 64, r0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Simplify(tc.in)
			assert.Equal(t, p.String(tc.exp), p.String(got))
			assert.Equal(t, tc.exp, got)
		})
	}
}

func TestSimpIdempotent(t *testing.T) {
	p := NewPool()
	s := Simp{Pool: p}

	r0, r1 := p.Reg("r0", 64), p.Reg("r1", 64)

	in := []Expr{
		p.Op("+", 64, p.Const(7, 64), p.Op("*", 64, r1, r0)),
		p.Cond(p.Op("!=", 1, r0, r0), r1, p.Mem(p.Op("+", 64, p.Op("+", 64, r1, p.Const(8, 64)), p.Const(8, 64)), 64)),
		p.Op("|", 64, p.Op("&", 64, r0, p.Const(^uint64(0), 64)), r0),
		Nil,
	}

	for _, x := range in {
		once := s.Simplify(x)
		assert.Equal(t, once, s.Simplify(once), "expr %v", p.String(x))
	}
}
