package lift

import (
	"tlog.app/go/errors"

	"github.com/slowlang/irgraph/asm"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/ir"
)

type (
	// Lifter translates the listing instruction set.
	//
	// Calls are modeled by their effect on the return value register
	// and the stack pointer, the way an analysis of a single function sees them.
	Lifter struct{}

	operands struct {
		e    *ir.Env
		args []asm.Arg

		err error
	}
)

const (
	Size = 64

	SP = "sp"
	LR = "lr"
	RV = "r0" // return value
)

var Regs = map[string]bool{
	"r0": true, "r1": true, "r2": true, "r3": true,
	"r4": true, "r5": true, "r6": true, "r7": true,
	"r8": true, "r9": true, "r10": true, "r11": true,
	"r12": true, "r13": true, "r14": true, "r15": true,
	SP: true, LR: true,
}

// CallArgs are registers a callee may read.
var CallArgs = []string{"r0", "r1", "r2", "r3"}

var arity = map[string]int{
	"nop": 0, "ret": 0, "hlt": 0,
	"jmp": 1, "call": 1, "push": 1, "pop": 1,
	"mov": 2, "ld": 2, "st": 2, "neg": 2, "not": 2,
	"add": 3, "sub": 3, "mul": 3, "and": 3, "or": 3, "xor": 3, "shl": 3, "shr": 3,
	"beq": 3, "bne": 3, "blt": 3, "bge": 3,
}

var binops = map[string]string{
	"add": "+",
	"sub": "-",
	"mul": "*",
	"and": "&",
	"or":  "|",
	"xor": "^",
	"shl": "<<",
	"shr": ">>",
}

var unops = map[string]string{
	"neg": "-",
	"not": "~",
}

var conds = map[string]string{
	"beq": "==",
	"bne": "!=",
	"blt": "<s",
	"bge": "<s", // branches swapped
}

func (Lifter) Lift(e *ir.Env, ins asm.Instr) ([]ir.Pair, expr.Expr, error) {
	n, ok := arity[ins.Mnemonic]
	if !ok {
		return nil, expr.Nil, errors.New("unsupported mnemonic: %v", ins.Mnemonic)
	}

	if len(ins.Args) != n {
		return nil, expr.Nil, errors.New("%v: %d operands expected, got %d", ins.Mnemonic, n, len(ins.Args))
	}

	o := &operands{e: e, args: ins.Args}

	pairs, dst := o.lift(ins.Mnemonic)
	if o.err != nil {
		return nil, expr.Nil, o.err
	}

	return pairs, dst, nil
}

func (o *operands) lift(m string) ([]ir.Pair, expr.Expr) {
	p := o.e.Exprs

	if op, ok := binops[m]; ok {
		return []ir.Pair{{Dst: o.reg(0), Src: p.Op(op, Size, o.value(1), o.value(2))}}, expr.Nil
	}

	if op, ok := unops[m]; ok {
		return []ir.Pair{{Dst: o.reg(0), Src: p.Op(op, Size, o.value(1))}}, expr.Nil
	}

	if op, ok := conds[m]; ok {
		c := p.Op(op, 1, o.value(0), o.value(1))
		taken, next := o.target(2), p.Label(o.e.Next)

		if m == "bge" {
			taken, next = next, taken
		}

		return nil, p.Cond(c, taken, next)
	}

	sp := p.Reg(SP, Size)

	switch m {
	case "nop":
		return nil, expr.Nil
	case "mov":
		return []ir.Pair{{Dst: o.reg(0), Src: o.value(1)}}, expr.Nil
	case "ld":
		return []ir.Pair{{Dst: o.reg(0), Src: o.mem(1)}}, expr.Nil
	case "st":
		return []ir.Pair{{Dst: o.mem(0), Src: o.value(1)}}, expr.Nil
	case "push":
		top := p.Op("-", Size, sp, p.Const(8, Size))

		return []ir.Pair{
			{Dst: sp, Src: top},
			{Dst: p.Mem(top, Size), Src: o.value(0)},
		}, expr.Nil
	case "pop":
		d := o.reg(0)
		if d == sp {
			o.fail(errors.New("pop into %v", SP))
		}

		return []ir.Pair{
			{Dst: d, Src: p.Mem(sp, Size)},
			{Dst: sp, Src: p.Op("+", Size, sp, p.Const(8, Size))},
		}, expr.Nil
	case "jmp":
		return nil, o.target(0)
	case "call":
		f := o.target(0)

		args := []expr.Expr{f, sp}
		for _, r := range CallArgs {
			args = append(args, p.Reg(r, Size))
		}

		return []ir.Pair{
			{Dst: p.Reg(RV, Size), Src: p.Op("call_func_ret", Size, args...)},
			{Dst: sp, Src: p.Op("call_func_stack", Size, f, sp)},
		}, p.Label(o.e.Next)
	case "ret":
		return nil, p.Reg(LR, Size)
	case "hlt":
		return nil, p.Op("hlt", Size)
	}

	o.fail(errors.New("no translation for %v", m))

	return nil, expr.Nil
}

func (o *operands) reg(i int) expr.Expr {
	a := o.args[i]

	if a.Kind != asm.ArgIdent || !Regs[a.Ident] {
		o.fail(errors.New("operand %d: register expected: %v", i, a))
		return expr.Nil
	}

	return o.e.Exprs.Reg(a.Ident, Size)
}

func (o *operands) mem(i int) expr.Expr {
	a := o.args[i]

	if a.Kind != asm.ArgMem || !Regs[a.Ident] {
		o.fail(errors.New("operand %d: memory reference expected: %v", i, a))
		return expr.Nil
	}

	p := o.e.Exprs
	addr := p.Op("+", Size, p.Reg(a.Ident, Size), p.Const(uint64(a.Imm), Size))

	return p.Mem(addr, Size)
}

// value is a register, an immediate or a label address.
func (o *operands) value(i int) expr.Expr {
	a := o.args[i]

	switch {
	case a.Kind == asm.ArgImm:
		return o.e.Exprs.Const(uint64(a.Imm), Size)
	case a.Kind == asm.ArgMem:
		o.fail(errors.New("operand %d: memory reference not allowed: %v", i, a))
		return expr.Nil
	case Regs[a.Ident]:
		return o.e.Exprs.Reg(a.Ident, Size)
	}

	return o.e.Exprs.Label(o.e.Syms.AddSymbolic(a.Ident))
}

// target is a direct or register-indirect control transfer target.
func (o *operands) target(i int) expr.Expr {
	a := o.args[i]

	if a.Kind == asm.ArgImm {
		return o.e.Exprs.Label(o.e.Syms.LabelAt(uint64(a.Imm)))
	}

	return o.value(i)
}

func (o *operands) fail(err error) {
	if o.err == nil {
		o.err = err
	}
}
