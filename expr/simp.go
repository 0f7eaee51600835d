package expr

type (
	// Simplifier rewrites an expression to its normal form.
	// Implementations are pure and idempotent.
	Simplifier interface {
		Simplify(x Expr) Expr
	}

	// Simp is the default rule based Simplifier.
	// It folds constants, drops neutral operands, orders commutative
	// operands (constants last) and resolves constant conditions.
	Simp struct {
		Pool *Pool
	}
)

var commutative = map[string]bool{
	"+": true, "*": true,
	"&": true, "|": true, "^": true,
	"==": true, "!=": true,
}

func (s Simp) Simplify(x Expr) Expr {
	if x == Nil {
		return Nil
	}

	n := s.Pool.Node(x)

	if len(n.Args) != 0 {
		var args []Expr

		for i, a := range n.Args {
			b := s.Simplify(a)

			if b != a && args == nil {
				args = make([]Expr, len(n.Args))
				copy(args, n.Args)
			}

			if args != nil {
				args[i] = b
			}
		}

		if args != nil {
			n.Args = args
			x = s.Pool.intern(n)
		}
	}

	for {
		y := s.rewrite(x)
		if y == x {
			return x
		}

		x = y
	}
}

func (s Simp) rewrite(x Expr) Expr {
	p := s.Pool
	n := p.Node(x)

	switch n.Kind {
	case KindCond:
		c, a, b := n.Args[0], n.Args[1], n.Args[2]

		if a == b {
			return a
		}

		if cn := p.Node(c); cn.Kind == KindConst {
			if cn.Value != 0 {
				return a
			}

			return b
		}
	case KindOp:
		switch len(n.Args) {
		case 1:
			return s.unary(x, n)
		case 2:
			return s.binary(x, n)
		}
	}

	return x
}

func (s Simp) unary(x Expr, n Node) Expr {
	p := s.Pool
	a := p.Node(n.Args[0])

	if a.Kind == KindConst {
		switch n.Name {
		case "-":
			return p.Const(-a.Value, n.Size)
		case "~":
			return p.Const(^a.Value, n.Size)
		}
	}

	// -(-x) and ~(~x)
	if a.Kind == KindOp && a.Name == n.Name && len(a.Args) == 1 && (n.Name == "-" || n.Name == "~") {
		return a.Args[0]
	}

	return x
}

func (s Simp) binary(x Expr, n Node) Expr {
	p := s.Pool

	l, r := n.Args[0], n.Args[1]
	ln, rn := p.Node(l), p.Node(r)

	if ln.Kind == KindConst && rn.Kind == KindConst {
		if v, ok := fold(n.Name, ln.Value, rn.Value, n.Size, ln.Size); ok {
			return p.Const(v, n.Size)
		}

		return x
	}

	if commutative[n.Name] && (ln.Kind == KindConst || rn.Kind != KindConst && l > r) {
		return p.Op(n.Name, n.Size, r, l)
	}

	if rn.Kind == KindConst {
		c := rn.Value

		switch {
		case c == 0 && (n.Name == "+" || n.Name == "-" || n.Name == "|" || n.Name == "^" || n.Name == "<<" || n.Name == ">>"):
			return l
		case c == 0 && (n.Name == "*" || n.Name == "&"):
			return p.Const(0, n.Size)
		case c == 1 && n.Name == "*":
			return l
		case c == mask(^uint64(0), n.Size) && n.Name == "&":
			return l
		}

		// (x + c1) + c2 => x + (c1 + c2)
		if n.Name == "+" && ln.Kind == KindOp && ln.Name == "+" && len(ln.Args) == 2 {
			if inner := p.Node(ln.Args[1]); inner.Kind == KindConst {
				return p.Op("+", n.Size, ln.Args[0], p.Const(inner.Value+c, n.Size))
			}
		}
	}

	if l == r {
		switch n.Name {
		case "-", "^":
			return p.Const(0, n.Size)
		case "&", "|":
			return l
		case "==":
			return p.Const(1, n.Size)
		case "!=", "<", "<s":
			return p.Const(0, n.Size)
		}
	}

	return x
}

// fold evaluates op. size is the result width, argSize the operands width.
func fold(op string, a, b uint64, size, argSize uint8) (uint64, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "&":
		return a & b, true
	case "|":
		return a | b, true
	case "^":
		return a ^ b, true
	case "<<":
		if b >= uint64(width(size)) {
			return 0, true
		}

		return a << b, true
	case ">>":
		if b >= uint64(width(size)) {
			return 0, true
		}

		return a >> b, true
	case "==":
		return b2u(a == b), true
	case "!=":
		return b2u(a != b), true
	case "<":
		return b2u(a < b), true
	case "<s":
		return b2u(signed(a, argSize) < signed(b, argSize)), true
	}

	return 0, false
}

func width(size uint8) uint8 {
	if size == 0 || size > 64 {
		return 64
	}

	return size
}

func signed(v uint64, size uint8) int64 {
	sh := 64 - width(size)

	return int64(v<<sh) >> sh
}

func b2u(v bool) uint64 {
	if v {
		return 1
	}

	return 0
}
