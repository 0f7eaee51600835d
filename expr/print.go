package expr

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/irgraph/symtab"
)

var infix = map[string]bool{
	"+": true, "-": true, "*": true,
	"&": true, "|": true, "^": true,
	"<<": true, ">>": true,
	"==": true, "!=": true, "<": true, "<s": true,
}

// AppendExpr renders x. Labels are rendered by lf, or as L<n> if lf is nil.
func (p *Pool) AppendExpr(b []byte, x Expr, lf LabelFormatter) []byte {
	if x == Nil {
		return append(b, "<nil>"...)
	}

	n := p.Node(x)

	switch n.Kind {
	case KindReg:
		b = append(b, n.Name...)
	case KindConst:
		b = hfmt.AppendPrintf(b, "0x%X", n.Value)
	case KindMem:
		b = hfmt.AppendPrintf(b, "@%d[", n.Size)
		b = p.AppendExpr(b, n.Args[0], lf)
		b = append(b, ']')
	case KindOp:
		switch {
		case infix[n.Name] && len(n.Args) == 2:
			b = p.appendOperand(b, n.Args[0], lf)
			b = hfmt.AppendPrintf(b, " %s ", n.Name)
			b = p.appendOperand(b, n.Args[1], lf)
		case (n.Name == "-" || n.Name == "~") && len(n.Args) == 1:
			b = append(b, n.Name...)
			b = p.appendOperand(b, n.Args[0], lf)
		default:
			b = append(b, n.Name...)
			b = append(b, '(')

			for i, a := range n.Args {
				if i != 0 {
					b = append(b, ", "...)
				}

				b = p.AppendExpr(b, a, lf)
			}

			b = append(b, ')')
		}
	case KindCond:
		b = p.appendOperand(b, n.Args[0], lf)
		b = append(b, " ? "...)
		b = p.appendOperand(b, n.Args[1], lf)
		b = append(b, " : "...)
		b = p.appendOperand(b, n.Args[2], lf)
	case KindLabel:
		if lf != nil {
			return lf(b, n.Label)
		}

		b = hfmt.AppendPrintf(b, "L%d", int(n.Label))
	case KindUnknown:
		b = hfmt.AppendPrintf(b, "UNKNOWN<%s>", n.Name)
	default:
		b = hfmt.AppendPrintf(b, "<bad expr %d>", int(x))
	}

	return b
}

func (p *Pool) String(x Expr) string {
	return string(p.AppendExpr(nil, x, nil))
}

// Format renders x using the label names from syms.
func (p *Pool) Format(x Expr, syms *symtab.Pool) string {
	return string(p.AppendExpr(nil, x, func(b []byte, l symtab.Label) []byte {
		s := syms.Symbol(l)
		if s.Name != "" {
			return append(b, s.Name...)
		}

		return hfmt.AppendPrintf(b, "loc_%X", s.Offset)
	}))
}

func (p *Pool) appendOperand(b []byte, x Expr, lf LabelFormatter) []byte {
	switch p.Kind(x) {
	case KindOp, KindCond:
		b = append(b, '(')
		b = p.AppendExpr(b, x, lf)
		b = append(b, ')')
	default:
		b = p.AppendExpr(b, x, lf)
	}

	return b
}
