package expr

import (
	"strconv"
	"sync"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/irgraph/symtab"
)

type (
	// Expr is an index into Pool.
	// Nodes are interned so equal ids mean structurally equal expressions.
	Expr int
	Kind uint8

	Node struct {
		Kind Kind
		Size uint8 // bits

		Name  string // register name, operator or unknown text
		Value uint64
		Label symtab.Label

		// Mem: address; Op: operands; Cond: cond, then, else.
		Args []Expr
	}

	Pool struct {
		mu sync.RWMutex

		nodes []Node
		index map[string]Expr

		key []byte
	}

	// LabelFormatter appends the display name of l.
	LabelFormatter func(b []byte, l symtab.Label) []byte
)

const (
	_ Kind = iota
	KindReg
	KindConst
	KindMem
	KindOp
	KindCond
	KindLabel
	KindUnknown
)

const Nil Expr = -1

func NewPool() *Pool {
	return &Pool{
		index: make(map[string]Expr),
	}
}

func (p *Pool) Reg(name string, size uint8) Expr {
	return p.intern(Node{Kind: KindReg, Name: name, Size: size})
}

func (p *Pool) Const(v uint64, size uint8) Expr {
	return p.intern(Node{Kind: KindConst, Value: mask(v, size), Size: size})
}

func (p *Pool) Mem(addr Expr, size uint8) Expr {
	return p.intern(Node{Kind: KindMem, Size: size, Args: []Expr{addr}})
}

func (p *Pool) Op(op string, size uint8, args ...Expr) Expr {
	return p.intern(Node{Kind: KindOp, Name: op, Size: size, Args: args})
}

func (p *Pool) Cond(c, a, b Expr) Expr {
	return p.intern(Node{Kind: KindCond, Size: p.Node(a).Size, Args: []Expr{c, a, b}})
}

func (p *Pool) Label(l symtab.Label) Expr {
	return p.intern(Node{Kind: KindLabel, Label: l, Size: 64})
}

// Unknown is the sentinel for an effect that could not be translated.
func (p *Pool) Unknown(text string) Expr {
	return p.intern(Node{Kind: KindUnknown, Name: text})
}

func (p *Pool) Node(x Expr) Node {
	p.mu.RLock()
	n := p.nodes[x]
	p.mu.RUnlock()

	return n
}

func (p *Pool) Kind(x Expr) Kind {
	if x == Nil {
		return 0
	}

	return p.Node(x).Kind
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.nodes)
}

// LabelOf reports the label x refers to.
func (p *Pool) LabelOf(x Expr) (symtab.Label, bool) {
	if x == Nil {
		return symtab.NoLabel, false
	}

	n := p.Node(x)
	if n.Kind != KindLabel {
		return symtab.NoLabel, false
	}

	return n.Label, true
}

// Walk visits x and its subexpressions in pre-order.
// Returning false from f skips the children of the node.
func (p *Pool) Walk(x Expr, f func(x Expr, n Node) bool) {
	if x == Nil {
		return
	}

	n := p.Node(x)

	if !f(x, n) {
		return
	}

	for _, a := range n.Args {
		p.Walk(a, f)
	}
}

// Contains reports whether any subexpression of x has kind k.
func (p *Pool) Contains(x Expr, k Kind) (r bool) {
	p.Walk(x, func(x Expr, n Node) bool {
		if n.Kind == k {
			r = true
		}

		return !r
	})

	return r
}

// Replace rebuilds x bottom-up, substituting subexpressions for which f reports true.
func (p *Pool) Replace(x Expr, f func(x Expr) (Expr, bool)) Expr {
	if x == Nil {
		return Nil
	}

	if y, ok := f(x); ok {
		return y
	}

	n := p.Node(x)
	if len(n.Args) == 0 {
		return x
	}

	var args []Expr

	for i, a := range n.Args {
		b := p.Replace(a, f)

		if b != a && args == nil {
			args = make([]Expr, len(n.Args))
			copy(args, n.Args)
		}

		if args != nil {
			args[i] = b
		}
	}

	if args == nil {
		return x
	}

	n.Args = args

	return p.intern(n)
}

func (p *Pool) intern(n Node) Expr {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := appendKey(p.key[:0], n)
	p.key = key

	if x, ok := p.index[string(key)]; ok {
		return x
	}

	x := Expr(len(p.nodes))

	if len(n.Args) != 0 {
		n.Args = append([]Expr(nil), n.Args...)
	}

	p.nodes = append(p.nodes, n)
	p.index[string(key)] = x

	return x
}

func appendKey(b []byte, n Node) []byte {
	b = append(b, byte(n.Kind), n.Size)
	b = strconv.AppendUint(b, n.Value, 16)
	b = append(b, '|')
	b = strconv.AppendInt(b, int64(n.Label), 10)
	b = append(b, '|')
	b = append(b, n.Name...)

	for _, a := range n.Args {
		b = append(b, ',')
		b = strconv.AppendInt(b, int64(a), 10)
	}

	return b
}

func mask(v uint64, size uint8) uint64 {
	if size == 0 || size >= 64 {
		return v
	}

	return v & (1<<size - 1)
}

func (x Expr) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if x == Nil {
		return e.AppendNil(b)
	}

	return e.AppendFormat(b, "e%d", int(x))
}
