package symtab

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	// Label is an index into Pool. It is the identity of a control-flow
	// target and is never recreated for the same name or offset.
	Label int

	Symbol struct {
		Name     string
		Offset   uint64
		Resolved bool
	}

	Pool struct {
		syms []Symbol

		byName   map[string]Label
		byOffset map[uint64]Label
	}
)

const NoLabel Label = -1

func New() *Pool {
	return &Pool{
		byName:   make(map[string]Label),
		byOffset: make(map[uint64]Label),
	}
}

// Add binds name to offset.
// An unnamed label already created for the offset gets the name,
// so references taken before keep pointing to it.
func (p *Pool) Add(name string, off uint64) (Label, error) {
	if name == "" {
		return p.LabelAt(off), nil
	}

	if l, ok := p.byName[name]; ok {
		s := p.syms[l]

		if s.Resolved && s.Offset == off {
			return l, nil
		}

		if !s.Resolved {
			if _, taken := p.byOffset[off]; taken {
				return NoLabel, errors.New("offset %#x already bound, can't resolve %v", off, name)
			}

			p.syms[l].Offset = off
			p.syms[l].Resolved = true
			p.byOffset[off] = l

			return l, nil
		}

		return NoLabel, errors.New("name %v already bound to %#x, not %#x", name, s.Offset, off)
	}

	if l, ok := p.byOffset[off]; ok {
		if p.syms[l].Name != "" {
			return NoLabel, errors.New("offset %#x already named %v, not %v", off, p.syms[l].Name, name)
		}

		p.syms[l].Name = name
		p.byName[name] = l

		return l, nil
	}

	l := p.add(Symbol{Name: name, Offset: off, Resolved: true})

	return l, nil
}

// AddSymbolic returns the label for name, creating an addressless one if needed.
func (p *Pool) AddSymbolic(name string) Label {
	if l, ok := p.byName[name]; ok {
		return l
	}

	return p.add(Symbol{Name: name})
}

// LabelAt returns the label bound to off, creating an unnamed one if needed.
func (p *Pool) LabelAt(off uint64) Label {
	if l, ok := p.byOffset[off]; ok {
		return l
	}

	return p.add(Symbol{Offset: off, Resolved: true})
}

func (p *Pool) ByName(name string) (Label, bool) {
	l, ok := p.byName[name]
	return l, ok
}

func (p *Pool) ByOffset(off uint64) (Label, bool) {
	l, ok := p.byOffset[off]
	return l, ok
}

func (p *Pool) Symbol(l Label) Symbol {
	if l < 0 || int(l) >= len(p.syms) {
		return Symbol{}
	}

	return p.syms[l]
}

func (p *Pool) Len() int { return len(p.syms) }

func (p *Pool) add(s Symbol) Label {
	l := Label(len(p.syms))
	p.syms = append(p.syms, s)

	if s.Name != "" {
		p.byName[s.Name] = l
	}

	if s.Resolved {
		p.byOffset[s.Offset] = l
	}

	return l
}

func (l Label) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if l == NoLabel {
		return e.AppendNil(b)
	}

	return e.AppendFormat(b, "L%d", int(l))
}
