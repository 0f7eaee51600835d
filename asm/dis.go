package asm

import (
	"context"
	"sort"

	"fortio.org/safecast"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/symtab"
)

type (
	// Disassembler splits a Program into basic blocks.
	// Labels come from Syms, which is expected to be populated
	// with the program names before disassembly.
	Disassembler struct {
		Syms *symtab.Pool

		FollowCall bool
	}

	target struct {
		label symtab.Label
		addr  uint64
		ok    bool // addr is meaningful
	}
)

// DisMultiBlock disassembles every block reachable from entry.
// Blocks are returned in address order.
func (d *Disassembler) DisMultiBlock(ctx context.Context, p *Program, entry uint64) (blocks []Block, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "asm: disassemble", "entry", tlog.FormatNext("%#x"), entry)
	defer tr.Finish("err", &err)

	idx := make(map[uint64]int, len(p.Instrs))

	for i, ins := range p.Instrs {
		idx[ins.Addr] = i
	}

	if _, ok := idx[entry]; !ok {
		return nil, errors.New("entry %#x: no instruction", entry)
	}

	leaders := map[uint64]struct{}{entry: {}}

	for _, ins := range p.Instrs {
		f := ins.Flow()
		if f == FlowNone {
			continue
		}

		leaders[ins.Next()] = struct{}{}

		if f == FlowCall && !d.FollowCall {
			continue
		}

		if t := d.target(ins); t.ok {
			leaders[t.addr] = struct{}{}
		}
	}

	visited := map[uint64]struct{}{entry: {}}
	q := []uint64{entry}

	for len(q) != 0 {
		start := q[0]
		q = q[1:]

		b := Block{Label: d.Syms.LabelAt(start)}

		var succs []target

		for addr := start; ; {
			ins := p.Instrs[idx[addr]]
			b.Instrs = append(b.Instrs, ins)

			next := func() target {
				return target{label: d.Syms.LabelAt(ins.Next()), addr: ins.Next(), ok: true}
			}

			switch ins.Flow() {
			case FlowJump:
				if t := d.target(ins); t.label != symtab.NoLabel {
					succs = append(succs, t)
				}
			case FlowCondJump:
				if t := d.target(ins); t.label != symtab.NoLabel {
					succs = append(succs, t)
				}

				succs = append(succs, next())
			case FlowCall:
				if t := d.target(ins); d.FollowCall && t.label != symtab.NoLabel {
					succs = append(succs, t)
				}

				succs = append(succs, next())
			case FlowReturn:
			case FlowNone:
				_, lead := leaders[ins.Next()]
				_, more := idx[ins.Next()]

				if !lead && more {
					addr = ins.Next()
					continue
				}

				succs = append(succs, next())
			}

			break
		}

		for _, s := range succs {
			b.Succs = append(b.Succs, s.label)

			if !s.ok {
				continue
			}

			if _, ok := idx[s.addr]; !ok {
				continue
			}

			if _, ok := visited[s.addr]; ok {
				continue
			}

			visited[s.addr] = struct{}{}
			q = append(q, s.addr)
		}

		if tr.If("dis") {
			tr.Printw("block", "label", b.Label, "start", tlog.FormatNext("%#x"), start, "instrs", len(b.Instrs), "succs", b.Succs)
		}

		blocks = append(blocks, b)
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Instrs[0].Addr < blocks[j].Instrs[0].Addr
	})

	tr.Printw("disassembled", "blocks", len(blocks))

	return blocks, nil
}

func (d *Disassembler) target(ins Instr) target {
	a, ok := ins.Target()
	if !ok {
		return target{label: symtab.NoLabel}
	}

	switch a.Kind {
	case ArgImm:
		addr, err := safecast.Conv[uint64](a.Imm)
		if err != nil {
			return target{label: symtab.NoLabel}
		}

		return target{label: d.Syms.LabelAt(addr), addr: addr, ok: true}
	case ArgIdent:
		l, ok := d.Syms.ByName(a.Ident)
		if !ok {
			return target{label: symtab.NoLabel}
		}

		s := d.Syms.Symbol(l)

		return target{label: l, addr: s.Offset, ok: s.Resolved}
	}

	return target{label: symtab.NoLabel}
}
