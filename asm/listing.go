package asm

import (
	"bytes"
	"strconv"

	"fortio.org/safecast"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"tlog.app/go/errors"
)

type (
	listing struct {
		Lines []*line `@@*`
	}

	line struct {
		Pos lexer.Position

		Label string       `( @Ident ":" )?`
		Dir   *directive   `( @@`
		Ins   *instruction `| @@ )? EOL`
	}

	directive struct {
		Name string `"." @Ident`
		Arg  string `( @Ident | @Int )?`
	}

	instruction struct {
		Mnemonic string     `@Ident`
		Args     []*operand `( @@ ( "," @@ )* )?`
	}

	operand struct {
		Mem   *memRef `  "[" @@ "]"`
		Int   *string `| @Int`
		Ident *string `| @Ident`
	}

	memRef struct {
		Base string `@Ident`
		Off  string `( @( "+" | "-" )? @Int )?`
	}
)

var listingLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "EOL", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Int", Pattern: `[-+]?(0[xX][0-9a-fA-F]+|[0-9]+)`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[\[\]:,.+-]`},
})

var listingParser = participle.MustBuild[listing](
	participle.Lexer(listingLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// ParseListing reads an assembly listing.
//
//	.org 0x1000
//	.entry main
//	main:
//		mov r0, 5
//		beq r0, 0, done
//		st [sp-8], r0
//	done:	ret
func ParseListing(name string, text []byte) (*Program, error) {
	if !bytes.HasSuffix(text, []byte("\n")) {
		text = append(text[:len(text):len(text)], '\n')
	}

	l, err := listingParser.ParseBytes(name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse listing")
	}

	p := &Program{Name: name}

	var addr uint64
	seen := map[string]struct{}{}

	for _, ln := range l.Lines {
		if ln.Label != "" {
			if _, ok := seen[ln.Label]; ok {
				return nil, errors.New("%v: label redefined: %v", ln.Pos, ln.Label)
			}

			seen[ln.Label] = struct{}{}
			p.Labels = append(p.Labels, LabelDef{Name: ln.Label, Addr: addr})
		}

		switch {
		case ln.Dir != nil:
			addr, err = p.directive(addr, ln.Dir)
			if err != nil {
				return nil, errors.Wrap(err, "%v", ln.Pos)
			}
		case ln.Ins != nil:
			ins, err := ln.Ins.instr(addr)
			if err != nil {
				return nil, errors.Wrap(err, "%v", ln.Pos)
			}

			p.Instrs = append(p.Instrs, ins)
			addr = ins.Next()
		}
	}

	return p, nil
}

func (p *Program) directive(addr uint64, d *directive) (uint64, error) {
	switch d.Name {
	case "org":
		v, err := strconv.ParseInt(d.Arg, 0, 64)
		if err != nil {
			return addr, errors.Wrap(err, ".org")
		}

		return safecast.Conv[uint64](v)
	case "entry":
		if d.Arg == "" {
			return addr, errors.New(".entry: argument expected")
		}

		p.Entry = d.Arg

		return addr, nil
	default:
		return addr, errors.New("unknown directive: .%v", d.Name)
	}
}

func (x *instruction) instr(addr uint64) (Instr, error) {
	ins := Instr{
		Addr:     addr,
		Size:     InstrSize,
		Mnemonic: x.Mnemonic,
	}

	for _, o := range x.Args {
		var a Arg

		switch {
		case o.Mem != nil:
			a = Arg{Kind: ArgMem, Ident: o.Mem.Base}

			if o.Mem.Off != "" {
				v, err := strconv.ParseInt(o.Mem.Off, 0, 64)
				if err != nil {
					return ins, errors.Wrap(err, "memory offset")
				}

				a.Imm = v
			}
		case o.Int != nil:
			v, err := strconv.ParseInt(*o.Int, 0, 64)
			if err != nil {
				return ins, errors.Wrap(err, "immediate")
			}

			a = Arg{Kind: ArgImm, Imm: v}
		default:
			a = Arg{Kind: ArgIdent, Ident: *o.Ident}
		}

		ins.Args = append(ins.Args, a)
	}

	return ins, nil
}
