package asm

import (
	"fmt"
	"strings"

	"github.com/slowlang/irgraph/symtab"
)

type (
	Flow int

	ArgKind int

	Arg struct {
		Kind ArgKind

		// Ident is a register or label name. For ArgMem it is the base register.
		Ident string
		Imm   int64
	}

	Instr struct {
		Addr     uint64
		Size     int
		Mnemonic string
		Args     []Arg
	}

	Block struct {
		Label  symtab.Label
		Instrs []Instr

		// Succs are successor hints resolved by the disassembler.
		// Targets outside the disassembled region are included,
		// indirect ones are not.
		Succs []symtab.Label
	}

	Program struct {
		Name   string
		Entry  string
		Labels []LabelDef
		Instrs []Instr
	}

	LabelDef struct {
		Name string
		Addr uint64
	}
)

const (
	FlowNone Flow = iota
	FlowJump
	FlowCondJump
	FlowCall
	FlowReturn
)

const (
	ArgIdent ArgKind = iota
	ArgImm
	ArgMem
)

const InstrSize = 4

var flows = map[string]Flow{
	"jmp":  FlowJump,
	"beq":  FlowCondJump,
	"bne":  FlowCondJump,
	"blt":  FlowCondJump,
	"bge":  FlowCondJump,
	"call": FlowCall,
	"ret":  FlowReturn,
	"hlt":  FlowReturn,
}

func (i Instr) Flow() Flow {
	return flows[i.Mnemonic]
}

// Target is the branch target operand of a control transfer.
func (i Instr) Target() (Arg, bool) {
	switch i.Flow() {
	case FlowJump, FlowCondJump, FlowCall:
	default:
		return Arg{}, false
	}

	if len(i.Args) == 0 {
		return Arg{}, false
	}

	return i.Args[len(i.Args)-1], true
}

func (i Instr) Next() uint64 {
	return i.Addr + uint64(i.Size)
}

func (a Arg) String() string {
	switch a.Kind {
	case ArgImm:
		return fmt.Sprintf("%#x", a.Imm)
	case ArgMem:
		switch {
		case a.Imm > 0:
			return fmt.Sprintf("[%s+%#x]", a.Ident, a.Imm)
		case a.Imm < 0:
			return fmt.Sprintf("[%s-%#x]", a.Ident, -a.Imm)
		default:
			return fmt.Sprintf("[%s]", a.Ident)
		}
	default:
		return a.Ident
	}
}

func (i Instr) String() string {
	var b strings.Builder

	b.WriteString(i.Mnemonic)

	for j, a := range i.Args {
		if j == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}

		b.WriteString(a.String())
	}

	return b.String()
}
