// Package pretty renders verified functions, types, and lowered opcode
// streams for human consumption (CLI `svm verify -dump`, registry
// listings, diagnostics). Its indent-tracking builder is the direct
// descendant of sentra/internal/formatter.Formatter, generalized from
// formatting parser statements to formatting ir.Type trees and lowered.Op
// streams; everything it cannot render directly (arbitrary Go values
// surfacing in a registry row, a CapSet slice) falls back to
// github.com/kr/pretty's reflective Sprint so ad hoc debug output never
// needs a bespoke formatter.
package pretty

import (
	"fmt"
	"strings"

	"github.com/kr/pretty"
	"github.com/kr/text"

	"svm/internal/ir"
	"svm/internal/lowered"
	"svm/internal/verify"
)

type printer struct {
	indent    int
	indentStr string
	output    strings.Builder
}

func newPrinter() *printer {
	return &printer{indentStr: "    "}
}

func (p *printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString(p.indentStr)
	}
}

func (p *printer) line(format string, args ...interface{}) {
	p.writeIndent()
	fmt.Fprintf(&p.output, format, args...)
	p.output.WriteString("\n")
}

// Function renders a verified function's declared type and its lowered
// opcode stream, one opcode per line, indexed by position.
func Function(fn verify.Function) string {
	p := newPrinter()
	p.line("fn %s : %s", fn.Label, Type(fn.Type))
	p.indent++
	for i, op := range fn.Ops {
		p.writeIndent()
		fmt.Fprintf(&p.output, "%4d  %s\n", i, Op(op))
	}
	p.indent--
	return p.output.String()
}

// Type renders an ir.Type the same way ir.Type.String does, except a
// non-empty capability set on a Func is spelled out rather than dropped,
// since a dump is exactly the place a reader wants the required
// capability set visible.
func Type(t ir.Type) string {
	s := t.String()
	if len(t.Caps) > 0 {
		caps := make([]string, len(t.Caps))
		for i, c := range t.Caps {
			caps[i] = c.String()
		}
		return s + " requires [" + strings.Join(caps, ", ") + "]"
	}
	return s
}

// Op renders one lowered opcode with its operands, omitting any field
// the tag does not use.
func Op(op lowered.Op) string {
	switch op.Tag {
	case lowered.TagGet:
		return fmt.Sprintf("get       off=%d sz=%d", op.Off, op.Sz)
	case lowered.TagInit:
		return fmt.Sprintf("init      off=%d sz=%d tuple=%d", op.Off, op.Sz, op.TupleSz)
	case lowered.TagInitIP:
		return fmt.Sprintf("init.ip   off=%d sz=%d", op.Off, op.Sz)
	case lowered.TagMalloc:
		return fmt.Sprintf("malloc    sz=%d", op.Sz)
	case lowered.TagAlloca:
		return fmt.Sprintf("alloca    sz=%d", op.Sz)
	case lowered.TagProj:
		return fmt.Sprintf("proj      off=%d sz=%d tuple=%d", op.Off, op.Sz, op.TupleSz)
	case lowered.TagProjIP:
		return fmt.Sprintf("proj.ip   off=%d sz=%d", op.Off, op.Sz)
	case lowered.TagCall:
		return "call"
	case lowered.TagCallNZ:
		return "call.nz"
	case lowered.TagPrint:
		return "print"
	case lowered.TagLit:
		return fmt.Sprintf("lit       %d", op.Lit)
	case lowered.TagU8Lit:
		return fmt.Sprintf("u8lit     %d", op.U8)
	case lowered.TagGlobalFunc:
		if op.Label != "" {
			return fmt.Sprintf("gfunc     %s (unresolved)", op.Label)
		}
		return fmt.Sprintf("gfunc     @%d", op.FuncAddr)
	case lowered.TagHalt:
		return "halt"
	case lowered.TagNewRgn:
		return fmt.Sprintf("newrgn    sz=%d", op.Sz)
	case lowered.TagFreeRgn:
		return "freergn"
	case lowered.TagDeref:
		return fmt.Sprintf("deref     sz=%d", op.Sz)
	case lowered.TagNewArr:
		return fmt.Sprintf("newarr    esz=%d", op.ESz)
	case lowered.TagArrMut:
		return fmt.Sprintf("arrmut    esz=%d", op.ESz)
	case lowered.TagArrProj:
		return fmt.Sprintf("arrproj   esz=%d", op.ESz)
	case lowered.TagAddI32:
		return "add.i32"
	case lowered.TagMulI32:
		return "mul.i32"
	case lowered.TagDivI32:
		return "div.i32"
	case lowered.TagModuloI32:
		return "mod.i32"
	case lowered.TagAddU8:
		return "add.u8"
	case lowered.TagMulU8:
		return "mul.u8"
	case lowered.TagDivU8:
		return "div.u8"
	case lowered.TagModuloU8:
		return "mod.u8"
	case lowered.TagU8ToI32:
		return "u8toi32"
	case lowered.TagI32ToU8:
		return "i32tou8"
	case lowered.TagData:
		return fmt.Sprintf("data      loc=%d", op.Loc)
	case lowered.TagDataIndex:
		return fmt.Sprintf("data.idx  esz=%d", op.ESz)
	case lowered.TagCopyN:
		return fmt.Sprintf("copyn     esz=%d", op.ESz)
	case lowered.TagRead:
		return fmt.Sprintf("read      chan=%d", op.Channel)
	case lowered.TagWrite:
		return fmt.Sprintf("write     chan=%d", op.Channel)
	default:
		return fmt.Sprintf("op?(%d)", op.Tag)
	}
}

// Value falls back to kr/pretty's reflective formatter for anything this
// package has no dedicated renderer for (e.g. a registry row, a raw
// CapSet surfaced in a test failure). The result is passed through
// kr/text's Indent with an empty prefix, so it is not wrapped or
// re-indented: long slices stay on one line.
func Value(v interface{}) string {
	return text.Indent(pretty.Sprint(v), "")
}
