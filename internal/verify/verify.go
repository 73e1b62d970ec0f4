// Package verify implements the definition pass (spec §4.3, §4.4): the
// core of the system. It drives a function body against its declared
// type over two abstract stacks in lock step, enforces region
// liveness/linearity and capability subtyping, tracks per-field tuple
// initialization, and simultaneously lowers each opcode into its
// concrete-offset form (internal/lowered) for the linker.
package verify

import (
	"svm/internal/errs"
	"svm/internal/ir"
	"svm/internal/lowered"
	"svm/internal/srcbc"
)

// MaxStackObject is the 4096-byte cap on a single stack-allocated value
// (spec §4.3's Malloc row).
const MaxStackObject = 4096

// Function is a verified function: its label, declared type, and
// lowered opcode stream.
type Function struct {
	Label string
	Type  ir.Type
	Ops   []lowered.Op
}

// Table is the global label->declared-type map built by the type pass
// (spec §4.2) and consulted read-only here.
type Table map[string]ir.Type

type liveSet map[ir.Id]ir.Region

func (l liveSet) has(r ir.Region) bool {
	if r.IsDataSection() {
		return true
	}
	_, ok := l[r.ID]
	return ok
}

type verifier struct {
	label   string
	table   Table
	data    []byte
	fresh   *ir.FreshSource
	ctStack []ir.CTStackVal
	rtStack []ir.Type
	quant   []ir.Quantification
	live    liveSet
	out     []lowered.Op

	pendingUnique bool
}

func (v *verifier) ctPop() (ir.CTStackVal, bool) {
	if len(v.ctStack) == 0 {
		return ir.CTStackVal{}, false
	}
	top := v.ctStack[len(v.ctStack)-1]
	v.ctStack = v.ctStack[:len(v.ctStack)-1]
	return top, true
}
func (v *verifier) ctPush(val ir.CTStackVal) { v.ctStack = append(v.ctStack, val) }

func (v *verifier) rtPop() (ir.Type, bool) {
	if len(v.rtStack) == 0 {
		return ir.Type{}, false
	}
	top := v.rtStack[len(v.rtStack)-1]
	v.rtStack = v.rtStack[:len(v.rtStack)-1]
	return top, true
}
func (v *verifier) rtPush(t ir.Type) { v.rtStack = append(v.rtStack, t) }

// Run verifies one function body against its declared type (already
// computed by the type pass) and lowers it.
func Run(label string, declared ir.Type, body []srcbc.Op, table Table, data []byte) (Function, error) {
	v := &verifier{
		label: label,
		table: table,
		data:  data,
		fresh: ir.NewFreshSource(label),
		live:  liveSet{},
	}

	// Seeding (spec §4.3): strip binders outside-in, accumulating a seed
	// CT-stack, then reverse it so the outermost quantifier's value sits
	// on top (CTGet 0 convention).
	var seedCT []ir.CTStackVal
	t := declared
	for {
		switch t.Tag {
		case ir.TyForall:
			seedCT = append(seedCT, ir.CTType(ir.Var(t.BoundID, t.BoundSize)))
			t = *t.Body
			continue
		case ir.TyForallRegion:
			seedCT = append(seedCT, ir.CTRegion(t.BoundRegion))
			v.live[t.BoundRegion.ID] = t.BoundRegion
			t = *t.Body
			continue
		}
		break
	}
	for i := len(seedCT) - 1; i >= 0; i-- {
		v.ctStack = append(v.ctStack, seedCT[i])
	}
	if t.Tag != ir.TyFunc {
		return Function{}, errs.TypeFuncExpected(label, "seed", -1)
	}
	for _, p := range t.Params {
		v.rtPush(p)
	}

	for pos, op := range body {
		if err := v.step(pos, op); err != nil {
			return Function{}, err
		}
		if op.Tag == srcbc.OpCall || op.Tag == srcbc.OpCallNZ || op.Tag == srcbc.OpHalt {
			break
		}
	}

	if len(v.quant) > 0 {
		return Function{}, errs.StructureNonEmptyQuantificationStack(label, len(v.quant))
	}

	return Function{Label: label, Type: declared, Ops: v.out}, nil
}

func (v *verifier) emit(op lowered.Op) { v.out = append(v.out, op) }

func (v *verifier) step(pos int, op srcbc.Op) error {
	tag := op.Tag
	name := tag.String()
	switch tag {
	// --- CT-stack-only opcodes (shared with the type pass's discipline) ---
	case srcbc.OpI32:
		v.ctPush(ir.CTType(ir.I32()))
	case srcbc.OpU8:
		v.ctPush(ir.CTType(ir.U8()))
	case srcbc.OpDataSec:
		v.ctPush(ir.CTRegion(ir.DataSection()))
	case srcbc.OpUniqueFlag:
		v.pendingUnique = true
	case srcbc.OpRgn:
		id := v.fresh.Next()
		r := ir.Region{Unique: v.pendingUnique, ID: id}
		v.pendingUnique = false
		v.ctPush(ir.CTRegion(r))
		v.live[id] = r
		v.quant = append(v.quant, ir.Quantification{Kind: ir.QuantRegion, Region: r})
	case srcbc.OpHandle:
		r, ok := v.ctPop()
		if !ok || r.Kind != ir.KindRegion {
			return errs.KindMismatch(v.label, name, pos, "Region", kindName(r, ok))
		}
		if r.Region.IsDataSection() {
			return errs.RegionNotUnique(v.label, name, pos, "data section (handles are unconstructible for it)")
		}
		v.ctPush(ir.CTType(ir.Handle(r.Region)))
	case srcbc.OpTuple:
		fields := make([]ir.TupleField, op.N)
		for i := op.N - 1; i >= 0; i-- {
			top, ok := v.ctPop()
			if !ok || top.Kind != ir.KindType {
				return errs.KindMismatch(v.label, name, pos, "Type", kindName(top, ok))
			}
			fields[i] = ir.TupleField{Init: true, Type: top.Type}
		}
		v.ctPush(ir.CTType(ir.TupleOf(fields)))
	case srcbc.OpPtr:
		tv, ok := v.ctPop()
		if !ok || tv.Kind != ir.KindType {
			return errs.KindMismatch(v.label, name, pos, "Type", kindName(tv, ok))
		}
		rv, ok := v.ctPop()
		if !ok || rv.Kind != ir.KindRegion {
			return errs.KindMismatch(v.label, name, pos, "Region", kindName(rv, ok))
		}
		v.ctPush(ir.CTType(ir.Ptr(tv.Type, rv.Region)))
	case srcbc.OpArr:
		tv, ok := v.ctPop()
		if !ok || tv.Kind != ir.KindType {
			return errs.KindMismatch(v.label, name, pos, "Type", kindName(tv, ok))
		}
		rv, ok := v.ctPop()
		if !ok || rv.Kind != ir.KindRegion {
			return errs.KindMismatch(v.label, name, pos, "Region", kindName(rv, ok))
		}
		v.ctPush(ir.CTType(ir.Array(tv.Type, rv.Region)))
	case srcbc.OpAll:
		id := v.fresh.Next()
		v.ctPush(ir.CTType(ir.Var(id, op.Size)))
		v.quant = append(v.quant, ir.Quantification{Kind: ir.QuantForall, ID: id, Size: op.Size})
	case srcbc.OpSome:
		id := v.fresh.Next()
		v.ctPush(ir.CTType(ir.Var(id, op.Size)))
		v.quant = append(v.quant, ir.Quantification{Kind: ir.QuantExist, ID: id, Size: op.Size})
	case srcbc.OpEnd, srcbc.OpEmos:
		if err := v.closeBinder(pos, name); err != nil {
			return err
		}
	case srcbc.OpFunc:
		params := make([]ir.Type, op.N)
		for i := op.N - 1; i >= 0; i-- {
			top, ok := v.ctPop()
			if !ok || top.Kind != ir.KindType {
				return errs.KindMismatch(v.label, name, pos, "Type", kindName(top, ok))
			}
			params[i] = top.Type
		}
		capsV, ok := v.ctPop()
		if !ok || capsV.Kind != ir.KindCapability {
			return errs.KindMismatch(v.label, name, pos, "Capability", kindName(capsV, ok))
		}
		v.ctPush(ir.CTType(ir.FuncWithCaps(capsV.Capability, params)))
	case srcbc.OpCTGet:
		if op.N < 0 || op.N >= len(v.ctStack) {
			return errs.TypeIndexOutOfRange(v.label, name, pos, op.N, len(v.ctStack))
		}
		v.ctPush(v.ctStack[len(v.ctStack)-1-op.N])
	case srcbc.OpCTPop:
		if _, ok := v.ctPop(); !ok {
			return errs.KindEmptyCTStack(v.label, name, pos)
		}
	case srcbc.OpSizeLit:
		v.ctPush(ir.CTSize(op.Size))
	case srcbc.OpOwn:
		r, ok := v.ctPop()
		if !ok || r.Kind != ir.KindRegion {
			return errs.KindMismatch(v.label, name, pos, "Region", kindName(r, ok))
		}
		v.ctPush(ir.CTCapability(ir.CapSet{ir.Unique(r.Region)}))
	case srcbc.OpRWCap:
		r, ok := v.ctPop()
		if !ok || r.Kind != ir.KindRegion {
			return errs.KindMismatch(v.label, name, pos, "Region", kindName(r, ok))
		}
		v.ctPush(ir.CTCapability(ir.CapSet{ir.ReadWrite(r.Region)}))
	case srcbc.OpBoth:
		c1, ok1 := v.ctPop()
		c2, ok2 := v.ctPop()
		if !ok1 || c1.Kind != ir.KindCapability || !ok2 || c2.Kind != ir.KindCapability {
			return errs.KindMismatch(v.label, name, pos, "Capability", "?")
		}
		v.ctPush(ir.CTCapability(ir.Merge(c2.Capability, c1.Capability)))
	case srcbc.OpCap:
		id := v.fresh.Next()
		v.ctPush(ir.CTCapability(ir.CapSet{ir.NewCapVar(id, nil)}))
	case srcbc.OpCapLE:
		bound, ok := v.ctPop()
		if !ok || bound.Kind != ir.KindCapability {
			return errs.KindMismatch(v.label, name, pos, "Capability", kindName(bound, ok))
		}
		id := v.fresh.Next()
		v.ctPush(ir.CTCapability(ir.CapSet{ir.NewCapVar(id, bound.Capability)}))
	case srcbc.OpReq:
		return errs.StructureForwardDeclRuntimeOp(v.label, name, pos)

	case srcbc.OpApp:
		return v.doApp(pos)

	// --- RT-stack opcodes (spec §4.3's per-opcode contract table) ---
	case srcbc.OpGet:
		if op.N < 0 || op.N >= len(v.rtStack) {
			return errs.TypeIndexOutOfRange(v.label, name, pos, op.N, len(v.rtStack))
		}
		idx := len(v.rtStack) - 1 - op.N
		off := v.offsetAbove(idx)
		field := v.rtStack[idx]
		v.rtPush(field)
		v.emit(lowered.Get(uint64(off), uint64(field.Size())))
	case srcbc.OpInit:
		return v.doInit(pos, op.N)
	case srcbc.OpMalloc:
		return v.doMalloc(pos)
	case srcbc.OpProj:
		return v.doProj(pos, op.N)
	case srcbc.OpUnpack:
		return v.doUnpack(pos)
	case srcbc.OpPack:
		return v.doPack(pos)
	case srcbc.OpCall:
		return v.doCall(pos, false)
	case srcbc.OpCallNZ:
		return v.doCall(pos, true)
	case srcbc.OpNewRgn:
		id := v.fresh.Next()
		r := ir.Region{Unique: true, ID: id}
		v.live[id] = r
		v.rtPush(ir.Handle(r))
		v.emit(lowered.NewRgn(uint64(op.Size)))
	case srcbc.OpFreeRgn:
		h, ok := v.rtPop()
		if !ok || h.Tag != ir.TyHandle {
			return errs.TypeHandleExpected(v.label, name, pos)
		}
		if !h.HandleRegion.Unique {
			return errs.RegionNotUnique(v.label, name, pos, h.HandleRegion.String())
		}
		if !v.live.has(h.HandleRegion) {
			return errs.RegionNotLive(v.label, name, pos, h.HandleRegion.String())
		}
		delete(v.live, h.HandleRegion.ID)
		v.emit(lowered.FreeRgn())
	case srcbc.OpDeref:
		p, ok := v.rtPop()
		if !ok || p.Tag != ir.TyPtr {
			return errs.TypePtrExpected(v.label, name, pos)
		}
		if !v.live.has(p.Region) {
			return errs.RegionNotLive(v.label, name, pos, p.Region.String())
		}
		v.rtPush(*p.Elem)
		v.emit(lowered.Deref(uint64(p.Elem.Size())))
	case srcbc.OpArrProj:
		idx, ok := v.rtPop()
		if !ok || idx.Tag != ir.TyI32 {
			return errs.TypeMismatch(v.label, name, pos, "i32", kindTypeName(idx, ok))
		}
		arr, ok := v.rtPop()
		if !ok || arr.Tag != ir.TyArray {
			return errs.TypeArrayExpected(v.label, name, pos)
		}
		if !v.live.has(arr.Region) {
			return errs.RegionNotLive(v.label, name, pos, arr.Region.String())
		}
		v.rtPush(*arr.Elem)
		if arr.Region.IsDataSection() {
			v.emit(lowered.DataIndex(uint64(arr.Elem.Size())))
		} else {
			v.emit(lowered.ArrProj(uint64(arr.Elem.Size())))
		}
	case srcbc.OpArrMut:
		val, ok := v.rtPop()
		if !ok {
			return errs.TypeEmptyStack(v.label, name, pos)
		}
		idx, ok := v.rtPop()
		if !ok || idx.Tag != ir.TyI32 {
			return errs.TypeMismatch(v.label, name, pos, "i32", kindTypeName(idx, ok))
		}
		arr, ok := v.rtPop()
		if !ok || arr.Tag != ir.TyArray {
			return errs.TypeArrayExpected(v.label, name, pos)
		}
		if arr.Region.IsDataSection() {
			return errs.CannotMutateDataSection(v.label, name, pos)
		}
		if !v.live.has(arr.Region) {
			return errs.RegionNotLive(v.label, name, pos, arr.Region.String())
		}
		if !val.Equal(*arr.Elem) {
			return errs.TypeMismatch(v.label, name, pos, arr.Elem.String(), val.String())
		}
		v.emit(lowered.ArrMut(uint64(arr.Elem.Size())))
	case srcbc.OpCopyN:
		n, ok := v.rtPop()
		if !ok || n.Tag != ir.TyI32 {
			return errs.TypeMismatch(v.label, name, pos, "i32", kindTypeName(n, ok))
		}
		dst, ok := v.rtPop()
		if !ok || dst.Tag != ir.TyArray {
			return errs.TypeArrayExpected(v.label, name, pos)
		}
		if dst.Region.IsDataSection() {
			return errs.CannotMutateDataSection(v.label, name, pos)
		}
		src, ok := v.rtPop()
		if !ok || src.Tag != ir.TyArray {
			return errs.TypeArrayExpected(v.label, name, pos)
		}
		v.emit(lowered.CopyN(uint64(dst.Elem.Size())))
	case srcbc.OpPrint:
		if _, ok := v.rtPop(); !ok {
			return errs.TypeEmptyStack(v.label, name, pos)
		}
		v.emit(lowered.Print())
	case srcbc.OpAddI32, srcbc.OpMulI32, srcbc.OpDivI32, srcbc.OpModI32:
		if err := v.binI32(pos, name); err != nil {
			return err
		}
		switch tag {
		case srcbc.OpAddI32:
			v.emit(lowered.AddI32())
		case srcbc.OpMulI32:
			v.emit(lowered.MulI32())
		case srcbc.OpDivI32:
			v.emit(lowered.DivI32())
		case srcbc.OpModI32:
			v.emit(lowered.ModuloI32())
		}
	case srcbc.OpAddU8, srcbc.OpMulU8, srcbc.OpDivU8, srcbc.OpModU8:
		if err := v.binU8(pos, name); err != nil {
			return err
		}
		switch tag {
		case srcbc.OpAddU8:
			v.emit(lowered.AddU8())
		case srcbc.OpMulU8:
			v.emit(lowered.MulU8())
		case srcbc.OpDivU8:
			v.emit(lowered.DivU8())
		case srcbc.OpModU8:
			v.emit(lowered.ModuloU8())
		}
	case srcbc.OpU8ToI32:
		u, ok := v.rtPop()
		if !ok || u.Tag != ir.TyU8 {
			return errs.TypeMismatch(v.label, name, pos, "u8", kindTypeName(u, ok))
		}
		v.rtPush(ir.I32())
		v.emit(lowered.U8ToI32())
	case srcbc.OpI32ToU8:
		i, ok := v.rtPop()
		if !ok || i.Tag != ir.TyI32 {
			return errs.TypeMismatch(v.label, name, pos, "i32", kindTypeName(i, ok))
		}
		v.rtPush(ir.U8())
		v.emit(lowered.I32ToU8())
	case srcbc.OpLit:
		v.rtPush(ir.I32())
		v.emit(lowered.Lit(op.Int32))
	case srcbc.OpU8Lit:
		v.rtPush(ir.U8())
		v.emit(lowered.U8Lit(op.Byte))
	case srcbc.OpGlobalFunc:
		declT, ok := v.table[op.Label]
		if !ok {
			return errs.StructureUnknownLabel(v.label, name, pos, op.Label)
		}
		v.rtPush(declT)
		v.emit(lowered.GlobalFuncLabel(op.Label)) // resolved to a final offset by internal/link
	case srcbc.OpHalt:
		if _, ok := v.rtPop(); !ok {
			return errs.TypeEmptyStack(v.label, name, pos)
		}
		v.emit(lowered.Halt())
	case srcbc.OpData:
		return v.doData(pos, op.Loc)
	case srcbc.OpChanRead:
		return v.doChan(pos, op.Byte, true)
	case srcbc.OpChanWrite:
		return v.doChan(pos, op.Byte, false)
	default:
		return errs.StructureForwardDeclRuntimeOp(v.label, name, pos)
	}
	return nil
}
