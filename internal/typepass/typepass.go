// Package typepass implements the type pass (spec §4.2): it evaluates a
// forward declaration's compile-time opcode prefix to derive the
// function's declared type, and builds the global label->type table the
// definition pass (internal/verify) reads. It never inspects a function
// body.
package typepass

import (
	"svm/internal/errs"
	"svm/internal/ir"
	"svm/internal/srcbc"
)

// Declared is one entry of the global label->type table (spec §4.2's
// "(label, visibility, declared-type)").
type Declared struct {
	Label      string
	Visibility srcbc.Visibility
	Type       ir.Type
}

// runtimeOnly is the set of opcodes that only make sense against a
// run-time stack; their presence in a forward declaration is a
// structural error (spec §4.2: "rejects any opcode that would touch the
// RT-stack with ForwardDecl runtime-op").
var runtimeOnly = map[srcbc.Tag]bool{
	srcbc.OpGet: true, srcbc.OpInit: true, srcbc.OpMalloc: true,
	srcbc.OpProj: true, srcbc.OpUnpack: true, srcbc.OpPack: true,
	srcbc.OpCall: true, srcbc.OpCallNZ: true, srcbc.OpNewRgn: true,
	srcbc.OpFreeRgn: true, srcbc.OpDeref: true, srcbc.OpArrProj: true,
	srcbc.OpArrMut: true, srcbc.OpCopyN: true, srcbc.OpPrint: true,
	srcbc.OpAddI32: true, srcbc.OpMulI32: true, srcbc.OpDivI32: true,
	srcbc.OpModI32: true, srcbc.OpAddU8: true, srcbc.OpMulU8: true,
	srcbc.OpDivU8: true, srcbc.OpModU8: true, srcbc.OpU8ToI32: true,
	srcbc.OpI32ToU8: true, srcbc.OpLit: true, srcbc.OpU8Lit: true,
	srcbc.OpGlobalFunc: true, srcbc.OpHalt: true, srcbc.OpData: true,
	srcbc.OpChanRead: true, srcbc.OpChanWrite: true, srcbc.OpApp: true,
}

// Run evaluates one forward declaration's CT-only opcode prefix.
func Run(decl srcbc.ForwardDecl) (Declared, error) {
	fresh := ir.NewFreshSource(decl.Label)
	var ctStack []ir.CTStackVal
	var quant []ir.Quantification

	// Req-accumulated incremental declaration (SPEC_FULL §12, grounded
	// on original_source Op1Req): parallel to the CT-stack, since Req
	// folds a popped value into the function's parameter list/required
	// capabilities rather than leaving a Func on the stack.
	var reqArgTypes []ir.Type
	var reqCaps ir.CapSet
	usedReq := false

	pendingUnique := false

	pop := func() (ir.CTStackVal, bool) {
		if len(ctStack) == 0 {
			return ir.CTStackVal{}, false
		}
		top := ctStack[len(ctStack)-1]
		ctStack = ctStack[:len(ctStack)-1]
		return top, true
	}
	push := func(v ir.CTStackVal) { ctStack = append(ctStack, v) }

	for pos, op := range decl.Ops {
		if op.Tag == srcbc.OpLced {
			break
		}
		if runtimeOnly[op.Tag] {
			return Declared{}, errs.StructureForwardDeclRuntimeOp(decl.Label, op.Tag.String(), pos)
		}
		switch op.Tag {
		case srcbc.OpI32:
			push(ir.CTType(ir.I32()))
		case srcbc.OpU8:
			push(ir.CTType(ir.U8()))
		case srcbc.OpDataSec:
			push(ir.CTRegion(ir.DataSection()))
		case srcbc.OpUniqueFlag:
			pendingUnique = true
		case srcbc.OpRgn:
			id := fresh.Next()
			r := ir.Region{Unique: pendingUnique, ID: id}
			pendingUnique = false
			push(ir.CTRegion(r))
			quant = append(quant, ir.Quantification{Kind: ir.QuantRegion, Region: r})
		case srcbc.OpHandle:
			top, ok := pop()
			if !ok || top.Kind != ir.KindRegion {
				return Declared{}, errs.KindMismatch(decl.Label, "Handle", pos, "Region", kindOf(top, ok))
			}
			if top.Region.IsDataSection() {
				return Declared{}, errs.RegionNotUnique(decl.Label, "Handle", pos, "data section (handles are unconstructible for it)")
			}
			push(ir.CTType(ir.Handle(top.Region)))
		case srcbc.OpTuple:
			fields := make([]ir.TupleField, op.N)
			for i := op.N - 1; i >= 0; i-- {
				top, ok := pop()
				if !ok || top.Kind != ir.KindType {
					return Declared{}, errs.KindMismatch(decl.Label, "Tuple", pos, "Type", kindOf(top, ok))
				}
				fields[i] = ir.TupleField{Init: true, Type: top.Type}
			}
			push(ir.CTType(ir.TupleOf(fields)))
		case srcbc.OpPtr:
			t, ok := pop()
			if !ok || t.Kind != ir.KindType {
				return Declared{}, errs.KindMismatch(decl.Label, "Ptr", pos, "Type", kindOf(t, ok))
			}
			r, ok := pop()
			if !ok || r.Kind != ir.KindRegion {
				return Declared{}, errs.KindMismatch(decl.Label, "Ptr", pos, "Region", kindOf(r, ok))
			}
			push(ir.CTType(ir.Ptr(t.Type, r.Region)))
		case srcbc.OpArr:
			t, ok := pop()
			if !ok || t.Kind != ir.KindType {
				return Declared{}, errs.KindMismatch(decl.Label, "Arr", pos, "Type", kindOf(t, ok))
			}
			r, ok := pop()
			if !ok || r.Kind != ir.KindRegion {
				return Declared{}, errs.KindMismatch(decl.Label, "Arr", pos, "Region", kindOf(r, ok))
			}
			push(ir.CTType(ir.Array(t.Type, r.Region)))
		case srcbc.OpAll:
			id := fresh.Next()
			push(ir.CTType(ir.Var(id, op.Size)))
			quant = append(quant, ir.Quantification{Kind: ir.QuantForall, ID: id, Size: op.Size})
		case srcbc.OpSome:
			id := fresh.Next()
			push(ir.CTType(ir.Var(id, op.Size)))
			quant = append(quant, ir.Quantification{Kind: ir.QuantExist, ID: id, Size: op.Size})
		case srcbc.OpEnd, srcbc.OpEmos:
			if len(quant) == 0 {
				return Declared{}, errs.StructureQuantifierMismatch(decl.Label, op.Tag.String(), pos, "no open binder")
			}
			top := quant[len(quant)-1]
			quant = quant[:len(quant)-1]
			switch top.Kind {
			case ir.QuantRegion:
				bodyV, ok := pop()
				if !ok || bodyV.Kind != ir.KindType {
					return Declared{}, errs.KindMismatch(decl.Label, op.Tag.String(), pos, "Type", kindOf(bodyV, ok))
				}
				r, ok := pop()
				if !ok || r.Kind != ir.KindRegion || !r.Region.Equal(top.Region) {
					return Declared{}, errs.StructureQuantifierMismatch(decl.Label, op.Tag.String(), pos, "region binder mismatch")
				}
				push(ir.CTType(ir.ForallRegion(top.Region, bodyV.Type, nil)))
			case ir.QuantForall, ir.QuantExist:
				bodyV, ok := pop()
				if !ok || bodyV.Kind != ir.KindType {
					return Declared{}, errs.KindMismatch(decl.Label, op.Tag.String(), pos, "Type", kindOf(bodyV, ok))
				}
				varV, ok := pop()
				if !ok || varV.Kind != ir.KindType || varV.Type.Tag != ir.TyVar || varV.Type.VarID != top.ID {
					return Declared{}, errs.StructureQuantifierMismatch(decl.Label, op.Tag.String(), pos, "bound variable mismatch")
				}
				if top.Kind == ir.QuantForall {
					push(ir.CTType(ir.Forall(top.ID, top.Size, bodyV.Type)))
				} else {
					push(ir.CTType(ir.Exists(top.ID, top.Size, bodyV.Type)))
				}
			}
		case srcbc.OpFunc:
			params := make([]ir.Type, op.N)
			for i := op.N - 1; i >= 0; i-- {
				top, ok := pop()
				if !ok || top.Kind != ir.KindType {
					return Declared{}, errs.KindMismatch(decl.Label, "Func", pos, "Type", kindOf(top, ok))
				}
				params[i] = top.Type
			}
			// Func additionally pops the capability set required to
			// call it (original_source Op1Func: "pop mb_c" below the
			// parameter types).
			capsV, ok := pop()
			if !ok || capsV.Kind != ir.KindCapability {
				return Declared{}, errs.KindMismatch(decl.Label, "Func", pos, "Capability", kindOf(capsV, ok))
			}
			push(ir.CTType(ir.FuncWithCaps(capsV.Capability, params)))
		case srcbc.OpCTGet:
			if op.N < 0 || op.N >= len(ctStack) {
				return Declared{}, errs.TypeIndexOutOfRange(decl.Label, "CTGet", pos, op.N, len(ctStack))
			}
			push(ctStack[len(ctStack)-1-op.N])
		case srcbc.OpCTPop:
			if _, ok := pop(); !ok {
				return Declared{}, errs.KindEmptyCTStack(decl.Label, "CTPop", pos)
			}
		case srcbc.OpSizeLit:
			push(ir.CTSize(op.Size))
		case srcbc.OpOwn:
			r, ok := pop()
			if !ok || r.Kind != ir.KindRegion {
				return Declared{}, errs.KindMismatch(decl.Label, "Own", pos, "Region", kindOf(r, ok))
			}
			push(ir.CTCapability(ir.CapSet{ir.Unique(r.Region)}))
		case srcbc.OpRWCap:
			r, ok := pop()
			if !ok || r.Kind != ir.KindRegion {
				return Declared{}, errs.KindMismatch(decl.Label, "Read(cap)", pos, "Region", kindOf(r, ok))
			}
			push(ir.CTCapability(ir.CapSet{ir.ReadWrite(r.Region)}))
		case srcbc.OpBoth:
			c1, ok1 := pop()
			c2, ok2 := pop()
			if !ok1 || c1.Kind != ir.KindCapability || !ok2 || c2.Kind != ir.KindCapability {
				return Declared{}, errs.KindMismatch(decl.Label, "Both", pos, "Capability", "?")
			}
			push(ir.CTCapability(ir.Merge(c2.Capability, c1.Capability)))
		case srcbc.OpCap:
			id := fresh.Next()
			push(ir.CTCapability(ir.CapSet{ir.NewCapVar(id, nil)}))
		case srcbc.OpCapLE:
			bound, ok := pop()
			if !ok || bound.Kind != ir.KindCapability {
				return Declared{}, errs.KindMismatch(decl.Label, "CapLE", pos, "Capability", kindOf(bound, ok))
			}
			id := fresh.Next()
			push(ir.CTCapability(ir.CapSet{ir.NewCapVar(id, bound.Capability)}))
		case srcbc.OpReq:
			top, ok := pop()
			if !ok {
				return Declared{}, errs.KindEmptyCTStack(decl.Label, "Req", pos)
			}
			usedReq = true
			switch top.Kind {
			case ir.KindType:
				reqArgTypes = append(reqArgTypes, top.Type)
			case ir.KindCapability:
				reqCaps = ir.Merge(reqCaps, top.Capability)
			default:
				return Declared{}, errs.KindMismatch(decl.Label, "Req", pos, "Type or Capability", top.Kind.String())
			}
		default:
			return Declared{}, errs.StructureForwardDeclRuntimeOp(decl.Label, op.Tag.String(), pos)
		}
	}

	if len(quant) > 0 {
		return Declared{}, errs.StructureNonEmptyExistentialStack(decl.Label, len(quant))
	}

	var declaredType ir.Type
	if usedReq {
		declaredType = ir.FuncWithCaps(reqCaps, reqArgTypes)
	} else {
		if len(ctStack) != 1 {
			return Declared{}, errs.StructureForwardDeclBadStack(decl.Label, len(ctStack))
		}
		if ctStack[0].Kind != ir.KindType {
			return Declared{}, errs.KindMismatch(decl.Label, "end-of-forward-decl", len(decl.Ops), "Type", ctStack[0].Kind.String())
		}
		declaredType = ctStack[0].Type
	}

	return Declared{Label: decl.Label, Visibility: decl.Visibility, Type: declaredType}, nil
}

func kindOf(v ir.CTStackVal, ok bool) string {
	if !ok {
		return "empty stack"
	}
	return v.Kind.String()
}
