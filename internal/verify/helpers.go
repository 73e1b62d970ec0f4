package verify

import (
	"svm/internal/errs"
	"svm/internal/ir"
	"svm/internal/lowered"
)

func kindName(v ir.CTStackVal, ok bool) string {
	if !ok {
		return "empty CT-stack"
	}
	return v.Kind.String()
}

func kindTypeName(t ir.Type, ok bool) string {
	if !ok {
		return "empty RT-stack"
	}
	return t.String()
}

func fmtCaps(c ir.CapSet) string {
	s := "{"
	for i, x := range c {
		if i > 0 {
			s += ", "
		}
		s += x.String()
	}
	return s + "}"
}

// offsetAbove sums the sizes of every RT-stack entry above idx (closer to
// the top), the byte distance Get/Init/Proj's operand must encode.
func (v *verifier) offsetAbove(idx int) int {
	total := 0
	for i := idx + 1; i < len(v.rtStack); i++ {
		total += v.rtStack[i].Size()
	}
	return total
}

// closeBinder implements End/Emos (spec §4.2/§4.3): pop the innermost
// open binder, require the CT-stack shape it demands, and wrap the
// accumulated body type in the matching constructor.
func (v *verifier) closeBinder(pos int, name string) error {
	if len(v.quant) == 0 {
		return errs.StructureQuantifierMismatch(v.label, name, pos, "no open binder")
	}
	top := v.quant[len(v.quant)-1]
	v.quant = v.quant[:len(v.quant)-1]
	switch top.Kind {
	case ir.QuantRegion:
		bodyV, ok := v.ctPop()
		if !ok || bodyV.Kind != ir.KindType {
			return errs.KindMismatch(v.label, name, pos, "Type", kindName(bodyV, ok))
		}
		r, ok := v.ctPop()
		if !ok || r.Kind != ir.KindRegion || !r.Region.Equal(top.Region) {
			return errs.StructureQuantifierMismatch(v.label, name, pos, "region binder mismatch")
		}
		v.ctPush(ir.CTType(ir.ForallRegion(top.Region, bodyV.Type, nil)))
	case ir.QuantForall, ir.QuantExist:
		bodyV, ok := v.ctPop()
		if !ok || bodyV.Kind != ir.KindType {
			return errs.KindMismatch(v.label, name, pos, "Type", kindName(bodyV, ok))
		}
		varV, ok := v.ctPop()
		if !ok || varV.Kind != ir.KindType || varV.Type.Tag != ir.TyVar || varV.Type.VarID != top.ID {
			return errs.StructureQuantifierMismatch(v.label, name, pos, "bound variable mismatch")
		}
		if top.Kind == ir.QuantForall {
			v.ctPush(ir.CTType(ir.Forall(top.ID, top.Size, bodyV.Type)))
		} else {
			v.ctPush(ir.CTType(ir.Exists(top.ID, top.Size, bodyV.Type)))
		}
	}
	return nil
}

// doApp implements the App row: pops an RT-stack Forall/ForallRegion and
// substitutes a CT-stack argument into it, same polymorphism-peeling
// discipline as a single step of Call but without calling.
func (v *verifier) doApp(pos int) error {
	t, ok := v.rtPop()
	if !ok {
		return errs.TypeEmptyStack(v.label, "App", pos)
	}
	switch t.Tag {
	case ir.TyForall:
		arg, ok := v.ctPop()
		if !ok || arg.Kind != ir.KindType {
			return errs.KindMismatch(v.label, "App", pos, "Type", kindName(arg, ok))
		}
		if arg.Type.Size() != t.BoundSize {
			return errs.TypeSizeMismatch(v.label, "App", pos, t.BoundSize, arg.Type.Size())
		}
		sub := ir.NewSubst().WithType(t.BoundID, arg.Type)
		v.rtPush(ir.SubstType(*t.Body, sub))
	case ir.TyForallRegion:
		arg, ok := v.ctPop()
		if !ok || arg.Kind != ir.KindRegion {
			return errs.KindMismatch(v.label, "App", pos, "Region", kindName(arg, ok))
		}
		for _, capturedID := range t.Captured {
			if capturedID == arg.Region.ID {
				return errs.RegionAccess(v.label, "App", pos, arg.Region.String())
			}
		}
		sub := ir.NewSubst().WithRegion(t.BoundRegion.ID, arg.Region)
		v.rtPush(ir.SubstType(*t.Body, sub))
	default:
		return errs.TypeForallExpected(v.label, "App", pos)
	}
	return nil
}

func (v *verifier) doInit(pos int, n int) error {
	val, ok := v.rtPop()
	if !ok {
		return errs.TypeEmptyStack(v.label, "Init", pos)
	}
	container, ok := v.rtPop()
	if !ok {
		return errs.TypeEmptyStack(v.label, "Init", pos)
	}
	switch container.Tag {
	case ir.TyTuple:
		fields, off, tsz, err := v.initFields(pos, "Init", container.Fields, n, val)
		if err != nil {
			return err
		}
		v.rtPush(ir.TupleOf(fields))
		v.emit(lowered.Init(uint64(off), uint64(val.Size()), uint64(tsz)))
	case ir.TyPtr:
		if container.Elem.Tag != ir.TyTuple {
			return errs.TypeTupleExpected(v.label, "Init", pos)
		}
		if container.Region.IsDataSection() {
			return errs.CannotMutateDataSection(v.label, "Init", pos)
		}
		if !v.live.has(container.Region) {
			return errs.RegionNotLive(v.label, "Init", pos, container.Region.String())
		}
		fields, off, _, err := v.initFields(pos, "Init", container.Elem.Fields, n, val)
		if err != nil {
			return err
		}
		newElem := ir.TupleOf(fields)
		v.rtPush(ir.Ptr(newElem, container.Region))
		v.emit(lowered.InitIP(uint64(off), uint64(val.Size())))
	default:
		return errs.TypeTupleExpected(v.label, "Init", pos)
	}
	return nil
}

func (v *verifier) initFields(pos int, op string, fields []ir.TupleField, n int, val ir.Type) ([]ir.TupleField, int, int, error) {
	if n < 0 || n >= len(fields) {
		return nil, 0, 0, errs.TypeIndexOutOfRange(v.label, op, pos, n, len(fields))
	}
	if fields[n].Init {
		return nil, 0, 0, errs.TypeDoubleInit(v.label, op, pos, n)
	}
	if !fields[n].Type.Equal(val) {
		return nil, 0, 0, errs.TypeMismatch(v.label, op, pos, fields[n].Type.String(), val.String())
	}
	out := make([]ir.TupleField, len(fields))
	copy(out, fields)
	out[n] = ir.TupleField{Init: true, Type: val}
	off := 0
	total := 0
	for i, f := range fields {
		if i < n {
			off += f.Type.Size()
		}
		total += f.Type.Size()
	}
	return out, off, total, nil
}

func (v *verifier) doMalloc(pos int) error {
	ctTop, ok := v.ctPop()
	if !ok || ctTop.Kind != ir.KindType {
		return errs.KindMismatch(v.label, "Malloc", pos, "Type", kindName(ctTop, ok))
	}
	t := ctTop.Type
	switch t.Tag {
	case ir.TyPtr:
		if t.Elem.Tag != ir.TyTuple {
			return errs.TypeTupleExpected(v.label, "Malloc", pos)
		}
		h, ok := v.rtPop()
		if !ok || h.Tag != ir.TyHandle {
			return errs.TypeHandleExpected(v.label, "Malloc", pos)
		}
		if !h.HandleRegion.Equal(t.Region) {
			return errs.RegionAccess(v.label, "Malloc", pos, t.Region.String())
		}
		if !v.live.has(t.Region) {
			return errs.RegionNotLive(v.label, "Malloc", pos, t.Region.String())
		}
		uninit := make([]ir.TupleField, len(t.Elem.Fields))
		for i, f := range t.Elem.Fields {
			uninit[i] = ir.TupleField{Init: false, Type: f.Type}
		}
		result := ir.Ptr(ir.TupleOf(uninit), t.Region)
		v.rtPush(result)
		v.emit(lowered.Malloc(uint64(result.Elem.Size())))
	case ir.TyTuple:
		if t.Size() > MaxStackObject {
			return errs.TypeTooBigForStack(v.label, "Malloc", pos, t.Size(), MaxStackObject)
		}
		uninit := make([]ir.TupleField, len(t.Fields))
		for i, f := range t.Fields {
			uninit[i] = ir.TupleField{Init: false, Type: f.Type}
		}
		v.rtPush(ir.TupleOf(uninit))
		v.emit(lowered.Alloca(uint64(t.Size())))
	case ir.TyArray:
		ln, ok := v.rtPop()
		if !ok || ln.Tag != ir.TyI32 {
			return errs.TypeMismatch(v.label, "Malloc", pos, "i32", kindTypeName(ln, ok))
		}
		h, ok := v.rtPop()
		if !ok || h.Tag != ir.TyHandle {
			return errs.TypeHandleExpected(v.label, "Malloc", pos)
		}
		if !h.HandleRegion.Equal(t.Region) {
			return errs.RegionAccess(v.label, "Malloc", pos, t.Region.String())
		}
		if !v.live.has(t.Region) {
			return errs.RegionNotLive(v.label, "Malloc", pos, t.Region.String())
		}
		v.rtPush(t)
		v.emit(lowered.NewArr(uint64(t.Elem.Size())))
	default:
		return errs.TypeTupleExpected(v.label, "Malloc", pos)
	}
	return nil
}

func (v *verifier) doProj(pos int, n int) error {
	top, ok := v.rtPop()
	if !ok {
		return errs.TypeEmptyStack(v.label, "Proj", pos)
	}
	switch top.Tag {
	case ir.TyTuple:
		if n < 0 || n >= len(top.Fields) {
			return errs.TypeIndexOutOfRange(v.label, "Proj", pos, n, len(top.Fields))
		}
		if !top.Fields[n].Init {
			return errs.TypeUninitializedRead(v.label, "Proj", pos, n)
		}
		off, tsz := 0, 0
		for i, f := range top.Fields {
			if i < n {
				off += f.Type.Size()
			}
			tsz += f.Type.Size()
		}
		v.rtPush(top.Fields[n].Type)
		v.emit(lowered.Proj(uint64(off), uint64(top.Fields[n].Type.Size()), uint64(tsz)))
	case ir.TyPtr:
		if top.Elem.Tag != ir.TyTuple {
			return errs.TypeTupleExpected(v.label, "Proj", pos)
		}
		if !v.live.has(top.Region) {
			return errs.RegionNotLive(v.label, "Proj", pos, top.Region.String())
		}
		fields := top.Elem.Fields
		if n < 0 || n >= len(fields) {
			return errs.TypeIndexOutOfRange(v.label, "Proj", pos, n, len(fields))
		}
		if !fields[n].Init {
			return errs.TypeUninitializedRead(v.label, "Proj", pos, n)
		}
		off := 0
		for i, f := range fields {
			if i < n {
				off += f.Type.Size()
			}
		}
		v.rtPush(fields[n].Type)
		v.emit(lowered.ProjIP(uint64(off), uint64(fields[n].Type.Size())))
	default:
		return errs.TypeTupleExpected(v.label, "Proj", pos)
	}
	return nil
}

func (v *verifier) doUnpack(pos int) error {
	ex, ok := v.rtPop()
	if !ok || ex.Tag != ir.TyExists {
		return errs.TypeExistsExpected(v.label, "Unpack", pos)
	}
	freshID := v.fresh.Next()
	sub := ir.NewSubst().WithType(ex.BoundID, ir.Var(freshID, ex.BoundSize))
	v.ctPush(ir.CTType(ir.Var(freshID, ex.BoundSize)))
	v.rtPush(ir.SubstType(*ex.Body, sub))
	return nil
}

func (v *verifier) doPack(pos int) error {
	hiddenVal, ok := v.rtPop()
	if !ok {
		return errs.TypeEmptyStack(v.label, "Pack", pos)
	}
	hiddenTy, ok := v.ctPop()
	if !ok || hiddenTy.Kind != ir.KindType {
		return errs.KindMismatch(v.label, "Pack", pos, "Type", kindName(hiddenTy, ok))
	}
	existsV, ok := v.ctPop()
	if !ok || existsV.Kind != ir.KindType || existsV.Type.Tag != ir.TyExists {
		return errs.KindMismatch(v.label, "Pack", pos, "Exists Type", kindName(existsV, ok))
	}
	existsTy := existsV.Type
	if hiddenTy.Type.Size() != existsTy.BoundSize {
		return errs.TypeSizeMismatch(v.label, "Pack", pos, existsTy.BoundSize, hiddenTy.Type.Size())
	}
	sub := ir.NewSubst().WithType(existsTy.BoundID, hiddenTy.Type)
	expected := ir.SubstType(*existsTy.Body, sub)
	if !hiddenVal.Equal(expected) {
		return errs.TypeMismatch(v.label, "Pack", pos, expected.String(), hiddenVal.String())
	}
	v.rtPush(existsTy)
	return nil
}

// checkCallTarget peels a Call/CallNZ target's Forall/ForallRegion prefix
// by consuming matching CT-stack values, checks the substituted
// capability requirement against whatever capability set currently sits
// on top of the CT-stack, then checks arguments (spec §4.3 Call row,
// §4.4 capability subtyping).
func (v *verifier) checkCallTarget(pos int, t ir.Type) error {
	cur := t
	sub := ir.NewSubst()
	for {
		switch cur.Tag {
		case ir.TyForall:
			top, ok := v.ctPop()
			if !ok || top.Kind != ir.KindType {
				return errs.KindMismatch(v.label, "Call", pos, "Type", kindName(top, ok))
			}
			if top.Type.Size() != cur.BoundSize {
				return errs.TypeSizeMismatch(v.label, "Call", pos, cur.BoundSize, top.Type.Size())
			}
			sub = sub.WithType(cur.BoundID, top.Type)
			cur = *cur.Body
			continue
		case ir.TyForallRegion:
			top, ok := v.ctPop()
			if !ok || top.Kind != ir.KindRegion {
				return errs.KindMismatch(v.label, "Call", pos, "Region", kindName(top, ok))
			}
			for _, capturedID := range cur.Captured {
				if capturedID == top.Region.ID {
					return errs.RegionAccess(v.label, "Call", pos, top.Region.String())
				}
			}
			sub = sub.WithRegion(cur.BoundRegion.ID, top.Region)
			cur = *cur.Body
			continue
		}
		break
	}
	cur = ir.SubstType(cur, sub)
	if cur.Tag != ir.TyFunc {
		return errs.TypeFuncExpected(v.label, "Call", pos)
	}
	if len(cur.Caps) > 0 {
		var present ir.CapSet
		if len(v.ctStack) > 0 && v.ctStack[len(v.ctStack)-1].Kind == ir.KindCapability {
			c, _ := v.ctPop()
			present = c.Capability
		}
		if !present.Satisfies(cur.Caps) {
			return errs.CapabilityInsufficient(v.label, "Call", pos, fmtCaps(cur.Caps), fmtCaps(present))
		}
	}
	for i := len(cur.Params) - 1; i >= 0; i-- {
		arg, ok := v.rtPop()
		if !ok {
			return errs.TypeEmptyStack(v.label, "Call", pos)
		}
		if !arg.Equal(cur.Params[i]) {
			return errs.TypeMismatch(v.label, "Call", pos, cur.Params[i].String(), arg.String())
		}
	}
	return nil
}

func (v *verifier) doCall(pos int, nz bool) error {
	if nz {
		disc, ok := v.rtPop()
		if !ok || disc.Tag != ir.TyI32 {
			return errs.TypeMismatch(v.label, "CallNZ", pos, "i32", kindTypeName(disc, ok))
		}
		fn2, ok := v.rtPop()
		if !ok {
			return errs.TypeEmptyStack(v.label, "CallNZ", pos)
		}
		fn1, ok := v.rtPop()
		if !ok {
			return errs.TypeEmptyStack(v.label, "CallNZ", pos)
		}
		if !fn1.Equal(fn2) {
			return errs.TypeCallNZMismatch(v.label, "CallNZ", pos)
		}
		if err := v.checkCallTarget(pos, fn1); err != nil {
			return err
		}
		v.emit(lowered.CallNZ())
		return nil
	}
	fn, ok := v.rtPop()
	if !ok {
		return errs.TypeEmptyStack(v.label, "Call", pos)
	}
	if err := v.checkCallTarget(pos, fn); err != nil {
		return err
	}
	v.emit(lowered.Call())
	return nil
}

func (v *verifier) binI32(pos int, op string) error {
	b, ok := v.rtPop()
	if !ok || b.Tag != ir.TyI32 {
		return errs.TypeMismatch(v.label, op, pos, "i32", kindTypeName(b, ok))
	}
	a, ok := v.rtPop()
	if !ok || a.Tag != ir.TyI32 {
		return errs.TypeMismatch(v.label, op, pos, "i32", kindTypeName(a, ok))
	}
	v.rtPush(ir.I32())
	return nil
}

func (v *verifier) binU8(pos int, op string) error {
	b, ok := v.rtPop()
	if !ok || b.Tag != ir.TyU8 {
		return errs.TypeMismatch(v.label, op, pos, "u8", kindTypeName(b, ok))
	}
	a, ok := v.rtPop()
	if !ok || a.Tag != ir.TyU8 {
		return errs.TypeMismatch(v.label, op, pos, "u8", kindTypeName(a, ok))
	}
	v.rtPush(ir.U8())
	return nil
}

// isDataSectionType reports whether t is a valid data-section type: I32,
// an array over the data section of such a type, or a tuple of such
// (spec §4.3 "Data section").
func isDataSectionType(t ir.Type) bool {
	switch t.Tag {
	case ir.TyI32:
		return true
	case ir.TyArray:
		return t.Region.IsDataSection() && isDataSectionType(*t.Elem)
	case ir.TyTuple:
		for _, f := range t.Fields {
			if !isDataSectionType(f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v *verifier) doData(pos int, loc uint64) error {
	ctTop, ok := v.ctPop()
	if !ok || ctTop.Kind != ir.KindType {
		return errs.KindMismatch(v.label, "Data", pos, "Type", kindName(ctTop, ok))
	}
	t := ctTop.Type
	if !isDataSectionType(t) {
		return errs.TypeMismatch(v.label, "Data", pos, "a valid data-section type", t.String())
	}
	if int(loc)+t.Size() > len(v.data) {
		return errs.TypeIndexOutOfRange(v.label, "Data", pos, int(loc)+t.Size(), len(v.data))
	}
	v.rtPush(ir.Ptr(t, ir.DataSection()))
	v.emit(lowered.Data(loc))
	return nil
}

// channelShape is the sole acceptable channel-value shape (spec §9's
// second Open Question, resolved in DESIGN.md): Exists a:16.
// Tuple[(true, Func[Var(a)]), (true, Var(a))].
func channelShape(fresh *ir.FreshSource) ir.Type {
	id := fresh.Next()
	va := ir.Var(id, 16)
	body := ir.TupleOf([]ir.TupleField{
		{Init: true, Type: ir.FuncWithCaps(nil, []ir.Type{va})},
		{Init: true, Type: va},
	})
	return ir.Exists(id, 16, body)
}

// validChannels is the fixed set of channel ids the native VM exposes
// (stdin/stdout/stderr, in that fd order); any other byte is a §7
// Structure "unknown channel" error.
var validChannels = map[byte]bool{0: true, 1: true, 2: true}

func (v *verifier) doChan(pos int, channel byte, read bool) error {
	name := "Read"
	if !read {
		name = "Write"
	}
	if !validChannels[channel] {
		return errs.StructureUnknownChannel(v.label, name, pos, channel)
	}
	shape := channelShape(v.fresh)
	if read {
		v.rtPush(shape)
		v.emit(lowered.Read(channel))
		return nil
	}
	top, ok := v.rtPop()
	if !ok || !top.Equal(shape) {
		return errs.StructureBadChannelShape(v.label, "Write", pos)
	}
	v.emit(lowered.Write(channel))
	return nil
}
