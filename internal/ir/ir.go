// Package ir holds the term representation the verifier operates over:
// identifiers, kinds, sizes, regions, capabilities, and types (spec §3).
//
// Every constructor here is a finite tree. Binders are nominal: a Forall,
// ForallRegion, or Exists carries a fresh Id minted by the verifier, and a
// Var/RegionVar occurrence is meaningful only within the scope that bound
// it. There is no interning; values are compared structurally.
package ir

import "fmt"

// Id names a region, type, or capability variable. Two Ids are equal iff
// both fields match; the fresh-counter is scoped to the owning function's
// label, so identifiers minted by different functions never collide even
// though they share a counter space with region/type/capability variables.
type Id struct {
	Label   string
	Counter int
}

func (id Id) String() string {
	return fmt.Sprintf("%s#%d", id.Label, id.Counter)
}

// FreshSource mints Ids for a single function under verification.
type FreshSource struct {
	label   string
	counter int
}

func NewFreshSource(label string) *FreshSource {
	return &FreshSource{label: label}
}

func (f *FreshSource) Next() Id {
	id := Id{Label: f.label, Counter: f.counter}
	f.counter++
	return id
}

// Kind is one of the three sorts of the compile-time language (spec §3).
// KindCapability is a SPEC_FULL §12 supplement, grounded on
// original_source/src/header.rs's CTStackVal::CTCapability: a capability
// set must ride the CT-stack between an Own/Read/Both/Cap/CapLE opcode
// and the Func opcode that consumes it, even though spec.md's prose
// names only Region/Type/Size as CT-stack kinds.
type Kind int

const (
	KindRegion Kind = iota
	KindType
	KindSize
	KindCapability
)

func (k Kind) String() string {
	switch k {
	case KindRegion:
		return "Region"
	case KindType:
		return "Type"
	case KindSize:
		return "Size"
	case KindCapability:
		return "Capability"
	default:
		return "Kind?"
	}
}

// DataSectionID is the distinguished token for the data-section region.
// It is never equal to a bound variable's Id because function labels are
// never empty strings.
var DataSectionID = Id{Label: "", Counter: -1}

// Region is a pair (unique, id). The data-section region is always
// shared (Unique == false) and its Id is DataSectionID.
type Region struct {
	Unique bool
	ID     Id
}

func (r Region) IsDataSection() bool { return r.ID == DataSectionID }

func DataSection() Region { return Region{Unique: false, ID: DataSectionID} }

func (r Region) String() string {
	if r.IsDataSection() {
		return "data"
	}
	if r.Unique {
		return "unique(" + r.ID.String() + ")"
	}
	return "shared(" + r.ID.String() + ")"
}

func (r Region) Equal(o Region) bool {
	return r.Unique == o.Unique && r.ID == o.ID
}

// CapKind distinguishes the three capability constructors.
type CapKind int

const (
	CapUnique CapKind = iota
	CapReadWrite
	CapVar
)

// Capability is a single tagged capability value: Unique(Region),
// ReadWrite(Region), or CapVar(Id). A capability variable's bound is
// carried alongside it so subtyping (spec §4.4) can resolve it without a
// side table.
type Capability struct {
	Kind   CapKind
	Region Region // valid when Kind != CapVar
	Var    Id     // valid when Kind == CapVar
	Bound  CapSet // the variable's declared bound; empty means unbounded
}

func Unique(r Region) Capability    { return Capability{Kind: CapUnique, Region: r} }
func ReadWrite(r Region) Capability { return Capability{Kind: CapReadWrite, Region: r} }
func NewCapVar(id Id, bound CapSet) Capability {
	return Capability{Kind: CapVar, Var: id, Bound: bound}
}

func (c Capability) String() string {
	switch c.Kind {
	case CapUnique:
		return "unique " + c.Region.String()
	case CapReadWrite:
		return "rw " + c.Region.String()
	case CapVar:
		return "cap " + c.Var.String()
	default:
		return "cap?"
	}
}

// CapSet is an unordered collection of capabilities.
type CapSet []Capability

func (s CapSet) Clone() CapSet {
	out := make(CapSet, len(s))
	copy(out, s)
	return out
}

// RegionOf returns the region a capability grants access to, resolving
// through bound CapVars. ok is false for an unbounded CapVar, which
// grants access to nothing until instantiated.
func (c Capability) RegionOf() (Region, bool) {
	switch c.Kind {
	case CapUnique, CapReadWrite:
		return c.Region, true
	case CapVar:
		for _, b := range c.Bound {
			if r, ok := b.RegionOf(); ok {
				return r, true
			}
		}
		return Region{}, false
	default:
		return Region{}, false
	}
}

// Type is the tagged union of spec §3. A nil *Type is never valid; use
// the constructors below.
type Type struct {
	Tag TypeTag

	// I32, U8: no payload.

	// Handle
	HandleRegion Region

	// Tuple
	Fields []TupleField

	// Ptr, Array
	Elem   *Type
	Region Region

	// Var
	VarID   Id
	VarSize int

	// Func
	Params []Type
	Caps   CapSet // required capability set (SPEC_FULL §12, grounded on original_source TFunc(c, tl))

	// Forall, Exists
	BoundID   Id
	BoundSize int
	Body      *Type

	// ForallRegion
	BoundRegion Region
	Captured    []Id // unique regions already bound when this binder was introduced
}

type TypeTag int

const (
	TyI32 TypeTag = iota
	TyU8
	TyHandle
	TyTuple
	TyPtr
	TyArray
	TyVar
	TyFunc
	TyForall
	TyForallRegion
	TyExists
)

// TupleField is one field of a Tuple: its initialization flag and type.
type TupleField struct {
	Init bool
	Type Type
}

func I32() Type { return Type{Tag: TyI32} }
func U8() Type  { return Type{Tag: TyU8} }
func Handle(r Region) Type {
	return Type{Tag: TyHandle, HandleRegion: r}
}
func TupleOf(fields []TupleField) Type {
	return Type{Tag: TyTuple, Fields: fields}
}
func Ptr(t Type, r Region) Type {
	return Type{Tag: TyPtr, Elem: &t, Region: r}
}
func Array(t Type, r Region) Type {
	return Type{Tag: TyArray, Elem: &t, Region: r}
}
func Var(id Id, size int) Type {
	return Type{Tag: TyVar, VarID: id, VarSize: size}
}
func Func(params []Type) Type {
	return Type{Tag: TyFunc, Params: params}
}

func FuncWithCaps(caps CapSet, params []Type) Type {
	return Type{Tag: TyFunc, Params: params, Caps: caps}
}
func Forall(id Id, size int, body Type) Type {
	return Type{Tag: TyForall, BoundID: id, BoundSize: size, Body: &body}
}
func ForallRegion(r Region, body Type, captured []Id) Type {
	return Type{Tag: TyForallRegion, BoundRegion: r, Body: &body, Captured: append([]Id{}, captured...)}
}
func Exists(id Id, size int, body Type) Type {
	return Type{Tag: TyExists, BoundID: id, BoundSize: size, Body: &body}
}

// Size computes a type's static in-memory footprint (spec §3, §4.3
// "size computation"). Var carries its size explicitly so polymorphic
// code never needs to inspect what it's instantiated with.
func (t Type) Size() int {
	switch t.Tag {
	case TyI32:
		return 4
	case TyU8:
		return 1
	case TyHandle:
		return 8
	case TyTuple:
		total := 0
		for _, f := range t.Fields {
			total += f.Type.Size()
		}
		return total
	case TyPtr, TyArray:
		return 16
	case TyVar:
		return t.VarSize
	case TyFunc:
		return 4
	case TyForall, TyForallRegion, TyExists:
		// Binders are never themselves stack-resident; callers strip
		// them (spec §4.3 "seeding") before a value of this shape can
		// occupy a stack slot.
		return 0
	default:
		return 0
	}
}

// Equal is alpha-equivalence on closed types: bound identifiers compare
// only positionally, never by name, so two types built with different
// fresh-id counters but the same shape are equal.
func (t Type) Equal(o Type) bool {
	return typeEqual(t, o, map[Id]Id{})
}

func typeEqual(a, b Type, ren map[Id]Id) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TyI32, TyU8:
		return true
	case TyHandle:
		return regionEqual(a.HandleRegion, b.HandleRegion, ren)
	case TyTuple:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Init != b.Fields[i].Init {
				return false
			}
			if !typeEqual(a.Fields[i].Type, b.Fields[i].Type, ren) {
				return false
			}
		}
		return true
	case TyPtr, TyArray:
		return typeEqual(*a.Elem, *b.Elem, ren) && regionEqual(a.Region, b.Region, ren)
	case TyVar:
		if mapped, ok := ren[a.VarID]; ok {
			return mapped == b.VarID && a.VarSize == b.VarSize
		}
		return a.VarID == b.VarID && a.VarSize == b.VarSize
	case TyFunc:
		if len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !typeEqual(a.Params[i], b.Params[i], ren) {
				return false
			}
		}
		return capSetEqual(a.Caps, b.Caps)
	case TyForall, TyExists:
		if a.BoundSize != b.BoundSize {
			return false
		}
		ren2 := cloneRen(ren)
		ren2[a.BoundID] = b.BoundID
		return typeEqual(*a.Body, *b.Body, ren2)
	case TyForallRegion:
		ren2 := cloneRen(ren)
		ren2[a.BoundRegion.ID] = b.BoundRegion.ID
		if a.BoundRegion.Unique != b.BoundRegion.Unique {
			return false
		}
		return typeEqual(*a.Body, *b.Body, ren2)
	default:
		return false
	}
}

// capSetEqual compares two capability sets as unordered multisets of
// their string renderings (spec §3: "a capability set is an unordered
// collection").
func capSetEqual(a, b CapSet) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ca := range a {
		found := false
		for j, cb := range b {
			if !used[j] && ca.String() == cb.String() {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func regionEqual(a, b Region, ren map[Id]Id) bool {
	if a.Unique != b.Unique {
		return false
	}
	if mapped, ok := ren[a.ID]; ok {
		return mapped == b.ID
	}
	return a.ID == b.ID
}

func cloneRen(m map[Id]Id) map[Id]Id {
	out := make(map[Id]Id, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t Type) String() string {
	switch t.Tag {
	case TyI32:
		return "i32"
	case TyU8:
		return "u8"
	case TyHandle:
		return "handle(" + t.HandleRegion.String() + ")"
	case TyTuple:
		s := "tuple["
		for i, f := range t.Fields {
			if i > 0 {
				s += ", "
			}
			mark := "-"
			if f.Init {
				mark = "+"
			}
			s += mark + f.Type.String()
		}
		return s + "]"
	case TyPtr:
		return "ptr(" + t.Elem.String() + "@" + t.Region.String() + ")"
	case TyArray:
		return "arr(" + t.Elem.String() + "@" + t.Region.String() + ")"
	case TyVar:
		return "var(" + t.VarID.String() + ")"
	case TyFunc:
		s := "func["
		for i, p := range t.Params {
			if i > 0 {
				s += ", "
			}
			s += p.String()
		}
		return s + "]"
	case TyForall:
		return "forall " + t.BoundID.String() + ". " + t.Body.String()
	case TyForallRegion:
		return "forallR " + t.BoundRegion.String() + ". " + t.Body.String()
	case TyExists:
		return "exists " + t.BoundID.String() + ". " + t.Body.String()
	default:
		return "ty?"
	}
}

// CTStackVal is a compile-time stack value.
type CTStackVal struct {
	Kind       Kind
	Region     Region
	Type       Type
	Size       int
	Capability CapSet
}

func CTRegion(r Region) CTStackVal   { return CTStackVal{Kind: KindRegion, Region: r} }
func CTType(t Type) CTStackVal       { return CTStackVal{Kind: KindType, Type: t} }
func CTSize(n int) CTStackVal        { return CTStackVal{Kind: KindSize, Size: n} }
func CTCapability(c CapSet) CTStackVal { return CTStackVal{Kind: KindCapability, Capability: c} }

// QuantKind distinguishes the three ways a binder may be opened.
type QuantKind int

const (
	QuantRegion QuantKind = iota
	QuantForall
	QuantExist
)

// Quantification is an entry on the quantifier stack (spec §4.1): a
// still-open binder awaiting its matching End/Emos.
type Quantification struct {
	Kind   QuantKind
	Region Region // valid when Kind == QuantRegion
	ID     Id     // valid when Kind == QuantForall || Kind == QuantExist
	Size   int    // valid when Kind == QuantForall || Kind == QuantExist
}
