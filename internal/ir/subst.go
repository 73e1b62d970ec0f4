package ir

// Subst is a capture-avoiding substitution applied at App/Call (spec
// §4.3's Call contract, §4.4's region capture). It maps bound Ids to the
// CT-stack value supplied at the use site.
type Subst struct {
	Region     map[Id]Region
	Type       map[Id]Type
	Size       map[Id]int
	Capability map[Id]CapSet
}

func NewSubst() Subst {
	return Subst{
		Region:     map[Id]Region{},
		Type:       map[Id]Type{},
		Size:       map[Id]int{},
		Capability: map[Id]CapSet{},
	}
}

func (s Subst) WithRegion(id Id, r Region) Subst {
	s2 := s.clone()
	s2.Region[id] = r
	return s2
}

func (s Subst) WithType(id Id, t Type) Subst {
	s2 := s.clone()
	s2.Type[id] = t
	return s2
}

func (s Subst) clone() Subst {
	out := NewSubst()
	for k, v := range s.Region {
		out.Region[k] = v
	}
	for k, v := range s.Type {
		out.Type[k] = v
	}
	for k, v := range s.Size {
		out.Size[k] = v
	}
	for k, v := range s.Capability {
		out.Capability[k] = v
	}
	return out
}

// SubstType substitutes s into t. Because every bound Id is fresh (minted
// once per function, never reused), no renaming is required to avoid
// capture: a bound occurrence of an Id already in s cannot be the Id s is
// substituting, since the binder that introduced it is strictly inside
// the substitution's scope and therefore has a different Id. This is the
// capture-avoidance invariant exercised by the "substitute_t is identity
// when id does not occur free" property (spec §8).
func SubstType(t Type, s Subst) Type {
	switch t.Tag {
	case TyI32, TyU8:
		return t
	case TyHandle:
		return Handle(SubstRegion(t.HandleRegion, s))
	case TyTuple:
		fields := make([]TupleField, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = TupleField{Init: f.Init, Type: SubstType(f.Type, s)}
		}
		return TupleOf(fields)
	case TyPtr:
		return Ptr(SubstType(*t.Elem, s), SubstRegion(t.Region, s))
	case TyArray:
		return Array(SubstType(*t.Elem, s), SubstRegion(t.Region, s))
	case TyVar:
		if rep, ok := s.Type[t.VarID]; ok {
			return rep
		}
		return t
	case TyFunc:
		params := make([]Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = SubstType(p, s)
		}
		return FuncWithCaps(SubstCapSet(t.Caps, s), params)
	case TyForall:
		s2 := s
		if _, shadowed := s.Type[t.BoundID]; shadowed {
			s2 = s.clone()
			delete(s2.Type, t.BoundID)
		}
		return Forall(t.BoundID, t.BoundSize, SubstType(*t.Body, s2))
	case TyExists:
		s2 := s
		if _, shadowed := s.Type[t.BoundID]; shadowed {
			s2 = s.clone()
			delete(s2.Type, t.BoundID)
		}
		return Exists(t.BoundID, t.BoundSize, SubstType(*t.Body, s2))
	case TyForallRegion:
		s2 := s
		if _, shadowed := s.Region[t.BoundRegion.ID]; shadowed {
			s2 = s.clone()
			delete(s2.Region, t.BoundRegion.ID)
		}
		captured := append([]Id{}, t.Captured...)
		// Region capture (spec §4.3 "region capture in ForallRegion"):
		// substituting a unique region into this nested binder's body
		// means any use of that unique region now aliases through this
		// path too, so it joins the binder's captured-regions list.
		for id, r := range s.Region {
			if r.Unique {
				if usesRegionID(*t.Body, id) {
					captured = appendUnique(captured, r.ID)
				}
			}
		}
		return ForallRegion(t.BoundRegion, SubstType(*t.Body, s2), captured)
	default:
		return t
	}
}

func appendUnique(ids []Id, id Id) []Id {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

// usesRegionID reports whether a free occurrence of id-as-a-region exists
// anywhere in t. Used only to decide whether a substituted unique region
// should be added to a nested ForallRegion's captured list.
func usesRegionID(t Type, id Id) bool {
	switch t.Tag {
	case TyHandle:
		return t.HandleRegion.ID == id
	case TyTuple:
		for _, f := range t.Fields {
			if usesRegionID(f.Type, id) {
				return true
			}
		}
		return false
	case TyPtr, TyArray:
		return t.Region.ID == id || usesRegionID(*t.Elem, id)
	case TyForall, TyExists:
		return usesRegionID(*t.Body, id)
	case TyForallRegion:
		if t.BoundRegion.ID == id {
			return false
		}
		return usesRegionID(*t.Body, id)
	case TyFunc:
		for _, p := range t.Params {
			if usesRegionID(p, id) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func SubstRegion(r Region, s Subst) Region {
	if rep, ok := s.Region[r.ID]; ok {
		return rep
	}
	return r
}

func SubstCapSet(c CapSet, s Subst) CapSet {
	out := make(CapSet, 0, len(c))
	for _, cap_ := range c {
		out = append(out, SubstCapability(cap_, s)...)
	}
	return out
}

// SubstCapability substitutes s into a single capability; a CapVar bound
// by s expands into its replacement set (spec §4.4 "substitute into the
// callee's required capability set").
func SubstCapability(c Capability, s Subst) CapSet {
	switch c.Kind {
	case CapUnique:
		return CapSet{Unique(SubstRegion(c.Region, s))}
	case CapReadWrite:
		return CapSet{ReadWrite(SubstRegion(c.Region, s))}
	case CapVar:
		if rep, ok := s.Capability[c.Var]; ok {
			return rep
		}
		return CapSet{c}
	default:
		return CapSet{c}
	}
}
