package ir

// Satisfies reports whether capability set have satisfies capability set
// need: for every c in need, some c' in have has c' <= c (spec §4.4).
func (have CapSet) Satisfies(need CapSet) bool {
	for _, n := range need {
		ok := false
		for _, h := range have {
			if capLE(h, n) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// capLE is spec §4.4's <= relation, resolving CapVars through their
// bound.
func capLE(lo, hi Capability) bool {
	switch {
	case lo.Kind == CapUnique && hi.Kind == CapUnique:
		return lo.Region.Equal(hi.Region)
	case lo.Kind == CapUnique && hi.Kind == CapReadWrite:
		return lo.Region.Equal(hi.Region)
	case lo.Kind == CapReadWrite && hi.Kind == CapReadWrite:
		return lo.Region.Equal(hi.Region)
	case lo.Kind == CapVar:
		return lo.Bound.Satisfies(CapSet{hi})
	default:
		return false
	}
}

// CanAccess reports whether the capability set grants read/write access
// to r: some member is Unique(r), ReadWrite(r), or resolves through its
// bound to such a member (spec §4.4).
func (have CapSet) CanAccess(r Region) bool {
	for _, c := range have {
		if c.Kind == CapVar {
			if c.Bound.CanAccess(r) {
				return true
			}
			continue
		}
		if c.Region.Equal(r) {
			return true
		}
	}
	return false
}

// Merge concatenates two capability sets (the Both opcode, spec §12 /
// original_source verify.rs Op1Both).
func Merge(a, b CapSet) CapSet {
	out := make(CapSet, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
