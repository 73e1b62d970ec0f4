package ir

import "testing"

// Substitution is capture-avoiding: substitute_t(t, {id -> u}, ...) is
// the identity when id does not occur free in t (spec §8).
func TestSubstIdentityWhenFree(t *testing.T) {
	other := Id{Label: "f", Counter: 0}
	target := Id{Label: "f", Counter: 1}
	ty := TupleOf([]TupleField{{Init: true, Type: I32()}, {Init: true, Type: U8()}})

	sub := NewSubst().WithType(target, Var(other, 4))
	got := SubstType(ty, sub)
	if !got.Equal(ty) {
		t.Errorf("substituting an id that does not occur free changed the type: got %s, want %s", got.String(), ty.String())
	}
}

func TestSubstReplacesFreeVar(t *testing.T) {
	id := Id{Label: "f", Counter: 0}
	replacement := I32()
	sub := NewSubst().WithType(id, replacement)

	got := SubstType(Var(id, 4), sub)
	if !got.Equal(replacement) {
		t.Errorf("SubstType did not replace the free variable: got %s", got.String())
	}
}

// A Forall/Exists re-binding the same Id shadows the outer substitution
// inside its own body: the bound occurrence must not be substituted.
func TestSubstDoesNotCaptureUnderShadowingBinder(t *testing.T) {
	id := Id{Label: "f", Counter: 0}
	sub := NewSubst().WithType(id, I32())

	shadowed := Forall(id, 8, Var(id, 8))
	got := SubstType(shadowed, sub)
	if got.Tag != TyForall || got.Body.Tag != TyVar || got.Body.VarID != id {
		t.Errorf("substitution captured a variable shadowed by its own binder: got %s", got.String())
	}
}

func TestSubstIntoTupleAndPtr(t *testing.T) {
	id := Id{Label: "f", Counter: 0}
	r := Region{ID: Id{Label: "f", Counter: 1}}
	sub := NewSubst().WithType(id, I32())

	tup := TupleOf([]TupleField{{Init: true, Type: Var(id, 4)}})
	got := SubstType(tup, sub)
	if !got.Fields[0].Type.Equal(I32()) {
		t.Errorf("substitution did not reach into a tuple field: %s", got.String())
	}

	ptr := Ptr(Var(id, 4), r)
	gotPtr := SubstType(ptr, sub)
	if !gotPtr.Elem.Equal(I32()) {
		t.Errorf("substitution did not reach into a Ptr's element type: %s", gotPtr.String())
	}
}

func TestSubstRegion(t *testing.T) {
	rid := Id{Label: "f", Counter: 0}
	replacement := Region{Unique: true, ID: Id{Label: "f", Counter: 9}}
	sub := NewSubst().WithRegion(rid, replacement)

	got := SubstRegion(Region{ID: rid}, sub)
	if !got.Equal(replacement) {
		t.Errorf("SubstRegion did not substitute: got %s", got.String())
	}
}

// Region capture: substituting a unique region into a ForallRegion's
// body appends it to the binder's captured list when that body actually
// mentions the bound id (spec §4.3 "Region capture in ForallRegion").
func TestSubstCapturesUniqueRegionInNestedForallRegion(t *testing.T) {
	outerArgID := Id{Label: "caller", Counter: 0}
	innerBoundR := Region{ID: Id{Label: "f", Counter: 1}}

	// forallR innerBoundR. Handle(outerArgID)   -- a nested binder whose
	// body mentions a region that will be substituted from outside.
	nested := ForallRegion(innerBoundR, Handle(Region{ID: outerArgID}), nil)

	uniqueArg := Region{Unique: true, ID: Id{Label: "caller", Counter: 2}}
	sub := NewSubst().WithRegion(outerArgID, uniqueArg)

	got := SubstType(nested, sub)
	found := false
	for _, c := range got.Captured {
		if c == uniqueArg.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in captured-regions list, got %v", uniqueArg.ID, got.Captured)
	}
}

func TestSubstDoesNotCaptureSharedRegion(t *testing.T) {
	outerArgID := Id{Label: "caller", Counter: 0}
	innerBoundR := Region{ID: Id{Label: "f", Counter: 1}}
	nested := ForallRegion(innerBoundR, Handle(Region{ID: outerArgID}), nil)

	sharedArg := Region{Unique: false, ID: Id{Label: "caller", Counter: 2}}
	sub := NewSubst().WithRegion(outerArgID, sharedArg)

	got := SubstType(nested, sub)
	if len(got.Captured) != 0 {
		t.Errorf("a shared (non-unique) region must never be captured, got %v", got.Captured)
	}
}

func TestSubstCapVarExpandsToBoundSet(t *testing.T) {
	varID := Id{Label: "f", Counter: 0}
	r := Region{ID: Id{Label: "f", Counter: 1}}
	replacement := CapSet{Unique(r)}
	sub := NewSubst()
	sub = Subst{Region: sub.Region, Type: sub.Type, Size: sub.Size, Capability: map[Id]CapSet{varID: replacement}}

	got := SubstCapability(NewCapVar(varID, nil), sub)
	if len(got) != 1 || got[0].Kind != CapUnique || !got[0].Region.Equal(r) {
		t.Errorf("capability variable substitution did not expand to the replacement set: %v", got)
	}
}
