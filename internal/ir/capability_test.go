package ir

import "testing"

func TestCapSubtypeLattice(t *testing.T) {
	r1 := Region{ID: Id{Label: "f", Counter: 0}}
	r2 := Region{ID: Id{Label: "f", Counter: 1}}

	tests := []struct {
		name string
		have CapSet
		need CapSet
		want bool
	}{
		{"unique satisfies unique same region", CapSet{Unique(r1)}, CapSet{Unique(r1)}, true},
		{"unique satisfies readwrite same region", CapSet{Unique(r1)}, CapSet{ReadWrite(r1)}, true},
		{"readwrite satisfies readwrite same region", CapSet{ReadWrite(r1)}, CapSet{ReadWrite(r1)}, true},
		{"readwrite does not satisfy unique", CapSet{ReadWrite(r1)}, CapSet{Unique(r1)}, false},
		{"different region never satisfies", CapSet{Unique(r1)}, CapSet{ReadWrite(r2)}, false},
		{"empty have never satisfies a need", CapSet{}, CapSet{ReadWrite(r1)}, false},
		{"empty need is trivially satisfied", CapSet{}, CapSet{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.have.Satisfies(tc.need); got != tc.want {
				t.Errorf("Satisfies() = %v, want %v", got, tc.want)
			}
		})
	}
}

// Capability subtyping is reflexive under a fixed bound (spec §8).
func TestCapSatisfiesReflexive(t *testing.T) {
	r := Region{ID: Id{Label: "f", Counter: 0}}
	sets := []CapSet{
		{Unique(r)}, {ReadWrite(r)}, {Unique(r), ReadWrite(Region{ID: Id{Label: "f", Counter: 1}})},
	}
	for _, s := range sets {
		if !s.Satisfies(s) {
			t.Errorf("%v does not satisfy itself", s)
		}
	}
}

// Capability subtyping is transitive: if A satisfies B's requirement and
// B (as a have-set) satisfies C, A must satisfy C when all three are
// built from the same fixed set of regions (spec §8).
func TestCapSatisfiesTransitive(t *testing.T) {
	r := Region{ID: Id{Label: "f", Counter: 0}}
	a := CapSet{Unique(r)}
	b := CapSet{ReadWrite(r)}
	c := CapSet{ReadWrite(r)}

	if !a.Satisfies(b) {
		t.Fatal("setup: a should satisfy b")
	}
	if !b.Satisfies(c) {
		t.Fatal("setup: b should satisfy c")
	}
	if !a.Satisfies(c) {
		t.Error("transitivity failed: a satisfies b, b satisfies c, but a does not satisfy c")
	}
}

func TestCapVarResolvesThroughBound(t *testing.T) {
	r := Region{ID: Id{Label: "f", Counter: 0}}
	bound := CapSet{ReadWrite(r)}
	v := NewCapVar(Id{Label: "f", Counter: 1}, bound)

	have := CapSet{v}
	need := CapSet{ReadWrite(r)}
	if !have.Satisfies(need) {
		t.Error("a capability variable should satisfy anything its bound satisfies")
	}

	need2 := CapSet{Unique(r)}
	if have.Satisfies(need2) {
		t.Error("a ReadWrite-bounded variable must not satisfy a Unique requirement")
	}
}

func TestCanAccess(t *testing.T) {
	r := Region{ID: Id{Label: "f", Counter: 0}}
	other := Region{ID: Id{Label: "f", Counter: 1}}
	have := CapSet{ReadWrite(r)}
	if !have.CanAccess(r) {
		t.Error("expected access to the granted region")
	}
	if have.CanAccess(other) {
		t.Error("must not report access to an ungranted region")
	}
}

func TestMergeConcatenates(t *testing.T) {
	r1 := Region{ID: Id{Label: "f", Counter: 0}}
	r2 := Region{ID: Id{Label: "f", Counter: 1}}
	merged := Merge(CapSet{Unique(r1)}, CapSet{ReadWrite(r2)})
	if len(merged) != 2 {
		t.Fatalf("Merge produced %d entries, want 2", len(merged))
	}
}
