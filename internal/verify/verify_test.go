package verify

import (
	"testing"

	"svm/internal/errs"
	"svm/internal/ir"
	"svm/internal/lowered"
	"svm/internal/srcbc"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error with code %s, got nil", code)
	}
	svmErr, ok := err.(*errs.SVMError)
	if !ok {
		t.Fatalf("expected *errs.SVMError, got %T: %v", err, err)
	}
	if svmErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, svmErr.Code, err)
	}
}

// Boundary scenario 1 (spec §8): a trivial function with no parameters
// and no polymorphism verifies and produces Halt-terminated code.
func TestEmptyFunctionVerifies(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpLit, Int32: 0},
		{Tag: srcbc.OpHalt},
	}
	fn, err := Run("main", declared, body, nil, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(fn.Ops) != 2 {
		t.Fatalf("expected 2 lowered ops (Lit, Halt), got %d", len(fn.Ops))
	}
}

func mallocPtrTupleFn(label string) (ir.Type, ir.Region) {
	region := ir.Region{Unique: true, ID: ir.Id{Label: label, Counter: 0}}
	body := ir.FuncWithCaps(nil, []ir.Type{ir.Handle(region)})
	return ir.ForallRegion(region, body, nil), region
}

// Boundary scenario 2: projecting an uninitialized tuple field fails.
func TestUninitializedProjection(t *testing.T) {
	declared, _ := mallocPtrTupleFn("f")
	body := []srcbc.Op{
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpTuple, N: 2},
		{Tag: srcbc.OpPtr},
		{Tag: srcbc.OpMalloc},
		{Tag: srcbc.OpProj, N: 0},
	}
	_, err := Run("f", declared, body, nil, nil)
	assertCode(t, err, "UninitializedRead")
}

// Boundary scenario 3: initializing the same tuple field twice fails.
func TestDoubleInit(t *testing.T) {
	declared, _ := mallocPtrTupleFn("f")
	body := []srcbc.Op{
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpTuple, N: 2},
		{Tag: srcbc.OpPtr},
		{Tag: srcbc.OpMalloc},
		{Tag: srcbc.OpLit, Int32: 7},
		{Tag: srcbc.OpInit, N: 0},
		{Tag: srcbc.OpLit, Int32: 8},
		{Tag: srcbc.OpInit, N: 0},
	}
	_, err := Run("f", declared, body, nil, nil)
	assertCode(t, err, "DoubleInit")
}

// Initializing then projecting the same field succeeds: the projected
// I32 can be printed and the body ends with a Halt status.
func TestInitThenProjectSucceeds(t *testing.T) {
	declared, _ := mallocPtrTupleFn("f")
	body := []srcbc.Op{
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpTuple, N: 2},
		{Tag: srcbc.OpPtr},
		{Tag: srcbc.OpMalloc},
		{Tag: srcbc.OpLit, Int32: 7},
		{Tag: srcbc.OpInit, N: 0},
		{Tag: srcbc.OpProj, N: 0},
		{Tag: srcbc.OpPrint},
		{Tag: srcbc.OpLit, Int32: 0},
		{Tag: srcbc.OpHalt},
	}
	fn, err := Run("f", declared, body, nil, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(fn.Ops) == 0 {
		t.Fatal("expected lowered ops to be emitted")
	}
}

// Boundary scenario 4: a unique region already captured on another
// path cannot be passed into a ForallRegion that captured it.
func TestUniqueRegionAccessViolation(t *testing.T) {
	rid := ir.Id{Label: "caller", Counter: 0}
	region := ir.Region{Unique: true, ID: rid}
	declared := ir.ForallRegion(region, ir.FuncWithCaps(nil, nil), nil)

	gRegion := ir.Region{ID: ir.Id{Label: "g", Counter: 0}}
	gType := ir.ForallRegion(gRegion, ir.FuncWithCaps(nil, nil), []ir.Id{rid})

	table := Table{"g": gType}
	body := []srcbc.Op{
		{Tag: srcbc.OpGlobalFunc, Label: "g"},
		{Tag: srcbc.OpApp},
	}
	_, err := Run("caller", declared, body, table, nil)
	assertCode(t, err, "AccessViolation")
}

// The same shape, but the callee never captured the region: App
// succeeds.
func TestRegionAppSucceedsWithoutCapture(t *testing.T) {
	rid := ir.Id{Label: "caller", Counter: 0}
	region := ir.Region{Unique: true, ID: rid}
	declared := ir.ForallRegion(region, ir.FuncWithCaps(nil, nil), nil)

	gRegion := ir.Region{ID: ir.Id{Label: "g", Counter: 0}}
	gType := ir.ForallRegion(gRegion, ir.FuncWithCaps(nil, nil), nil)

	table := Table{"g": gType}
	body := []srcbc.Op{
		{Tag: srcbc.OpGlobalFunc, Label: "g"},
		{Tag: srcbc.OpApp},
	}
	_, err := Run("caller", declared, body, table, nil)
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}

// Boundary scenario 5: mutating the data section through Init fails.
func TestDataSectionMutationRejected(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	data := make([]byte, 8)
	body := []srcbc.Op{
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpTuple, N: 1},
		{Tag: srcbc.OpData, Loc: 0},
		{Tag: srcbc.OpLit, Int32: 99},
		{Tag: srcbc.OpInit, N: 0},
	}
	_, err := Run("f", declared, body, nil, data)
	assertCode(t, err, "CannotMutateDataSection")
}

// Data rejects an out-of-range location.
func TestDataOutOfRange(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	data := make([]byte, 2)
	body := []srcbc.Op{
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpData, Loc: 0},
	}
	_, err := Run("f", declared, body, nil, data)
	assertCode(t, err, "IndexOutOfRange")
}

// Indexing a data-section array lowers to DataIndex rather than the
// general ArrProj form, since the data section carries no live-set
// check at runtime (spec §6.2).
func TestArrProjOnDataSectionLowersToDataIndex(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	data := make([]byte, 16)
	body := []srcbc.Op{
		{Tag: srcbc.OpDataSec},
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpArr},
		{Tag: srcbc.OpData, Loc: 0},
		{Tag: srcbc.OpDeref},
		{Tag: srcbc.OpLit, Int32: 0},
		{Tag: srcbc.OpArrProj},
		{Tag: srcbc.OpHalt},
	}
	fn, err := Run("f", declared, body, nil, data)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var sawDataIndex bool
	for _, op := range fn.Ops {
		if op.Tag == lowered.TagDataIndex {
			sawDataIndex = true
		}
		if op.Tag == lowered.TagArrProj {
			t.Fatalf("expected DataIndex, lowered to the general ArrProj form")
		}
	}
	if !sawDataIndex {
		t.Fatalf("expected a DataIndex op in %v", fn.Ops)
	}
}

// Boundary scenario 6: calling a function whose capability requirement
// is not satisfied by the caller's present capability set fails.
func TestCapabilityMismatchAtCall(t *testing.T) {
	gRegion := ir.Region{ID: ir.Id{Label: "g", Counter: 5}}
	gType := ir.FuncWithCaps(ir.CapSet{ir.ReadWrite(gRegion)}, nil)
	table := Table{"g": gType}

	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpRgn},
		{Tag: srcbc.OpOwn},
		{Tag: srcbc.OpGlobalFunc, Label: "g"},
		{Tag: srcbc.OpCall},
	}
	_, err := Run("caller", declared, body, table, nil)
	assertCode(t, err, "Insufficient")
}

// A present Unique(r) capability satisfies a required ReadWrite(r) on
// the same region (capability subtyping, spec §4.4).
func TestCapabilitySatisfiedAtCall(t *testing.T) {
	region := ir.Region{Unique: true, ID: ir.Id{Label: "caller", Counter: 0}}
	gType := ir.ForallRegion(region, ir.FuncWithCaps(ir.CapSet{ir.ReadWrite(region)}, nil), nil)
	table := Table{"g": gType}

	declared := ir.ForallRegion(region, ir.FuncWithCaps(nil, nil), nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpGlobalFunc, Label: "g"},
		{Tag: srcbc.OpCTGet, N: 0}, // duplicate the seeded region for App's argument
		{Tag: srcbc.OpApp},
		{Tag: srcbc.OpCTGet, N: 0},
		{Tag: srcbc.OpOwn},
		{Tag: srcbc.OpCall},
	}
	_, err := Run("caller", declared, body, table, nil)
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}

// NewRgn followed by FreeRgn of that fresh unique region verifies, and
// both opcodes are lowered.
func TestNewRgnThenFreeRgnVerifies(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpNewRgn, Size: 16},
		{Tag: srcbc.OpFreeRgn},
	}
	fn, err := Run("f", declared, body, nil, nil)
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if len(fn.Ops) != 2 {
		t.Fatalf("expected NewRgn+FreeRgn lowered, got %d ops", len(fn.Ops))
	}
}

// FreeRgn on a non-unique (shared) region is rejected.
func TestFreeRgnRejectsSharedRegion(t *testing.T) {
	region := ir.Region{Unique: false, ID: ir.Id{Label: "caller", Counter: 0}}
	declared := ir.ForallRegion(region, ir.FuncWithCaps(nil, []ir.Type{ir.Handle(region)}), nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpFreeRgn},
	}
	_, err := Run("f", declared, body, nil, nil)
	assertCode(t, err, "NotUnique")
}

// Malloc onto a handle from a different region than the target type is
// a region-access error.
func TestMallocRegionMismatch(t *testing.T) {
	r1 := ir.Region{Unique: true, ID: ir.Id{Label: "caller", Counter: 0}}
	r2 := ir.Region{Unique: true, ID: ir.Id{Label: "caller", Counter: 1}}
	// Seed two region parameters; pass the handle for r2 but build the
	// Ptr type over r1.
	body := ir.FuncWithCaps(nil, []ir.Type{ir.Handle(r2)})
	wrapped := ir.ForallRegion(r1, ir.ForallRegion(r2, body, nil), nil)

	ops := []srcbc.Op{
		{Tag: srcbc.OpCTGet, N: 0}, // the outer (r1) region, seeded on top of r2
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpTuple, N: 1},
		{Tag: srcbc.OpPtr},
		{Tag: srcbc.OpMalloc},
	}
	_, err := Run("f", wrapped, ops, nil, nil)
	assertCode(t, err, "AccessViolation")
}

// Calling an unknown global function label is a structural error.
func TestUnknownGlobalFuncLabel(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpGlobalFunc, Label: "missing"},
	}
	_, err := Run("f", declared, body, Table{}, nil)
	assertCode(t, err, "UnknownGlobalFuncLabel")
}

// A channel byte outside the fixed {0,1,2} set is a structural error.
func TestUnknownChannelRejected(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpChanRead, Byte: 9},
	}
	_, err := Run("f", declared, body, nil, nil)
	assertCode(t, err, "UnknownChannel")
}

// A Read pushes a value of the channel's shape, which a Write on the
// same channel accepts.
func TestReadThenWriteChannelRoundTrips(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpChanRead, Byte: 0},
		{Tag: srcbc.OpChanWrite, Byte: 0},
	}
	_, err := Run("f", declared, body, nil, nil)
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}

// A malformed channel operand shape is rejected (§9's second Open
// Question, resolved in DESIGN.md).
func TestWriteWrongShapeRejected(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpLit, Int32: 1},
		{Tag: srcbc.OpChanWrite, Byte: 0},
	}
	_, err := Run("f", declared, body, nil, nil)
	assertCode(t, err, "BadChannelShape")
}

// CallNZ requires its two function-typed branches to share a type.
func TestCallNZMismatchedBranches(t *testing.T) {
	gType := ir.FuncWithCaps(nil, nil)
	hType := ir.FuncWithCaps(nil, []ir.Type{ir.I32()})
	table := Table{"g": gType, "h": hType}

	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpGlobalFunc, Label: "g"},
		{Tag: srcbc.OpGlobalFunc, Label: "h"},
		{Tag: srcbc.OpLit, Int32: 0},
		{Tag: srcbc.OpCallNZ},
	}
	_, err := Run("f", declared, body, table, nil)
	assertCode(t, err, "CallNZMismatch")
}

func TestCallNZSameTypeSucceeds(t *testing.T) {
	gType := ir.FuncWithCaps(nil, nil)
	table := Table{"g": gType, "h": gType}

	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpGlobalFunc, Label: "g"},
		{Tag: srcbc.OpGlobalFunc, Label: "h"},
		{Tag: srcbc.OpLit, Int32: 0},
		{Tag: srcbc.OpCallNZ},
	}
	_, err := Run("f", declared, body, table, nil)
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}

// The termination check: an unclosed binder at end-of-body is rejected.
func TestNonEmptyQuantificationStack(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	body := []srcbc.Op{
		{Tag: srcbc.OpAll, Size: 4},
		{Tag: srcbc.OpLit, Int32: 0},
		{Tag: srcbc.OpHalt},
	}
	_, err := Run("f", declared, body, nil, nil)
	assertCode(t, err, "NonEmptyQuantificationStack")
}

// A stack-allocated tuple over the 4096-byte cap is rejected.
func TestOversizedStackAllocation(t *testing.T) {
	declared := ir.FuncWithCaps(nil, nil)
	fields := make([]srcbc.Op, 0, 1200)
	for i := 0; i < 1030; i++ {
		fields = append(fields, srcbc.Op{Tag: srcbc.OpI32})
	}
	body := append(fields, srcbc.Op{Tag: srcbc.OpTuple, N: 1030}, srcbc.Op{Tag: srcbc.OpMalloc})
	_, err := Run("f", declared, body, nil, nil)
	assertCode(t, err, "TooBigForStack")
}
