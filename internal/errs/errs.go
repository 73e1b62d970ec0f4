// Package errs defines the single tagged-variant error type the whole
// pipeline returns (spec §7). It is the direct descendant of
// sentra/internal/errors.SentraError, generalized from source line/column
// locations to byte positions and specialized to the five failure
// categories the verifier actually raises.
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category is one of spec §7's five failure buckets.
type Category string

const (
	Syntax     Category = "SyntaxError"
	Kind       Category = "KindError"
	Type       Category = "TypeError"
	Region     Category = "RegionError"
	Capability Category = "CapabilityError"
	Structure  Category = "StructureError"
)

// SVMError is the structured error every fallible core function returns.
// Code is a short machine-stable identifier (e.g. "DoubleInit") used by
// tests and by internal/diag to pick a rendering; Message is the
// human-readable detail.
type SVMError struct {
	Category Category
	Code     string
	Message  string
	Label    string // owning function, empty if not yet known
	Pos      int    // byte position in the function's opcode stream, -1 if n/a
	Op       string // the opcode at fault, empty if n/a
}

func (e *SVMError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s[%s]: %s", e.Category, e.Code, e.Message)
	if e.Label != "" {
		fmt.Fprintf(&sb, " (in %s", e.Label)
		if e.Pos >= 0 {
			fmt.Fprintf(&sb, " at byte %d", e.Pos)
		}
		if e.Op != "" {
			fmt.Fprintf(&sb, ", opcode %s", e.Op)
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func newErr(cat Category, code, label, op string, pos int, format string, args ...interface{}) *SVMError {
	return &SVMError{
		Category: cat,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Label:    label,
		Pos:      pos,
		Op:       op,
	}
}

// Wrap attaches a stack trace to a lower-level error using pkg/errors.
// It is a no-op when err is nil: Wrap(nil, msg) returns nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// --- Syntax ---

func SyntaxUnexpectedEOF(pos int) *SVMError {
	return newErr(Syntax, "UnexpectedEOF", "", "", pos, "unexpected end of byte stream")
}

func SyntaxUnknownOpcode(pos int, b byte) *SVMError {
	return newErr(Syntax, "UnknownOpcode", "", "", pos, "unknown opcode byte 0x%02x", b)
}

func SyntaxMissingOperand(pos int, op string) *SVMError {
	return newErr(Syntax, "MissingOperand", "", op, pos, "missing operand byte(s) for %s", op)
}

// --- Kind ---

func KindMismatch(label, op string, pos int, want, got string) *SVMError {
	return newErr(Kind, "Mismatch", label, op, pos, "expected a %s, found a %s", want, got)
}

func KindBadInstantiation(label, op string, pos int, detail string) *SVMError {
	return newErr(Kind, "BadInstantiation", label, op, pos, "bad polymorphism instantiation: %s", detail)
}

func KindEmptyCTStack(label, op string, pos int) *SVMError {
	return newErr(Kind, "EmptyCTStack", label, op, pos, "compile-time stack is empty")
}

// --- Structure (forward declaration shape, quantifier discipline) ---

func StructureForwardDeclRuntimeOp(label, op string, pos int) *SVMError {
	return newErr(Structure, "ForwardDeclRuntimeOp", label, op, pos, "forward declaration contains a runtime opcode")
}

func StructureForwardDeclBadStack(label string, n int) *SVMError {
	return newErr(Structure, "ForwardDeclBadStack", label, "", -1,
		"forward declaration must leave exactly one type on the compile-time stack, found %d", n)
}

func StructureNonEmptyQuantificationStack(label string, n int) *SVMError {
	return newErr(Structure, "NonEmptyQuantificationStack", label, "", -1,
		"function body ended with %d unclosed binder(s)", n)
}

func StructureNonEmptyExistentialStack(label string, n int) *SVMError {
	return newErr(Structure, "NonEmptyExistentialStack", label, "", -1,
		"%d unclosed existential(s) at end of forward declaration", n)
}

func StructureUnknownLabel(label, op string, pos int, want string) *SVMError {
	return newErr(Structure, "UnknownGlobalFuncLabel", label, op, pos, "unknown global function label %q", want)
}

func StructureUnknownChannel(label, op string, pos int, channel byte) *SVMError {
	return newErr(Structure, "UnknownChannel", label, op, pos, "unknown channel %d", channel)
}

func StructureBadChannelShape(label, op string, pos int) *SVMError {
	return newErr(Structure, "BadChannelShape", label, op, pos,
		"channel operand must have shape exists a:16. (func[a] , a)")
}

func StructureQuantifierMismatch(label, op string, pos int, detail string) *SVMError {
	return newErr(Structure, "QuantifierMismatch", label, op, pos, "mismatched binder: %s", detail)
}

// --- Type (runtime stack shape/initialization) ---

func TypeMismatch(label, op string, pos int, want, got string) *SVMError {
	return newErr(Type, "Mismatch", label, op, pos, "expected type %s, found %s", want, got)
}

func TypeEmptyStack(label, op string, pos int) *SVMError {
	return newErr(Type, "EmptyStack", label, op, pos, "runtime stack is empty")
}

func TypeIndexOutOfRange(label, op string, pos int, idx, n int) *SVMError {
	return newErr(Type, "IndexOutOfRange", label, op, pos, "index %d out of range (stack has %d entries)", idx, n)
}

func TypeUninitializedRead(label, op string, pos, field int) *SVMError {
	return newErr(Type, "UninitializedRead", label, op, pos, "field %d has not been initialized", field)
}

func TypeDoubleInit(label, op string, pos, field int) *SVMError {
	return newErr(Type, "DoubleInit", label, op, pos, "field %d has already been initialized", field)
}

func TypeArrayExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "ArrayExpected", label, op, pos, "expected an array type")
}

func TypeTupleExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "TupleExpected", label, op, pos, "expected a tuple type")
}

func TypeFuncExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "FuncExpected", label, op, pos, "expected a function type")
}

func TypePtrExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "PtrExpected", label, op, pos, "expected a pointer type")
}

func TypeHandleExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "HandleExpected", label, op, pos, "expected a region handle")
}

func TypeExistsExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "ExistsExpected", label, op, pos, "expected an existential type")
}

func TypeForallExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "ForallExpected", label, op, pos, "expected a universally quantified type")
}

func TypeForallRegionExpected(label, op string, pos int) *SVMError {
	return newErr(Type, "ForallRegionExpected", label, op, pos, "expected a region-quantified type")
}

func TypeMainHasArgs(label string) *SVMError {
	return newErr(Type, "MainHasArgs", label, "", -1, "entry function must take no arguments")
}

func TypeTooBigForStack(label, op string, pos, size, max int) *SVMError {
	return newErr(Type, "TooBigForStack", label, op, pos, "allocation of %d bytes exceeds the %d-byte stack-object cap", size, max)
}

func TypeSizeMismatch(label, op string, pos, want, got int) *SVMError {
	return newErr(Type, "SizeMismatch", label, op, pos, "expected size %d, found %d", want, got)
}

func TypeCallNZMismatch(label, op string, pos int) *SVMError {
	return newErr(Type, "CallNZMismatch", label, op, pos, "the two branches of a conditional call must share a continuation type")
}

// --- Region / Capability ---

func RegionNotLive(label, op string, pos int, region string) *SVMError {
	return newErr(Region, "NotLive", label, op, pos, "region %s is not in the live region set", region)
}

func RegionNotUnique(label, op string, pos int, region string) *SVMError {
	return newErr(Region, "NotUnique", label, op, pos, "region %s is not unique", region)
}

func RegionAccess(label, op string, pos int, region string) *SVMError {
	return newErr(Region, "AccessViolation", label, op, pos, "region %s was captured on another path; aliasing a unique region is forbidden", region)
}

func CannotMutateDataSection(label, op string, pos int) *SVMError {
	return newErr(Region, "CannotMutateDataSection", label, op, pos, "the data section is read-only")
}

func ReadOnlyRegion(label, op string, pos int, region string) *SVMError {
	return newErr(Region, "ReadOnlyRegion", label, op, pos, "region %s grants only read access", region)
}

func CapabilityInsufficient(label, op string, pos int, need, have string) *SVMError {
	return newErr(Capability, "Insufficient", label, op, pos, "required capability %s is not satisfied by %s", need, have)
}

func CapabilityBadInstantiation(label, op string, pos int, detail string) *SVMError {
	return newErr(Capability, "BadInstantiation", label, op, pos, "capability argument does not satisfy the declared bound: %s", detail)
}
