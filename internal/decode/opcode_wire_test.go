package decode

import (
	"testing"

	"svm/internal/errs"
	"svm/internal/srcbc"
)

// TestEncodeDecodeOpRoundTrips checks spec §8's "parse then re-encode
// reproduces the original byte stream" property across one
// representative opcode per operand shape DecodeOp/EncodeOp handle.
func TestEncodeDecodeOpRoundTrips(t *testing.T) {
	cases := []srcbc.Op{
		{Tag: srcbc.OpI32},
		{Tag: srcbc.OpTuple, N: 3},
		{Tag: srcbc.OpFunc, N: 2},
		{Tag: srcbc.OpCTGet, N: 1},
		{Tag: srcbc.OpGet, N: 4},
		{Tag: srcbc.OpInit, N: 0},
		{Tag: srcbc.OpProj, N: 7},
		{Tag: srcbc.OpAll, Size: 4},
		{Tag: srcbc.OpSome, Size: 8},
		{Tag: srcbc.OpSizeLit, Size: 16},
		{Tag: srcbc.OpNewRgn, Size: 256},
		{Tag: srcbc.OpLit, Int32: -42},
		{Tag: srcbc.OpU8Lit, Byte: 0xff},
		{Tag: srcbc.OpChanRead, Byte: 0},
		{Tag: srcbc.OpChanWrite, Byte: 2},
		{Tag: srcbc.OpGlobalFunc, Label: "callee"},
		{Tag: srcbc.OpData, Loc: 123456},
		{Tag: srcbc.OpCap},
		{Tag: srcbc.OpHalt},
		{Tag: srcbc.OpLced},
	}

	for _, want := range cases {
		encoded := EncodeOp(nil, want)
		got, next, err := DecodeOp(encoded, 0)
		if err != nil {
			t.Fatalf("DecodeOp(%v) failed: %v", want, err)
		}
		if next != len(encoded) {
			t.Fatalf("DecodeOp(%v) consumed %d of %d encoded bytes", want, next, len(encoded))
		}
		if got != want {
			t.Fatalf("round trip mismatch: encoded %v, decoded back %v", want, got)
		}
		if reencoded := EncodeOp(nil, got); string(reencoded) != string(encoded) {
			t.Fatalf("re-encoding the decoded op produced different bytes: %x vs %x", reencoded, encoded)
		}
	}
}

// TestDecodeOpUnexpectedEOF checks that an empty byte stream is a
// Syntax error carrying the position, not a panic or bare error.
func TestDecodeOpUnexpectedEOF(t *testing.T) {
	_, _, err := DecodeOp(nil, 0)
	assertSyntaxCode(t, err, "UnexpectedEOF")
}

// TestDecodeOpMissingOperand checks that a tag whose operand bytes are
// cut off reports the opcode's own position via MissingOperand, not a
// panic.
func TestDecodeOpMissingOperand(t *testing.T) {
	truncated := []byte{byte(srcbc.OpLit), 0, 0} // OpLit wants 4 bytes, only 2 given
	_, _, err := DecodeOp(truncated, 0)
	assertSyntaxCode(t, err, "MissingOperand")
}

// TestDecodeOpUnknownOpcode checks that a byte past the highest known
// tag is reported as UnknownOpcode rather than silently accepted.
func TestDecodeOpUnknownOpcode(t *testing.T) {
	_, _, err := DecodeOp([]byte{0xff}, 0)
	assertSyntaxCode(t, err, "UnknownOpcode")
}

func assertSyntaxCode(t *testing.T, err error, code string) {
	t.Helper()
	svmErr, ok := err.(*errs.SVMError)
	if !ok {
		t.Fatalf("expected *errs.SVMError, got %T: %v", err, err)
	}
	if svmErr.Category != errs.Syntax {
		t.Fatalf("expected category Syntax, got %s", svmErr.Category)
	}
	if svmErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, svmErr.Code)
	}
}
