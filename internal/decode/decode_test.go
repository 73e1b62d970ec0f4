package decode

import (
	"encoding/binary"
	"testing"

	"svm/internal/srcbc"
)

// buildObject encodes a minimal but structurally complete object file:
// an empty data section and one Local function ("f") whose forward
// declaration needs nothing but Cap/Func/Lced and whose body pushes
// zero and halts.
func buildObject(label string) []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 1)

	b = EncodeString(b, label)
	b = EncodeVisibility(b, srcbc.Visibility{Kind: srcbc.Local})
	b = EncodeOp(b, srcbc.Op{Tag: srcbc.OpCap})
	b = EncodeOp(b, srcbc.Op{Tag: srcbc.OpFunc, N: 0})
	b = EncodeOp(b, srcbc.Op{Tag: srcbc.OpLced})

	b = EncodeString(b, label)
	b = EncodeOp(b, srcbc.Op{Tag: srcbc.OpLit, Int32: 0})
	b = EncodeOp(b, srcbc.Op{Tag: srcbc.OpHalt})
	return b
}

func TestDecodeParsesForwardDeclAndBody(t *testing.T) {
	obj, err := Decode(buildObject("f"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(obj.Data) != 0 {
		t.Fatalf("expected an empty data section, got %d bytes", len(obj.Data))
	}
	if len(obj.ForwardDecls) != 1 || obj.ForwardDecls[0].Label != "f" {
		t.Fatalf("unexpected forward decls: %+v", obj.ForwardDecls)
	}
	if len(obj.Functions) != 1 || obj.Functions[0].Label != "f" {
		t.Fatalf("unexpected functions: %+v", obj.Functions)
	}
	ops := obj.ForwardDecls[0].Ops
	if len(ops) != 3 || ops[0].Tag != srcbc.OpCap || ops[1].Tag != srcbc.OpFunc || ops[2].Tag != srcbc.OpLced {
		t.Fatalf("unexpected forward decl ops: %+v", ops)
	}
}

func TestDecodeRejectsOversizedDataLength(t *testing.T) {
	b := binary.LittleEndian.AppendUint32(nil, 100) // claims 100 bytes, none follow
	_, err := Decode(b)
	assertSyntaxCode(t, err, "MissingOperand")
}

func TestDecodeRejectsEmptyStream(t *testing.T) {
	_, err := Decode(nil)
	assertSyntaxCode(t, err, "UnexpectedEOF")
}

func TestDecodeRejectsUnknownVisibilityTag(t *testing.T) {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = EncodeString(b, "f")
	b = append(b, 9) // not a valid visibility kind (0, 1, 2)
	_, err := Decode(b)
	assertSyntaxCode(t, err, "UnknownOpcode")
}
