// Package decode is the byte-decoder external collaborator (spec §2,
// §6.1): it turns an object file's raw bytes into a data section, a
// slice of forward declarations, and a slice of function bodies, without
// performing any of the verifier's static reasoning.
//
// spec.md pins the bit-exact *container* format (§6.1: length-prefixed
// data section, count-prefixed function streams) and the *lowered*
// opcode wire format (§6.2), but leaves the pre-verification source
// opcode encoding to the parser/encoder pair, since only their interface
// contract is specified. This package defines that encoding once, here;
// its Encode* helpers write the same table and are used by the tests to
// build object-file fixtures. internal/link does not use them.
package decode

import (
	"encoding/binary"

	"svm/internal/errs"
	"svm/internal/srcbc"
)

// ObjectFile is the decoded result of §6.1's container format.
type ObjectFile struct {
	Data         []byte
	ForwardDecls []srcbc.ForwardDecl
	Functions    []srcbc.Function
}

// Decode parses a full object file byte stream (spec §6.1).
func Decode(b []byte) (ObjectFile, error) {
	pos := 0
	dataLen, pos, err := readU32(b, pos)
	if err != nil {
		return ObjectFile{}, err
	}
	if pos+int(dataLen) > len(b) {
		return ObjectFile{}, errs.SyntaxMissingOperand(pos, "data section")
	}
	data := b[pos : pos+int(dataLen)]
	pos += int(dataLen)

	count, pos, err := readU32(b, pos)
	if err != nil {
		return ObjectFile{}, err
	}

	decls := make([]srcbc.ForwardDecl, 0, count)
	for i := uint32(0); i < count; i++ {
		var decl srcbc.ForwardDecl
		decl, pos, err = decodeForwardDecl(b, pos)
		if err != nil {
			return ObjectFile{}, err
		}
		decls = append(decls, decl)
	}

	funcs := make([]srcbc.Function, 0, count)
	for i := uint32(0); i < count; i++ {
		var fn srcbc.Function
		fn, pos, err = decodeFunction(b, pos)
		if err != nil {
			return ObjectFile{}, err
		}
		funcs = append(funcs, fn)
	}

	return ObjectFile{Data: data, ForwardDecls: decls, Functions: funcs}, nil
}

func decodeForwardDecl(b []byte, pos int) (srcbc.ForwardDecl, int, error) {
	label, pos, err := readString(b, pos)
	if err != nil {
		return srcbc.ForwardDecl{}, pos, err
	}
	vis, pos, err := readVisibility(b, pos)
	if err != nil {
		return srcbc.ForwardDecl{}, pos, err
	}
	var ops []srcbc.Op
	for {
		var op srcbc.Op
		op, pos, err = DecodeOp(b, pos)
		if err != nil {
			return srcbc.ForwardDecl{}, pos, err
		}
		ops = append(ops, op)
		if op.Tag == srcbc.OpLced {
			break
		}
	}
	return srcbc.ForwardDecl{Label: label, Visibility: vis, Ops: ops}, pos, nil
}

func decodeFunction(b []byte, pos int) (srcbc.Function, int, error) {
	label, pos, err := readString(b, pos)
	if err != nil {
		return srcbc.Function{}, pos, err
	}
	start := pos
	var ops []srcbc.Op
	for {
		var op srcbc.Op
		op, pos, err = DecodeOp(b, pos)
		if err != nil {
			return srcbc.Function{}, pos, err
		}
		ops = append(ops, op)
		if op.Tag == srcbc.OpCall || op.Tag == srcbc.OpCallNZ || op.Tag == srcbc.OpHalt {
			break
		}
	}
	return srcbc.Function{Label: label, StartPos: start, Ops: ops}, pos, nil
}

func readVisibility(b []byte, pos int) (srcbc.Visibility, int, error) {
	if pos >= len(b) {
		return srcbc.Visibility{}, pos, errs.SyntaxUnexpectedEOF(pos)
	}
	tagPos := pos
	kind := b[pos]
	pos++
	switch kind {
	case 0:
		return srcbc.Visibility{Kind: srcbc.Local}, pos, nil
	case 1, 2:
		if pos+16 > len(b) {
			return srcbc.Visibility{}, pos, errs.SyntaxMissingOperand(tagPos, "visibility uid")
		}
		var uid [16]byte
		copy(uid[:], b[pos:pos+16])
		pos += 16
		k := srcbc.Export
		if kind == 2 {
			k = srcbc.Import
		}
		return srcbc.Visibility{Kind: k, UID: uid}, pos, nil
	default:
		return srcbc.Visibility{}, pos, errs.SyntaxUnknownOpcode(tagPos, kind)
	}
}

func readString(b []byte, pos int) (string, int, error) {
	if pos >= len(b) {
		return "", pos, errs.SyntaxUnexpectedEOF(pos)
	}
	lenPos := pos
	n := int(b[pos])
	pos++
	if pos+n > len(b) {
		return "", pos, errs.SyntaxMissingOperand(lenPos, "label")
	}
	s := string(b[pos : pos+n])
	pos += n
	return s, pos, nil
}

func readU32(b []byte, pos int) (uint32, int, error) {
	if pos+4 > len(b) {
		return 0, pos, errs.SyntaxUnexpectedEOF(pos)
	}
	return binary.LittleEndian.Uint32(b[pos : pos+4]), pos + 4, nil
}
