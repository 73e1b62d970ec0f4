package decode

import (
	"encoding/binary"

	"svm/internal/errs"
	"svm/internal/srcbc"
)

// DecodeOp reads one source (pre-verification) opcode at pos, returning
// it and the position immediately after. EncodeOp is its inverse; the two
// are symmetric so "parse then re-encode reproduces the original byte
// stream" (spec §8) holds for this layer the way §6.2 requires it for
// lowered opcodes. Every failure is one of §7's Syntax errors, carrying
// the byte position and offending opcode.
func DecodeOp(b []byte, pos int) (srcbc.Op, int, error) {
	if pos >= len(b) {
		return srcbc.Op{}, pos, errs.SyntaxUnexpectedEOF(pos)
	}
	tag := srcbc.Tag(b[pos])
	opPos := pos
	pos++

	u8 := func() (byte, int, error) {
		if pos >= len(b) {
			return 0, pos, errs.SyntaxMissingOperand(opPos, tag.String())
		}
		v := b[pos]
		return v, pos + 1, nil
	}
	u64 := func() (uint64, int, error) {
		if pos+8 > len(b) {
			return 0, pos, errs.SyntaxMissingOperand(opPos, tag.String())
		}
		return binary.LittleEndian.Uint64(b[pos : pos+8]), pos + 8, nil
	}
	i32 := func() (int32, int, error) {
		if pos+4 > len(b) {
			return 0, pos, errs.SyntaxMissingOperand(opPos, tag.String())
		}
		return int32(binary.LittleEndian.Uint32(b[pos : pos+4])), pos + 4, nil
	}
	str := func() (string, int, error) {
		s, next, err := readString(b, pos)
		if err != nil {
			return "", next, errs.SyntaxMissingOperand(opPos, tag.String())
		}
		return s, next, nil
	}

	op := srcbc.Op{Tag: tag}
	var err error
	switch tag {
	case srcbc.OpTuple, srcbc.OpFunc:
		var v byte
		if v, pos, err = u8(); err != nil {
			return srcbc.Op{}, pos, err
		}
		op.N = int(v)
	case srcbc.OpCTGet, srcbc.OpGet, srcbc.OpInit, srcbc.OpProj:
		var v byte
		if v, pos, err = u8(); err != nil {
			return srcbc.Op{}, pos, err
		}
		op.N = int(v)
	case srcbc.OpAll, srcbc.OpSome, srcbc.OpSizeLit, srcbc.OpNewRgn:
		var v uint64
		if v, pos, err = u64(); err != nil {
			return srcbc.Op{}, pos, err
		}
		op.Size = int(v)
	case srcbc.OpLit:
		if op.Int32, pos, err = i32(); err != nil {
			return srcbc.Op{}, pos, err
		}
	case srcbc.OpU8Lit, srcbc.OpChanRead, srcbc.OpChanWrite:
		if op.Byte, pos, err = u8(); err != nil {
			return srcbc.Op{}, pos, err
		}
	case srcbc.OpGlobalFunc:
		if op.Label, pos, err = str(); err != nil {
			return srcbc.Op{}, pos, err
		}
	case srcbc.OpData:
		var v uint64
		if v, pos, err = u64(); err != nil {
			return srcbc.Op{}, pos, err
		}
		op.Loc = v
	default:
		// no operand: OpI32, OpU8, OpHandle, OpPtr, OpArr, OpRgn,
		// OpUniqueFlag, OpEnd, OpEmos, OpCTPop, OpDataSec, OpApp,
		// OpOwn, OpRWCap, OpBoth, OpCap, OpCapLE, OpReq, OpMalloc,
		// OpUnpack, OpPack, OpCall, OpCallNZ, OpFreeRgn, OpDeref,
		// OpArrProj, OpArrMut, OpCopyN, OpPrint, the four I32/U8
		// arithmetic families, OpU8ToI32, OpI32ToU8, OpHalt, OpLced.
		if int(tag) < 0 || tag > srcbc.OpLced {
			return srcbc.Op{}, pos, errs.SyntaxUnknownOpcode(opPos, byte(tag))
		}
	}
	return op, pos, nil
}

// EncodeOp appends one source opcode's wire encoding to b.
func EncodeOp(b []byte, op srcbc.Op) []byte {
	b = append(b, byte(op.Tag))
	switch op.Tag {
	case srcbc.OpTuple, srcbc.OpFunc, srcbc.OpCTGet, srcbc.OpGet, srcbc.OpInit, srcbc.OpProj:
		b = append(b, byte(op.N))
	case srcbc.OpAll, srcbc.OpSome, srcbc.OpSizeLit, srcbc.OpNewRgn:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(op.Size))
		b = append(b, buf[:]...)
	case srcbc.OpLit:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(op.Int32))
		b = append(b, buf[:]...)
	case srcbc.OpU8Lit, srcbc.OpChanRead, srcbc.OpChanWrite:
		b = append(b, op.Byte)
	case srcbc.OpGlobalFunc:
		b = append(b, byte(len(op.Label)))
		b = append(b, []byte(op.Label)...)
	case srcbc.OpData:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], op.Loc)
		b = append(b, buf[:]...)
	}
	return b
}

// EncodeVisibility appends a forward declaration's visibility tag (and
// uid, if any) to b.
func EncodeVisibility(b []byte, vis srcbc.Visibility) []byte {
	switch vis.Kind {
	case srcbc.Local:
		return append(b, 0)
	case srcbc.Export:
		b = append(b, 1)
		return append(b, vis.UID[:]...)
	case srcbc.Import:
		b = append(b, 2)
		return append(b, vis.UID[:]...)
	default:
		return append(b, 0)
	}
}

// EncodeString appends a length-prefixed label (max 255 bytes).
func EncodeString(b []byte, s string) []byte {
	b = append(b, byte(len(s)))
	return append(b, []byte(s)...)
}
