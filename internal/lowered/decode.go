package lowered

import (
	"encoding/binary"
	"fmt"
)

// Decode reads exactly one lowered opcode from code starting at pos,
// returning the decoded Op and the position immediately after it. It
// exists so the pipeline's "encode then decode reproduces the original
// operands" property (spec §8) is independently checkable. The linker
// does not use it: it rewrites GlobalFunc/Data operands on []Op values
// before encoding them.
func Decode(code []byte, pos int) (Op, int, error) {
	if pos >= len(code) {
		return Op{}, pos, fmt.Errorf("lowered.Decode: position %d past end of code (len %d)", pos, len(code))
	}
	tag := Tag(code[pos])
	pos++

	need := func(n int) error {
		if pos+n > len(code) {
			return fmt.Errorf("lowered.Decode: truncated operand for tag %d at position %d", tag, pos)
		}
		return nil
	}
	u64 := func() (uint64, error) {
		if err := need(8); err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint64(code[pos : pos+8])
		pos += 8
		return v, nil
	}
	u32 := func() (uint32, error) {
		if err := need(4); err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint32(code[pos : pos+4])
		pos += 4
		return v, nil
	}
	u8 := func() (byte, error) {
		if err := need(1); err != nil {
			return 0, err
		}
		v := code[pos]
		pos++
		return v, nil
	}

	op := Op{Tag: tag}
	var err error
	switch tag {
	case TagGet:
		if op.Off, err = u64(); err != nil {
			return Op{}, pos, err
		}
		if op.Sz, err = u64(); err != nil {
			return Op{}, pos, err
		}
	case TagInit, TagProj:
		if op.Off, err = u64(); err != nil {
			return Op{}, pos, err
		}
		if op.Sz, err = u64(); err != nil {
			return Op{}, pos, err
		}
		if op.TupleSz, err = u64(); err != nil {
			return Op{}, pos, err
		}
	case TagInitIP, TagProjIP:
		if op.Off, err = u64(); err != nil {
			return Op{}, pos, err
		}
		if op.Sz, err = u64(); err != nil {
			return Op{}, pos, err
		}
	case TagMalloc, TagAlloca, TagNewRgn, TagDeref:
		if op.Sz, err = u64(); err != nil {
			return Op{}, pos, err
		}
	case TagCall, TagPrint, TagHalt, TagFreeRgn, TagCallNZ,
		TagAddI32, TagMulI32, TagDivI32, TagModuloI32,
		TagAddU8, TagMulU8, TagDivU8, TagModuloU8,
		TagU8ToI32, TagI32ToU8:
		// no operand
	case TagLit:
		var v uint32
		if v, err = u32(); err != nil {
			return Op{}, pos, err
		}
		op.Lit = int32(v)
	case TagGlobalFunc:
		if op.FuncAddr, err = u32(); err != nil {
			return Op{}, pos, err
		}
	case TagNewArr, TagArrMut, TagArrProj, TagDataIndex, TagCopyN:
		if op.ESz, err = u64(); err != nil {
			return Op{}, pos, err
		}
	case TagData:
		if op.Loc, err = u64(); err != nil {
			return Op{}, pos, err
		}
	case TagU8Lit:
		if op.U8, err = u8(); err != nil {
			return Op{}, pos, err
		}
	case TagRead, TagWrite:
		if op.Channel, err = u8(); err != nil {
			return Op{}, pos, err
		}
	default:
		return Op{}, pos, fmt.Errorf("lowered.Decode: unknown tag %d at position %d", tag, pos-1)
	}
	return op, pos, nil
}

// Encode returns the standalone wire encoding of a single opcode, used by
// round-trip tests.
func Encode(op Op) []byte {
	c := NewChunk()
	c.WriteOp(op)
	return c.Code
}
