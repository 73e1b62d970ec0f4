package lowered

import "encoding/binary"

// Chunk is an append-only lowered-opcode byte builder, the definition
// pass's output buffer for one function body. It plays the same role as
// sentra/internal/bytecode.Chunk, generalized to multi-byte operands.
type Chunk struct {
	Code []byte
}

func NewChunk() *Chunk {
	return &Chunk{Code: []byte{}}
}

func (c *Chunk) writeByte(b byte) {
	c.Code = append(c.Code, b)
}

func (c *Chunk) writeUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
}

func (c *Chunk) writeUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
}

func (c *Chunk) writeInt32(v int32) {
	c.writeUint32(uint32(v))
}

// WriteOp appends one lowered opcode's wire encoding (spec §6.2).
func (c *Chunk) WriteOp(op Op) {
	c.writeByte(byte(op.Tag))
	switch op.Tag {
	case TagGet:
		c.writeUint64(op.Off)
		c.writeUint64(op.Sz)
	case TagInit:
		c.writeUint64(op.Off)
		c.writeUint64(op.Sz)
		c.writeUint64(op.TupleSz)
	case TagInitIP:
		c.writeUint64(op.Off)
		c.writeUint64(op.Sz)
	case TagMalloc, TagAlloca:
		c.writeUint64(op.Sz)
	case TagProj:
		c.writeUint64(op.Off)
		c.writeUint64(op.Sz)
		c.writeUint64(op.TupleSz)
	case TagProjIP:
		c.writeUint64(op.Off)
		c.writeUint64(op.Sz)
	case TagCall, TagPrint, TagHalt, TagFreeRgn, TagCallNZ,
		TagAddI32, TagMulI32, TagDivI32, TagModuloI32,
		TagAddU8, TagMulU8, TagDivU8, TagModuloU8,
		TagU8ToI32, TagI32ToU8:
		// no operand
	case TagLit:
		c.writeInt32(op.Lit)
	case TagGlobalFunc:
		c.writeUint32(op.FuncAddr)
	case TagNewRgn:
		c.writeUint64(op.Sz)
	case TagDeref:
		c.writeUint64(op.Sz)
	case TagNewArr, TagArrMut, TagArrProj:
		c.writeUint64(op.ESz)
	case TagData:
		c.writeUint64(op.Loc)
	case TagDataIndex, TagCopyN:
		c.writeUint64(op.ESz)
	case TagU8Lit:
		c.writeByte(op.U8)
	case TagRead, TagWrite:
		c.writeByte(op.Channel)
	}
}

// Len reports the current byte length of the accumulated code.
func (c *Chunk) Len() int { return len(c.Code) }
