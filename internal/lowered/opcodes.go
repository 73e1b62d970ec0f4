// Package lowered defines the post-verification opcode set and its
// bit-exact wire encoding (spec §6.2), the output of the definition pass
// (internal/verify) and the input to the linker's final byte emission
// (internal/link).
//
// The append-only byte builder below is the direct descendant of
// sentra/internal/bytecode.Chunk's WriteOp/WriteByte pair, generalized
// from single-byte operands to the sized offsets a lowered opcode
// actually carries.
package lowered

type Tag byte

const (
	TagGet        Tag = 0
	TagInit       Tag = 1
	TagInitIP     Tag = 2
	TagMalloc     Tag = 3
	TagAlloca     Tag = 4
	TagProj       Tag = 5
	TagProjIP     Tag = 6
	TagCall       Tag = 7
	TagPrint      Tag = 8
	TagLit        Tag = 9
	TagGlobalFunc Tag = 10
	TagHalt       Tag = 11
	TagNewRgn     Tag = 12
	TagFreeRgn    Tag = 13
	TagDeref      Tag = 14
	TagNewArr     Tag = 15
	TagArrMut     Tag = 16
	TagArrProj    Tag = 17
	TagAddI32     Tag = 18
	TagMulI32     Tag = 19
	TagDivI32     Tag = 20
	TagCallNZ     Tag = 21
	TagData       Tag = 22
	TagDataIndex  Tag = 23
	TagCopyN      Tag = 24
	TagU8Lit      Tag = 25
	TagAddU8      Tag = 26
	TagMulU8      Tag = 27
	TagDivU8      Tag = 28
	TagU8ToI32    Tag = 29
	TagModuloI32  Tag = 30
	TagModuloU8   Tag = 31
	TagI32ToU8    Tag = 32
	TagRead       Tag = 33
	TagWrite      Tag = 34
)

// Op is one lowered opcode plus whichever operand fields its Tag uses.
// All offsets/sizes are carried as uint64 per spec §6.2; Lit is a signed
// 4-byte literal, U8Lit/channel operands are single bytes.
type Op struct {
	Tag      Tag
	Off      uint64
	Sz       uint64
	TupleSz  uint64
	ESz      uint64
	Loc      uint64
	Lit      int32
	U8       byte
	Channel  byte
	FuncAddr uint32 // GlobalFunc operand: resolved byte offset (rewritten by the linker, §4.5)
	Label    string // GlobalFunc operand before linking; not part of the wire encoding
}

func Get(off, sz uint64) Op           { return Op{Tag: TagGet, Off: off, Sz: sz} }
func Init(off, sz, tupleSz uint64) Op { return Op{Tag: TagInit, Off: off, Sz: sz, TupleSz: tupleSz} }
func InitIP(off, sz uint64) Op        { return Op{Tag: TagInitIP, Off: off, Sz: sz} }
func Malloc(sz uint64) Op             { return Op{Tag: TagMalloc, Sz: sz} }
func Alloca(sz uint64) Op             { return Op{Tag: TagAlloca, Sz: sz} }
func Proj(off, sz, tsz uint64) Op     { return Op{Tag: TagProj, Off: off, Sz: sz, TupleSz: tsz} }
func ProjIP(off, sz uint64) Op        { return Op{Tag: TagProjIP, Off: off, Sz: sz} }
func Call() Op                        { return Op{Tag: TagCall} }
func CallNZ() Op                      { return Op{Tag: TagCallNZ} }
func Print() Op                       { return Op{Tag: TagPrint} }
func Lit(v int32) Op                  { return Op{Tag: TagLit, Lit: v} }
func GlobalFunc(addr uint32) Op       { return Op{Tag: TagGlobalFunc, FuncAddr: addr} }
func GlobalFuncLabel(label string) Op { return Op{Tag: TagGlobalFunc, Label: label} }
func Halt() Op                        { return Op{Tag: TagHalt} }
func NewRgn(sz uint64) Op             { return Op{Tag: TagNewRgn, Sz: sz} }
func FreeRgn() Op                     { return Op{Tag: TagFreeRgn} }
func Deref(sz uint64) Op              { return Op{Tag: TagDeref, Sz: sz} }
func NewArr(esz uint64) Op            { return Op{Tag: TagNewArr, ESz: esz} }
func ArrMut(esz uint64) Op            { return Op{Tag: TagArrMut, ESz: esz} }
func ArrProj(esz uint64) Op           { return Op{Tag: TagArrProj, ESz: esz} }
func AddI32() Op                      { return Op{Tag: TagAddI32} }
func MulI32() Op                      { return Op{Tag: TagMulI32} }
func DivI32() Op                      { return Op{Tag: TagDivI32} }
func ModuloI32() Op                   { return Op{Tag: TagModuloI32} }
func Data(loc uint64) Op              { return Op{Tag: TagData, Loc: loc} }
func DataIndex(esz uint64) Op         { return Op{Tag: TagDataIndex, ESz: esz} }
func CopyN(esz uint64) Op             { return Op{Tag: TagCopyN, ESz: esz} }
func U8Lit(v byte) Op                 { return Op{Tag: TagU8Lit, U8: v} }
func AddU8() Op                       { return Op{Tag: TagAddU8} }
func MulU8() Op                       { return Op{Tag: TagMulU8} }
func DivU8() Op                       { return Op{Tag: TagDivU8} }
func ModuloU8() Op                    { return Op{Tag: TagModuloU8} }
func U8ToI32() Op                     { return Op{Tag: TagU8ToI32} }
func I32ToU8() Op                     { return Op{Tag: TagI32ToU8} }
func Read(channel byte) Op            { return Op{Tag: TagRead, Channel: channel} }
func Write(channel byte) Op           { return Op{Tag: TagWrite, Channel: channel} }
