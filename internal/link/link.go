// Package link implements the linker/opcode encoder (spec §4.5): given
// several verified program images, it concatenates their data sections,
// lays out function code after data, resolves imports/exports across
// images by 128-bit UID, rewrites GlobalFunc/Data operands to final
// offsets, and encodes every lowered opcode to its §6.2 wire bytes.
//
// The uid-keyed resolution table here plays the same role as
// sentra/internal/build's ImportResolver/ModuleGraph pair, adapted from
// file-path dependency resolution to symbol-uid resolution: every
// image's Import-visibility functions are edges resolved against every
// other image's Export table before any byte is emitted, same
// load-then-resolve-then-emit shape, just keyed by uuid instead of path.
package link

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"svm/internal/errs"
	"svm/internal/lowered"
	"svm/internal/srcbc"
)

// Function is one lowered function plus the linkage metadata the type
// pass carried forward in its forward declaration.
type Function struct {
	Label      string
	Visibility srcbc.Visibility
	Ops        []lowered.Op
}

// Image is one verified program's link-ready material (spec §3's
// "Program image").
type Image struct {
	Data      []byte
	Functions []Function
}

type location struct {
	imageIdx int
	fnIdx    int
}

// Link concatenates images in input order and produces the final byte
// stream (spec §4.5, §6.1's function-body region, §6.2's opcode bytes).
func Link(images []Image) ([]byte, error) {
	dataBase := make([]int, len(images))
	var data []byte
	for i, img := range images {
		dataBase[i] = len(data)
		data = append(data, img.Data...)
	}

	// uid -> exporting (image, function) location.
	exportLoc := map[uuid.UUID]location{}
	for i, img := range images {
		for j, fn := range img.Functions {
			if fn.Visibility.Kind == srcbc.Export {
				id := uuid.UUID(fn.Visibility.UID)
				if prior, dup := exportLoc[id]; dup {
					priorLabel := images[prior.imageIdx].Functions[prior.fnIdx].Label
					return nil, fmt.Errorf("link: duplicate export uid %s (%s and %s)", id, priorLabel, fn.Label)
				}
				exportLoc[id] = location{imageIdx: i, fnIdx: j}
			}
		}
	}

	// Resolve every GlobalFunc reference to a (image, function) location
	// before any offsets are known: local label within the same image
	// first, otherwise an Import uid resolved against exportLoc.
	resolve := func(fromImage int, label string) (location, error) {
		for j, fn := range images[fromImage].Functions {
			if fn.Label == label && fn.Visibility.Kind != srcbc.Import {
				return location{imageIdx: fromImage, fnIdx: j}, nil
			}
		}
		for _, fn := range images[fromImage].Functions {
			if fn.Label == label && fn.Visibility.Kind == srcbc.Import {
				id := uuid.UUID(fn.Visibility.UID)
				loc, ok := exportLoc[id]
				if !ok {
					return location{}, errs.StructureUnknownLabel("link", "GlobalFunc", -1, label)
				}
				return loc, nil
			}
		}
		return location{}, errs.StructureUnknownLabel("link", "GlobalFunc", -1, label)
	}

	// Lay out functions after data, in input order, recording each
	// location's byte offset.
	offsets := map[location]uint32{}
	header := encodeU32(uint32(len(data)))
	pos := len(header) + len(data)
	for i, img := range images {
		for j, fn := range img.Functions {
			offsets[location{imageIdx: i, fnIdx: j}] = uint32(pos)
			for _, op := range fn.Ops {
				pos += len(lowered.Encode(op))
			}
		}
	}

	out := append([]byte{}, header...)
	out = append(out, data...)
	for i, img := range images {
		for _, fn := range img.Functions {
			for _, op := range fn.Ops {
				rewritten := op
				switch op.Tag {
				case lowered.TagGlobalFunc:
					loc, err := resolve(i, op.Label)
					if err != nil {
						return nil, err
					}
					rewritten = lowered.GlobalFunc(offsets[loc])
				case lowered.TagData:
					rewritten.Loc = op.Loc + uint64(dataBase[i])
				}
				out = append(out, lowered.Encode(rewritten)...)
			}
		}
	}

	return out, nil
}

func encodeU32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}
