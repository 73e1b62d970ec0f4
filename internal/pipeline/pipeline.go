// Package pipeline orchestrates one object file through the full
// toolchain: decode its container format, run the type pass over every
// forward declaration to build the label->type table, run the
// definition pass over every function body, and hand the results to
// the linker. It is the direct descendant of
// sentra/internal/build.Builder.Build, generalized from "resolve source
// imports, link modules, write an executable" to "decode one object
// file, verify its functions, produce a link.Image". LinkAll, also in
// this package, runs that per file and links the resulting images.
package pipeline

import (
	"fmt"

	"svm/internal/decode"
	"svm/internal/errs"
	"svm/internal/ir"
	"svm/internal/link"
	"svm/internal/typepass"
	"svm/internal/verify"
)

// EntryLabel is the conventional entry-point label an svm.json manifest
// defaults to (cmd/svm/commands.InitCommand) and the one the §7
// "main-has-args" check applies to.
const EntryLabel = "main"

// Verified is one object file's outcome: its verified functions ready
// for linking, plus the declared-type table a subsequent object file's
// Import resolution may want to cross-check against.
type Verified struct {
	Table     verify.Table
	Functions []verify.Function
	Image     link.Image
}

// VerifyObject decodes raw object-file bytes and runs the type pass
// then the definition pass over every function it declares (spec
// §4.2-§4.4). The returned link.Image is ready to pass to link.Link
// alongside other object files' images.
func VerifyObject(raw []byte) (Verified, error) {
	obj, err := decode.Decode(raw)
	if err != nil {
		return Verified{}, fmt.Errorf("pipeline: %w", err)
	}

	table := make(verify.Table, len(obj.ForwardDecls))
	declByLabel := make(map[string]typepass.Declared, len(obj.ForwardDecls))
	for _, decl := range obj.ForwardDecls {
		declared, err := typepass.Run(decl)
		if err != nil {
			return Verified{}, err
		}
		table[decl.Label] = declared.Type
		declByLabel[decl.Label] = declared

		if decl.Label == EntryLabel {
			if err := checkEntryArity(decl.Label, declared.Type); err != nil {
				return Verified{}, err
			}
		}
	}

	var fns []link.Function
	var verifiedFns []verify.Function
	for _, fn := range obj.Functions {
		decl, ok := declByLabel[fn.Label]
		if !ok {
			return Verified{}, fmt.Errorf("pipeline: function %q has a body but no forward declaration", fn.Label)
		}

		verified, err := verify.Run(fn.Label, decl.Type, fn.Ops, table, obj.Data)
		if err != nil {
			return Verified{}, err
		}
		verifiedFns = append(verifiedFns, verified)

		fns = append(fns, link.Function{
			Label:      verified.Label,
			Visibility: decl.Visibility,
			Ops:        verified.Ops,
		})
	}

	return Verified{
		Table:     table,
		Functions: verifiedFns,
		Image:     link.Image{Data: obj.Data, Functions: fns},
	}, nil
}

// checkEntryArity enforces spec §7's Type "main-has-args" error: the
// entry function, once its compile-time binders are stripped the same
// way verify.Run's seeding strips them, must declare zero runtime
// parameters.
func checkEntryArity(label string, t ir.Type) error {
	cur := t
	for {
		switch cur.Tag {
		case ir.TyForall:
			cur = *cur.Body
			continue
		case ir.TyForallRegion:
			cur = *cur.Body
			continue
		}
		break
	}
	if cur.Tag == ir.TyFunc && len(cur.Params) != 0 {
		return errs.TypeMainHasArgs(label)
	}
	return nil
}

// LinkAll verifies every raw object file and links the results into a
// single byte stream (spec §4.5).
func LinkAll(rawObjects [][]byte) ([]byte, error) {
	images := make([]link.Image, len(rawObjects))
	for i, raw := range rawObjects {
		v, err := VerifyObject(raw)
		if err != nil {
			return nil, fmt.Errorf("pipeline: object %d: %w", i, err)
		}
		images[i] = v.Image
	}
	return link.Link(images)
}
