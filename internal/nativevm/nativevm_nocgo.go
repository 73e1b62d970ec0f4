//go:build !cgo

package nativevm

import "errors"

// ErrNoNativeVM is returned when the module is built without cgo, so no
// `vm` symbol is linked in.
var ErrNoNativeVM = errors.New("nativevm: built without cgo; no native VM entry point linked in")

func run(image []byte) (uint8, error) {
	return 0, ErrNoNativeVM
}
