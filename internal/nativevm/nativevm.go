// Package nativevm wraps the external, opaque native VM entry point
// (spec §6.3): a C-ABI function `fn vm(ptr *mut u8) -> u8` that consumes
// a linked image and returns an exit status. The toolchain treats it as
// a black box; this package's only job is marshaling the linked byte
// buffer across the cgo boundary and translating the u8 status into a
// Go exit code.
package nativevm

// Run invokes the native VM on a linked image and returns its exit
// status. Without cgo (the default build, since the native VM is a
// separate artifact this module does not vendor), Run returns an error
// saying that no VM is linked in rather than panicking, and `cmd/svm`'s
// `run` subcommand reports that error and exits 1.
func Run(image []byte) (uint8, error) {
	return run(image)
}
