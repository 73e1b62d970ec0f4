//go:build cgo

package nativevm

/*
#include <stdint.h>

extern uint8_t vm(uint8_t *ptr);
*/
import "C"
import "unsafe"

func run(image []byte) (uint8, error) {
	if len(image) == 0 {
		return 0, nil
	}
	status := C.vm((*C.uint8_t)(unsafe.Pointer(&image[0])))
	return uint8(status), nil
}
