// cmd/svm/commands/run.go
package commands

import (
	"fmt"
	"os"

	"svm/internal/nativevm"
)

// RunCommand hands a linked image to the external native VM (spec
// §6.3). Without a cgo build this reports that no VM is linked in
// rather than failing silently, so `svm verify`/`svm link` remain
// fully usable on a pure-Go build.
func RunCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("svm run: expected a linked image path")
	}
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("svm run: %w", err)
	}

	status, err := nativevm.Run(image)
	if err != nil {
		return fmt.Errorf("svm run: %w", err)
	}
	os.Exit(int(status))
	return nil
}
