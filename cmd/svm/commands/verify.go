// cmd/svm/commands/verify.go
package commands

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"svm/internal/diag"
	"svm/internal/errs"
	"svm/internal/pipeline"
	"svm/internal/pretty"
)

// VerifyCommand decodes and verifies each named object file, printing a
// rendered diagnostic for the first error any of them raises.
func VerifyCommand(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	dump := fs.Bool("dump", false, "print each verified function's lowered opcode stream")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("svm verify: expected at least one object file")
	}

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("svm verify: %w", err)
		}

		v, err := pipeline.VerifyObject(raw)
		if err != nil {
			var svmErr *errs.SVMError
			if errors.As(err, &svmErr) {
				diag.Fprint(os.Stderr, svmErr)
				return fmt.Errorf("svm verify: %s failed verification", path)
			}
			return fmt.Errorf("svm verify: %s: %w", path, err)
		}

		fmt.Printf("%s: ok (%d functions)\n", path, len(v.Image.Functions))
		if *dump {
			for _, fn := range v.Functions {
				fmt.Print(pretty.Function(fn))
			}
		}
	}
	return nil
}
