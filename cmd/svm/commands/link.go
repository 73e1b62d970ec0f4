// cmd/svm/commands/link.go
package commands

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"svm/internal/diag"
	"svm/internal/errs"
	"svm/internal/hash"
	"svm/internal/pipeline"
)

// LinkCommand verifies every named object file and links them into a
// single image (spec §4.5).
func LinkCommand(args []string) error {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	out := fs.String("o", "a.out.svm", "output path for the linked image")
	printHash := fs.Bool("print-hash", false, "print the linked image's content hash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("svm link: expected at least one object file")
	}

	raws := make([][]byte, len(paths))
	for i, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("svm link: %w", err)
		}
		raws[i] = b
	}

	image, err := pipeline.LinkAll(raws)
	if err != nil {
		var svmErr *errs.SVMError
		if errors.As(err, &svmErr) {
			diag.Fprint(os.Stderr, svmErr)
			return fmt.Errorf("svm link: linking failed")
		}
		return fmt.Errorf("svm link: %w", err)
	}

	if err := os.WriteFile(*out, image, 0644); err != nil {
		return fmt.Errorf("svm link: %w", err)
	}

	fmt.Printf("wrote %s (%s)\n", *out, diag.SizeString(uint64(len(image))))
	if *printHash {
		fmt.Println(hash.Image(image))
	}
	return nil
}
