// Package diag renders an *errs.SVMError for a terminal (spec §2's
// "Error renderer (external)" row): one line naming the category, code,
// and location, optionally ANSI-colored when standard error is a real
// terminal. Detecting that is github.com/mattn/go-isatty's job, the
// same check sentra/cmd/sentra's CLI used before printing colored
// diagnostics; byte positions are spelled with
// github.com/dustin/go-humanize's Comma so a position deep in a large
// data section reads as "12,345" instead of a bare digit string.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"svm/internal/errs"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31;1m"
	colorYellow = "\033[33;1m"
	colorDim    = "\033[2m"
)

// Renderer formats SVMErrors for a specific output stream, deciding once
// whether that stream supports color.
type Renderer struct {
	color bool
}

// NewRenderer builds a Renderer for w, auto-detecting color support when
// w is *os.File and a real terminal.
func NewRenderer(w io.Writer) Renderer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return Renderer{color: color}
}

// Render formats one error as a single human-readable line.
func (r Renderer) Render(err *errs.SVMError) string {
	sev := colorRed
	if err.Category == errs.Structure {
		sev = colorYellow
	}
	head := fmt.Sprintf("%s[%s]", err.Category, err.Code)
	if r.color {
		head = sev + head + colorReset
	}

	loc := ""
	if err.Label != "" {
		loc = " in " + err.Label
		if err.Pos >= 0 {
			loc += " at byte " + humanize.Comma(int64(err.Pos))
		}
		if err.Op != "" {
			loc += ", opcode " + err.Op
		}
	}
	if r.color && loc != "" {
		loc = colorDim + loc + colorReset
	}

	return fmt.Sprintf("%s: %s%s", head, err.Message, loc)
}

// Fprint writes one error's rendering plus a trailing newline to w.
func Fprint(w io.Writer, err *errs.SVMError) {
	fmt.Fprintln(w, NewRenderer(w).Render(err))
}

// SizeString formats a byte count the way every size-bearing diagnostic
// in this package does, e.g. image sizes reported by `svm link`.
func SizeString(n uint64) string {
	return humanize.Bytes(n)
}
