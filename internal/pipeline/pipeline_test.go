package pipeline

import (
	"testing"

	"svm/internal/errs"
	"svm/internal/ir"
)

func TestCheckEntryArityAcceptsNoArgs(t *testing.T) {
	if err := checkEntryArity(EntryLabel, ir.FuncWithCaps(nil, nil)); err != nil {
		t.Fatalf("expected a zero-argument entry to pass, got %v", err)
	}
}

func TestCheckEntryArityRejectsArgs(t *testing.T) {
	declared := ir.FuncWithCaps(nil, []ir.Type{ir.I32()})
	err := checkEntryArity(EntryLabel, declared)
	svmErr, ok := err.(*errs.SVMError)
	if !ok {
		t.Fatalf("expected *errs.SVMError, got %T: %v", err, err)
	}
	if svmErr.Code != "MainHasArgs" {
		t.Fatalf("expected code MainHasArgs, got %s", svmErr.Code)
	}
}

func TestCheckEntryArityStripsBinders(t *testing.T) {
	region := ir.Region{Unique: true, ID: ir.Id{Label: EntryLabel, Counter: 0}}
	declared := ir.ForallRegion(region, ir.FuncWithCaps(nil, nil), nil)
	if err := checkEntryArity(EntryLabel, declared); err != nil {
		t.Fatalf("a region-polymorphic entry with no runtime args should pass, got %v", err)
	}
}
