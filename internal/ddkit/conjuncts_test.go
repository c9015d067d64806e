// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

import "testing"

func TestAndEmptyIsTrue(t *testing.T) {
	f, err := NewForest(2)
	if err != nil {
		t.Fatalf("new_forest: %v", err)
	}
	e, err := f.And()
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	if e.Handle() != f.True().Handle() {
		t.Fatalf("expected And() with no operands to be True, got handle %d", e.Handle())
	}
}

func TestOrEmptyIsFalse(t *testing.T) {
	f, err := NewForest(2)
	if err != nil {
		t.Fatalf("new_forest: %v", err)
	}
	e, err := f.Or()
	if err != nil {
		t.Fatalf("or: %v", err)
	}
	if e.Handle() != f.False().Handle() {
		t.Fatalf("expected Or() with no operands to be False, got handle %d", e.Handle())
	}
}

func TestAndConjoinsAllOperands(t *testing.T) {
	f, err := NewForest(3)
	if err != nil {
		t.Fatalf("new_forest: %v", err)
	}
	a := mkvar(t, f, 1)
	b := mkvar(t, f, 2)
	c := mkvar(t, f, 3)

	folded, err := f.And(a, b, c)
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	ab, err := f.Apply(OpAnd, a, b)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want, err := f.Apply(OpAnd, ab, c)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if folded.Handle() != want.Handle() {
		t.Fatalf("And(a, b, c) = %d, want %d", folded.Handle(), want.Handle())
	}
}

func TestImpAndEquivDelegateToApply(t *testing.T) {
	f, err := NewForest(2)
	if err != nil {
		t.Fatalf("new_forest: %v", err)
	}
	a := mkvar(t, f, 1)
	b := mkvar(t, f, 2)

	imp, err := f.Imp(a, b)
	if err != nil {
		t.Fatalf("imp: %v", err)
	}
	wantImp, err := f.Apply(OpImp, a, b)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if imp.Handle() != wantImp.Handle() {
		t.Fatalf("Imp(a, b) = %d, want %d", imp.Handle(), wantImp.Handle())
	}

	eq, err := f.Equiv(a, b)
	if err != nil {
		t.Fatalf("equiv: %v", err)
	}
	wantEq, err := f.Apply(OpBiimp, a, b)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if eq.Handle() != wantEq.Handle() {
		t.Fatalf("Equiv(a, b) = %d, want %d", eq.Handle(), wantEq.Handle())
	}
}
