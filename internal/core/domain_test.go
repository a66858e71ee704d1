package core

import (
	"errors"
	"testing"
)

func TestCategoryIsValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.IsValid() {
			t.Fatalf("%q expected valid", c)
		}
	}
	for _, c := range []Category{"", "Groceries", "food"} {
		if c.IsValid() {
			t.Fatalf("%q expected invalid", c)
		}
	}
}

func TestCategoryLabel(t *testing.T) {
	if got := Entertainment.Label(); got != "Entertainment" {
		t.Fatalf("label = %q", got)
	}
	if got := Category("").Label(); got != "" {
		t.Fatalf("empty label = %q", got)
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{ID: "e1", Description: "Milk", Amount: 5, Category: Groceries}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		e   Entry
		err error
	}{
		{Entry{ID: "e1", Description: "Mi", Amount: 5, Category: Groceries}, ErrShortDescription},
		{Entry{ID: "e1", Description: "Milk", Amount: 0, Category: Groceries}, ErrInvalidAmount},
		{Entry{ID: "e1", Description: "Milk", Amount: 5, Category: "food"}, ErrInvalidCategory},
		{Entry{ID: "", Description: "Milk", Amount: 5, Category: Groceries}, ErrMissingEntryID},
	}
	for i, tc := range bads {
		if err := tc.e.Validate(); !errors.Is(err, tc.err) {
			t.Fatalf("case %d expected %v, got %v", i, tc.err, err)
		}
	}
}

func TestCategoryValuesOrder(t *testing.T) {
	got := CategoryValues()
	want := []string{"groceries", "utilities", "entertainment"}
	if len(got) != len(want) {
		t.Fatalf("values = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values = %v, want %v", got, want)
		}
	}
}
