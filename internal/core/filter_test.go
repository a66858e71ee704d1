package core

import "testing"

func TestFilterMatches(t *testing.T) {
	cases := []struct {
		filter Filter
		cat    Category
		want   bool
	}{
		{FilterAll, Groceries, true},
		{FilterAll, Entertainment, true},
		{Filter("groceries"), Groceries, true},
		{Filter("GROCERIES"), Groceries, true},
		{Filter("groceries"), Utilities, false},
		{Filter("ent"), Entertainment, true},
		{Filter("t"), Utilities, true},
		{FilterUnset, Groceries, false},
	}
	for _, tc := range cases {
		got := tc.filter.Matches(Entry{Category: tc.cat})
		if got != tc.want {
			t.Fatalf("%q.Matches(%q) = %v, want %v", tc.filter, tc.cat, got, tc.want)
		}
	}
}

func TestParseFilter(t *testing.T) {
	if got := ParseFilter("  utilities "); got != Filter("utilities") {
		t.Fatalf("ParseFilter = %q", got)
	}
	if got := ParseFilter(""); got != FilterUnset {
		t.Fatalf("ParseFilter empty = %q", got)
	}
}

func TestFilterOptions(t *testing.T) {
	opts := FilterOptions()
	if len(opts) != 4 || opts[0].Value != FilterAll {
		t.Fatalf("options = %+v", opts)
	}
	if opts[1].Label != "Groceries" {
		t.Fatalf("label = %q", opts[1].Label)
	}
}
