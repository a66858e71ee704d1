package core

import "strings"

const (
	// FilterAll places no constraint on the category.
	FilterAll Filter = "all"
	// FilterUnset is the value of a selector the user has not touched yet.
	FilterUnset Filter = ""
)

// Filter narrows the table view to entries whose category matches.
type Filter string

// ParseFilter normalises a raw selector value. Surrounding whitespace is
// dropped; anything else is kept verbatim so the substring predicate sees
// exactly what the user picked.
func ParseFilter(raw string) Filter {
	return Filter(strings.TrimSpace(raw))
}

// Matches reports whether e passes the filter. "all" admits every entry,
// the unset value admits none, and any other value is a case-insensitive
// substring test against the entry's category.
func (f Filter) Matches(e Entry) bool {
	switch f {
	case FilterAll:
		return true
	case FilterUnset:
		return false
	}
	return strings.Contains(strings.ToLower(string(e.Category)), strings.ToLower(string(f)))
}

// Apply returns the entries that pass the filter, in list order.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterOptions returns the selector choices: "all" followed by every category.
func FilterOptions() []FilterOption {
	opts := []FilterOption{{Value: FilterAll, Label: "All categories"}}
	for _, c := range categories {
		opts = append(opts, FilterOption{Value: Filter(c), Label: c.Label()})
	}
	return opts
}

// FilterOption is one choice of the filter selector.
type FilterOption struct {
	Value Filter
	Label string
}

func (f Filter) String() string {
	return string(f)
}
