package core

// Row is one visible table line. Index is the position inside the filtered
// view, not inside the underlying list.
type Row struct {
	Index int
	Entry Entry
}

// Table is the filtered view of a ledger with its aggregate line.
type Table struct {
	Filter    Filter
	Rows      []Row
	Total     int64
	ShowTotal bool // false only when the unfiltered list is empty
	// TotalOverflow is set when the exact sum does not fit in an int64;
	// Total then holds the nearest bound.
	TotalOverflow bool
}

// TotalText renders the total for display. An overflowed total is shown as
// a bound, e.g. "> $9,223,372,036,854,775,807".
func (t Table) TotalText() string {
	if !t.TotalOverflow {
		return FormatAmount(t.Total)
	}
	if t.Total > 0 {
		return "> " + FormatAmount(t.Total)
	}
	return "< " + FormatAmount(t.Total)
}

// Entries returns the visible entries in display order.
func (t Table) Entries() []Entry {
	out := make([]Entry, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Entry
	}
	return out
}
