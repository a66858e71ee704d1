package core

import (
	"math"
	"math/big"
)

// Ledger is the ordered list of entries owned by one workspace. It is not
// safe for concurrent use; callers serialise access.
type Ledger struct {
	entries []Entry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a validated entry at the end of the list.
func (l *Ledger) Append(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	l.entries = append(l.entries, e)
	return nil
}

// Entries returns a copy of the list in insertion order.
func (l *Ledger) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries in the unfiltered list.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Delete removes the entry with the given ID.
func (l *Ledger) Delete(id string) (Entry, error) {
	for i, e := range l.entries {
		if e.ID == id {
			return l.removeAt(i), nil
		}
	}
	return Entry{}, ErrEntryNotFound
}

// DeleteAt removes the entry at position i of the unfiltered list.
func (l *Ledger) DeleteAt(i int) (Entry, error) {
	if i < 0 || i >= len(l.entries) {
		return Entry{}, ErrEntryNotFound
	}
	return l.removeAt(i), nil
}

func (l *Ledger) removeAt(i int) Entry {
	removed := l.entries[i]
	next := make([]Entry, 0, len(l.entries)-1)
	next = append(next, l.entries[:i]...)
	next = append(next, l.entries[i+1:]...)
	l.entries = next
	return removed
}

// View computes the table for the given filter.
func (l *Ledger) View(f Filter) Table {
	visible := f.Apply(l.entries)
	t := Table{
		Filter:    f,
		Rows:      make([]Row, len(visible)),
		ShowTotal: len(l.entries) > 0,
	}
	sum := new(big.Int)
	for i, e := range visible {
		t.Rows[i] = Row{Index: i, Entry: e}
		sum.Add(sum, big.NewInt(e.Amount))
	}
	t.Total, t.TotalOverflow = clampInt64(sum)
	return t
}

// clampInt64 saturates sum to the int64 range and reports whether it had to.
func clampInt64(sum *big.Int) (int64, bool) {
	switch {
	case sum.IsInt64():
		return sum.Int64(), false
	case sum.Sign() > 0:
		return math.MaxInt64, true
	default:
		return math.MinInt64, true
	}
}
