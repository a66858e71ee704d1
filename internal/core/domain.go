package core

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	Groceries     Category = "groceries"
	Utilities     Category = "utilities"
	Entertainment Category = "entertainment"
)

// MinDescriptionLength is the shortest description an entry may carry.
const MinDescriptionLength = 3

type (
	Category string

	// Entry is a validated expense record.
	Entry struct {
		ID          string
		Description string
		Amount      int64
		Category    Category
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrShortDescription = errors.New("description too short")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrMissingEntryID   = errors.New("missing entry id")
)

var categories = []Category{Groceries, Utilities, Entertainment}

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// CategoryValues returns the category set as plain strings.
func CategoryValues() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}

// IsValid reports whether c belongs to the fixed category set.
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the human readable name shown in select controls.
func (c Category) Label() string {
	s := string(c)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (c Category) String() string {
	return string(c)
}

func (e Entry) Validate() error {
	if utf8.RuneCountInString(e.Description) < MinDescriptionLength {
		return ErrShortDescription
	}
	if e.Amount == 0 {
		return ErrInvalidAmount
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(e.ID) == "" {
		return ErrMissingEntryID
	}
	return nil
}
