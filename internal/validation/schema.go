package validation

import (
	"expenses/internal/core"
)

// Field names shared by the schema, the form and the error map.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldCategory    = "category"
)

// amountFormat is the custom format asserting that an amount parses to a
// non-zero integer.
const amountFormat = "entry-amount"

// Messages maps a field and the failing schema keyword to the text shown
// next to that field. Keywords are listed in precedence order: when several
// fail for one field, the first one wins.
var Messages = map[string][]KeywordMessage{
	FieldDescription: {
		{Keyword: "required", Message: "Description must be at least 3 characters"},
		{Keyword: "type", Message: "Description must be at least 3 characters"},
		{Keyword: "minLength", Message: "Description must be at least 3 characters"},
	},
	FieldAmount: {
		{Keyword: "required", Message: "Amount is required"},
		{Keyword: "type", Message: "Amount is required"},
		{Keyword: "format", Message: "Amount is required"},
	},
	FieldCategory: {
		{Keyword: "required", Message: "Category is required"},
		{Keyword: "type", Message: "Category is required"},
		{Keyword: "minLength", Message: "Category is required"},
		{Keyword: "enum", Message: "Category must be one of groceries, utilities, entertainment"},
	},
}

// KeywordMessage pairs a schema keyword with its user facing message.
type KeywordMessage struct {
	Keyword string
	Message string
}

// BuildEntrySchema returns the JSON-Schema (draft 2020-12) describing one
// submitted form. Values arrive as strings exactly as typed.
func BuildEntrySchema() map[string]any {
	categories := core.CategoryValues()
	enum := make([]any, len(categories))
	for i, c := range categories {
		enum[i] = c
	}

	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			FieldDescription: map[string]any{
				"type":      "string",
				"minLength": core.MinDescriptionLength,
			},
			FieldAmount: map[string]any{
				"type":   "string",
				"format": amountFormat,
			},
			FieldCategory: map[string]any{
				"type":      "string",
				"minLength": 1,
				"enum":      enum,
			},
		},
		"required": []any{FieldDescription, FieldAmount, FieldCategory},
	}
}
