// Package validation checks submitted entry forms against a declarative
// JSON-Schema and turns violations into per-field messages.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"expenses/internal/core"
)

const schemaURL = "entry.schema.json"

func init() {
	jsonschema.Formats[amountFormat] = isEntryAmount
}

func isEntryAmount(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true // not a string: left to the "type" keyword
	}
	_, err := core.ParseAmount(s)
	return err == nil
}

// Input is one form submission, values exactly as typed.
type Input struct {
	Description string
	Amount      string
	Category    string
}

func (in Input) document() map[string]any {
	return map[string]any{
		FieldDescription: in.Description,
		FieldAmount:      in.Amount,
		FieldCategory:    in.Category,
	}
}

// FieldErrors maps a field name to the message displayed next to it.
type FieldErrors map[string]string

// Has reports whether field failed validation.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Get returns the message for field, or "".
func (fe FieldErrors) Get(field string) string {
	return fe[field]
}

// Empty reports whether no field failed.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Result is the outcome of validating one Input. Entry is only meaningful
// when Errors is empty.
type Result struct {
	Entry  core.Entry
	Errors FieldErrors
}

// Valid reports whether the input passed every rule.
func (r Result) Valid() bool {
	return r.Errors.Empty()
}

// Validator compiles the entry schema once and validates inputs against it.
type Validator struct {
	schema *jsonschema.Schema
	newID  func() string
}

// Option configures a Validator.
type Option func(*Validator)

// WithIDGenerator overrides how validated entries get their ID.
func WithIDGenerator(fn func() string) Option {
	return func(v *Validator) {
		v.newID = fn
	}
}

// New compiles the entry schema.
func New(opts ...Option) (*Validator, error) {
	b, err := json.Marshal(BuildEntrySchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := &Validator{schema: schema, newID: uuid.NewString}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate checks in against the schema. On success the returned entry
// carries the parsed amount and a fresh ID.
func (v *Validator) Validate(in Input) (Result, error) {
	doc := in.document()
	err := v.schema.Validate(doc)
	if err == nil {
		amount, perr := core.ParseAmount(in.Amount)
		if perr != nil {
			// The format assertion already accepted the amount.
			return Result{}, fmt.Errorf("parse validated amount: %w", perr)
		}
		return Result{
			Entry: core.Entry{
				ID:          v.newID(),
				Description: in.Description,
				Amount:      amount,
				Category:    core.Category(in.Category),
			},
			Errors: FieldErrors{},
		}, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return Result{}, fmt.Errorf("validate entry: %w", err)
	}

	failed := map[string]map[string]bool{}
	collect(ve, doc, failed)
	return Result{Errors: messagesFor(failed)}, nil
}

// collect walks the error tree and records, per field, every keyword that
// failed at a leaf.
func collect(ve *jsonschema.ValidationError, doc map[string]any, failed map[string]map[string]bool) {
	if len(ve.Causes) == 0 {
		keyword := lastSegment(ve.KeywordLocation)
		if keyword == "required" {
			for field := range Messages {
				if _, ok := doc[field]; !ok {
					mark(failed, field, keyword)
				}
			}
			return
		}
		if field := firstSegment(ve.InstanceLocation); field != "" {
			mark(failed, field, keyword)
		}
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, doc, failed)
	}
}

func mark(failed map[string]map[string]bool, field, keyword string) {
	if failed[field] == nil {
		failed[field] = map[string]bool{}
	}
	failed[field][keyword] = true
}

func messagesFor(failed map[string]map[string]bool) FieldErrors {
	out := FieldErrors{}
	for field, keywords := range failed {
		for _, km := range Messages[field] {
			if keywords[km.Keyword] {
				out[field] = km.Message
				break
			}
		}
	}
	return out
}

func trimPointer(p string) string {
	return strings.TrimPrefix(strings.TrimPrefix(p, "#"), "/")
}

func firstSegment(p string) string {
	p = trimPointer(p)
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i]
	}
	return p
}

func lastSegment(p string) string {
	p = trimPointer(p)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
