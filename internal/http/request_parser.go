// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Entry submissions arrive form-encoded from htmx or as JSON from scripts;
// both go through RequestBodyParser.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expenses/internal/config"
	"expenses/internal/core"
	"expenses/internal/validation"
)

// maxBodyBytes caps entry and delete request bodies.
const maxBodyBytes = 64 << 10

var (
	errMissingEntryID = core.ErrMissingEntryID
	errInvalidIndex   = errors.New("invalid row index")
)

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(r.Body)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.raw(key))
}

// GetVerbatim returns the value with control characters removed but
// whitespace kept, so a field is validated exactly as typed.
func (p *RequestBodyParser) GetVerbatim(key string) string {
	return stripControl(p.raw(key))
}

func (p *RequestBodyParser) raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseEntryInput extracts the three entry fields as typed. Padding counts
// toward the description length and is stored with the entry.
func ParseEntryInput(p *RequestBodyParser) validation.Input {
	return validation.Input{
		Description: p.GetVerbatim(validation.FieldDescription),
		Amount:      p.GetVerbatim(validation.FieldAmount),
		Category:    p.GetVerbatim(validation.FieldCategory),
	}
}

// DeleteTarget names the row a delete request points at.
type DeleteTarget struct {
	ID         string
	Index      int
	ByPosition bool
}

// String renders the target for logs: the ID, or "#<index>" by position.
func (t DeleteTarget) String() string {
	if t.ByPosition {
		return "#" + strconv.Itoa(t.Index)
	}
	return t.ID
}

// ParseDeleteTarget reads the field the delete mode expects: "id" in
// identity mode, "index" in position mode.
func ParseDeleteTarget(p *RequestBodyParser, mode string) (DeleteTarget, error) {
	if mode == config.DeleteByPosition {
		idx, err := strconv.Atoi(p.Get("index"))
		if err != nil || idx < 0 {
			return DeleteTarget{}, errInvalidIndex
		}
		return DeleteTarget{Index: idx, ByPosition: true}, nil
	}

	id := p.Get("id")
	if id == "" {
		return DeleteTarget{}, errMissingEntryID
	}
	return DeleteTarget{ID: id}, nil
}

// ParseFilterQuery returns the filter sent in the query string, if any.
func ParseFilterQuery(query url.Values) (core.Filter, bool) {
	if !query.Has("filter") {
		return "", false
	}
	return core.ParseFilter(query.Get("filter")), true
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET is a convenience function for read-only handlers. HEAD is
// accepted too.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseBodyOrFail reads and parses a bounded request body. On failure the
// returned builder carries the error response.
func ParseBodyOrFail(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return nil, BadRequestError("Invalid request format")
	}
	return p, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return stripControl(strings.TrimSpace(s))
}

// stripControl drops control characters other than tab, newline and CR.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
