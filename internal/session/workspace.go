// Package session holds the per-browser workspaces: the entry list, the
// table filter and the form state owned by one session cookie.
package session

import (
	"fmt"
	"sync"
	"time"

	"expenses/internal/core"
	"expenses/internal/validation"
)

// Validator is the schema check a workspace runs on submitted forms.
type Validator interface {
	Validate(in validation.Input) (validation.Result, error)
}

// FormState is what the entry form currently shows.
type FormState struct {
	Input  validation.Input
	Errors validation.FieldErrors
	// Submitted turns on live re-validation; until the first submit edits
	// are not checked.
	Submitted bool
	Valid     bool
}

// SubmitDisabled reports whether the submit button is styled disabled. The
// button still submits; only appending is gated.
func (f FormState) SubmitDisabled() bool {
	return !f.Valid
}

// SubmitResult is the outcome of one form submission.
type SubmitResult struct {
	Form     FormState
	Entry    core.Entry
	Appended bool
}

// Workspace is the state of one session. All methods are safe for
// concurrent use.
type Workspace struct {
	mu            sync.Mutex
	id            string
	createdAt     time.Time
	ledger        *core.Ledger
	filter        core.Filter
	form          FormState
	resetOnSubmit bool
}

func newWorkspace(id string, filter core.Filter, resetOnSubmit bool) *Workspace {
	return &Workspace{
		id:            id,
		createdAt:     time.Now(),
		ledger:        core.NewLedger(),
		filter:        filter,
		form:          FormState{Errors: validation.FieldErrors{}},
		resetOnSubmit: resetOnSubmit,
	}
}

// ID returns the session identifier.
func (w *Workspace) ID() string { return w.id }

// CreatedAt returns when the workspace was opened.
func (w *Workspace) CreatedAt() time.Time { return w.createdAt }

// Submit validates in and appends the resulting entry when every field
// passes. On failure the list is left untouched and the form carries the
// field errors.
func (w *Workspace) Submit(v Validator, in validation.Input) (SubmitResult, error) {
	res, err := v.Validate(in)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("validate entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.form = FormState{Input: in, Errors: res.Errors, Submitted: true, Valid: res.Valid()}
	if !res.Valid() {
		return SubmitResult{Form: w.form}, nil
	}
	if err := w.ledger.Append(res.Entry); err != nil {
		return SubmitResult{}, fmt.Errorf("append entry: %w", err)
	}
	if w.resetOnSubmit {
		w.form = FormState{Errors: validation.FieldErrors{}}
	}
	return SubmitResult{Form: w.form, Entry: res.Entry, Appended: true}, nil
}

// Revalidate records the edited form. Once the form has been submitted the
// input is checked again so errors clear as the user fixes them. The list is
// never touched. The submitted flag is read under the same lock that stores
// the result, so a concurrent Submit is never rolled back.
func (w *Workspace) Revalidate(v Validator, in validation.Input) (FormState, error) {
	res, err := v.Validate(in)
	if err != nil {
		return FormState{}, fmt.Errorf("validate entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	next := FormState{Input: in, Errors: validation.FieldErrors{}, Submitted: w.form.Submitted}
	if next.Submitted {
		next.Errors = res.Errors
		next.Valid = res.Valid()
	}
	w.form = next
	return next, nil
}

// Form returns the current form state.
func (w *Workspace) Form() FormState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Filter returns the active table filter.
func (w *Workspace) Filter() core.Filter {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filter
}

// SetFilter replaces the table filter and returns the resulting view.
func (w *Workspace) SetFilter(f core.Filter) core.Table {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filter = f
	return w.ledger.View(f)
}

// Table returns the table under the active filter.
func (w *Workspace) Table() core.Table {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger.View(w.filter)
}

// Entries returns the unfiltered list.
func (w *Workspace) Entries() []core.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger.Entries()
}

// Delete removes the entry with the given ID.
func (w *Workspace) Delete(id string) (core.Entry, core.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed, err := w.ledger.Delete(id)
	if err != nil {
		return core.Entry{}, w.ledger.View(w.filter), err
	}
	return removed, w.ledger.View(w.filter), nil
}

// DeleteAt removes the entry at position i of the unfiltered list, whatever
// filter produced the index.
func (w *Workspace) DeleteAt(i int) (core.Entry, core.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed, err := w.ledger.DeleteAt(i)
	if err != nil {
		return core.Entry{}, w.ledger.View(w.filter), err
	}
	return removed, w.ledger.View(w.filter), nil
}
