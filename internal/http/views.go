package http

import (
	"strconv"

	"expenses/internal/core"
	"expenses/internal/session"
	"expenses/internal/validation"
)

type option struct {
	Value    string
	Label    string
	Selected bool
}

// formView feeds the entry_form template.
type formView struct {
	Description string
	Amount      string
	Category    string
	Errors      validation.FieldErrors
	Categories  []option

	SubmitDisabled bool
	Flash          string
}

type rowView struct {
	ID          string
	Index       int
	Description string
	Amount      string
	Category    string
	// Delete control payload: "id" or "index" with its value.
	DeleteField string
	DeleteValue string
}

// tableView feeds the entry_table template.
type tableView struct {
	Unset     bool
	Filters   []option
	Rows      []rowView
	ShowTotal bool
	Total     string
}

type pageData struct {
	Form  formView
	Table tableView
}

func newFormView(f session.FormState, flash string) formView {
	errs := f.Errors
	if errs == nil {
		errs = validation.FieldErrors{}
	}
	cats := make([]option, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		cats = append(cats, option{Value: string(c), Label: c.Label(), Selected: f.Input.Category == string(c)})
	}
	return formView{
		Description:    f.Input.Description,
		Amount:         f.Input.Amount,
		Category:       f.Input.Category,
		Errors:         errs,
		Categories:     cats,
		SubmitDisabled: f.SubmitDisabled(),
		Flash:          flash,
	}
}

func newTableView(t core.Table, byPosition bool) tableView {
	opts := core.FilterOptions()
	filters := make([]option, 0, len(opts))
	for _, o := range opts {
		filters = append(filters, option{Value: o.Value.String(), Label: o.Label, Selected: o.Value == t.Filter})
	}

	rows := make([]rowView, len(t.Rows))
	for i, r := range t.Rows {
		rv := rowView{
			ID:          r.Entry.ID,
			Index:       r.Index,
			Description: r.Entry.Description,
			Amount:      core.FormatAmount(r.Entry.Amount),
			Category:    r.Entry.Category.Label(),
			DeleteField: "id",
			DeleteValue: r.Entry.ID,
		}
		if byPosition {
			rv.DeleteField = "index"
			rv.DeleteValue = strconv.Itoa(r.Index)
		}
		rows[i] = rv
	}

	return tableView{
		Unset:     t.Filter == core.FilterUnset,
		Filters:   filters,
		Rows:      rows,
		ShowTotal: t.ShowTotal,
		Total:     t.TotalText(),
	}
}
