package http

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"expenses/internal/core"
	"expenses/internal/export"
	applog "expenses/internal/log"
	"expenses/internal/session"
)

// handleCreateEntry validates the submitted form and appends the entry on
// success. Failures re-render the form with field errors and a 422.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, resp := ParseBodyOrFail(w, r)
	if resp != nil {
		resp.Write(w)
		return
	}

	ws := s.workspace(w, r)
	res, err := ws.Submit(s.validator, ParseEntryInput(p))
	if err != nil {
		s.events.LogError(r.Context(), "Entry submission failed", err, applog.ComponentEntry, applog.OpCreate,
			applog.NewFields().WithSessionID(ws.ID()))
		InternalServerError("Could not save the entry").Write(w)
		return
	}

	if !res.Appended {
		s.appMetrics.validationFailures.Add(1)
		s.events.LogValidationFailed(r.Context(), ws.ID(), invalidFields(res.Form))
		s.writeForm(w, r, http.StatusUnprocessableEntity, res.Form, "")
		return
	}

	s.appMetrics.entriesCreated.Add(1)
	count := len(ws.Entries())
	e := res.Entry
	s.events.LogEntryCreated(r.Context(), ws.ID(), e.ID, e.Description, e.Amount, string(e.Category), count)

	flash := fmt.Sprintf("Added %s: %s", e.Description, core.FormatAmount(e.Amount))
	body, err := s.render("entry_form", newFormView(res.Form, flash))
	if err != nil {
		s.renderFailed(w, r, err)
		return
	}
	b := NewHTMXResponse().
		TriggerEntryCreated(e.ID, count).
		TriggerSuccessNotification(flash)
	if !res.Form.Submitted {
		b.TriggerFormReset()
	}
	b.BodyHTML(body).Write(w)
}

// handleValidateEntry re-checks the form as the user edits it. It never
// appends.
func (s *Server) handleValidateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, resp := ParseBodyOrFail(w, r)
	if resp != nil {
		resp.Write(w)
		return
	}

	ws := s.workspace(w, r)
	form, err := ws.Revalidate(s.validator, ParseEntryInput(p))
	if err != nil {
		s.events.LogError(r.Context(), "Entry revalidation failed", err, applog.ComponentEntry, applog.OpValidate,
			applog.NewFields().WithSessionID(ws.ID()))
		InternalServerError("Could not validate the entry").Write(w)
		return
	}
	s.writeForm(w, r, http.StatusOK, form, "")
}

// handleDeleteEntry removes one row. The body carries "id" or "index"
// depending on the delete mode.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, resp := ParseBodyOrFail(w, r)
	if resp != nil {
		resp.Write(w)
		return
	}
	target, err := ParseDeleteTarget(p, s.deleteMode)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ws := s.workspace(w, r)
	var (
		removed core.Entry
		table   core.Table
	)
	if target.ByPosition {
		removed, table, err = ws.DeleteAt(target.Index)
	} else {
		removed, table, err = ws.Delete(target.ID)
	}

	status := http.StatusOK
	b := NewHTMXResponse()
	switch {
	case errors.Is(err, core.ErrEntryNotFound):
		s.appMetrics.deleteMisses.Add(1)
		s.events.LogEntryNotFound(r.Context(), ws.ID(), target.String(), s.deleteMode)
		status = http.StatusNotFound
		b.TriggerErrorNotification("Entry not found")
	case err != nil:
		s.events.LogError(r.Context(), "Entry delete failed", err, applog.ComponentEntry, applog.OpDelete,
			applog.NewFields().WithSessionID(ws.ID()))
		InternalServerError("Could not delete the entry").Write(w)
		return
	default:
		s.appMetrics.entriesDeleted.Add(1)
		count := len(ws.Entries())
		s.events.LogEntryDeleted(r.Context(), ws.ID(), removed.ID, s.deleteMode, count)
		b.TriggerEntryDeleted(removed.ID, count)
	}

	body, rerr := s.render("entry_table", newTableView(table, s.byPosition()))
	if rerr != nil {
		s.renderFailed(w, r, rerr)
		return
	}
	b.Status(status).BodyHTML(body).Write(w)
}

// handleEntryTable renders the table partial. A filter query parameter
// replaces the workspace filter first.
func (s *Server) handleEntryTable(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ws := s.workspace(w, r)
	var table core.Table
	if f, ok := ParseFilterQuery(r.URL.Query()); ok {
		table = ws.SetFilter(f)
		applog.FromContext(r.Context()).WithComponent(applog.ComponentEntry).DebugContext(r.Context(),
			"Filter changed", applog.FieldOperation, applog.OpFilter, applog.FieldFilter, f.String())
	} else {
		table = ws.Table()
	}

	body, err := s.render("entry_table", newTableView(table, s.byPosition()))
	if err != nil {
		s.renderFailed(w, r, err)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleExport downloads the filtered table as a spreadsheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ws := s.workspace(w, r)
	data, err := s.exporter.TableXLSX(ws.Table())
	if err != nil {
		s.events.LogError(r.Context(), "Export failed", err, applog.ComponentExport, applog.OpExport,
			applog.NewFields().WithSessionID(ws.ID()))
		InternalServerError("Could not export entries").Write(w)
		return
	}

	s.appMetrics.exports.Add(1)
	NewHTMXResponse().
		Header("Content-Type", export.ContentType).
		Header("Content-Disposition", `attachment; filename="entries.xlsx"`).
		Body(data).
		Write(w)
}

func (s *Server) writeForm(w http.ResponseWriter, r *http.Request, status int, form session.FormState, flash string) {
	body, err := s.render("entry_form", newFormView(form, flash))
	if err != nil {
		s.renderFailed(w, r, err)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(body).Write(w)
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.events.LogError(r.Context(), "Template execution failed", err, applog.ComponentTemplate, applog.OpRender, nil)
	InternalServerError("Could not render response").Write(w)
}

func invalidFields(f session.FormState) []string {
	out := make([]string, 0, len(f.Errors))
	for field := range f.Errors {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}
