package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"expenses/internal/config"
	"expenses/internal/core"
	"expenses/internal/export"
	applog "expenses/internal/log"
	"expenses/internal/session"
	"expenses/internal/validation"

	"github.com/xuri/excelize/v2"
)

func newTestServer(t *testing.T, mutate func(*Options, *session.Options)) *Server {
	t.Helper()
	v, err := validation.New()
	if err != nil {
		t.Fatalf("validation.New: %v", err)
	}
	logger := applog.New(applog.Config{Level: slog.LevelError, Format: "text", Output: io.Discard})

	storeOpts := session.Options{TTL: time.Hour, MaxSessions: 16, InitialFilter: core.FilterAll}
	opts := Options{
		Addr:               ":0",
		Validator:          v,
		Logger:             logger,
		DeleteMode:         config.DeleteByIdentity,
		RateLimitPerMinute: 1000,
	}
	if mutate != nil {
		mutate(&opts, &storeOpts)
	}
	opts.Store = session.NewStore(storeOpts)
	opts.Exporter = export.NewExporter(logger.Slog())

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// browser carries the session cookie between requests.
type browser struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newBrowser(t *testing.T, srv *Server) *browser {
	return &browser{t: t, srv: srv}
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rr := httptest.NewRecorder()
	b.srv.Handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			b.cookie = c
		}
	}
	return rr
}

func (b *browser) submit(desc, amount, category string) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, "/entries", url.Values{
		"description": {desc},
		"amount":      {amount},
		"category":    {category},
	})
}

func (b *browser) workspace() *session.Workspace {
	b.t.Helper()
	if b.cookie == nil {
		b.t.Fatal("no session cookie issued")
	}
	ws, ok := b.srv.store.Get(b.cookie.Value)
	if !ok {
		b.t.Fatal("session not found in store")
	}
	return ws
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	rr := b.do(http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `id="entry-form"`) || !strings.Contains(rr.Body.String(), `id="entry-table"`) {
		t.Fatalf("index body missing form or table")
	}
	if b.cookie == nil || !b.cookie.HttpOnly {
		t.Fatalf("expected an HttpOnly session cookie, got %+v", b.cookie)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", rr.Header().Get("Cache-Control"))
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := b.do(http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := b.do(http.MethodGet, "/nope", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d, want 404", rr.Code)
	}
}

func TestSessionCookieReused(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	b.do(http.MethodGet, "/", nil)
	first := b.cookie.Value

	rr := b.do(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			t.Fatalf("cookie reissued for a live session")
		}
	}
	if b.cookie.Value != first {
		t.Fatalf("session changed: %s -> %s", first, b.cookie.Value)
	}
	if srv.store.Size() != 1 {
		t.Fatalf("store size=%d, want 1", srv.store.Size())
	}
}

func TestCreateEntryValidationAndSuccess(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	if rr := b.do(http.MethodGet, "/entries", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	rr := b.submit("ab", "0", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if strings.Contains(rr.Header().Get("HX-Trigger"), EventEntryCreated) {
		t.Fatal("entry:created sent for invalid input")
	}
	if n := strings.Count(rr.Body.String(), `class="field-error"`); n != 3 {
		t.Fatalf("field errors rendered=%d, want 3", n)
	}
	if len(b.workspace().Entries()) != 0 {
		t.Fatal("invalid entry appended")
	}

	rr = b.submit("Milk", "5", "groceries")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventEntryCreated) || !strings.Contains(trigger, `"count":1`) {
		t.Fatalf("HX-Trigger = %s", trigger)
	}
	if strings.Contains(trigger, EventFormReset) {
		t.Fatal("form reset without form_reset_on_submit")
	}
	if strings.Contains(rr.Body.String(), `class="field-error"`) {
		t.Fatal("valid submit rendered field errors")
	}

	entries := b.workspace().Entries()
	if len(entries) != 1 || entries[0].Description != "Milk" || entries[0].Amount != 5 || entries[0].Category != core.Groceries {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestCreateEntryPaddedDescription(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	rr := b.submit(" Mi", "5", "groceries")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	entries := b.workspace().Entries()
	if len(entries) != 1 || entries[0].Description != " Mi" {
		t.Fatalf("entries = %+v", entries)
	}

	if rr := b.submit("Mi", "5", "groceries"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unpadded short description status=%d, want 422", rr.Code)
	}
}

func TestCreateEntryJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(`{"description":"Cinema","amount":12,"category":"entertainment"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCreateEntryResetOnSubmit(t *testing.T) {
	srv := newTestServer(t, func(_ *Options, so *session.Options) { so.ResetOnSubmit = true })
	b := newBrowser(t, srv)

	rr := b.submit("Power bill", "40", "utilities")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventFormReset) {
		t.Fatalf("HX-Trigger missing form:reset: %s", rr.Header().Get("HX-Trigger"))
	}
	if strings.Contains(rr.Body.String(), `value="Power bill"`) {
		t.Fatal("form not cleared after submit")
	}
}

func TestValidateEntryOnlyAfterSubmit(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	edit := url.Values{"description": {"x"}, "amount": {"abc"}, "category": {""}}

	rr := b.do(http.MethodPost, "/entries/validate", edit)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), `class="field-error"`) {
		t.Fatal("errors shown before the first submit")
	}

	b.submit("", "", "")

	rr = b.do(http.MethodPost, "/entries/validate", edit)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if n := strings.Count(rr.Body.String(), `class="field-error"`); n != 3 {
		t.Fatalf("field errors rendered=%d, want 3", n)
	}
	if len(b.workspace().Entries()) != 0 {
		t.Fatal("validate appended an entry")
	}
}

func TestEntryTableFilterAndTotal(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	rr := b.do(http.MethodGet, "/ui/entry-table", nil)
	if strings.Contains(rr.Body.String(), "<tfoot>") {
		t.Fatal("total shown for an empty list")
	}

	b.submit("Milk", "5", "groceries")
	b.submit("Power bill", "1200", "utilities")
	b.submit("Bread", "3", "groceries")

	rr = b.do(http.MethodGet, "/ui/entry-table?filter=groceries", nil)
	body := rr.Body.String()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(body, "Milk") || !strings.Contains(body, "Bread") || strings.Contains(body, "Power bill") {
		t.Fatalf("filtered table wrong: %s", body)
	}
	if !strings.Contains(body, `<th class="num">$8</th>`) {
		t.Fatalf("total row missing: %s", body)
	}
	if b.workspace().Filter() != core.Filter(core.Groceries) {
		t.Fatalf("filter not stored: %q", b.workspace().Filter())
	}

	// The stored filter applies to a plain refresh.
	rr = b.do(http.MethodGet, "/ui/entry-table", nil)
	if strings.Contains(rr.Body.String(), "Power bill") {
		t.Fatal("refresh ignored the stored filter")
	}

	rr = b.do(http.MethodGet, "/ui/entry-table?filter=entertainment", nil)
	if !strings.Contains(rr.Body.String(), `<th class="num">$0</th>`) {
		t.Fatalf("expected zero total for an empty filtered view: %s", rr.Body.String())
	}

	rr = b.do(http.MethodGet, "/ui/entry-table?filter=all", nil)
	if !strings.Contains(rr.Body.String(), `<th class="num">$1,208</th>`) {
		t.Fatalf("expected grouped total $1,208: %s", rr.Body.String())
	}
}

func TestEntryTableUnsetFilter(t *testing.T) {
	srv := newTestServer(t, func(_ *Options, so *session.Options) { so.InitialFilter = core.FilterUnset })
	b := newBrowser(t, srv)

	b.submit("Milk", "5", "groceries")
	rr := b.do(http.MethodGet, "/ui/entry-table", nil)
	body := rr.Body.String()
	if strings.Contains(body, "<td>Milk</td>") {
		t.Fatal("unset filter showed rows")
	}
	if !strings.Contains(body, "Pick a filter") {
		t.Fatal("placeholder option missing")
	}
	if !strings.Contains(body, "<tfoot>") {
		t.Fatal("total hidden although the list is not empty")
	}
}

func TestDeleteEntryByIdentity(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	b.submit("Milk", "5", "groceries")
	b.submit("Bread", "3", "groceries")
	id := b.workspace().Entries()[0].ID

	rr := b.do(http.MethodPost, "/entries/delete", url.Values{"id": {id}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventEntryDeleted) {
		t.Fatalf("HX-Trigger missing entry:deleted: %s", rr.Header().Get("HX-Trigger"))
	}
	if strings.Contains(rr.Body.String(), "Milk") {
		t.Fatal("deleted row still rendered")
	}

	rr = b.do(http.MethodPost, "/entries/delete", url.Values{"id": {id}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", rr.Code)
	}
	if len(b.workspace().Entries()) != 1 {
		t.Fatal("miss changed the list")
	}

	if rr := b.do(http.MethodPost, "/entries/delete", url.Values{}); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing id status=%d, want 400", rr.Code)
	}
	if rr := b.do(http.MethodGet, "/entries/delete", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET delete status=%d, want 405", rr.Code)
	}
}

func TestDeleteEntryByPosition(t *testing.T) {
	srv := newTestServer(t, func(o *Options, _ *session.Options) { o.DeleteMode = config.DeleteByPosition })
	b := newBrowser(t, srv)

	b.submit("Power bill", "40", "utilities")
	b.submit("Milk", "5", "groceries")
	b.do(http.MethodGet, "/ui/entry-table?filter=groceries", nil)

	// Row 0 of the filtered view is Milk, but position 0 of the list is the
	// bill.
	rr := b.do(http.MethodPost, "/entries/delete", url.Values{"index": {"0"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	entries := b.workspace().Entries()
	if len(entries) != 1 || entries[0].Description != "Milk" {
		t.Fatalf("entries = %+v", entries)
	}
	if !strings.Contains(rr.Body.String(), `name="index"`) {
		t.Fatal("position mode should render index delete controls")
	}

	if rr := b.do(http.MethodPost, "/entries/delete", url.Values{"index": {"5"}}); rr.Code != http.StatusNotFound {
		t.Fatalf("out of range status=%d, want 404", rr.Code)
	}
}

func TestExportXLSX(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	b.submit("Milk", "5", "groceries")
	b.submit("Cinema", "12", "entertainment")
	b.do(http.MethodGet, "/ui/entry-table?filter=groceries", nil)

	rr := b.do(http.MethodGet, "/entries/export.xlsx", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "entries.xlsx") {
		t.Fatalf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %v, want header, Milk and total", rows)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := newBrowser(t, srv)
	bob := newBrowser(t, srv)

	alice.submit("Milk", "5", "groceries")
	rr := bob.do(http.MethodGet, "/ui/entry-table", nil)
	if strings.Contains(rr.Body.String(), "Milk") {
		t.Fatal("entry leaked across sessions")
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(o *Options, _ *session.Options) { o.RateLimitPerMinute = 2 })
	b := newBrowser(t, srv)

	for i := 0; i < 2; i++ {
		if rr := b.do(http.MethodGet, "/", nil); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := b.do(http.MethodGet, "/", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After not set")
	}
	// Health checks are not rate limited.
	if rr := b.do(http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
}

func TestMetricsCounters(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv)

	b.submit("Milk", "5", "groceries")
	b.submit("", "", "")

	body := b.do(http.MethodGet, "/metrics", nil).Body.String()
	for _, want := range []string{
		"entries_created_total 1",
		"entry_validation_failures_total 1",
		"sessions_active 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/static/app.css", "/static/app.js"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
			t.Errorf("%s Cache-Control = %q", path, cc)
		}
	}
}

func TestNewServerTrustedProxies(t *testing.T) {
	srv := newTestServer(t, func(o *Options, _ *session.Options) {
		o.TrustedProxies = []string{"198.51.100.0/24"}
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := srv.securityDetector.ExtractClientIP(req); got != "203.0.113.9" {
		t.Fatalf("client IP = %q, want forwarded address", got)
	}

	v, err := validation.New()
	if err != nil {
		t.Fatalf("validation.New: %v", err)
	}
	_, err = NewServer(Options{
		Validator:      v,
		Store:          session.NewStore(session.Options{TTL: time.Hour, MaxSessions: 1}),
		Logger:         applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
		TrustedProxies: []string{"not-a-cidr"},
	})
	if err == nil {
		t.Fatal("expected error for an invalid trusted proxy")
	}
}
