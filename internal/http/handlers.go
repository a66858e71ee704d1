package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	applog "expenses/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady reports whether templates and the validator are in place
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.validator == nil {
		checks["validator"] = "failed: schema not compiled"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["validator"] = "ok"
	}

	checks["sessions"] = map[string]any{
		"active": s.store.Size(),
		"status": "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	m := s.appMetrics

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_requests_in_flight", "gauge", "Requests currently being served", traceMetrics.InFlight)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("entries_created_total", "counter", "Entries appended to a workspace", m.entriesCreated.Load())
	metric("entries_deleted_total", "counter", "Entries removed from a workspace", m.entriesDeleted.Load())
	metric("entry_delete_misses_total", "counter", "Delete requests that matched no entry", m.deleteMisses.Load())
	metric("entry_validation_failures_total", "counter", "Submissions rejected by validation", m.validationFailures.Load())
	metric("exports_total", "counter", "Spreadsheet exports served", m.exports.Load())
	metric("sessions_active", "gauge", "Live workspaces", s.store.Size())
	metric("sessions_created_total", "counter", "Workspaces opened", m.sessionsCreated.Load())
	metric("sessions_evicted_total", "counter", "Workspaces expired or evicted", m.sessionsEvicted.Load())
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(m.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ws := s.workspace(w, r)
	data := pageData{
		Form:  newFormView(ws.Form(), ""),
		Table: newTableView(ws.Table(), s.byPosition()),
	}

	body, err := s.render("index.html", data)
	if err != nil {
		s.events.LogError(r.Context(), "Index template execution failed", err, applog.ComponentTemplate, applog.OpRender, nil)
		InternalServerError("Could not render page").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}
