package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/ops"
	"github.com/hpungsan/dxtcheck/internal/report"
)

// Handlers contains HTTP route handlers for the history viewer.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /runs: recorded runs, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	archive := r.URL.Query().Get("archive")
	status := r.URL.Query().Get("status")

	passed, err := parseStatus(status)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		Archive: ptrString(archive),
		Passed:  passed,
		Limit:   parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Validation runs",
			Version: h.renderer.version,
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Archive:    archive,
		Status:     status,
	})
}

// HandleDetail handles GET /runs/{id}: one run with its rendered report.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run ID is required"))
		return
	}

	shown, err := ops.Show(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var rendered template.HTML
	if rendered, err = report.HTMLFragment(shown.Report); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   shown.Run.ArchiveName,
			Version: h.renderer.version,
		},
		Run:        shown.Run,
		Report:     shown.Report,
		ReportHTML: rendered,
	})
}

// reportContentTypes maps the downloadable formats to their content types.
var reportContentTypes = map[report.Format]string{
	report.FormatText:     "text/plain; charset=utf-8",
	report.FormatJSON:     "application/json",
	report.FormatYAML:     "application/yaml",
	report.FormatMarkdown: "text/markdown; charset=utf-8",
	report.FormatHTML:     "text/html; charset=utf-8",
}

// HandleReport handles GET /runs/{id}/report?format=: the stored report in any format.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	shown, err := ops.Show(h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	body, err := report.Render(shown.Report, format)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", reportContentTypes[format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// HandleDelete handles DELETE /runs/{id}: permanently remove one run.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run ID is required"))
		return
	}

	result, err := ops.Delete(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/runs")
		w.WriteHeader(http.StatusOK)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/runs", http.StatusFound)
}

// HandlePurge handles POST /runs/purge: permanently delete recorded runs.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	input := ops.PurgeInput{
		Archive: ptrString(r.FormValue("archive")),
	}

	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/runs", http.StatusFound)
}

// parseStatus maps the status filter to a verdict.
func parseStatus(s string) (*bool, error) {
	switch s {
	case "":
		return nil, nil
	case "passed":
		v := true
		return &v, nil
	case "failed":
		v := false
		return &v, nil
	}
	return nil, errors.NewInvalidRequest("status must be \"passed\" or \"failed\"")
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
