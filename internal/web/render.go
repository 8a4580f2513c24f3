package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// ListPageData is the template data for the command list page.
type ListPageData struct {
	PageData
	Commands   []command.Command
	Count      int
	Truncated  bool
	Query      string
	Category   string
	Tag        string
	Categories []command.Category
}

// DetailPageData is the template data for the command detail page.
type DetailPageData struct {
	PageData
	Command      *command.Command
	RenderedHTML template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) (*Renderer, error) {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
		"deref":      deref,
		"hasValue":   hasValue,
	}

	layoutTmpl, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"list":   "list.html",
		"detail": "detail.html",
		"error":  "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    slog.Default(),
	}, nil
}

// renderPage renders a named page with HTTP 200. An htmx request gets the
// content block only.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	block := "layout"
	if req.Header.Get("HX-Request") == "true" {
		block = "content"
	}
	r.renderBlock(w, http.StatusOK, name, block, data)
}

// renderPageStatus renders a full page with the given HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	r.renderBlock(w, status, name, "layout", data)
}

// renderBlock executes one named block of a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, name, block string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error page, or JSON when the client asks for it.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	lErr := asLsearchError(err)

	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderAPIError(w, lErr)
		return
	}

	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(lErr.Status)
		_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(lErr.Message) + `</div>`))
		return
	}

	r.renderPageStatus(w, lErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", lErr.Status),
			Version: r.version,
		},
		StatusCode: lErr.Status,
		Message:    lErr.Message,
	})
}

// asLsearchError unwraps err or converts it into an internal error.
func asLsearchError(err error) *errors.LsearchError {
	var lErr *errors.LsearchError
	if !stderrors.As(err, &lErr) {
		lErr = errors.NewInternal(err)
	}
	return lErr
}

// renderAPIError writes the structured JSON failure body.
func renderAPIError(w http.ResponseWriter, err error) {
	lErr := asLsearchError(err)
	body := map[string]any{
		"success": false,
		"error":   lErr.Message,
		"code":    string(lErr.Code),
	}
	if len(lErr.Details) > 0 {
		body["details"] = lErr.Details
	}
	renderJSON(w, lErr.Status, body)
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// deref dereferences a pointer, returning the zero value if nil.
func deref(v any) any {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Zero(rv.Type().Elem()).Interface()
		}
		return rv.Elem().Interface()
	}
	return v
}

// hasValue checks if a pointer value is non-nil.
func hasValue(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return !rv.IsNil()
	}
	return true
}
