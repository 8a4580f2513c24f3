package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/config"
	"github.com/hpungsan/lsearch/internal/ops"
	"github.com/hpungsan/lsearch/internal/ui"
)

// Handlers contains HTTP route handlers for the web UI and the JSON API.
type Handlers struct {
	store    ops.Store
	syncer   *ops.Syncer
	catalog  *catalog.Catalog
	cfg      *config.Config
	logger   *slog.Logger
	renderer *Renderer
}

// HandleList handles GET /commands, the filterable command list.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.SearchInput{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Limit:    parseIntParam(r, "limit", 0),
	}

	result, err := ops.Search(r.Context(), h.store, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Commands",
			Version: h.renderer.version,
		},
		Commands:   result.Commands,
		Count:      result.Count,
		Truncated:  result.Truncated,
		Query:      input.Query,
		Category:   command.Normalize(input.Category),
		Tag:        input.Tag,
		Categories: command.Categories,
	})
}

// HandleDetail handles GET /commands/{name}, a single command card.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	c, err := ops.Get(r.Context(), h.store, r.PathValue("name"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   c.Command,
			Version: h.renderer.version,
		},
		Command:      c,
		RenderedHTML: renderMarkdown(ui.Markdown(*c)),
	})
}

// HandleCategoryCSS handles GET /static/categories.css. The badge colors
// come from the same palette the terminal cards use.
func (h *Handlers) HandleCategoryCSS(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	for _, c := range command.Categories {
		fmt.Fprintf(&b, ".cat-%s { border-color: %s; color: %s; }\n", c, ui.CategoryColor(c), ui.CategoryColor(c))
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = w.Write([]byte(b.String()))
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
