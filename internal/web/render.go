package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/display"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/gallery"
	"github.com/hpungsan/folio/internal/playback"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// GalleryPageData is the template data for the gallery page.
type GalleryPageData struct {
	PageData
	Headline        template.HTML
	Images          []gallery.ImageSlot
	Audio           *gallery.AudioDescriptor
	Attempt         *playback.Attempt
	ControlsVisible bool
	CanEdit         bool
	Params          config.GalleryParams
}

// SlotView is one row of the editor's image list.
type SlotView struct {
	Index int
	Slot  gallery.ImageSlot
}

// EditPageData is the template data for the editor.
type EditPageData struct {
	PageData
	Text    string
	Preview template.HTML
	Slots   []SlotView
	Audio   *gallery.AudioDescriptor
	Notice  string
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
	log       *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, log *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":      func(a, b int) int { return a + b },
		"mediaURL": mediaURL,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"gallery": "gallery.html",
		"edit":    "edit.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error("template execution error", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	fErr := asFolioError(err)
	if fErr.Code == errors.ErrInternal {
		r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
	}

	status := fErr.Status
	message := fErr.Message

	// HTMX request: return HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		body := map[string]any{
			"code":    string(fErr.Code),
			"message": message,
			"status":  status,
		}
		if len(fErr.Details) > 0 {
			body["details"] = fErr.Details
		}
		renderJSON(w, status, map[string]any{"error": body})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

func asFolioError(err error) *errors.FolioError {
	var fErr *errors.FolioError
	if !stderrors.As(err, &fErr) {
		fErr = errors.NewInternal(err)
	}
	return fErr
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// headline renders display text the way the gallery shows it.
func headline(text string) template.HTML {
	return display.HTML(display.Format(text))
}

// mediaURL lets image and audio sources through html/template's URL filter.
// Only data: URIs of media types and http(s) URLs pass; anything else is
// replaced with an inert fragment.
func mediaURL(uri string) template.URL {
	lower := strings.ToLower(uri)
	switch {
	case strings.HasPrefix(lower, "data:image/"),
		strings.HasPrefix(lower, "data:audio/"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "http://"):
		return template.URL(uri)
	}
	return template.URL("#")
}
