// Package web holds the server-rendered pages: embedded html/template
// files and the echo.Renderer that executes them.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/iliyamo/sports-calendar/internal/calendar"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages rendered through the layout.
var pages = []string{"calendar.html", "login.html"}

// mdRenderer escapes raw HTML in descriptions (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Renderer implements echo.Renderer for the pages above.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates.  Times are shown in loc.
func NewRenderer(loc *time.Location) (*Renderer, error) {
	funcs := FuncMap(loc)
	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.templates[page] = t
	}
	return r, nil
}

// Render executes the layout with the named page.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

// Markdown renders a session description.  On failure the source is
// shown escaped.
func Markdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// FuncMap returns the template helpers.
func FuncMap(loc *time.Location) template.FuncMap {
	title := cases.Title(language.English)
	return template.FuncMap{
		"markdown": func(s *string) template.HTML {
			if s == nil {
				return ""
			}
			return Markdown(*s)
		},
		"when": func(t *time.Time) string {
			if t == nil {
				return "Date to be confirmed"
			}
			return t.In(loc).Format("Monday 2 January 2006, 15:04")
		},
		"clock": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.In(loc).Format("15:04")
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"monthLabel": func(t time.Time) string { return t.Format("January 2006") },
		"monthParam": func(t time.Time) string { return t.Format(calendar.MonthLayout) },
		"status":     func(s string) string { return title.String(s) },
		"blanks":     func(n int) []struct{} { return make([]struct{}, n) },
		"weekdays": func() []string {
			return []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
		},
	}
}
