// Package web holds the HTML catalog pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates
var assets embed.FS

var funcMap = template.FuncMap{
	"mul": func(a, b float32) float32 { return a * b },
}

// Templates are the parsed catalog pages. Each page is its own clone of
// base.html so the "content" blocks do not collide.
type Templates struct {
	home   *template.Template
	search *template.Template
}

// Parse builds the page set from the embedded files.
func Parse() (*Templates, error) {
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(assets, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}
	home, err := page(base, "templates/home.html")
	if err != nil {
		return nil, err
	}
	search, err := page(base, "templates/search.html")
	if err != nil {
		return nil, err
	}
	return &Templates{home: home, search: search}, nil
}

func page(base *template.Template, file string) (*template.Template, error) {
	t, err := base.Clone()
	if err != nil {
		return nil, err
	}
	t, err = t.ParseFS(assets, file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return t, nil
}

// Home renders the catalog listing.
func (t *Templates) Home(w io.Writer, data HomeData) error {
	return t.home.ExecuteTemplate(w, "base.html", data)
}

// Search renders semantic search results.
func (t *Templates) Search(w io.Writer, data SearchData) error {
	return t.search.ExecuteTemplate(w, "base.html", data)
}
