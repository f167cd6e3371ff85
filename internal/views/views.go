// Package views loads the server-rendered HTML pages.
package views

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
)

// Pages rendered by the service. Both live in the static directory.
var Pages = []string{"index.html", "create_task.html"}

type Views struct {
	tmpl *template.Template
}

// Load parses every page in Pages from dir.
func Load(dir string) (*Views, error) {
	files := make([]string, 0, len(Pages))
	for _, p := range Pages {
		files = append(files, filepath.Join(dir, p))
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"side": side,
		"abs":  abs,
	}).ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("parse templates in %s: %w", dir, err)
	}
	return &Views{tmpl: tmpl}, nil
}

func (v *Views) Render(w io.Writer, name string, data any) error {
	return v.tmpl.ExecuteTemplate(w, name, data)
}

// side names who is ahead for a score difference.
func side(difference int64) string {
	switch {
	case difference > 0:
		return "A"
	case difference < 0:
		return "B"
	default:
		return ""
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
