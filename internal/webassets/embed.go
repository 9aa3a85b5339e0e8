package webassets

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
)

// templates/ holds one page per file plus layout.html with shared blocks;
// static/ is served under /static/.
//
//go:embed templates static
var embedded embed.FS

// Templates parses every page template. Pages are looked up by file name,
// e.g. "admin.html".
func Templates() (*template.Template, error) {
	t, err := template.New("").ParseFS(embedded, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("webassets: parse templates: %w", err)
	}
	return t, nil
}

// MustTemplates is Templates for package initialization.
func MustTemplates() *template.Template {
	t, err := Templates()
	if err != nil {
		panic(err)
	}
	return t
}

func StaticFS() fs.FS {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		panic(fmt.Errorf("webassets: static subfs: %w", err))
	}
	return sub
}
