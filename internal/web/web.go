package web

import (
	"embed"
	"html/template"
)

// The path is relative to this file (internal/web/web.go).
//
//go:embed templates
var assets embed.FS

var funcMap = template.FuncMap{
	"tl": FormatTL,
}

// parsePage builds base.html + the named page. Pages are parsed
// separately to avoid block collisions.
func parsePage(page string) (*template.Template, error) {
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(assets, "templates/base.html")
	if err != nil {
		return nil, err
	}
	return base.ParseFS(assets, "templates/"+page)
}
