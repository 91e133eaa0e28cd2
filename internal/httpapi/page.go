package httpapi

import (
	_ "embed"
	"html/template"

	"dagocoffee/counter/internal/app"
)

//go:embed templates/page.html
var pageSource string

// All screen fields are auto-escaped by html/template.
var pageTmpl = template.Must(template.New("page").Parse(pageSource))

type pageData struct {
	Screen    app.Screen
	CSRFToken string
}
