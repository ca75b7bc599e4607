// Package assets provides embedded static assets for the application.
package assets

import (
	"embed"
)

// Templates holds the built-in print layout templates, one JSON document
// per file under templates/. The file stem is the template name.
//
//go:embed templates/*.json
var Templates embed.FS

// TemplatesDir is the directory inside Templates holding the documents.
const TemplatesDir = "templates"
