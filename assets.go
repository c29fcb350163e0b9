// Package portal provides the embedded templates and static files of the admin portal.
package portal

import "embed"

// In dev mode templates and static files are read from disk so edits show up
// without a rebuild. Otherwise these embedded copies are served.

//go:embed all:frontend/static
var StaticFS embed.FS

//go:embed all:frontend/templates
var TemplateFS embed.FS
