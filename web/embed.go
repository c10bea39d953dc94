// Package web holds the console's page templates and browser assets.
package web

import "embed"

// Templates holds layouts, partials, pages and printable documents.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html templates/documents/*.html
var Templates embed.FS

// Static holds the stylesheet and the small scripts served under /static.
//
//go:embed static/css/*.css static/js/*.js
var Static embed.FS
