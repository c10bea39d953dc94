package document

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/marvenixx/pos-console/internal/view"
	"github.com/marvenixx/pos-console/report"
	"github.com/marvenixx/pos-console/web"
)

const documentTemplate = "documents/sale.html"

// Renderer produces self-printable HTML for documents.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the document templates.
func NewRenderer(currency string) (*Renderer, error) {
	funcMap := view.Funcs(currency)
	funcMap["logo"] = func(uri string) template.URL {
		if !strings.HasPrefix(uri, "data:image/") {
			return ""
		}
		return template.URL(uri)
	}
	funcMap["upper"] = strings.ToUpper
	tpl, err := template.New("documents").Funcs(funcMap).ParseFS(web.Templates, "templates/documents/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &Renderer{templates: tpl}, nil
}

// Render writes the document as HTML.
func (r *Renderer) Render(w io.Writer, doc Document) error {
	if r == nil {
		return fmt.Errorf("document renderer not initialised")
	}
	return r.templates.ExecuteTemplate(w, documentTemplate, doc)
}

// HTML renders the document into a string.
func (r *Renderer) HTML(doc Document) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.Render(buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PDFConverter turns HTML into PDF bytes.
type PDFConverter interface {
	RenderHTML(ctx context.Context, html string, paper report.Paper) ([]byte, error)
}

// PDFExporter renders documents through Gotenberg.
type PDFExporter struct {
	renderer  *Renderer
	converter PDFConverter
}

// NewPDFExporter wires the HTML renderer to a converter.
func NewPDFExporter(renderer *Renderer, converter PDFConverter) *PDFExporter {
	return &PDFExporter{renderer: renderer, converter: converter}
}

// Export returns the PDF bytes for doc.
func (p *PDFExporter) Export(ctx context.Context, doc Document) ([]byte, error) {
	if p == nil || p.converter == nil {
		return nil, fmt.Errorf("pdf exporter not initialized")
	}
	html, err := p.renderer.HTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	pdf, err := p.converter.RenderHTML(ctx, html, report.A4)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", doc.FileName("pdf"), err)
	}
	return pdf, nil
}
