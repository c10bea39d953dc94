package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	currency  string
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        *shared.Principal
	Currency    string
	Data        any
}

// Funcs returns the helpers available to every template.
func Funcs(currency string) template.FuncMap {
	return template.FuncMap{
		"formatDate":     FormatDate,
		"formatDateTime": FormatDateTime,
		"money": func(d decimal.Decimal) string {
			return FormatMoney(currency, d)
		},
		"moneyNull": func(d decimal.NullDecimal) string {
			if !d.Valid {
				return ""
			}
			return FormatMoney(currency, d.Decimal)
		},
		"qty": FormatQty,
		"isoDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(time.DateOnly)
		},
		"lowStock": func(d decimal.NullDecimal) bool {
			return d.Valid && d.Decimal.LessThanOrEqual(decimal.NewFromInt(5))
		},
	}
}

// NewEngine parses templates at build-time.
func NewEngine(currency string) (*Engine, error) {
	tpl, err := template.New("root").Funcs(Funcs(currency)).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, currency: currency}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if data.Currency == "" {
		data.Currency = e.currency
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderStatus renders with a non-default status code.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return e.Render(w, name, data)
}

// PageData collects what every page needs from the request: the CSRF token,
// the oldest pending flash and the signed-in user.
func PageData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	var token string
	if csrf != nil {
		token, _ = csrf.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	return TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        shared.PrincipalFromContext(r.Context()),
		Data:        data,
	}
}

// RedirectWithFlash queues a flash message and redirects with 303.
func RedirectWithFlash(w http.ResponseWriter, r *http.Request, target, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
