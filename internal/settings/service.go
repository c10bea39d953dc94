// Package settings edits the company branding printed on documents.
package settings

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
)

// MaxLogoBytes caps the size of an uploaded logo.
const MaxLogoBytes = 1 << 20

// DefaultFooter is offered when no footer has been saved yet.
const DefaultFooter = "Thank you for your business."

// Backend reads and writes the branding record.
type Backend interface {
	CompanySettings(ctx context.Context) (apiclient.CompanySettings, error)
	SaveCompanySettings(ctx context.Context, in apiclient.CompanySettings) (apiclient.CompanySettings, error)
}

// Reference drops cached branding after a save.
type Reference interface {
	Invalidate(ctx context.Context) error
}

// Form is the editable part of the branding record.
type Form struct {
	CompanyName string `validate:"max=200"`
	Address     string `validate:"max=500"`
	Phone       string `validate:"max=50"`
	Website     string `validate:"max=200"`
	Footer      string `validate:"max=300"`
}

// Logo is an optional upload. Remove clears the stored logo when no new
// image is given.
type Logo struct {
	Data   []byte
	Remove bool
}

// Service coordinates branding updates.
type Service struct {
	backend   Backend
	ref       Reference
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService builds Service.
func NewService(backend Backend, ref Reference, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, ref: ref, logger: logger, validator: validator.New()}
}

// Current loads the stored branding straight from the backend.
func (s *Service) Current(ctx context.Context) (apiclient.CompanySettings, error) {
	return s.backend.CompanySettings(ctx)
}

// Save stores the form. Without a new upload the existing logo is kept.
func (s *Service) Save(ctx context.Context, form Form, logo Logo) (apiclient.CompanySettings, error) {
	form = Form{
		CompanyName: strings.TrimSpace(form.CompanyName),
		Address:     strings.TrimSpace(form.Address),
		Phone:       strings.TrimSpace(form.Phone),
		Website:     strings.TrimSpace(form.Website),
		Footer:      strings.TrimSpace(form.Footer),
	}
	if err := s.validator.Struct(form); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			return apiclient.CompanySettings{}, httpx.Invalid("%s is too long.", fieldErrs[0].Field())
		}
		return apiclient.CompanySettings{}, httpx.Invalid("Check the form and try again.")
	}

	payload := apiclient.CompanySettings{
		CompanyName: form.CompanyName,
		Address:     form.Address,
		Phone:       form.Phone,
		Website:     form.Website,
		Footer:      form.Footer,
	}
	switch {
	case len(logo.Data) > 0:
		encoded, err := EncodeLogo(logo.Data)
		if err != nil {
			return apiclient.CompanySettings{}, err
		}
		payload.LogoBase64 = encoded
	case !logo.Remove:
		current, err := s.backend.CompanySettings(ctx)
		if err != nil {
			return apiclient.CompanySettings{}, err
		}
		payload.LogoBase64 = current.LogoBase64
	}

	saved, err := s.backend.SaveCompanySettings(ctx, payload)
	if err != nil {
		return apiclient.CompanySettings{}, err
	}
	if err := s.ref.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate catalog after branding save", slog.Any("error", err))
	}
	return saved, nil
}

// EncodeLogo checks that data is a PNG or JPEG within MaxLogoBytes and
// returns it base64 encoded.
func EncodeLogo(data []byte) (string, error) {
	if len(data) > MaxLogoBytes {
		return "", httpx.Invalid("Logo must be smaller than 1 MB.")
	}
	switch http.DetectContentType(data) {
	case "image/png", "image/jpeg":
	default:
		return "", httpx.Invalid("Logo must be a PNG or JPG image.")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
