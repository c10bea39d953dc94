// Package sales serves the sales history screens: listing by date range,
// sale detail and appending lines to a recorded sale.
package sales

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/pos"
)

// HistoryLimit caps one history request.
const HistoryLimit = 1000

// Backend is the part of the API client the sales screens write through.
type Backend interface {
	GetSale(ctx context.Context, id int64) (apiclient.SaleDetail, error)
	AddSaleLines(ctx context.Context, saleID int64, in apiclient.AddLinesInput) (apiclient.AddLinesResult, error)
}

// Reference is the cached reference data the screens read.
type Reference interface {
	SalesHistory(ctx context.Context, filter apiclient.HistoryFilter) ([]apiclient.SaleSummary, error)
	Products(ctx context.Context, locationID int64) ([]apiclient.Product, error)
	Locations(ctx context.Context) ([]apiclient.Location, error)
	Invalidate(ctx context.Context) error
}

// AddLineInput is one product appended to an existing sale.
type AddLineInput struct {
	SKU        string          `validate:"required,max=64"`
	Qty        decimal.Decimal `validate:"-"`
	UnitPrice  decimal.NullDecimal
	LocationID int64 `validate:"gt=0"`
}

// Service implements the sales history use cases.
type Service struct {
	backend   Backend
	ref       Reference
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService constructs a Service.
func NewService(backend Backend, ref Reference, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, ref: ref, logger: logger, validator: validator.New()}
}

// DefaultRange is the first day of the month up to today.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// History lists sales between from and to inclusive, newest first.
func (s *Service) History(ctx context.Context, from, to time.Time) ([]apiclient.SaleSummary, error) {
	if from.After(to) {
		return nil, httpx.Invalid("From date cannot be after To date.")
	}
	rows, err := s.ref.SalesHistory(ctx, apiclient.HistoryFilter{From: from, To: to, Limit: HistoryLimit})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return rows, nil
}

// Sale loads a recorded sale with its lines.
func (s *Service) Sale(ctx context.Context, id int64) (apiclient.SaleDetail, error) {
	if id <= 0 {
		return apiclient.SaleDetail{}, httpx.Invalid("Enter a valid sale id.")
	}
	return s.backend.GetSale(ctx, id)
}

// Products lists active products for the add-line form.
func (s *Service) Products(ctx context.Context) ([]apiclient.Product, error) {
	products, err := s.ref.Products(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]apiclient.Product, 0, len(products))
	for _, p := range products {
		if p.Active() && strings.TrimSpace(p.SKU) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Locations lists stock locations.
func (s *Service) Locations(ctx context.Context) ([]apiclient.Location, error) {
	return s.ref.Locations(ctx)
}

// AddLine appends one product to a recorded sale and returns the new total.
// The quantity is rounded to the product's unit step; a missing unit price
// falls back to the selling price.
func (s *Service) AddLine(ctx context.Context, saleID int64, in AddLineInput) (decimal.Decimal, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	if saleID <= 0 {
		return decimal.Zero, httpx.Invalid("Enter a valid sale id.")
	}
	if err := s.validator.Struct(in); err != nil {
		return decimal.Zero, validationMessage(err)
	}
	if in.Qty.Sign() <= 0 {
		return decimal.Zero, httpx.Invalid("Quantity must be greater than zero.")
	}

	products, err := s.ref.Products(ctx, 0)
	if err != nil {
		return decimal.Zero, err
	}
	var product *apiclient.Product
	for i := range products {
		if products[i].SKU == in.SKU {
			product = &products[i]
			break
		}
	}
	if product == nil {
		return decimal.Zero, httpx.Invalid("Unknown product %s.", in.SKU)
	}

	step := pos.StepFor(product.Unit)
	qty := pos.RoundToStep(in.Qty, step)
	if qty.Sign() <= 0 {
		return decimal.Zero, httpx.Invalid("Quantity %s is below the smallest step of %s.", in.Qty.String(), step.String())
	}
	price := product.SellingPrice
	if in.UnitPrice.Valid {
		price = in.UnitPrice.Decimal
	}
	if price.Sign() < 0 {
		return decimal.Zero, httpx.Invalid("Unit price cannot be negative.")
	}

	result, err := s.backend.AddSaleLines(ctx, saleID, apiclient.AddLinesInput{
		LocationID: in.LocationID,
		Lines:      []apiclient.SaleLineInput{{SKU: product.SKU, Qty: qty, UnitPrice: price}},
	})
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.ref.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate catalog after add lines", slog.Any("error", err))
	}
	return result.NewTotal, nil
}

func validationMessage(err error) error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return httpx.Invalid("Check the form and try again.")
	}
	switch fieldErrs[0].Field() {
	case "SKU":
		return httpx.Invalid("Choose a product.")
	case "LocationID":
		return httpx.Invalid("Choose the location to deduct stock from.")
	}
	return httpx.Invalid("%s is invalid.", fieldErrs[0].Field())
}
