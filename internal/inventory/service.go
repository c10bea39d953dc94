package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/pos"
)

// Backend is the part of the API client the stock screens write through.
type Backend interface {
	CreateProduct(ctx context.Context, in apiclient.ProductInput) (apiclient.Product, error)
	UpdateProduct(ctx context.Context, id int64, in apiclient.ProductInput) (apiclient.Product, error)
	DeactivateProduct(ctx context.Context, id int64) error
	PostReceipt(ctx context.Context, in apiclient.ReceiptInput) (json.RawMessage, error)
	PostStockTransfer(ctx context.Context, in apiclient.TransferInput) (json.RawMessage, error)
	InventoryReport(ctx context.Context) (apiclient.InventoryReport, error)
}

// Reference is the cached reference data the screens read.
type Reference interface {
	Products(ctx context.Context, locationID int64) ([]apiclient.Product, error)
	Locations(ctx context.Context) ([]apiclient.Location, error)
	Invalidate(ctx context.Context) error
}

// Service coordinates inventory operations.
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

// Products lists the whole catalog ordered by id, inactive products included.
func (s *Service) Products(ctx context.Context) ([]apiclient.Product, error) {
	products, err := s.ref.Products(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := append([]apiclient.Product(nil), products...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Product finds one product by id.
func (s *Service) Product(ctx context.Context, id int64) (apiclient.Product, error) {
	products, err := s.ref.Products(ctx, 0)
	if err != nil {
		return apiclient.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return apiclient.Product{}, fmt.Errorf("inventory: product %d: %w", id, httpx.ErrNotFound)
}

// FormData loads the products and locations the stock forms offer. Both
// reads run concurrently.
func (s *Service) FormData(ctx context.Context) ([]apiclient.Product, []apiclient.Location, error) {
	var (
		products  []apiclient.Product
		locations []apiclient.Location
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := s.ref.Products(gctx, 0)
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
		for _, p := range all {
			if p.Active() && p.SKU != "" {
				products = append(products, p)
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		locations, err = s.ref.Locations(gctx)
		if err != nil {
			return fmt.Errorf("locations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return products, locations, nil
}

// ============================================================================
// PRODUCTS
// ============================================================================

func (s *Service) productInput(form ProductForm) (apiclient.ProductInput, error) {
	form.SKU = strings.TrimSpace(form.SKU)
	form.Name = strings.TrimSpace(form.Name)
	form.Barcode = strings.TrimSpace(form.Barcode)
	form.Unit = strings.TrimSpace(form.Unit)
	if err := s.validator.Struct(form); err != nil {
		return apiclient.ProductInput{}, productValidation(err)
	}
	if !knownUnit(form.Unit) {
		return apiclient.ProductInput{}, httpx.Invalid("Choose a unit from the list.")
	}
	if form.SellingPrice.Sign() < 0 {
		return apiclient.ProductInput{}, httpx.Invalid("Selling price cannot be negative.")
	}
	if form.TaxRate.Sign() < 0 {
		return apiclient.ProductInput{}, httpx.Invalid("Tax rate cannot be negative.")
	}
	in := apiclient.ProductInput{
		SKU:          form.SKU,
		Name:         form.Name,
		Unit:         form.Unit,
		TaxRate:      form.TaxRate,
		SellingPrice: form.SellingPrice,
	}
	if form.Barcode != "" {
		barcode := form.Barcode
		in.Barcode = &barcode
	}
	return in, nil
}

// CreateProduct registers a product. A blank SKU is assigned by the backend.
func (s *Service) CreateProduct(ctx context.Context, form ProductForm) (apiclient.Product, error) {
	in, err := s.productInput(form)
	if err != nil {
		return apiclient.Product{}, err
	}
	created, err := s.backend.CreateProduct(ctx, in)
	if err != nil {
		return apiclient.Product{}, err
	}
	s.invalidate(ctx, "create product")
	return created, nil
}

// UpdateProduct edits a product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, form ProductForm) (apiclient.Product, error) {
	if id <= 0 {
		return apiclient.Product{}, httpx.Invalid("Choose a product.")
	}
	form.SKU = ""
	in, err := s.productInput(form)
	if err != nil {
		return apiclient.Product{}, err
	}
	updated, err := s.backend.UpdateProduct(ctx, id, in)
	if err != nil {
		return apiclient.Product{}, err
	}
	s.invalidate(ctx, "update product")
	return updated, nil
}

// DeactivateProduct hides a product from POS and receiving.
func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return httpx.Invalid("Choose a product.")
	}
	if err := s.backend.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "deactivate product")
	return nil
}

// ============================================================================
// RECEIVE AND TRANSFER
// ============================================================================

// Receive posts a goods received note. Rows without a product, a positive
// quantity and a positive unit cost are dropped; at least one must remain.
// It returns the backend's reference for the note when it sends one.
func (s *Service) Receive(ctx context.Context, supplier string, lines []ReceiptLine) (string, error) {
	in := apiclient.ReceiptInput{}
	if supplier = strings.TrimSpace(supplier); supplier != "" {
		in.Supplier = &supplier
	}
	for _, line := range lines {
		line.SKU = strings.TrimSpace(line.SKU)
		if !line.postable() {
			continue
		}
		if line.LocationID <= 0 {
			return "", httpx.Invalid("Choose the receiving location for %s.", line.SKU)
		}
		out := apiclient.ReceiptLine{
			ProductSKU:   line.SKU,
			Qty:          line.Qty,
			UnitCost:     line.UnitCost,
			ToLocationID: line.LocationID,
		}
		if lot := strings.TrimSpace(line.LotCode); lot != "" {
			out.LotCode = &lot
		}
		if !line.Expiry.IsZero() {
			expiry := line.Expiry.Format(time.DateOnly)
			out.ExpiryDate = &expiry
		}
		in.Lines = append(in.Lines, out)
	}
	if len(in.Lines) == 0 {
		return "", httpx.Invalid("No valid lines to post. Please enter quantity and unit cost.")
	}
	raw, err := s.backend.PostReceipt(ctx, in)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, "receive stock")
	return reference(raw, "receipt_id", "grn_id", "id"), nil
}

// Transfer moves stock between two different locations. Rows with a zero
// quantity are not sent; at least one positive row is required.
func (s *Service) Transfer(ctx context.Context, t Transfer) (string, error) {
	if t.FromLocationID <= 0 || t.ToLocationID <= 0 {
		return "", httpx.Invalid("Choose both locations.")
	}
	if t.FromLocationID == t.ToLocationID {
		return "", httpx.Invalid("From and To locations must be different.")
	}
	in := apiclient.TransferInput{FromLocationID: t.FromLocationID, ToLocationID: t.ToLocationID}
	for _, line := range t.Lines {
		sku := strings.TrimSpace(line.SKU)
		if line.Qty.Sign() < 0 {
			return "", httpx.Invalid("Quantity for %s cannot be negative.", sku)
		}
		if sku == "" || line.Qty.Sign() == 0 {
			continue
		}
		in.Lines = append(in.Lines, apiclient.TransferLine{ProductSKU: sku, Qty: line.Qty})
	}
	if len(in.Lines) == 0 {
		return "", httpx.Invalid("At least one line must have a quantity > 0.")
	}
	raw, err := s.backend.PostStockTransfer(ctx, in)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, "stock transfer")
	return reference(raw, "transfer_id", "id"), nil
}

// ============================================================================
// ON HAND
// ============================================================================

var preferredColumns = []string{
	"sku", "product_sku", "name", "product_name", "unit",
	"location", "location_name", "location_id",
	"qty", "qty_on_hand", "on_hand", "quantity",
}

// OnHand fetches the inventory report and lays it out as a table. Known
// columns come first, the rest follow alphabetically.
func (s *Service) OnHand(ctx context.Context) (OnHand, error) {
	report, err := s.backend.InventoryReport(ctx)
	if err != nil {
		return OnHand{}, err
	}
	seen := make(map[string]struct{})
	for _, item := range report.Items {
		for key := range item {
			seen[key] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for _, key := range preferredColumns {
		if _, ok := seen[key]; ok {
			columns = append(columns, key)
			delete(seen, key)
		}
	}
	rest := make([]string, 0, len(seen))
	for key := range seen {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	columns = append(columns, rest...)

	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cell(item[col])
		}
		rows = append(rows, row)
	}
	return OnHand{Columns: columns, Rows: rows}, nil
}

func cell(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case json.Number:
		return value.String()
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(raw)
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Service) invalidate(ctx context.Context, action string) {
	if err := s.ref.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate catalog after "+action, slog.Any("error", err))
	}
}

// reference pulls the first present id-like field from a backend answer.
func reference(raw json.RawMessage, keys ...string) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			return cell(v)
		}
	}
	return ""
}

func knownUnit(unit string) bool {
	for _, u := range pos.Units {
		if u == unit {
			return true
		}
	}
	return false
}

func productValidation(err error) error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return httpx.Invalid("Check the form and try again.")
	}
	fe := fieldErrs[0]
	switch {
	case fe.Field() == "Name" && fe.Tag() == "required":
		return httpx.Invalid("Name is required.")
	case fe.Field() == "Unit":
		return httpx.Invalid("Choose a unit from the list.")
	case fe.Tag() == "max":
		return httpx.Invalid("%s is too long.", fe.Field())
	}
	return httpx.Invalid("%s is invalid.", fe.Field())
}
