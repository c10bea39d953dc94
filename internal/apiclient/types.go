package apiclient

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors a catalog entry. Available is only set by the stock-aware
// listing and stays invalid when the backend does not track it.
type Product struct {
	ID           int64               `json:"id"`
	SKU          string              `json:"sku"`
	Name         string              `json:"name"`
	Barcode      string              `json:"barcode,omitempty"`
	Unit         string              `json:"unit"`
	SellingPrice decimal.Decimal     `json:"selling_price"`
	TaxRate      decimal.Decimal     `json:"tax_rate"`
	Available    decimal.NullDecimal `json:"available_qty"`
	IsActive     *bool               `json:"is_active,omitempty"`
}

// Active reports whether the product can be sold. Missing flags mean active.
func (p Product) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

// ProductInput is the payload for creating or updating a product.
type ProductInput struct {
	SKU          string          `json:"sku,omitempty"`
	Name         string          `json:"name"`
	Barcode      *string         `json:"barcode"`
	Unit         string          `json:"unit"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// MarshalJSON sends the amounts as JSON numbers.
func (p ProductInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SKU          string      `json:"sku,omitempty"`
		Name         string      `json:"name"`
		Barcode      *string     `json:"barcode"`
		Unit         string      `json:"unit"`
		TaxRate      json.Number `json:"tax_rate"`
		SellingPrice json.Number `json:"selling_price"`
	}{p.SKU, p.Name, p.Barcode, p.Unit, number(p.TaxRate), number(p.SellingPrice)})
}

// Location is a stock holding place.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SaleLineInput is one line of a sale submission.
type SaleLineInput struct {
	SKU       string          `json:"sku"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// MarshalJSON sends the amounts as JSON numbers.
func (l SaleLineInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SKU       string      `json:"sku"`
		Qty       json.Number `json:"qty"`
		UnitPrice json.Number `json:"unit_price"`
	}{l.SKU, number(l.Qty), number(l.UnitPrice)})
}

// SaleInput is the body of POST /sales.
type SaleInput struct {
	CustomerName  *string         `json:"customer_name"`
	LocationID    int64           `json:"location_id"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Lines         []SaleLineInput `json:"lines"`
}

// LowStockItem is a post-sale stock warning.
type LowStockItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Remaining decimal.Decimal `json:"remaining"`
}

// SaleResult is the backend's answer to a sale submission.
type SaleResult struct {
	SaleID    int64           `json:"sale_id"`
	ReceiptNo string          `json:"receipt_no,omitempty"`
	Total     decimal.Decimal `json:"total"`
	LowStock  []LowStockItem  `json:"low_stock,omitempty"`
}

// SaleLine is a persisted sale line.
type SaleLine struct {
	SKU         string              `json:"sku"`
	ProductName string              `json:"product_name"`
	Qty         decimal.Decimal     `json:"qty"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	LineTotal   decimal.NullDecimal `json:"line_total"`
}

// Total returns the backend line total or qty × unit price when absent.
func (l SaleLine) Total() decimal.Decimal {
	if l.LineTotal.Valid {
		return l.LineTotal.Decimal
	}
	return l.Qty.Mul(l.UnitPrice)
}

// UnmarshalJSON accepts "name" and "product_sku" as aliases.
func (l *SaleLine) UnmarshalJSON(data []byte) error {
	type plain SaleLine
	var aux struct {
		plain
		Name       string `json:"name"`
		ProductSKU string `json:"product_sku"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = SaleLine(aux.plain)
	if l.ProductName == "" {
		l.ProductName = aux.Name
	}
	if l.SKU == "" {
		l.SKU = aux.ProductSKU
	}
	return nil
}

// SaleDetail is a completed sale as returned by GET /sales/{id}.
type SaleDetail struct {
	ID            int64
	ReceiptNo     string
	CreatedAt     Timestamp
	CustomerName  string
	LocationID    int64
	ServedBy      string
	PaymentMethod string
	Total         decimal.NullDecimal
	Lines         []SaleLine
}

// GrandTotal returns the recorded total, falling back to the sum of lines.
func (s SaleDetail) GrandTotal() decimal.Decimal {
	if s.Total.Valid {
		return s.Total.Decimal
	}
	sum := decimal.Zero
	for _, line := range s.Lines {
		sum = sum.Add(line.Total())
	}
	return sum
}

type saleHeader struct {
	ID            int64               `json:"id"`
	SaleID        int64               `json:"sale_id"`
	ReceiptNo     string              `json:"receipt_no"`
	CreatedAt     Timestamp           `json:"created_at"`
	CustomerName  *string             `json:"customer_name"`
	LocationID    *int64              `json:"location_id"`
	ServedBy      string              `json:"served_by"`
	PaymentMethod string              `json:"payment_method"`
	Total         decimal.NullDecimal `json:"total"`
	TotalAmount   decimal.NullDecimal `json:"total_amount"`
	Lines         []SaleLine          `json:"lines"`
}

// UnmarshalJSON accepts both {"sale": {...}, "lines": [...]} and a flat
// object carrying its own lines.
func (s *SaleDetail) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Sale  *saleHeader `json:"sale"`
		Lines []SaleLine  `json:"lines"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	header := envelope.Sale
	lines := envelope.Lines
	if header == nil {
		var flat saleHeader
		if err := json.Unmarshal(data, &flat); err != nil {
			return err
		}
		header = &flat
	}
	if len(lines) == 0 {
		lines = header.Lines
	}

	*s = SaleDetail{
		ID:            header.ID,
		ReceiptNo:     strings.TrimSpace(header.ReceiptNo),
		CreatedAt:     header.CreatedAt,
		ServedBy:      header.ServedBy,
		PaymentMethod: header.PaymentMethod,
		Total:         header.Total,
		Lines:         lines,
	}
	if s.ID == 0 {
		s.ID = header.SaleID
	}
	if header.CustomerName != nil {
		s.CustomerName = strings.TrimSpace(*header.CustomerName)
	}
	if header.LocationID != nil {
		s.LocationID = *header.LocationID
	}
	if !s.Total.Valid || s.Total.Decimal.IsZero() {
		if header.TotalAmount.Valid {
			s.Total = header.TotalAmount
		}
	}
	return nil
}

// SaleSummary is a row of the sales history listing.
type SaleSummary struct {
	ID           int64           `json:"id"`
	ReceiptNo    string          `json:"receipt_no"`
	CreatedAt    Timestamp       `json:"created_at"`
	CustomerName string          `json:"customer_name"`
	LocationID   int64           `json:"location_id"`
	Total        decimal.Decimal `json:"total"`
}

// AddLinesInput is the body of POST /sales/{id}/add_lines.
type AddLinesInput struct {
	LocationID int64           `json:"location_id"`
	Lines      []SaleLineInput `json:"lines"`
}

// AddLinesResult carries the recomputed sale total.
type AddLinesResult struct {
	NewTotal decimal.Decimal `json:"new_total"`
}

// CompanySettings holds the branding printed on documents.
type CompanySettings struct {
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Footer      string `json:"footer"`
	LogoBase64  string `json:"logo_base64"`
}

// ReceiptLine is one line of a goods received note.
type ReceiptLine struct {
	ProductSKU   string          `json:"product_sku"`
	Qty          decimal.Decimal `json:"qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	LotCode      *string         `json:"lot_code"`
	ExpiryDate   *string         `json:"expiry_date"`
	ToLocationID int64           `json:"to_location_id"`
}

// MarshalJSON sends the amounts as JSON numbers.
func (l ReceiptLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductSKU   string      `json:"product_sku"`
		Qty          json.Number `json:"qty"`
		UnitCost     json.Number `json:"unit_cost"`
		LotCode      *string     `json:"lot_code"`
		ExpiryDate   *string     `json:"expiry_date"`
		ToLocationID int64       `json:"to_location_id"`
	}{l.ProductSKU, number(l.Qty), number(l.UnitCost), l.LotCode, l.ExpiryDate, l.ToLocationID})
}

// ReceiptInput is the body of POST /receipts.
type ReceiptInput struct {
	Supplier *string       `json:"supplier"`
	Lines    []ReceiptLine `json:"lines"`
}

// TransferLine moves a quantity of one product.
type TransferLine struct {
	ProductSKU string          `json:"product_sku"`
	Qty        decimal.Decimal `json:"qty"`
}

// MarshalJSON sends the quantity as a JSON number.
func (l TransferLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductSKU string      `json:"product_sku"`
		Qty        json.Number `json:"qty"`
	}{l.ProductSKU, number(l.Qty)})
}

// number renders d for the backend, which validates amounts as JSON numbers.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// TransferInput is the body of POST /stock_transfer.
type TransferInput struct {
	FromLocationID int64          `json:"from_location_id"`
	ToLocationID   int64          `json:"to_location_id"`
	Lines          []TransferLine `json:"lines"`
}

// DailyTotal is a point on the sales trend.
type DailyTotal struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// SalesSummary aggregates revenue for the dashboard.
type SalesSummary struct {
	SalesToday     decimal.Decimal `json:"sales_today"`
	SalesThisMonth decimal.Decimal `json:"sales_this_month"`
	SalesThisYear  decimal.Decimal `json:"sales_this_year"`
	Daily          []DailyTotal    `json:"daily"`
}

// InventoryReport is the on-hand listing. Rows keep the backend's columns.
type InventoryReport struct {
	Items []map[string]any `json:"items"`
}

// Timestamp decodes the handful of datetime layouts the backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON parses known layouts; unknown or empty values yield the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Time = time.Time{}
	if raw == nil {
		return nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

// MarshalJSON writes RFC 3339 or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}
