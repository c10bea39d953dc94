// Package document projects completed sales into printable receipts,
// proforma invoices and waybills.
package document

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
)

// Kind selects the document layout.
type Kind string

const (
	KindReceipt  Kind = "receipt"
	KindProforma Kind = "proforma"
	KindWaybill  Kind = "waybill"
)

// Kinds lists the supported kinds in menu order.
var Kinds = []Kind{KindReceipt, KindProforma, KindWaybill}

// ParseKind accepts a kind name, defaulting to receipt when empty.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", KindReceipt:
		return KindReceipt, nil
	case KindProforma:
		return KindProforma, nil
	case KindWaybill:
		return KindWaybill, nil
	}
	return "", fmt.Errorf("document: unknown kind %q", raw)
}

// Title is the heading printed on the document.
func (k Kind) Title() string {
	switch k {
	case KindProforma:
		return "Proforma Invoice"
	case KindWaybill:
		return "Waybill"
	default:
		return "Receipt"
	}
}

// WalkInCustomer is printed when a sale has no customer name.
const WalkInCustomer = "Walk-in Customer"

// DefaultFooter closes documents when no branding footer is configured.
const DefaultFooter = "Thank you for your business."

// Options carries print-time details that are not part of the sale.
type Options struct {
	ServedBy      string
	PaymentMethod string
	PrintedAt     time.Time
}

// Branding is the company block at the top of a document.
type Branding struct {
	Name    string
	Address string
	Phone   string
	Website string
	// LogoURI is a data URI, empty when no usable logo is configured.
	LogoURI string
}

// Line is a printed line item. Prices are invalid on waybills.
type Line struct {
	Item      string
	SKU       string
	Qty       decimal.Decimal
	UnitPrice decimal.NullDecimal
	LineTotal decimal.NullDecimal
}

// Document is the printable view of a completed sale.
type Document struct {
	Kind          Kind
	Title         string
	Company       Branding
	SaleID        int64
	ReceiptNo     string
	Date          time.Time
	PrintedAt     time.Time
	Customer      string
	ServedBy      string
	PaymentMethod string
	LocationID    int64
	Lines         []Line
	Total         decimal.NullDecimal
	AmountPaid    decimal.NullDecimal
	Balance       decimal.NullDecimal
	ShowPrices    bool
	ShowSignature bool
	Footer        string
}

// Reference is the receipt number or, failing that, the sale id.
func (d Document) Reference() string {
	if d.ReceiptNo != "" {
		return d.ReceiptNo
	}
	return fmt.Sprintf("%d", d.SaleID)
}

// FileName is a download name such as receipt-R-0042.pdf.
func (d Document) FileName(ext string) string {
	ref := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, d.Reference())
	return fmt.Sprintf("%s-%s.%s", d.Kind, ref, strings.TrimPrefix(ext, "."))
}

// Build derives a document from a completed sale. Waybills carry item and
// quantity only.
func Build(sale apiclient.SaleDetail, branding apiclient.CompanySettings, kind Kind, opts Options) Document {
	if kind == "" {
		kind = KindReceipt
	}
	printedAt := opts.PrintedAt
	if printedAt.IsZero() {
		printedAt = time.Now()
	}
	date := sale.CreatedAt.Time
	if date.IsZero() {
		date = printedAt
	}

	doc := Document{
		Kind:  kind,
		Title: kind.Title(),
		Company: Branding{
			Name:    strings.TrimSpace(branding.CompanyName),
			Address: strings.TrimSpace(branding.Address),
			Phone:   strings.TrimSpace(branding.Phone),
			Website: strings.TrimSpace(branding.Website),
			LogoURI: LogoDataURI(branding.LogoBase64),
		},
		SaleID:        sale.ID,
		ReceiptNo:     sale.ReceiptNo,
		Date:          date,
		PrintedAt:     printedAt,
		Customer:      firstNonEmpty(sale.CustomerName, WalkInCustomer),
		ServedBy:      firstNonEmpty(opts.ServedBy, sale.ServedBy),
		PaymentMethod: firstNonEmpty(opts.PaymentMethod, sale.PaymentMethod),
		LocationID:    sale.LocationID,
		ShowPrices:    kind != KindWaybill,
		ShowSignature: kind == KindWaybill,
		Footer:        firstNonEmpty(strings.TrimSpace(branding.Footer), DefaultFooter),
		Lines:         make([]Line, 0, len(sale.Lines)),
	}

	for _, l := range sale.Lines {
		line := Line{
			Item: firstNonEmpty(l.ProductName, l.SKU),
			SKU:  l.SKU,
			Qty:  l.Qty,
		}
		if doc.ShowPrices {
			line.UnitPrice = decimal.NewNullDecimal(l.UnitPrice)
			line.LineTotal = decimal.NewNullDecimal(l.Total())
		}
		doc.Lines = append(doc.Lines, line)
	}

	if doc.ShowPrices {
		total := sale.GrandTotal()
		doc.Total = decimal.NewNullDecimal(total)
		doc.AmountPaid = decimal.NewNullDecimal(total)
		doc.Balance = decimal.NewNullDecimal(decimal.Zero)
	}
	return doc
}

// LogoDataURI turns stored base64 image data into a data URI. Values that
// are already data URIs pass through; undecodable data yields "".
func LogoDataURI(encoded string) string {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return ""
	}
	if strings.HasPrefix(encoded, "data:image/") {
		return encoded
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return ""
	}
	contentType := http.DetectContentType(raw)
	if contentType == "text/xml; charset=utf-8" && strings.Contains(string(raw[:min(len(raw), 512)]), "<svg") {
		contentType = "image/svg+xml"
	}
	if !strings.HasPrefix(contentType, "image/") {
		return ""
	}
	return "data:" + contentType + ";base64," + encoded
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
