package document

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/report"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func boxSale() apiclient.SaleDetail {
	return apiclient.SaleDetail{
		ID:        12,
		ReceiptNo: "R-0012",
		CreatedAt: apiclient.Timestamp{Time: time.Date(2025, 5, 4, 9, 30, 0, 0, time.UTC)},
		Lines: []apiclient.SaleLine{
			{SKU: "BOX", ProductName: "Box", Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(10)},
		},
	}
}

func TestBuildReceipt(t *testing.T) {
	printed := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)
	doc := Build(boxSale(), apiclient.CompanySettings{CompanyName: " Ateasefuor Ventures "}, KindReceipt, Options{
		ServedBy:      "Ama Owusu",
		PaymentMethod: "Cash",
		PrintedAt:     printed,
	})

	assert.Equal(t, "Receipt", doc.Title)
	assert.Equal(t, "Ateasefuor Ventures", doc.Company.Name)
	assert.Equal(t, WalkInCustomer, doc.Customer)
	assert.Equal(t, "Ama Owusu", doc.ServedBy)
	assert.Equal(t, DefaultFooter, doc.Footer)
	assert.True(t, doc.ShowPrices)
	require.Len(t, doc.Lines, 1)
	assert.True(t, doc.Lines[0].LineTotal.Valid)
	assert.True(t, doc.Lines[0].LineTotal.Decimal.Equal(decimal.NewFromInt(20)))
	assert.True(t, doc.Total.Decimal.Equal(decimal.NewFromInt(20)))
	assert.True(t, doc.AmountPaid.Decimal.Equal(decimal.NewFromInt(20)))
	assert.True(t, doc.Balance.Decimal.IsZero())
	assert.Equal(t, "receipt-R-0012.pdf", doc.FileName("pdf"))
}

func TestBuildWaybillOmitsPrices(t *testing.T) {
	doc := Build(boxSale(), apiclient.CompanySettings{}, KindWaybill, Options{})

	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.Equal(t, "Box", line.Item)
	assert.True(t, line.Qty.Equal(decimal.NewFromInt(2)))
	assert.False(t, line.UnitPrice.Valid)
	assert.False(t, line.LineTotal.Valid)
	assert.False(t, doc.Total.Valid)
	assert.False(t, doc.ShowPrices)
	assert.True(t, doc.ShowSignature)
}

func TestBuildFallsBackToPrintTimeAndSKU(t *testing.T) {
	printed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	sale := apiclient.SaleDetail{ID: 5, CustomerName: "Kofi", Lines: []apiclient.SaleLine{{SKU: "SKU-X", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(3)}}}

	doc := Build(sale, apiclient.CompanySettings{Footer: "Goods sold are not returnable."}, KindProforma, Options{PrintedAt: printed})
	assert.Equal(t, printed, doc.Date)
	assert.Equal(t, "Kofi", doc.Customer)
	assert.Equal(t, "SKU-X", doc.Lines[0].Item)
	assert.Equal(t, "Goods sold are not returnable.", doc.Footer)
	assert.Equal(t, "5", doc.Reference())
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindReceipt, kind)

	kind, err = ParseKind("WAYBILL")
	require.NoError(t, err)
	assert.Equal(t, KindWaybill, kind)

	_, err = ParseKind("invoice")
	assert.Error(t, err)
}

func TestLogoDataURI(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)
	assert.Equal(t, "data:image/png;base64,"+encoded, LogoDataURI(encoded))
	assert.Equal(t, "data:image/png;base64,abc", LogoDataURI("data:image/png;base64,abc"))
	assert.Equal(t, "", LogoDataURI("%%%"))
	assert.Equal(t, "", LogoDataURI(base64.StdEncoding.EncodeToString([]byte("plain text"))))
}

func TestRendererWaybillHasNoPriceColumns(t *testing.T) {
	renderer, err := NewRenderer("₵")
	require.NoError(t, err)

	html, err := renderer.HTML(Build(boxSale(), apiclient.CompanySettings{CompanyName: "Shop"}, KindWaybill, Options{}))
	require.NoError(t, err)
	assert.Contains(t, html, "WAYBILL")
	assert.Contains(t, html, "Box")
	assert.Contains(t, html, "Received by")
	assert.NotContains(t, html, "Unit Price")
	assert.NotContains(t, html, "₵")
}

func TestRendererReceipt(t *testing.T) {
	renderer, err := NewRenderer("₵")
	require.NoError(t, err)

	logo := base64.StdEncoding.EncodeToString(pngHeader)
	html, err := renderer.HTML(Build(boxSale(), apiclient.CompanySettings{CompanyName: "Shop", LogoBase64: logo}, KindReceipt, Options{PaymentMethod: "Mobile Money"}))
	require.NoError(t, err)
	assert.Contains(t, html, "RECEIPT")
	assert.Contains(t, html, "₵ 20.00")
	assert.Contains(t, html, "Mobile Money")
	assert.Contains(t, html, "Walk-in Customer")
	assert.Contains(t, html, `src="data:image/png;base64,`)
}

type stubConverter struct {
	html string
	err  error
}

func (s *stubConverter) RenderHTML(_ context.Context, html string, _ report.Paper) ([]byte, error) {
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF"), nil
}

func TestPDFExporter(t *testing.T) {
	renderer, err := NewRenderer("₵")
	require.NoError(t, err)
	conv := &stubConverter{}
	exporter := NewPDFExporter(renderer, conv)

	pdf, err := exporter.Export(context.Background(), Build(boxSale(), apiclient.CompanySettings{}, KindProforma, Options{}))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
	assert.Contains(t, conv.html, "PROFORMA INVOICE")

	conv.err = errors.New("down")
	_, err = exporter.Export(context.Background(), Build(boxSale(), apiclient.CompanySettings{}, KindReceipt, Options{}))
	assert.ErrorContains(t, err, "receipt-R-0012.pdf")
}
