// Package inventory hosts the stock screens: product maintenance, goods
// received notes, transfers between locations and the on-hand report.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductForm is the create/edit payload for a product. SKU is ignored on edit.
type ProductForm struct {
	SKU          string          `validate:"max=64"`
	Name         string          `validate:"required,max=200"`
	Barcode      string          `validate:"max=64"`
	Unit         string          `validate:"required"`
	TaxRate      decimal.Decimal `validate:"-"`
	SellingPrice decimal.Decimal `validate:"-"`
}

// ReceiptLine is one row of the receive stock form.
type ReceiptLine struct {
	SKU        string
	Qty        decimal.Decimal
	UnitCost   decimal.Decimal
	LotCode    string
	Expiry     time.Time
	LocationID int64
}

// postable reports whether the row carries a product, a quantity and a cost.
func (l ReceiptLine) postable() bool {
	return l.SKU != "" && l.Qty.Sign() > 0 && l.UnitCost.Sign() > 0
}

// TransferLine is one row of the stock transfer form.
type TransferLine struct {
	SKU string
	Qty decimal.Decimal
}

// Transfer moves stock between two locations.
type Transfer struct {
	FromLocationID int64
	ToLocationID   int64
	Lines          []TransferLine
}

// OnHand is the inventory report flattened for display and CSV export.
type OnHand struct {
	Columns []string
	Rows    [][]string
}
