package pos

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
)

// Phase is the checkout lifecycle of the current sale.
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseBuilding   Phase = "building"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
)

// CartLine is one product in the cart. Quantity is always a positive
// multiple of the unit step.
type CartLine struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal is quantity × unit price.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Step is the quantity granularity of the line's unit.
func (l CartLine) Step() decimal.Decimal {
	return StepFor(l.Unit)
}

// CompletedSale records the outcome of the last successful checkout.
type CompletedSale struct {
	SaleID        int64                    `json:"sale_id"`
	ReceiptNo     string                   `json:"receipt_no,omitempty"`
	Total         decimal.Decimal          `json:"total"`
	PaymentMethod PaymentMethod            `json:"payment_method"`
	CustomerName  string                   `json:"customer_name,omitempty"`
	LowStock      []apiclient.LowStockItem `json:"low_stock,omitempty"`
	CompletedAt   time.Time                `json:"completed_at"`
}

// Snapshot is an immutable copy of controller state. It is what observers
// receive and what the session store persists between requests.
type Snapshot struct {
	Lines        []CartLine     `json:"lines"`
	LocationID   int64          `json:"location_id,omitempty"`
	CustomerName string         `json:"customer_name,omitempty"`
	LastSale     *CompletedSale `json:"last_sale,omitempty"`
	Phase        Phase          `json:"phase"`
}

// Total sums the line totals.
func (s Snapshot) Total() decimal.Decimal {
	return sumLines(s.Lines)
}

// ItemCount sums the quantities.
func (s Snapshot) ItemCount() decimal.Decimal {
	count := decimal.Zero
	for _, line := range s.Lines {
		count = count.Add(line.Quantity)
	}
	return count
}

// Line returns the line for sku.
func (s Snapshot) Line(sku string) (CartLine, bool) {
	for _, line := range s.Lines {
		if line.SKU == sku {
			return line, true
		}
	}
	return CartLine{}, false
}

// Empty reports whether the cart has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

func sumLines(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

func cloneLines(lines []CartLine) []CartLine {
	if len(lines) == 0 {
		return []CartLine{}
	}
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}

func cloneSale(sale *CompletedSale) *CompletedSale {
	if sale == nil {
		return nil
	}
	cp := *sale
	if len(sale.LowStock) > 0 {
		cp.LowStock = append([]apiclient.LowStockItem(nil), sale.LowStock...)
	}
	return &cp
}
