// Package pos implements the point-of-sale cart and checkout flow.
package pos

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/document"
)

// ErrProductNotFound is returned by a Catalog for unknown SKUs.
var ErrProductNotFound = errors.New("product not found")

// Catalog resolves product details and availability at a location. A zero
// location means availability is not known.
type Catalog interface {
	Product(ctx context.Context, locationID int64, sku string) (apiclient.Product, error)
}

// SaleSubmitter records sales on the backend.
type SaleSubmitter interface {
	SubmitSale(ctx context.Context, in apiclient.SaleInput) (apiclient.SaleResult, error)
}

// SaleFetcher loads completed sales.
type SaleFetcher interface {
	GetSale(ctx context.Context, id int64) (apiclient.SaleDetail, error)
}

// BrandingSource provides the company details printed on documents.
type BrandingSource interface {
	Branding(ctx context.Context) (apiclient.CompanySettings, error)
}

// Deps wires a Controller to its collaborators.
type Deps struct {
	Catalog  Catalog
	Sales    SaleSubmitter
	Sale     SaleFetcher
	Branding BrandingSource
	Guard    CheckoutGuard
	// Owner scopes the checkout guard, normally the session id.
	Owner string
	// Persist, when set, writes every state change before observers see it.
	// Its error is returned by the operation that made the change, and a
	// checkout whose Submitting state cannot be written is not submitted.
	Persist func(Snapshot) error
	Clock   func() time.Time
}

// Controller owns the cart of one operator session.
type Controller struct {
	deps Deps

	mu         sync.Mutex
	lines      []CartLine
	locationID int64
	customer   string
	lastSale   *CompletedSale
	phase      Phase

	observers    map[int]func(Snapshot)
	nextObserver int
}

// NewController constructs an empty Controller.
func NewController(deps Deps) *Controller {
	if deps.Guard == nil {
		deps.Guard = NewLocalGuard()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Controller{
		deps:      deps,
		phase:     PhaseEmpty,
		observers: make(map[int]func(Snapshot)),
	}
}

// Restore replaces the controller state with a persisted snapshot. A stored
// Submitting phase is downgraded since no request is in flight in this
// process.
func (c *Controller) Restore(s Snapshot) {
	c.mu.Lock()
	c.lines = cloneLines(s.Lines)
	c.locationID = s.LocationID
	c.customer = s.CustomerName
	c.lastSale = cloneSale(s.LastSale)
	c.phase = s.Phase
	switch {
	case c.phase == PhaseSubmitting, c.phase == "":
		c.phase = phaseFor(c.lines)
	case c.phase == PhaseEmpty && len(c.lines) > 0:
		c.phase = PhaseBuilding
	}
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every state change and returns its unsubscribe func.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Total sums quantity × unit price over all lines.
func (c *Controller) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sumLines(c.lines)
}

// Phase reports the lifecycle state.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SelectLocation sets the location stock is sold from.
func (c *Controller) SelectLocation(id int64) error {
	if id <= 0 {
		return invalid("Select a valid location.")
	}
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	c.locationID = id
	return c.publishUnlock()
}

// SetCustomerName records the optional customer. Blank means walk-in.
func (c *Controller) SetCustomerName(name string) error {
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	c.customer = strings.TrimSpace(name)
	return c.publishUnlock()
}

// AddQuantity adds q of sku to the cart, rounded to the unit step. The cart
// is unchanged when the new quantity would exceed known availability.
func (c *Controller) AddQuantity(ctx context.Context, sku string, q decimal.Decimal) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return invalid("Choose a product.")
	}
	if q.Sign() <= 0 {
		return invalid("Quantity must be greater than zero.")
	}

	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	locationID := c.locationID
	c.mu.Unlock()

	product, err := c.product(ctx, locationID, sku)
	if err != nil {
		return err
	}
	step := StepFor(product.Unit)
	rounded := RoundToStep(q, step)
	if rounded.Sign() <= 0 {
		return invalid("Quantity %s is below the smallest step of %s %s.", q.String(), step.String(), unitLabel(product.Unit))
	}

	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	idx := c.indexLocked(sku)
	existing := decimal.Zero
	if idx >= 0 {
		existing = c.lines[idx].Quantity
	}
	wanted := existing.Add(rounded)
	if product.Available.Valid && wanted.GreaterThan(product.Available.Decimal) {
		c.mu.Unlock()
		return &StockError{
			SKU:       sku,
			Name:      product.Name,
			Unit:      product.Unit,
			Requested: wanted,
			Available: product.Available.Decimal,
		}
	}
	if idx >= 0 {
		c.lines[idx].Quantity = wanted
	} else {
		c.lines = append(c.lines, CartLine{
			SKU:       product.SKU,
			Name:      product.Name,
			Unit:      product.Unit,
			Quantity:  wanted,
			UnitPrice: product.SellingPrice,
		})
	}
	c.phase = PhaseBuilding
	return c.publishUnlock()
}

// SetQuantity replaces the quantity of an existing line. Values rounding to
// zero or below remove the line. Values above known availability are clamped
// and reported with a *StockError after the clamp has been applied.
func (c *Controller) SetQuantity(ctx context.Context, sku string, q decimal.Decimal) error {
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	idx := c.indexLocked(sku)
	if idx < 0 {
		c.mu.Unlock()
		return invalid("%s is not in the cart.", sku)
	}
	line := c.lines[idx]
	locationID := c.locationID
	step := line.Step()
	rounded := RoundToStep(q, step)
	if rounded.Sign() <= 0 {
		c.removeLocked(sku)
		return c.publishUnlock()
	}
	if rounded.LessThanOrEqual(line.Quantity) {
		c.lines[idx].Quantity = rounded
		c.phase = PhaseBuilding
		return c.publishUnlock()
	}
	c.mu.Unlock()

	product, err := c.product(ctx, locationID, sku)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	idx = c.indexLocked(sku)
	if idx < 0 {
		c.mu.Unlock()
		return invalid("%s is not in the cart.", sku)
	}
	var stockErr *StockError
	if product.Available.Valid && rounded.GreaterThan(product.Available.Decimal) {
		clamped := FloorToStep(product.Available.Decimal, step)
		stockErr = &StockError{
			SKU:       sku,
			Name:      line.Name,
			Unit:      line.Unit,
			Requested: rounded,
			Available: product.Available.Decimal,
			Clamped:   true,
			Applied:   clamped,
		}
		rounded = clamped
	}
	if rounded.Sign() <= 0 {
		c.removeLocked(sku)
	} else {
		c.lines[idx].Quantity = rounded
		c.phase = PhaseBuilding
	}
	if err := c.publishUnlock(); err != nil {
		return err
	}
	if stockErr != nil {
		return stockErr
	}
	return nil
}

// IncrementByOneStep adds one unit step to an existing line.
func (c *Controller) IncrementByOneStep(ctx context.Context, sku string) error {
	line, ok := c.Snapshot().Line(sku)
	if !ok {
		return invalid("%s is not in the cart.", sku)
	}
	return c.AddQuantity(ctx, sku, line.Step())
}

// DecrementByOneStep removes one unit step, dropping the line at zero.
func (c *Controller) DecrementByOneStep(ctx context.Context, sku string) error {
	line, ok := c.Snapshot().Line(sku)
	if !ok {
		return invalid("%s is not in the cart.", sku)
	}
	return c.SetQuantity(ctx, sku, line.Quantity.Sub(line.Step()))
}

// SetUnitPrice overrides the price of a line.
func (c *Controller) SetUnitPrice(sku string, price decimal.Decimal) error {
	if price.Sign() < 0 {
		return invalid("Unit price cannot be negative.")
	}
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	idx := c.indexLocked(sku)
	if idx < 0 {
		c.mu.Unlock()
		return invalid("%s is not in the cart.", sku)
	}
	c.lines[idx].UnitPrice = price
	return c.publishUnlock()
}

// RemoveLine drops sku from the cart. Unknown SKUs are ignored.
func (c *Controller) RemoveLine(sku string) error {
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	c.removeLocked(sku)
	return c.publishUnlock()
}

// ClearCart empties the cart.
func (c *Controller) ClearCart() error {
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrCheckoutInProgress
	}
	c.lines = nil
	c.phase = PhaseEmpty
	return c.publishUnlock()
}

// Checkout submits the cart as a sale. The phase becomes Submitting while the
// lines are read, so edits are rejected until the sale settles. On success the cart and customer
// are cleared and the sale recorded as LastSale. On failure the cart is left
// exactly as it was.
func (c *Controller) Checkout(ctx context.Context, method string) (CompletedSale, error) {
	payment, err := ParsePaymentMethod(method)
	if err != nil {
		return CompletedSale{}, err
	}

	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return CompletedSale{}, ErrCheckoutInProgress
	}
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return CompletedSale{}, invalid("Cart is empty. Add products before checkout.")
	}
	if c.locationID <= 0 {
		c.mu.Unlock()
		return CompletedSale{}, invalid("Select a location before checkout.")
	}
	previous := c.phase
	c.phase = PhaseSubmitting
	input := apiclient.SaleInput{
		LocationID:    c.locationID,
		PaymentMethod: string(payment),
		Lines:         make([]apiclient.SaleLineInput, 0, len(c.lines)),
	}
	if c.customer != "" {
		name := c.customer
		input.CustomerName = &name
	}
	for _, line := range c.lines {
		input.Lines = append(input.Lines, apiclient.SaleLineInput{SKU: line.SKU, Qty: line.Quantity, UnitPrice: line.UnitPrice})
	}
	customer := c.customer
	c.mu.Unlock()

	release, err := c.deps.Guard.Acquire(ctx, c.deps.Owner)
	if err != nil {
		c.mu.Lock()
		c.phase = previous
		c.mu.Unlock()
		return CompletedSale{}, err
	}
	defer release()

	c.mu.Lock()
	if err := c.publishUnlock(); err != nil {
		c.mu.Lock()
		c.phase = previous
		_ = c.publishUnlock()
		return CompletedSale{}, err
	}

	result, err := c.deps.Sales.SubmitSale(ctx, input)

	c.mu.Lock()
	if err != nil {
		c.phase = previous
		_ = c.publishUnlock()
		return CompletedSale{}, err
	}
	sale := CompletedSale{
		SaleID:        result.SaleID,
		ReceiptNo:     result.ReceiptNo,
		Total:         result.Total,
		PaymentMethod: payment,
		CustomerName:  customer,
		LowStock:      result.LowStock,
		CompletedAt:   c.deps.Clock(),
	}
	c.lastSale = &sale
	c.lines = nil
	c.customer = ""
	c.phase = PhaseCompleted
	// The sale is recorded either way; Persist reports its own failure.
	_ = c.publishUnlock()
	return sale, nil
}

// LastSale returns the last completed sale, if any.
func (c *Controller) LastSale() (CompletedSale, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSale == nil {
		return CompletedSale{}, false
	}
	return *cloneSale(c.lastSale), true
}

// LoadPrintableDocument builds a receipt, proforma or waybill for a
// completed sale. Branding failures fall back to an unbranded document.
func (c *Controller) LoadPrintableDocument(ctx context.Context, saleID int64, kind document.Kind, opts document.Options) (document.Document, error) {
	if saleID <= 0 {
		return document.Document{}, invalid("Enter a valid sale id.")
	}
	if c.deps.Sale == nil {
		return document.Document{}, errors.New("pos: sale fetcher not configured")
	}
	sale, err := c.deps.Sale.GetSale(ctx, saleID)
	if err != nil {
		return document.Document{}, err
	}
	var branding apiclient.CompanySettings
	if c.deps.Branding != nil {
		if b, err := c.deps.Branding.Branding(ctx); err == nil {
			branding = b
		}
	}
	if opts.PrintedAt.IsZero() {
		opts.PrintedAt = c.deps.Clock()
	}
	return document.Build(sale, branding, kind, opts), nil
}

func (c *Controller) product(ctx context.Context, locationID int64, sku string) (apiclient.Product, error) {
	product, err := c.deps.Catalog.Product(ctx, locationID, sku)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return apiclient.Product{}, invalid("Unknown product %s.", sku)
		}
		return apiclient.Product{}, err
	}
	return product, nil
}

func (c *Controller) indexLocked(sku string) int {
	for i, line := range c.lines {
		if line.SKU == sku {
			return i
		}
	}
	return -1
}

func (c *Controller) removeLocked(sku string) {
	if idx := c.indexLocked(sku); idx >= 0 {
		c.lines = append(c.lines[:idx:idx], c.lines[idx+1:]...)
	}
	if len(c.lines) == 0 && c.phase != PhaseCompleted {
		c.phase = PhaseEmpty
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:        cloneLines(c.lines),
		LocationID:   c.locationID,
		CustomerName: c.customer,
		LastSale:     cloneSale(c.lastSale),
		Phase:        c.phase,
	}
}

// publishUnlock releases the lock, persists the state it held and notifies
// observers. Observers are skipped when persisting fails.
func (c *Controller) publishUnlock() error {
	snap := c.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()
	if c.deps.Persist != nil {
		if err := c.deps.Persist(snap); err != nil {
			return err
		}
	}
	for _, fn := range observers {
		fn(snap)
	}
	return nil
}

func phaseFor(lines []CartLine) Phase {
	if len(lines) == 0 {
		return PhaseEmpty
	}
	return PhaseBuilding
}

func unitLabel(unit string) string {
	if unit == "" {
		return "unit"
	}
	return unit
}
