package pos

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock matches every *StockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCheckoutInProgress rejects edits and repeat submissions while a sale is in flight.
	ErrCheckoutInProgress = errors.New("checkout in progress")
	// ErrStaleCart rejects a save based on a cart another request has since changed.
	ErrStaleCart = errors.New("cart changed by another request")
)

// ValidationError is a rejected user input. The cart is left unchanged.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StockError reports a quantity above the known availability. When Clamped
// is set the line was already reduced to Applied.
type StockError struct {
	SKU       string
	Name      string
	Unit      string
	Requested decimal.Decimal
	Available decimal.Decimal
	Clamped   bool
	Applied   decimal.Decimal
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s", e.SKU, e.Requested, e.Available)
}

// Is reports whether target is ErrInsufficientStock.
func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Message turns an operation error into text suitable for the operator.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		stockErr *StockError
		valErr   *ValidationError
		formErr  *httpx.ValidationError
		apiErr   *apiclient.APIError
	)
	switch {
	case errors.As(err, &stockErr):
		name := stockErr.Name
		if name == "" {
			name = stockErr.SKU
		}
		if stockErr.Clamped {
			return fmt.Sprintf("Only %s %s of %s available. Quantity set to %s.",
				stockErr.Available.String(), stockErr.Unit, name, stockErr.Applied.String())
		}
		return fmt.Sprintf("Not enough stock for %s. Available: %s %s.", name, stockErr.Available.String(), stockErr.Unit)
	case errors.As(err, &valErr):
		return valErr.Reason
	case errors.As(err, &formErr):
		return formErr.Message
	case errors.Is(err, ErrCheckoutInProgress):
		return "A checkout is already in progress. Please wait for it to finish."
	case errors.Is(err, ErrStaleCart):
		return "Your cart was changed in another window. Review it and try again."
	case errors.As(err, &apiErr):
		if detail := apiErr.Detail(); detail != "" {
			return fmt.Sprintf("Error from API (%d): %s", apiErr.StatusCode, detail)
		}
		return fmt.Sprintf("Error from API (%d).", apiErr.StatusCode)
	case errors.Is(err, apiclient.ErrNetwork):
		return "Could not reach the backend. Check the connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
