package pos

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	measureStep = decimal.New(1, -1)
	countStep   = decimal.New(5, -1)
)

var measureUnits = map[string]struct{}{
	"kg":     {},
	"g":      {},
	"l":      {},
	"ml":     {},
	"litre":  {},
	"liter":  {},
	"litres": {},
	"liters": {},
	"ltr":    {},
	"lb":     {},
	"m":      {},
	"cm":     {},
}

// Units lists the unit options offered when creating products.
var Units = []string{"piece", "kg", "box", "carton", "gallon", "sachet", "bag", "bottle", "tin", "other"}

// IsMeasureUnit reports whether quantities of unit are weighed or measured.
func IsMeasureUnit(unit string) bool {
	_, ok := measureUnits[strings.ToLower(strings.TrimSpace(unit))]
	return ok
}

// StepFor returns the quantity granularity for a unit: 0.1 for measured
// units, 0.5 for everything else including unknown units.
func StepFor(unit string) decimal.Decimal {
	if IsMeasureUnit(unit) {
		return measureStep
	}
	return countStep
}

// RoundToStep rounds q to the nearest multiple of step. Halves go to the
// even multiple, so 0.05 kg becomes 0.
func RoundToStep(q, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return q
	}
	return q.Div(step).RoundBank(0).Mul(step)
}

// FloorToStep returns the largest multiple of step not above q.
func FloorToStep(q, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return q
	}
	return q.Div(step).Floor().Mul(step)
}
