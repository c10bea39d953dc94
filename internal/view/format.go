package view

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders an amount with thousands separators and two decimals,
// prefixed by symbol.
func FormatMoney(symbol string, amount decimal.Decimal) string {
	value := printer.Sprintf("%.2f", amount.Round(2).InexactFloat64())
	if symbol == "" {
		return value
	}
	return symbol + " " + value
}

// FormatQty renders a quantity without trailing zeros.
func FormatQty(qty decimal.Decimal) string {
	s := qty.StringFixed(3)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// FormatDate renders a date as 02 Jan 2006.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006")
}

// FormatDateTime renders a timestamp as 02 Jan 2006 15:04.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006 15:04")
}
