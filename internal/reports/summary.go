// Package reports serves the sales dashboard, the home page KPIs and the
// daily WhatsApp summary.
package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/view"
)

// MonthToDate returns the first day of now's month and now's date.
func MonthToDate(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// PeriodTotal sums the daily totals of a summary.
func PeriodTotal(summary apiclient.SalesSummary) decimal.Decimal {
	total := decimal.Zero
	for _, day := range summary.Daily {
		total = total.Add(day.Total)
	}
	return total
}

// SummaryText formats the message owners receive on WhatsApp. Asterisks
// render as bold there.
func SummaryText(company, currency string, summary apiclient.SalesSummary, from, to time.Time) string {
	heading := "Daily Sales Summary"
	if company = strings.TrimSpace(company); company != "" {
		heading = company + " – " + heading
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* (%s)\n", heading, to.Format(time.DateOnly))
	fmt.Fprintf(&b, "Sales today: %s\n", view.FormatMoney(currency, summary.SalesToday))
	fmt.Fprintf(&b, "Sales this month: %s\n", view.FormatMoney(currency, summary.SalesThisMonth))
	fmt.Fprintf(&b, "Sales this year: %s\n", view.FormatMoney(currency, summary.SalesThisYear))
	fmt.Fprintf(&b, "Period %s → %s: %s", from.Format(time.DateOnly), to.Format(time.DateOnly), view.FormatMoney(currency, PeriodTotal(summary)))
	return b.String()
}
