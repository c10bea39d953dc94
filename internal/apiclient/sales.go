package apiclient

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// SubmitSale records a sale and returns its identifiers.
func (c *Client) SubmitSale(ctx context.Context, in SaleInput) (SaleResult, error) {
	var result SaleResult
	err := c.post(ctx, "submit_sale", "/sales", in, &result)
	return result, err
}

// GetSale fetches a completed sale with its lines.
func (c *Client) GetSale(ctx context.Context, id int64) (SaleDetail, error) {
	var detail SaleDetail
	if err := c.get(ctx, "get_sale", idPath("/sales", id, ""), nil, &detail); err != nil {
		return SaleDetail{}, err
	}
	if detail.ID == 0 {
		detail.ID = id
	}
	return detail, nil
}

// HistoryFilter bounds the sales history listing.
type HistoryFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// SalesHistory lists sales recorded between two dates inclusive.
func (c *Client) SalesHistory(ctx context.Context, filter HistoryFilter) ([]SaleSummary, error) {
	query := url.Values{}
	if !filter.From.IsZero() {
		query.Set("start_date", filter.From.Format(time.DateOnly))
	}
	if !filter.To.IsZero() {
		query.Set("end_date", filter.To.Format(time.DateOnly))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query.Set("limit", strconv.Itoa(limit))
	var rows []SaleSummary
	if err := c.get(ctx, "sales_history", "/sales/history", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AddSaleLines appends lines to an existing sale.
func (c *Client) AddSaleLines(ctx context.Context, saleID int64, in AddLinesInput) (AddLinesResult, error) {
	var result AddLinesResult
	err := c.post(ctx, "add_sale_lines", idPath("/sales", saleID, "/add_lines"), in, &result)
	return result, err
}

// SalesSummary returns the dashboard aggregates for a date range.
func (c *Client) SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	query := url.Values{}
	query.Set("start_date", from.Format(time.DateOnly))
	query.Set("end_date", to.Format(time.DateOnly))
	var summary SalesSummary
	err := c.get(ctx, "sales_summary", "/reports/sales_summary", query, &summary)
	return summary, err
}
