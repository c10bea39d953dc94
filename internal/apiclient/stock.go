package apiclient

import (
	"context"
	"encoding/json"
)

// PostReceipt records a goods received note.
func (c *Client) PostReceipt(ctx context.Context, in ReceiptInput) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.post(ctx, "post_receipt", "/receipts", in, &raw)
	return raw, err
}

// PostStockTransfer moves stock between two locations.
func (c *Client) PostStockTransfer(ctx context.Context, in TransferInput) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.post(ctx, "stock_transfer", "/stock_transfer", in, &raw)
	return raw, err
}

// InventoryReport returns stock on hand per product and location.
func (c *Client) InventoryReport(ctx context.Context) (InventoryReport, error) {
	var report InventoryReport
	err := c.get(ctx, "inventory_report", "/reports/inventory", nil, &report)
	return report, err
}
