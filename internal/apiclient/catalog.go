package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListProducts returns the full product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.get(ctx, "list_products", "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ProductsWithStock returns the catalog with availability at a location.
func (c *Client) ProductsWithStock(ctx context.Context, locationID int64) ([]Product, error) {
	query := url.Values{}
	query.Set("location_id", strconv.FormatInt(locationID, 10))
	var products []Product
	if err := c.get(ctx, "products_with_stock", "/products/with_stock", query, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct registers a product. An empty SKU lets the backend assign one.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	var created Product
	err := c.post(ctx, "create_product", "/products", in, &created)
	return created, err
}

// UpdateProduct patches a product.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	in.SKU = ""
	var updated Product
	err := c.do(ctx, "update_product", http.MethodPatch, idPath("/products", id, ""), nil, in, &updated)
	return updated, err
}

// DeactivateProduct hides a product from sale.
func (c *Client) DeactivateProduct(ctx context.Context, id int64) error {
	return c.do(ctx, "deactivate_product", http.MethodDelete, idPath("/products", id, ""), nil, nil, nil)
}

// ListLocations returns every stock location.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	if err := c.get(ctx, "list_locations", "/locations", nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// CompanySettings fetches the document branding.
func (c *Client) CompanySettings(ctx context.Context) (CompanySettings, error) {
	var settings CompanySettings
	err := c.get(ctx, "company_settings", "/settings/company", nil, &settings)
	return settings, err
}

// SaveCompanySettings replaces the document branding.
func (c *Client) SaveCompanySettings(ctx context.Context, in CompanySettings) (CompanySettings, error) {
	var saved CompanySettings
	if err := c.post(ctx, "save_company_settings", "/settings/company", in, &saved); err != nil {
		return CompanySettings{}, err
	}
	if saved == (CompanySettings{}) {
		saved = in
	}
	return saved, nil
}
