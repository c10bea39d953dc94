// Package catalog serves cached reference data from the backend: products,
// locations, company branding and recent sales history.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/pos"
)

// Backend is the subset of the API client the catalog reads from.
type Backend interface {
	ListProducts(ctx context.Context) ([]apiclient.Product, error)
	ProductsWithStock(ctx context.Context, locationID int64) ([]apiclient.Product, error)
	ListLocations(ctx context.Context) ([]apiclient.Location, error)
	CompanySettings(ctx context.Context) (apiclient.CompanySettings, error)
	SalesHistory(ctx context.Context, filter apiclient.HistoryFilter) ([]apiclient.SaleSummary, error)
}

// TTLs bounds how long each kind of read is served from cache.
type TTLs struct {
	Products  time.Duration
	Locations time.Duration
	Branding  time.Duration
	History   time.Duration
}

// DefaultTTLs mirror how quickly each dataset changes in practice.
var DefaultTTLs = TTLs{
	Products:  60 * time.Second,
	Locations: 60 * time.Second,
	Branding:  30 * time.Second,
	History:   60 * time.Second,
}

// Service is the cached reference data fetcher.
type Service struct {
	backend Backend
	cache   *Cache
	ttl     TTLs
}

// NewService constructs a Service.
func NewService(backend Backend, cache *Cache, ttl TTLs) *Service {
	if ttl == (TTLs{}) {
		ttl = DefaultTTLs
	}
	return &Service{backend: backend, cache: cache, ttl: ttl}
}

// Products returns the catalog. With a location the availability at that
// location is included when the backend supports it.
func (s *Service) Products(ctx context.Context, locationID int64) ([]apiclient.Product, error) {
	key, err := s.cache.BuildKey(ctx, "products", strconv.FormatInt(locationID, 10))
	if err != nil {
		return nil, err
	}
	var products []apiclient.Product
	err = s.cache.FetchJSON(ctx, key, s.ttl.Products, &products, func(ctx context.Context) (any, error) {
		if locationID <= 0 {
			return s.backend.ListProducts(ctx)
		}
		withStock, err := s.backend.ProductsWithStock(ctx, locationID)
		if apiclient.IsNotFound(err) {
			return s.backend.ListProducts(ctx)
		}
		return withStock, err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: products: %w", err)
	}
	return products, nil
}

// Product implements pos.Catalog.
func (s *Service) Product(ctx context.Context, locationID int64, sku string) (apiclient.Product, error) {
	products, err := s.Products(ctx, locationID)
	if err != nil {
		return apiclient.Product{}, err
	}
	for _, p := range products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return apiclient.Product{}, pos.ErrProductNotFound
}

// Search filters active products by name, SKU or barcode, case-insensitively.
func (s *Service) Search(ctx context.Context, locationID int64, query string) ([]apiclient.Product, error) {
	products, err := s.Products(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return Filter(products, query), nil
}

// Filter keeps active products matching query.
func Filter(products []apiclient.Product, query string) []apiclient.Product {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]apiclient.Product, 0, len(products))
	for _, p := range products {
		if !p.Active() {
			continue
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.SKU), needle) ||
			strings.Contains(strings.ToLower(p.Barcode), needle) {
			out = append(out, p)
		}
	}
	return out
}

// Locations returns every stock location.
func (s *Service) Locations(ctx context.Context) ([]apiclient.Location, error) {
	key, err := s.cache.BuildKey(ctx, "locations")
	if err != nil {
		return nil, err
	}
	var locations []apiclient.Location
	err = s.cache.FetchJSON(ctx, key, s.ttl.Locations, &locations, func(ctx context.Context) (any, error) {
		return s.backend.ListLocations(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: locations: %w", err)
	}
	return locations, nil
}

// LocationName resolves a location id for display.
func (s *Service) LocationName(ctx context.Context, id int64) string {
	locations, err := s.Locations(ctx)
	if err == nil {
		for _, loc := range locations {
			if loc.ID == id {
				return loc.Name
			}
		}
	}
	if id <= 0 {
		return ""
	}
	return "Location " + strconv.FormatInt(id, 10)
}

// Branding implements pos.BrandingSource.
func (s *Service) Branding(ctx context.Context) (apiclient.CompanySettings, error) {
	key, err := s.cache.BuildKey(ctx, "branding")
	if err != nil {
		return apiclient.CompanySettings{}, err
	}
	var settings apiclient.CompanySettings
	err = s.cache.FetchJSON(ctx, key, s.ttl.Branding, &settings, func(ctx context.Context) (any, error) {
		return s.backend.CompanySettings(ctx)
	})
	if err != nil {
		return apiclient.CompanySettings{}, fmt.Errorf("catalog: branding: %w", err)
	}
	return settings, nil
}

// SalesHistory returns recent sales between two dates.
func (s *Service) SalesHistory(ctx context.Context, filter apiclient.HistoryFilter) ([]apiclient.SaleSummary, error) {
	key, err := s.cache.BuildKey(ctx, "history", filter.From.Format(time.DateOnly), filter.To.Format(time.DateOnly), strconv.Itoa(filter.Limit))
	if err != nil {
		return nil, err
	}
	var rows []apiclient.SaleSummary
	err = s.cache.FetchJSON(ctx, key, s.ttl.History, &rows, func(ctx context.Context) (any, error) {
		return s.backend.SalesHistory(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: sales history: %w", err)
	}
	return rows, nil
}

// Invalidate drops every cached read. Call it after writes to the backend.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
