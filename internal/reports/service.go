package reports

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/catalog"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/reports/svg"
)

// SummaryTTL bounds how long a sales summary is served from cache.
const SummaryTTL = 60 * time.Second

// Backend fetches the aggregated sales figures.
type Backend interface {
	SalesSummary(ctx context.Context, from, to time.Time) (apiclient.SalesSummary, error)
}

// Branding supplies the company name used in the summary heading.
type Branding interface {
	Branding(ctx context.Context) (apiclient.CompanySettings, error)
}

// Dashboard is the view model of the dashboard page.
type Dashboard struct {
	From        time.Time
	To          time.Time
	Summary     apiclient.SalesSummary
	PeriodTotal decimal.Decimal
	Chart       template.HTML
}

// DailySummary is the WhatsApp text shown on the home page.
type DailySummary struct {
	Summary apiclient.SalesSummary
	Text    string
	// Stale is set when the backend could not be reached and the last
	// stored summary is shown instead.
	Stale       bool
	GeneratedAt time.Time
}

// Service computes dashboard figures.
type Service struct {
	backend  Backend
	branding Branding
	cache    *catalog.Cache
	store    *SummaryStore
	currency string
	logger   *slog.Logger
}

// NewService builds Service. cache and store may be nil.
func NewService(backend Backend, branding Branding, cache *catalog.Cache, store *SummaryStore, currency string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, branding: branding, cache: cache, store: store, currency: currency, logger: logger}
}

// Summary returns the figures for a date range, newest reads cached briefly.
// Daily rows come back in date order.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (apiclient.SalesSummary, error) {
	if from.After(to) {
		return apiclient.SalesSummary{}, httpx.Invalid("From date cannot be after To date.")
	}
	key, err := s.cache.BuildKey(ctx, "summary", from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return apiclient.SalesSummary{}, err
	}
	var summary apiclient.SalesSummary
	err = s.cache.FetchJSON(ctx, key, SummaryTTL, &summary, func(ctx context.Context) (any, error) {
		return s.backend.SalesSummary(ctx, from, to)
	})
	if err != nil {
		return apiclient.SalesSummary{}, err
	}
	sort.SliceStable(summary.Daily, func(i, j int) bool { return summary.Daily[i].Date < summary.Daily[j].Date })
	return summary, nil
}

// Dashboard loads the KPIs and draws the daily trend for a range.
func (s *Service) Dashboard(ctx context.Context, from, to time.Time) (Dashboard, error) {
	summary, err := s.Summary(ctx, from, to)
	if err != nil {
		return Dashboard{}, err
	}
	dash := Dashboard{From: from, To: to, Summary: summary, PeriodTotal: PeriodTotal(summary)}
	if len(summary.Daily) == 0 {
		return dash, nil
	}
	points := make([]svg.Point, len(summary.Daily))
	for i, day := range summary.Daily {
		label := day.Date
		if parsed, err := time.Parse(time.DateOnly, day.Date); err == nil {
			label = parsed.Format("02 Jan")
		}
		points[i] = svg.Point{Label: label, Value: day.Total}
	}
	chart, err := svg.Trend(points, svg.Options{
		Title:       "Daily Sales Trend",
		Description: "Sales per day from " + from.Format(time.DateOnly) + " to " + to.Format(time.DateOnly),
		MaxLabels:   10,
		Dots:        len(points) <= 45,
	})
	if err != nil {
		s.logger.Warn("draw sales trend failed", slog.Any("error", err))
	}
	dash.Chart = chart
	return dash, nil
}

// DailySummary builds the month-to-date summary for now. When the backend
// fails the last stored summary is returned with Stale set; the error is
// returned only when nothing is stored either.
func (s *Service) DailySummary(ctx context.Context, now time.Time) (DailySummary, error) {
	from, to := MonthToDate(now)
	summary, err := s.Summary(ctx, from, to)
	if err != nil {
		stored, storeErr := s.store.Latest(ctx)
		if storeErr != nil {
			if !errors.Is(storeErr, ErrNoSummary) {
				s.logger.Warn("load stored summary failed", slog.Any("error", storeErr))
			}
			return DailySummary{}, err
		}
		s.logger.Warn("live summary unavailable, using stored text", slog.Any("error", err))
		return DailySummary{Text: stored.Text, Stale: true, GeneratedAt: stored.GeneratedAt}, nil
	}
	return DailySummary{
		Summary:     summary,
		Text:        SummaryText(s.companyName(ctx), s.currency, summary, from, to),
		GeneratedAt: now,
	}, nil
}

// GenerateDailySummary computes the summary for now and stores it.
func (s *Service) GenerateDailySummary(ctx context.Context, now time.Time) (string, error) {
	from, to := MonthToDate(now)
	summary, err := s.backend.SalesSummary(ctx, from, to)
	if err != nil {
		return "", err
	}
	text := SummaryText(s.companyName(ctx), s.currency, summary, from, to)
	if err := s.store.Save(ctx, StoredSummary{Text: text, GeneratedAt: now}); err != nil {
		return "", err
	}
	return text, nil
}

func (s *Service) companyName(ctx context.Context) string {
	if s.branding == nil {
		return ""
	}
	branding, err := s.branding.Branding(ctx)
	if err != nil {
		s.logger.Warn("load branding for summary failed", slog.Any("error", err))
		return ""
	}
	return branding.CompanyName
}
