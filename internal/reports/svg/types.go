// Package svg draws the small server-side charts used on the dashboard.
package svg

import "github.com/shopspring/decimal"

// Point is one labelled value of a series.
type Point struct {
	Label string
	Value decimal.Decimal
}

// Options customises the trend chart.
type Options struct {
	Title       string
	Description string
	Width       int
	Height      int
	Padding     float64
	Ticks       int
	// MaxLabels thins the x axis; every label is drawn when zero.
	MaxLabels int
	Dots      bool
	Stroke    string
	Fill      string
	Axis      string
	Grid      string
}

// Defaults for dashboard charts.
const (
	DefaultWidth   = 760
	DefaultHeight  = 260
	DefaultPadding = 36.0
	DefaultTicks   = 5
)

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Padding <= 0 {
		o.Padding = DefaultPadding
	}
	if o.Ticks <= 0 {
		o.Ticks = DefaultTicks
	}
	o.Title = fallback(o.Title, "Sales trend")
	o.Description = fallback(o.Description, "Daily sales")
	o.Stroke = fallback(o.Stroke, "#0f766e")
	o.Fill = fallback(o.Fill, "rgba(15,118,110,0.12)")
	o.Axis = fallback(o.Axis, "#475569")
	o.Grid = fallback(o.Grid, "#cbd5e1")
	return o
}
