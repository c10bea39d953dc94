package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// ErrNoPoints is returned for an empty series.
var ErrNoPoints = errors.New("svg: at least one point required")

type frame struct {
	left, top, width, height float64
	min, max                 float64
	step                     float64
	count                    int
}

func (f frame) x(i int) float64 {
	if f.count == 1 {
		return f.left + f.width/2
	}
	return f.left + float64(i)*f.step
}

func (f frame) y(v float64) float64 {
	return f.top + f.height - (v-f.min)*f.height/(f.max-f.min)
}

// Trend renders points as an accessible SVG line chart with a shaded area.
// The value axis always includes zero.
func Trend(points []Point, opts Options) (template.HTML, error) {
	if len(points) == 0 {
		return "", ErrNoPoints
	}
	opts = opts.withDefaults()
	f := frame{
		left:   opts.Padding,
		top:    opts.Padding / 2,
		width:  float64(opts.Width) - 1.5*opts.Padding,
		height: float64(opts.Height) - 1.5*opts.Padding,
		count:  len(points),
	}
	if f.width <= 0 || f.height <= 0 {
		return "", fmt.Errorf("svg: %dx%d viewport too small", opts.Width, opts.Height)
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value.InexactFloat64()
	}
	f.min, f.max = extent(values)
	if len(points) > 1 {
		f.step = f.width / float64(len(points)-1)
	}

	var line strings.Builder
	for i, v := range values {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		} else {
			line.WriteByte(' ')
		}
		fmt.Fprintf(&line, "%s%.2f %.2f", cmd, f.x(i), f.y(v))
	}

	titleID := slug(opts.Title) + "-title"
	descID := slug(opts.Title) + "-desc"
	base := f.top + f.height

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, opts.Width, opts.Height, titleID, descID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(opts.Title))
	fmt.Fprintf(&b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(opts.Description))

	for i := 0; i <= opts.Ticks; i++ {
		v := f.min + (f.max-f.min)*float64(i)/float64(opts.Ticks)
		y := f.y(v)
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, f.left, y, f.left+f.width, y, opts.Grid)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, f.left-6, y+4, opts.Axis, tick(v))
	}

	fmt.Fprintf(&b, `<g stroke="%s" aria-label="Axes">`, opts.Axis)
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.left, f.top, f.left, base)
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.left, base, f.left+f.width, base)
	b.WriteString(`</g>`)

	fmt.Fprintf(&b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" stroke="none" aria-hidden="true"></path>`, line.String(), f.x(len(points)-1), base, f.x(0), base, opts.Fill)
	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, line.String(), opts.Stroke)

	if opts.Dots {
		for i, v := range values {
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"><title>%s: %s</title></circle>`,
				f.x(i), f.y(v), opts.Stroke, template.HTMLEscapeString(points[i].Label), points[i].Value.StringFixed(2))
		}
	}

	every := labelEvery(len(points), opts.MaxLabels)
	for i, p := range points {
		if i%every != 0 && i != len(points)-1 {
			continue
		}
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, f.x(i), base+14, opts.Axis, template.HTMLEscapeString(p.Label))
	}

	b.WriteString(`</svg>`)
	return template.HTML(b.String()), nil
}

func extent(values []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.Abs(hi-lo) < 1e-9 {
		hi = lo + 1
	}
	return lo, hi
}

func labelEvery(n, max int) int {
	if max <= 0 || n <= max {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(max)))
}

func tick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case math.Abs(v-math.Round(v)) < 1e-9:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "chart"
	}
	return out
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
