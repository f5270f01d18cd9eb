package chart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/user/sales-dashboard-go/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNoData is returned when a chart has no values to draw.
var ErrNoData = errors.New("no data to plot")

// Default PNG size.
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

// ChartJSConfig returns a Chart.js configuration object for c.
func ChartJSConfig(c models.ChartData) map[string]interface{} {
	chartType := string(c.Kind)
	if c.Kind == models.ChartHorizontalBar {
		chartType = "bar"
	}

	ds := map[string]interface{}{
		"data": c.Values,
	}
	if c.SeriesLabel != "" {
		ds["label"] = c.SeriesLabel
	}
	switch {
	case c.Kind == models.ChartPie || c.Kind == models.ChartDoughnut:
		ds["backgroundColor"] = c.Colors
	case len(c.Colors) == 1:
		ds["backgroundColor"] = c.Colors[0]
	case len(c.Colors) > 1:
		ds["backgroundColor"] = c.Colors
	}
	if c.BorderColor != "" {
		ds["borderColor"] = c.BorderColor
	}
	if c.Fill {
		ds["fill"] = true
	}

	options := map[string]interface{}{
		"responsive": true,
		"plugins": map[string]interface{}{
			"title": map[string]interface{}{
				"display": true,
				"text":    c.Title,
			},
		},
	}
	switch c.Kind {
	case models.ChartBar, models.ChartLine:
		options["scales"] = map[string]interface{}{
			"y": map[string]interface{}{"beginAtZero": true},
		}
	case models.ChartHorizontalBar:
		options["indexAxis"] = "y"
		options["scales"] = map[string]interface{}{
			"x": map[string]interface{}{"beginAtZero": true},
		}
	}

	return map[string]interface{}{
		"type": chartType,
		"data": map[string]interface{}{
			"labels":   c.Labels,
			"datasets": []map[string]interface{}{ds},
		},
		"options": options,
	}
}

// ParseColor parses "#rrggbb", "#rgb" and "rgba(r,g,b,a)" colours.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "rgba(") || strings.HasPrefix(lower, "rgb(") {
		return parseRGBA(lower)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

func parseRGBA(s string) (color.Color, error) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	var ch [4]float64
	ch[3] = 1
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid color %q: %w", s, err)
		}
		ch[i] = v
	}
	r, g, b := colorful.Color{R: ch[0] / 255, G: ch[1] / 255, B: ch[2] / 255}.Clamped().RGB255()
	a := math.Max(0, math.Min(1, ch[3]))
	// NRGBA is non-premultiplied, matching CSS semantics.
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(a * 255))}, nil
}

// palette returns n colours, taking from configured ones in order and
// cycling through them. With none configured it spreads hues evenly.
func palette(configured []string, n int) []color.Color {
	var base []color.Color
	for _, s := range configured {
		if c, err := ParseColor(s); err == nil {
			base = append(base, c)
		}
	}
	out := make([]color.Color, n)
	for i := range out {
		if len(base) > 0 {
			out[i] = base[i%len(base)]
			continue
		}
		out[i] = colorful.Hcl(float64(i)*360/float64(max(n, 1)), 0.5, 0.6).Clamped()
	}
	return out
}

// RenderPNG draws c with gonum/plot and writes a PNG to w.
func RenderPNG(w io.Writer, c models.ChartData, width, height vg.Length) error {
	p, err := newPlot(c)
	if err != nil {
		return err
	}
	writer, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	if _, err := writer.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// EncodeBase64PNG renders c at the default size as a base64 PNG string.
func EncodeBase64PNG(c models.ChartData) (string, error) {
	var buf bytes.Buffer
	if err := RenderPNG(&buf, c, DefaultWidth, DefaultHeight); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func newPlot(c models.ChartData) (*plot.Plot, error) {
	if c.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoData, c.Title)
	}
	if len(c.Labels) != len(c.Values) {
		return nil, fmt.Errorf("chart %s has %d labels for %d values", c.ID, len(c.Labels), len(c.Values))
	}

	p := plot.New()
	p.Title.Text = c.Title

	switch c.Kind {
	case models.ChartPie, models.ChartDoughnut:
		return p, addPie(p, c)
	case models.ChartBar, models.ChartHorizontalBar:
		return p, addBars(p, c)
	case models.ChartLine:
		return p, addLine(p, c)
	default:
		return nil, fmt.Errorf("unsupported chart kind %q", c.Kind)
	}
}

func addBars(p *plot.Plot, c models.ChartData) error {
	bars, err := plotter.NewBarChart(plotter.Values(c.Values), vg.Points(20))
	if err != nil {
		return fmt.Errorf("failed to create bar chart for %s: %w", c.Title, err)
	}
	bars.Color = palette(c.Colors, 1)[0]
	bars.LineStyle.Width = 0

	if c.Kind == models.ChartHorizontalBar {
		bars.Horizontal = true
		p.NominalY(c.Labels...)
		p.X.Min = 0
		p.X.Label.Text = c.SeriesLabel
	} else {
		p.NominalX(c.Labels...)
		p.Y.Min = 0
		p.Y.Label.Text = c.SeriesLabel
	}
	p.Add(bars, plotter.NewGrid())
	return nil
}

func addLine(p *plot.Plot, c models.ChartData) error {
	pts := make(plotter.XYs, len(c.Values))
	for i, v := range c.Values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line for %s: %w", c.Title, err)
	}
	border := c.BorderColor
	if border == "" && len(c.Colors) > 0 {
		border = c.Colors[0]
	}
	line.Color = palette([]string{border}, 1)[0]
	line.Width = vg.Points(2)
	if c.Fill {
		line.FillColor = palette(c.Colors, 1)[0]
	}

	marks, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to create markers for %s: %w", c.Title, err)
	}
	marks.GlyphStyle.Color = line.Color
	marks.GlyphStyle.Radius = vg.Points(3)

	p.NominalX(c.Labels...)
	p.Y.Min = 0
	p.Y.Label.Text = c.SeriesLabel
	p.Add(line, marks, plotter.NewGrid())
	if c.SeriesLabel != "" {
		p.Legend.Add(c.SeriesLabel, line)
		p.Legend.Top = true
	}
	return nil
}

func addPie(p *plot.Plot, c models.ChartData) error {
	var total float64
	for _, v := range c.Values {
		if v > 0 {
			total += v
		}
	}
	if total == 0 {
		return fmt.Errorf("%w: %s has no positive values", ErrNoData, c.Title)
	}

	colors := palette(c.Colors, len(c.Values))
	slices := &pieSlices{values: c.Values, colors: colors, total: total}
	if c.Kind == models.ChartDoughnut {
		slices.inner = 0.5
	}
	p.HideAxes()
	p.Add(slices)
	for i, label := range c.Labels {
		if c.Values[i] <= 0 {
			continue
		}
		p.Legend.Add(fmt.Sprintf("%s (%s)", label, strconv.FormatFloat(c.Values[i], 'f', -1, 64)), swatch{colors[i]})
	}
	p.Legend.Left = false
	p.Legend.Top = true
	return nil
}

// pieSlices draws a pie, or a doughnut when inner is a positive fraction of
// the outer radius. Slices start at twelve o'clock and run clockwise.
// Non-positive values are skipped.
type pieSlices struct {
	values []float64
	colors []color.Color
	total  float64
	inner  float64
}

const arcStep = math.Pi / 90

func (ps *pieSlices) Plot(c draw.Canvas, _ *plot.Plot) {
	cx := (c.Min.X + c.Max.X) / 2
	cy := (c.Min.Y + c.Max.Y) / 2
	radius := 0.45 * vg.Length(math.Min(float64(c.Max.X-c.Min.X), float64(c.Max.Y-c.Min.Y)))

	point := func(r vg.Length, angle float64) vg.Point {
		return vg.Point{X: cx + r*vg.Length(math.Cos(angle)), Y: cy + r*vg.Length(math.Sin(angle))}
	}

	start := math.Pi / 2
	for i, v := range ps.values {
		if v <= 0 {
			continue
		}
		sweep := v / ps.total * 2 * math.Pi
		end := start - sweep

		outer := arc(start, end)
		pts := make([]vg.Point, 0, 2*len(outer)+1)
		for _, a := range outer {
			pts = append(pts, point(radius, a))
		}
		if ps.inner > 0 {
			innerR := radius * vg.Length(ps.inner)
			for j := len(outer) - 1; j >= 0; j-- {
				pts = append(pts, point(innerR, outer[j]))
			}
		} else {
			pts = append(pts, vg.Point{X: cx, Y: cy})
		}
		c.FillPolygon(ps.colors[i], pts)
		start = end
	}
}

// arc returns angles from start to end (end < start) at arcStep spacing,
// always including both endpoints.
func arc(start, end float64) []float64 {
	n := int(math.Ceil((start - end) / arcStep))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n+1)
	for i := 0; i <= n; i++ {
		out[i] = start - (start-end)*float64(i)/float64(n)
	}
	return out
}

// swatch is a legend thumbnail filled with a single colour.
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	c.FillPolygon(s.color, []vg.Point{
		c.Min,
		{X: c.Max.X, Y: c.Min.Y},
		c.Max,
		{X: c.Min.X, Y: c.Max.Y},
	})
}
