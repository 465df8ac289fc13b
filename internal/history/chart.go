package history

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// AssetsHost serves the echarts javascript for rendered pages.
const AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const (
	chartTitle  = "Risk Scores from Recent Predictions"
	yAxisLabel  = "Depression Risk"
	colorAtRisk = "crimson"
	colorNoRisk = "green"
)

var (
	rgbAtRisk = color.RGBA{R: 220, G: 20, B: 60, A: 255}
	rgbNoRisk = color.RGBA{R: 0, G: 128, B: 0, A: 255}
)

var errNoPoints = errors.New("no points to chart")

// RenderBar writes an echarts page with one bar per point: Timestamp on
// the x axis with labels rotated 45 degrees, risk score on the y axis.
// At Risk bars are crimson and No Risk bars green.
func RenderBar(w io.Writer, points []Point) error {
	if len(points) == 0 {
		return errNoPoints
	}

	xs := make([]string, len(points))
	for i, p := range points {
		xs[i] = p.Timestamp
	}
	// One series per label so the legend names them; "-" leaves a gap.
	at := make([]opts.BarData, len(points))
	no := make([]opts.BarData, len(points))
	for i, p := range points {
		at[i], no[i] = opts.BarData{Value: "-"}, opts.BarData{Value: "-"}
		if p.AtRisk() {
			at[i].Value = p.RiskScore
		} else {
			no[i].Value = p.RiskScore
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Recent Depression Predictions", Width: "100%", Height: "560px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: chartTitle, Subtitle: fmt.Sprintf("last %d predictions", len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Timestamp", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: yAxisLabel, Min: 0, Max: 1}),
	)
	bar.SetXAxis(xs).
		AddSeries("At Risk", at, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorAtRisk})).
		AddSeries("No Risk", no, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorNoRisk}))
	bar.SetSeriesOptions(
		charts.WithBarChartOpts(opts.BarChart{Stack: "risk"}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(bar)
	return page.Render(w)
}

// RenderPNG draws the same chart as RenderBar into a PNG image.
func RenderPNG(w io.Writer, points []Point) error {
	if len(points) == 0 {
		return errNoPoints
	}

	at := make(plotter.Values, len(points))
	no := make(plotter.Values, len(points))
	for i, pt := range points {
		if pt.AtRisk() {
			at[i] = pt.RiskScore
		} else {
			no[i] = pt.RiskScore
		}
	}

	p := plot.New()
	p.Title.Text = chartTitle
	p.Y.Label.Text = yAxisLabel
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = true

	width := vg.Points(18)
	for _, s := range []struct {
		label string
		vals  plotter.Values
		color color.Color
	}{
		{"At Risk", at, rgbAtRisk},
		{"No Risk", no, rgbNoRisk},
	} {
		bars, err := plotter.NewBarChart(s.vals, width)
		if err != nil {
			return fmt.Errorf("build %s bars: %w", s.label, err)
		}
		bars.Color = s.color
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(s.label, bars)
	}

	labels := make([]string, len(points))
	for i, pt := range points {
		labels[i] = pt.Timestamp
	}
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	wt, err := p.WriterTo(9*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
