package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/stats"
)

// ErrTooFewYears is returned when a chart is requested for fewer than two
// years.
var ErrTooFewYears = errors.New("at least two years are required to chart a trend")

// WriteChart renders the yearly mean temperature with its least-squares
// trend line as a PNG.
func WriteChart(w io.Writer, global domain.GlobalTrends) error {
	if len(global) < 2 {
		return ErrTooFewYears
	}

	temps := global.Series(func(g domain.GlobalTrend) float64 { return g.Temp })
	slope := stats.Slope(temps)
	intercept := stats.Mean(temps) - slope*float64(len(temps)-1)/2

	points := make(plotter.XYs, len(global))
	fit := make(plotter.XYs, len(global))
	for i, g := range global {
		points[i].X = float64(g.Year)
		points[i].Y = g.Temp
		fit[i].X = float64(g.Year)
		fit[i].Y = intercept + slope*float64(i)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Global Mean Temperature %d-%d", global[0].Year, global[len(global)-1].Year)
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Temperature (°C)"

	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("temperature line: %w", err)
	}
	line.Color = color.RGBA{R: 220, G: 60, B: 40, A: 255}
	line.Width = vg.Points(1.5)

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return fmt.Errorf("temperature points: %w", err)
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 220, G: 60, B: 40, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(2.5)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}

	trend, err := plotter.NewLine(fit)
	if err != nil {
		return fmt.Errorf("trend line: %w", err)
	}
	trend.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	trend.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(plotter.NewGrid(), line, scatter, trend)
	p.Legend.Add("Yearly mean", line, scatter)
	p.Legend.Add(fmt.Sprintf("Trend (%s °C/yr)", signed(4, slope)), trend)
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("chart canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
