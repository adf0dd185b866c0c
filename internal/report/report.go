// Package report renders practice alignment charts as PNG.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ayusman/taiji/internal/practice"
)

// Default chart size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("report: no alignment data")

var (
	ratioColor = color.RGBA{R: 34, G: 139, B: 34, A: 255}
	meanColor  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	barColor   = color.RGBA{R: 70, G: 130, B: 180, A: 255}
)

// Timeline plots the aligned-joint ratio over time with the run mean.
func Timeline(w io.Writer, stats *practice.Stats, width, height vg.Length) error {
	times, ratios := stats.Series()
	if len(ratios) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Alignment with expert"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Aligned joints"
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(ratios))
	for i := range ratios {
		pts[i] = plotter.XY{X: times[i], Y: ratios[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("report: timeline: %w", err)
	}
	line.Color = ratioColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("aligned ratio", line)

	mean := stats.Summary().MeanRatio
	meanLine := plotter.NewFunction(func(float64) float64 { return mean })
	meanLine.Color = meanColor
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(meanLine)
	p.Legend.Add(fmt.Sprintf("mean %.0f%%", mean*100), meanLine)
	p.Legend.Top = true

	return save(w, p, width, height)
}

// Joints plots the per-joint aligned ratio as bars.
func Joints(w io.Writer, stats *practice.Stats, width, height vg.Length) error {
	sum := stats.Summary()
	if len(sum.Joints) == 0 {
		return ErrNoData
	}

	values := make(plotter.Values, len(sum.Joints))
	names := make([]string, len(sum.Joints))
	for i, j := range sum.Joints {
		values[i] = j.Ratio
		names[i] = j.Name
	}

	p := plot.New()
	p.Title.Text = "Alignment by joint"
	p.Y.Label.Text = "Aligned ratio"
	p.Y.Min, p.Y.Max = 0, 1

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return fmt.Errorf("report: joints: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -0.9

	return save(w, p, width, height)
}

func save(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
