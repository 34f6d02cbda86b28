// Package chart renders the attendance charts served by the API.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/trezcool/mahudhurio/core/profile"
)

var barColor = color.RGBA{R: 0x00, G: 0x6b, B: 0x2f, A: 0xff}

// AttendancePlotter draws attendance percentages as a PNG bar chart.
type AttendancePlotter struct {
	Width, Height vg.Length
}

var _ profile.Plotter = (*AttendancePlotter)(nil)

func NewAttendancePlotter() *AttendancePlotter {
	return &AttendancePlotter{Width: 10 * vg.Inch, Height: 6 * vg.Inch}
}

func (ap *AttendancePlotter) PlotAttendance(bars []profile.Bar) ([]byte, error) {
	if len(bars) == 0 {
		return nil, errors.New("no bars to plot")
	}

	p := plot.New()
	p.Title.Text = "Subject-wise Attendance Percentage"
	p.Y.Label.Text = "Attendance Percentage (%)"
	p.Y.Min, p.Y.Max = 0, 105

	names := make([]string, len(bars))
	values := make(plotter.Values, len(bars))
	labels := plotter.XYLabels{XYs: make(plotter.XYs, len(bars)), Labels: make([]string, len(bars))}
	for i, bar := range bars {
		names[i] = bar.Label
		values[i] = bar.Percentage
		labels.XYs[i] = plotter.XY{X: float64(i), Y: bar.Percentage + 1}
		labels.Labels[i] = fmt.Sprintf("%.1f%%", bar.Percentage)
	}

	chart, err := plotter.NewBarChart(values, ap.barWidth(len(bars)))
	if err != nil {
		return nil, errors.Wrap(err, "building bar chart")
	}
	chart.Color = barColor
	chart.LineStyle.Width = 0
	p.Add(chart)

	text, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, errors.Wrap(err, "building bar labels")
	}
	for i := range text.TextStyle {
		text.TextStyle[i].XAlign = draw.XCenter
	}
	p.Add(text)

	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	w, err := p.WriterTo(ap.Width, ap.Height, "png")
	if err != nil {
		return nil, errors.Wrap(err, "rendering chart")
	}
	var buf bytes.Buffer
	if _, err = w.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "encoding chart")
	}
	return buf.Bytes(), nil
}

// barWidth fills about 60% of each category slot.
func (ap *AttendancePlotter) barWidth(n int) vg.Length {
	w := ap.Width * 0.6 / vg.Length(n+1)
	if w > vg.Inch {
		return vg.Inch
	}
	return w
}
