// Package figure turns a simulation history into named time series and
// renders them as image files.
package figure

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/sim"
	"github.com/san-kum/cartpoles/internal/storage"
)

// Series is one column of a history.
type Series struct {
	Name   string
	Values []float64
}

// Columns splits a history into the export columns except time:
// s, d_s, theta_i, d_theta_i, u, T.
func Columns(h *sim.History, numPoles int) ([]Series, error) {
	header := storage.Header(numPoles)
	dim := 2 + 2*numPoles
	states := h.States()

	out := make([]Series, 0, dim+2)
	for j := 0; j < dim; j++ {
		col := make([]float64, len(states))
		for i, s := range states {
			if len(s) != dim {
				return nil, fmt.Errorf("%w: entry %d has %d components, want %d", dynamo.ErrDimensionMismatch, i, len(s), dim)
			}
			col[i] = s[j]
		}
		out = append(out, Series{Name: header[j], Values: col})
	}

	controls := make([]float64, h.Len())
	for i, u := range h.Controls() {
		if len(u) > 0 {
			controls[i] = u[0]
		}
	}
	out = append(out,
		Series{Name: "u", Values: controls},
		Series{Name: "T", Values: h.Torques()},
	)
	return out, nil
}

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

// SavePlot draws every series against times into one figure. The file
// format follows the extension of path (png, svg, pdf, ...).
func SavePlot(path, title string, times []float64, series []Series, width, height vg.Length) error {
	if len(series) == 0 {
		return fmt.Errorf("figure: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time [s]"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for k, s := range series {
		if len(s.Values) != len(times) {
			return fmt.Errorf("%w: series %q has %d samples, want %d", dynamo.ErrDimensionMismatch, s.Name, len(s.Values), len(times))
		}
		pts := make(plotter.XYs, len(times))
		for i := range times {
			pts[i].X = times[i]
			pts[i].Y = s.Values[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("figure: series %q: %w", s.Name, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = palette[k%len(palette)]
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	return p.Save(width, height, path)
}
