package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ErrEmptyFigure is returned when rendering a figure without marks
var ErrEmptyFigure = errors.New("figure has no drawable content")

const barWidth = 20

// RenderPNG draws the recorded marks and encodes the result as PNG
func (f *Figure) RenderPNG() ([]byte, error) {
	if !f.HasData() {
		return nil, ErrEmptyFigure
	}
	p := plot.New()
	ax := f.Axes
	p.Title.Text = ax.Title
	if p.Title.Text == "" {
		p.Title.Text = f.Title
	}
	p.X.Label.Text = ax.XLabel
	p.Y.Label.Text = ax.YLabel

	bars := 0
	for i, m := range ax.Marks {
		if err := addMark(p, i, &bars, m); err != nil {
			return nil, fmt.Errorf("failed to draw %s mark: %w", m.Kind, err)
		}
	}

	if ax.XLim != nil {
		p.X.Min, p.X.Max = ax.XLim.Min, ax.XLim.Max
	}
	if ax.YLim != nil {
		p.Y.Min, p.Y.Max = ax.YLim.Min, ax.YLim.Max
	}

	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 {
		w, h = 8, 5
	}
	wt, err := p.WriterTo(vg.Length(w)*vg.Inch, vg.Length(h)*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

//nolint:gocyclo // one branch per mark kind
func addMark(p *plot.Plot, i int, bars *int, m Mark) error {
	color := plotutil.Color(i)
	switch m.Kind {
	case MarkLine, MarkScatter:
		pts := points(m.X, m.Y)
		if len(pts) == 0 {
			return nil
		}
		if m.Kind == MarkLine {
			l, err := plotter.NewLine(pts)
			if err != nil {
				return err
			}
			l.LineStyle.Color = color
			p.Add(l)
			if m.Label != "" {
				p.Legend.Add(m.Label, l)
			}
			return nil
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = color
		p.Add(s)
		if m.Label != "" {
			p.Legend.Add(m.Label, s)
		}

	case MarkBar, MarkBarH:
		values := finite(m.Values)
		if len(values) == 0 {
			return nil
		}
		b, err := plotter.NewBarChart(plotter.Values(zeroNaN(m.Values)), vg.Points(barWidth))
		if err != nil {
			return err
		}
		b.Color = color
		b.Offset = vg.Points(float64(*bars) * barWidth)
		b.Horizontal = m.Kind == MarkBarH
		*bars++
		p.Add(b)
		if m.Label != "" {
			p.Legend.Add(m.Label, b)
		}
		if len(m.Categories) > 0 {
			if b.Horizontal {
				p.NominalY(m.Categories...)
			} else {
				p.NominalX(m.Categories...)
			}
		}

	case MarkHist:
		values := finite(m.Values)
		if len(values) == 0 {
			return nil
		}
		bins := m.Bins
		if bins <= 0 {
			bins = DefaultBins
		}
		h, err := plotter.NewHist(plotter.Values(values), bins)
		if err != nil {
			return err
		}
		h.FillColor = color
		p.Add(h)
		if m.Label != "" {
			p.Legend.Add(m.Label, h)
		}

	case MarkBox:
		for j, group := range m.Groups {
			values := finite(group)
			if len(values) == 0 {
				continue
			}
			b, err := plotter.NewBoxPlot(vg.Points(barWidth), float64(j), plotter.Values(values))
			if err != nil {
				return err
			}
			b.FillColor = plotutil.Color(i + j)
			p.Add(b)
		}
		if len(m.Categories) == len(m.Groups) && len(m.Categories) > 0 {
			p.NominalX(m.Categories...)
		}

	case MarkHeatmap:
		if len(m.Matrix) == 0 || len(m.Matrix[0]) == 0 {
			return nil
		}
		g := grid(m.Matrix)
		hm := plotter.NewHeatMap(g, palette.Heat(12, 1))
		if hm.Min == hm.Max {
			hm.Max = hm.Min + 1
		}
		p.Add(hm)
		if len(m.ColLabels) == len(m.Matrix[0]) {
			p.NominalX(m.ColLabels...)
		}
		if len(m.RowLabels) == len(m.Matrix) {
			rows := make([]string, len(m.RowLabels))
			for r, l := range m.RowLabels {
				rows[len(rows)-1-r] = l
			}
			p.NominalY(rows...)
		}

	default:
		return fmt.Errorf("unknown mark kind %q", m.Kind)
	}
	return nil
}

func points(x, y []float64) plotter.XYs {
	n := min(len(x), len(y))
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func zeroNaN(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = v
		}
	}
	return out
}

// grid adapts a row-major matrix to plotter.GridXYZ with row zero on top
type grid [][]float64

func (g grid) Dims() (c, r int) { return len(g[0]), len(g) }

func (g grid) Z(c, r int) float64 { return g[len(g)-1-r][c] }

func (grid) X(c int) float64 { return float64(c) }

func (grid) Y(r int) float64 { return float64(r) }
