package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/isdmx/dataagent/canvas"
	"github.com/isdmx/dataagent/dataset"
)

// plotKinds are the values accepted by .plot(kind=...) and as .plot.<kind>()
var plotKinds = map[string]bool{
	"line": true, "area": true,
	"bar": true, "barh": true, "pie": true,
	"hist": true, "kde": true, "density": true,
	"box": true, "scatter": true,
}

// plotAccessor is the value of s.plot and df.plot. Calling it draws the kind
// given by the kind keyword; attributes draw a fixed kind.
type plotAccessor struct {
	target starlark.Value
}

var (
	_ starlark.Callable = (*plotAccessor)(nil)
	_ starlark.HasAttrs = (*plotAccessor)(nil)
)

func (p *plotAccessor) String() string { return "<PlotAccessor>" }
func (p *plotAccessor) Type() string { return "PlotAccessor" }
func (p *plotAccessor) Freeze() {}
func (p *plotAccessor) Truth() starlark.Bool { return true }
func (p *plotAccessor) Hash() (uint32, error) { return 0, errors.New("unhashable type: PlotAccessor") }
func (p *plotAccessor) Name() string { return "plot" }

func (p *plotAccessor) CallInternal(_ *starlark.Thread, pos starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	a := newArgs("plot", pos, kwargs)
	// pandas takes kind first for a Series and after x and y for a DataFrame
	kindPos := 0
	if _, ok := p.target.(*Frame); ok {
		kindPos = 2
	}
	kind, err := a.str(kindPos, "kind", "line")
	if err != nil {
		return nil, err
	}
	return p.draw(kind, a)
}

func (p *plotAccessor) Attr(name string) (starlark.Value, error) {
	if !plotKinds[name] {
		return nil, nil
	}
	return builtin(name, func(_ *starlark.Thread, a *args) (starlark.Value, error) {
		return p.draw(name, a)
	}), nil
}

func (p *plotAccessor) AttrNames() []string { return sortedNames(plotKinds) }

func (p *plotAccessor) scope() *scope {
	switch t := p.target.(type) {
	case *Series:
		return t.sc
	case *Frame:
		return t.sc
	}
	return nil
}

func (p *plotAccessor) draw(kind string, a *args) (starlark.Value, error) {
	if !plotKinds[kind] {
		return nil, fmt.Errorf("plot: %q is not a valid plot kind, expected one of %s", kind, strings.Join(sortedNames(plotKinds), ", "))
	}
	sc := p.scope()
	if err := sc.checkAxes(a); err != nil {
		return nil, err
	}
	var (
		marks []canvas.Mark
		err   error
	)
	switch t := p.target.(type) {
	case *Series:
		marks, err = seriesMarks(kind, t, a)
	case *Frame:
		marks, err = frameMarks(kind, t, a)
	}
	if err != nil {
		return nil, err
	}
	ax := sc.axes()
	for _, m := range marks {
		ax.Add(m)
	}
	if err := applyLabels(ax, a); err != nil {
		return nil, err
	}
	return &axesValue{sc: sc}, nil
}

func seriesMarks(kind string, s *Series, a *args) ([]canvas.Mark, error) {
	if kind == "scatter" {
		return nil, errors.New("plot: scatter needs a DataFrame with x and y columns")
	}
	if !s.col.Numeric() {
		return nil, fmt.Errorf("plot: no numeric data to plot in %s Series", s.col.DType())
	}
	bins, err := a.integer(-1, "bins", canvas.DefaultBins)
	if err != nil {
		return nil, err
	}
	return columnMarks(kind, s.col, s.labels, bins), nil
}

// columnMarks draws one numeric column against its labels
func columnMarks(kind string, c *dataset.Column, labels []string, bins int) []canvas.Mark {
	switch kind {
	case "line", "area":
		return []canvas.Mark{{Kind: canvas.MarkLine, Label: c.Name, X: positions(labels), Y: c.Nums}}
	case "bar", "pie":
		return []canvas.Mark{{Kind: canvas.MarkBar, Label: c.Name, Categories: labels, Values: c.Nums}}
	case "barh":
		return []canvas.Mark{{Kind: canvas.MarkBarH, Label: c.Name, Categories: labels, Values: c.Nums}}
	case "hist", "kde", "density":
		return []canvas.Mark{{Kind: canvas.MarkHist, Label: c.Name, Values: c.Floats(), Bins: bins}}
	default:
		return []canvas.Mark{{Kind: canvas.MarkBox, Categories: []string{c.Name}, Groups: [][]float64{c.Floats()}}}
	}
}

//nolint:gocyclo // one branch per plot kind
func frameMarks(kind string, f *Frame, a *args) ([]canvas.Mark, error) {
	xName, err := a.str(0, "x", "")
	if err != nil {
		return nil, err
	}
	ys, err := a.strs(1, "y")
	if err != nil {
		return nil, err
	}
	bins, err := a.integer(-1, "bins", canvas.DefaultBins)
	if err != nil {
		return nil, err
	}

	var x *dataset.Column
	if xName != "" {
		c, ok := f.t.Column(xName)
		if !ok {
			return nil, fmt.Errorf("plot: %w: %s", dataset.ErrColumnNotFound, xName)
		}
		x = c
	}

	if kind == "scatter" {
		if x == nil || len(ys) != 1 {
			return nil, errors.New("plot: scatter requires x and y columns")
		}
		y, ok := f.t.Column(ys[0])
		if !ok {
			return nil, fmt.Errorf("plot: %w: %s", dataset.ErrColumnNotFound, ys[0])
		}
		if !x.Numeric() || !y.Numeric() {
			return nil, errors.New("plot: scatter requires numeric x and y columns")
		}
		return []canvas.Mark{{Kind: canvas.MarkScatter, Label: y.Name, X: x.Nums, Y: y.Nums}}, nil
	}

	if len(ys) == 0 {
		for i := 0; i < f.t.Width(); i++ {
			c := f.t.ColumnAt(i)
			if c.Kind == dataset.KindNumber && c.Name != xName {
				ys = append(ys, c.Name)
			}
		}
	}
	cols := make([]*dataset.Column, 0, len(ys))
	for _, name := range ys {
		c, ok := f.t.Column(name)
		if !ok {
			return nil, fmt.Errorf("plot: %w: %s", dataset.ErrColumnNotFound, name)
		}
		if !c.Numeric() {
			return nil, fmt.Errorf("plot: column %s is not numeric", name)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, errors.New("plot: no numeric data to plot")
	}

	labels := f.t.Labels()
	if x != nil {
		labels = cells(x)
	}
	if kind == "box" {
		m := canvas.Mark{Kind: canvas.MarkBox}
		for _, c := range cols {
			m.Categories = append(m.Categories, c.Name)
			m.Groups = append(m.Groups, c.Floats())
		}
		return []canvas.Mark{m}, nil
	}
	marks := make([]canvas.Mark, 0, len(cols))
	for _, c := range cols {
		ms := columnMarks(kind, c, labels, bins)
		if x != nil && x.Numeric() && ms[0].Kind == canvas.MarkLine {
			ms[0].X = x.Nums
		}
		marks = append(marks, ms...)
	}
	return marks, nil
}

// positions returns numeric labels as x coordinates, or 0..n-1
func positions(labels []string) []float64 {
	if xs, ok := numericLabels(labels); ok {
		return xs
	}
	xs := make([]float64, len(labels))
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

func cells(c *dataset.Column) []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Cell(i)
	}
	return out
}

// applyLabels handles the title, xlabel, ylabel, xlim and ylim keywords
// accepted by every drawing call
func applyLabels(ax *canvas.Axes, a *args) error {
	for key, dst := range map[string]*string{"title": &ax.Title, "xlabel": &ax.XLabel, "ylabel": &ax.YLabel} {
		v, err := a.str(-1, key, "")
		if err != nil {
			return err
		}
		if v != "" {
			*dst = v
		}
	}
	for key, dst := range map[string]**canvas.Range{"xlim": &ax.XLim, "ylim": &ax.YLim} {
		lo, hi, ok, err := a.pair(-1, key, "")
		if err != nil {
			return err
		}
		if ok {
			*dst = &canvas.Range{Min: lo, Max: hi}
		}
	}
	return nil
}
