package sandbox

import (
	"errors"
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/isdmx/dataagent/canvas"
	"github.com/isdmx/dataagent/dataset"
)

var seabornFuncs map[string]scopeMethod

func init() {
	seabornFuncs = map[string]scopeMethod{
		"histplot":    snsHistplot,
		"countplot":   snsCountplot,
		"barplot":     snsBarplot,
		"boxplot":     snsBoxplot,
		"scatterplot": snsXY(canvas.MarkScatter),
		"lineplot":    snsXY(canvas.MarkLine),
		"heatmap":     snsHeatmap,
		"set_theme":   noop,
		"set_style":   noop,
		"set":         noop,
		"set_palette": noop,
		"despine":     noop,
	}
}

// newSeaborn builds the sns module for one execution
func newSeaborn(sc *scope) *starlarkstruct.Module {
	members := make(starlark.StringDict, len(seabornFuncs))
	for name, fn := range seabornFuncs {
		m := fn
		members[name] = sc.method(name, func(sc *scope, a *args) (starlark.Value, error) {
			if err := sc.checkAxes(a); err != nil {
				return nil, err
			}
			return m(sc, a)
		})
	}
	return &starlarkstruct.Module{Name: "sns", Members: members}
}

// vector resolves the x or y argument of a seaborn call: a column name of
// data, or a sequence of values. The name is used as the axis label.
func vector(sc *scope, a *args, key string, pos int) (*Series, string, error) {
	v := a.get(pos, key)
	if v == nil {
		return nil, "", nil
	}
	if name, ok := starlark.AsString(v); ok {
		f, isFrame := a.get(0, "data").(*Frame)
		if !isFrame {
			return nil, "", fmt.Errorf("%s: %s=%q needs a DataFrame passed as data", a.fn, key, name)
		}
		s, err := f.column(name)
		if err != nil {
			return nil, "", err
		}
		return s, name, nil
	}
	s, err := seriesFrom(sc, v, "")
	if err != nil {
		return nil, "", err
	}
	return s, s.col.Name, nil
}

// snsAxes applies the axis labels seaborn derives from the variable names
func snsAxes(sc *scope, xName, yName string) starlark.Value {
	ax := sc.axes()
	if xName != "" {
		ax.XLabel = xName
	}
	if yName != "" {
		ax.YLabel = yName
	}
	return &axesValue{sc: sc}
}

func snsHistplot(sc *scope, a *args) (starlark.Value, error) {
	x, xName, err := vector(sc, a, "x", -1)
	if err != nil {
		return nil, err
	}
	if x == nil {
		if s, ok := a.get(0, "data").(*Series); ok {
			x, xName = s, s.col.Name
		}
	}
	if x == nil {
		return nil, errors.New("histplot: x or a Series as data is required")
	}
	if !x.col.Numeric() {
		return snsCounts(sc, x, xName)
	}
	bins, err := a.integer(-1, "bins", canvas.DefaultBins)
	if err != nil {
		return nil, err
	}
	sc.axes().Add(canvas.Mark{Kind: canvas.MarkHist, Label: xName, Values: x.col.Floats(), Bins: bins})
	return snsAxes(sc, xName, "Count"), nil
}

func snsCountplot(sc *scope, a *args) (starlark.Value, error) {
	x, xName, err := vector(sc, a, "x", -1)
	if err != nil {
		return nil, err
	}
	if x == nil {
		return nil, errors.New("countplot: x is required")
	}
	return snsCounts(sc, x, xName)
}

// snsCounts draws one bar per category in order of first appearance
func snsCounts(sc *scope, x *Series, xName string) (starlark.Value, error) {
	order := x.col.Unique()
	counts := make(map[string]int, len(order))
	for i := 0; i < x.Len(); i++ {
		if !x.col.IsMissing(i) {
			counts[x.col.Key(i)]++
		}
	}
	m := canvas.Mark{Kind: canvas.MarkBar}
	for _, i := range order {
		if x.col.IsMissing(i) {
			continue
		}
		m.Categories = append(m.Categories, x.col.Cell(i))
		m.Values = append(m.Values, float64(counts[x.col.Key(i)]))
	}
	sc.axes().Add(m)
	return snsAxes(sc, xName, "count"), nil
}

// categorical splits y by the categories of x in order of first appearance
func categorical(x, y *Series) ([]string, [][]float64, error) {
	if x.Len() != y.Len() {
		return nil, nil, fmt.Errorf("x has %d values and y has %d", x.Len(), y.Len())
	}
	if !y.col.Numeric() {
		return nil, nil, fmt.Errorf("y must be numeric, got %s values", y.col.DType())
	}
	index := make(map[string]int)
	var cats []string
	var groups [][]float64
	for i := 0; i < x.Len(); i++ {
		if x.col.IsMissing(i) {
			continue
		}
		key := x.col.Key(i)
		g, ok := index[key]
		if !ok {
			g = len(cats)
			index[key] = g
			cats = append(cats, x.col.Cell(i))
			groups = append(groups, nil)
		}
		if v := y.col.Nums[i]; !math.IsNaN(v) {
			groups[g] = append(groups[g], v)
		}
	}
	return cats, groups, nil
}

func snsXYArgs(sc *scope, a *args) (*Series, string, *Series, string, error) {
	x, xName, err := vector(sc, a, "x", -1)
	if err != nil {
		return nil, "", nil, "", err
	}
	y, yName, err := vector(sc, a, "y", -1)
	if err != nil {
		return nil, "", nil, "", err
	}
	if x == nil || y == nil {
		return nil, "", nil, "", fmt.Errorf("%s: x and y are required", a.fn)
	}
	return x, xName, y, yName, nil
}

// snsBarplot draws the mean of y for each category of x
func snsBarplot(sc *scope, a *args) (starlark.Value, error) {
	x, xName, y, yName, err := snsXYArgs(sc, a)
	if err != nil {
		return nil, err
	}
	horizontal := !y.col.Numeric() && x.col.Numeric()
	if horizontal {
		x, y = y, x
	}
	cats, groups, err := categorical(x, y)
	if err != nil {
		return nil, fmt.Errorf("barplot: %w", err)
	}
	m := canvas.Mark{Kind: canvas.MarkBar, Categories: cats, Values: make([]float64, len(groups))}
	if horizontal {
		m.Kind = canvas.MarkBarH
	}
	for i, g := range groups {
		m.Values[i] = dataset.Mean(g)
	}
	sc.axes().Add(m)
	return snsAxes(sc, xName, yName), nil
}

func snsBoxplot(sc *scope, a *args) (starlark.Value, error) {
	x, xName, err := vector(sc, a, "x", -1)
	if err != nil {
		return nil, err
	}
	y, yName, err := vector(sc, a, "y", -1)
	if err != nil {
		return nil, err
	}
	m := canvas.Mark{Kind: canvas.MarkBox}
	switch {
	case x != nil && y != nil:
		num, cat := y, x
		if !y.col.Numeric() {
			num, cat = x, y
		}
		if m.Categories, m.Groups, err = categorical(cat, num); err != nil {
			return nil, fmt.Errorf("boxplot: %w", err)
		}
	case x != nil || y != nil:
		s := x
		if s == nil {
			s = y
		}
		if !s.col.Numeric() {
			return nil, fmt.Errorf("boxplot: %s values are not numeric", s.col.DType())
		}
		m.Categories = []string{s.col.Name}
		m.Groups = [][]float64{s.col.Floats()}
	default:
		f, ok := a.get(0, "data").(*Frame)
		if !ok {
			return nil, errors.New("boxplot: x, y or a DataFrame as data is required")
		}
		for i := 0; i < f.t.Width(); i++ {
			if c := f.t.ColumnAt(i); c.Kind == dataset.KindNumber {
				m.Categories = append(m.Categories, c.Name)
				m.Groups = append(m.Groups, c.Floats())
			}
		}
		if len(m.Groups) == 0 {
			return nil, errors.New("boxplot: no numeric columns to plot")
		}
	}
	sc.axes().Add(m)
	return snsAxes(sc, xName, yName), nil
}

func snsXY(kind canvas.MarkKind) scopeMethod {
	return func(sc *scope, a *args) (starlark.Value, error) {
		x, xName, y, yName, err := snsXYArgs(sc, a)
		if err != nil {
			return nil, err
		}
		if x.Len() != y.Len() {
			return nil, fmt.Errorf("%s: x has %d values and y has %d", a.fn, x.Len(), y.Len())
		}
		if !y.col.Numeric() {
			return nil, fmt.Errorf("%s: y must be numeric, got %s values", a.fn, y.col.DType())
		}
		xs := x.col.Nums
		if !x.col.Numeric() {
			xs = positions(cells(x.col))
		}
		sc.axes().Add(canvas.Mark{Kind: kind, Label: yName, X: xs, Y: y.col.Nums})
		return snsAxes(sc, xName, yName), nil
	}
}

// snsHeatmap draws the numeric columns of a DataFrame, typically df.corr()
func snsHeatmap(sc *scope, a *args) (starlark.Value, error) {
	f, ok := a.get(0, "data").(*Frame)
	if !ok {
		return nil, errors.New("heatmap: data must be a DataFrame")
	}
	t := f.t.Numeric()
	if t.Width() == 0 || t.Len() == 0 {
		return nil, errors.New("heatmap: no numeric data to plot")
	}
	sc.axes().Add(canvas.Mark{
		Kind:      canvas.MarkHeatmap,
		Matrix:    t.Matrix(),
		RowLabels: t.Labels(),
		ColLabels: t.Columns(),
	})
	return &axesValue{sc: sc}, nil
}
