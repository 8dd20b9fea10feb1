package sandbox

import (
	"errors"
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/isdmx/dataagent/canvas"
)

// axesValue is the script view of the single drawing area, bound as ax
type axesValue struct {
	sc *scope
}

var _ starlark.HasAttrs = (*axesValue)(nil)

func (a *axesValue) String() string { return "<Axes>" }
func (a *axesValue) Type() string { return "Axes" }
func (a *axesValue) Freeze() {}
func (a *axesValue) Truth() starlark.Bool { return true }
func (a *axesValue) Hash() (uint32, error) { return 0, errors.New("unhashable type: Axes") }

func (a *axesValue) Attr(name string) (starlark.Value, error) {
	if m, ok := axesMethods[name]; ok {
		return a.sc.method(name, m), nil
	}
	return nil, nil
}

func (a *axesValue) AttrNames() []string { return sortedNames(axesMethods) }

// figureValue is the script view of the canvas, bound as fig
type figureValue struct {
	sc *scope
}

var _ starlark.HasAttrs = (*figureValue)(nil)

func (f *figureValue) String() string {
	return fmt.Sprintf("<Figure size %gx%g with 1 Axes>", f.sc.fig.Width, f.sc.fig.Height)
}
func (f *figureValue) Type() string { return "Figure" }
func (f *figureValue) Freeze() {}
func (f *figureValue) Truth() starlark.Bool { return true }
func (f *figureValue) Hash() (uint32, error) { return 0, errors.New("unhashable type: Figure") }

func (f *figureValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "axes":
		return starlark.NewList([]starlark.Value{&axesValue{sc: f.sc}}), nil
	}
	if m, ok := figureMethods[name]; ok {
		return f.sc.method(name, m), nil
	}
	return nil, nil
}

func (f *figureValue) AttrNames() []string { return sortedNames(figureMethods, "axes") }

// scopeMethod is a drawing call bound to one execution's canvas
type scopeMethod func(sc *scope, a *args) (starlark.Value, error)

func (sc *scope) method(name string, m scopeMethod) *starlark.Builtin {
	return builtin(name, func(_ *starlark.Thread, a *args) (starlark.Value, error) {
		return m(sc, a)
	})
}

var (
	axesMethods   map[string]scopeMethod
	figureMethods map[string]scopeMethod
	pyplotExtras  map[string]scopeMethod
)

// cosmetic calls are accepted and ignored; they never count as drawn data
var cosmetic = []string{
	"legend", "grid", "tick_params", "set_xticks", "set_yticks",
	"set_xticklabels", "set_yticklabels", "invert_xaxis", "invert_yaxis",
	"axhline", "axvline", "text", "annotate", "set_facecolor", "margins",
}

func init() {
	axesMethods = map[string]scopeMethod{
		"plot":       axesPlot,
		"bar":        axesBar(canvas.MarkBar),
		"barh":       axesBar(canvas.MarkBarH),
		"hist":       axesHist,
		"scatter":    axesScatter,
		"boxplot":    axesBoxplot,
		"pie":        axesPie,
		"set_title":  axesSetText(func(ax *canvas.Axes) *string { return &ax.Title }),
		"set_xlabel": axesSetText(func(ax *canvas.Axes) *string { return &ax.XLabel }),
		"set_ylabel": axesSetText(func(ax *canvas.Axes) *string { return &ax.YLabel }),
		"set_xlim":   axesSetLim(func(ax *canvas.Axes) **canvas.Range { return &ax.XLim }),
		"set_ylim":   axesSetLim(func(ax *canvas.Axes) **canvas.Range { return &ax.YLim }),
		"set":        axesSet,
		"has_data":   func(sc *scope, _ *args) (starlark.Value, error) { return starlark.Bool(sc.axes().HasData()), nil },
		"get_figure": func(sc *scope, _ *args) (starlark.Value, error) { return &figureValue{sc: sc}, nil },
	}
	for _, name := range cosmetic {
		axesMethods[name] = noop
	}

	figureMethods = map[string]scopeMethod{
		"suptitle":        figureSuptitle,
		"set_size_inches": figureSetSize,
		"gca":             func(sc *scope, _ *args) (starlark.Value, error) { return &axesValue{sc: sc}, nil },
		"add_subplot":     func(sc *scope, _ *args) (starlark.Value, error) { return &axesValue{sc: sc}, nil },
		"tight_layout":    noop,
		"subplots_adjust": noop,
		"colorbar":        noop,
		"legend":          noop,
	}

	pyplotExtras = map[string]scopeMethod{
		"title":        axesMethods["set_title"],
		"xlabel":       axesMethods["set_xlabel"],
		"ylabel":       axesMethods["set_ylabel"],
		"xlim":         axesMethods["set_xlim"],
		"ylim":         axesMethods["set_ylim"],
		"suptitle":     figureSuptitle,
		"figure":       pyplotFigure,
		"gcf":          func(sc *scope, _ *args) (starlark.Value, error) { return &figureValue{sc: sc}, nil },
		"gca":          func(sc *scope, _ *args) (starlark.Value, error) { return &axesValue{sc: sc}, nil },
		"subplots":     pyplotSubplots,
		"show":         noop,
		"close":        noop,
		"tight_layout": noop,
		"xticks":       noop,
		"yticks":       noop,
		"colorbar":     noop,
	}
}

// newPyplot builds the plt module for one execution
func newPyplot(sc *scope) *starlarkstruct.Module {
	members := make(starlark.StringDict, len(axesMethods)+len(pyplotExtras))
	for _, name := range []string{"plot", "bar", "barh", "hist", "scatter", "boxplot", "pie", "legend", "grid", "axhline", "axvline", "text", "annotate"} {
		members[name] = sc.method(name, axesMethods[name])
	}
	for name, m := range pyplotExtras {
		members[name] = sc.method(name, m)
	}
	return &starlarkstruct.Module{Name: "plt", Members: members}
}

func noop(*scope, *args) (starlark.Value, error) { return starlark.None, nil }

// checkAxes rejects drawing onto anything but the provided axes
func (sc *scope) checkAxes(a *args) error {
	v, ok := a.kw["ax"]
	if !ok || v == starlark.None {
		return nil
	}
	if ax, ok := v.(*axesValue); ok && ax.sc == sc {
		return nil
	}
	return fmt.Errorf("%s: ax must be the provided axes, got %s", a.fn, v.Type())
}

// numbers converts a Series or iterable of numbers; missing values become NaN
func numbers(sc *scope, v starlark.Value, what string) ([]float64, error) {
	s, err := seriesFrom(sc, v, "")
	if err != nil {
		return nil, err
	}
	if !s.col.Numeric() {
		return nil, fmt.Errorf("%s must be numeric, got %s values", what, s.col.DType())
	}
	return s.col.Nums, nil
}

// categories converts a Series or iterable to display labels
func categories(sc *scope, v starlark.Value) ([]string, error) {
	s, err := seriesFrom(sc, v, "")
	if err != nil {
		return nil, err
	}
	return cells(s.col), nil
}

func present(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func label(a *args) string {
	s, _ := a.str(-1, "label", "")
	return s
}

func axesPlot(sc *scope, a *args) (starlark.Value, error) {
	first, second := a.get(0, "x"), a.get(1, "y")
	if first == nil {
		return nil, errors.New("plot: missing data")
	}
	if _, isFmt := second.(starlark.String); isFmt {
		second = nil
	}
	var xs, ys []float64
	var err error
	if second == nil {
		if ys, err = numbers(sc, first, "plot: y"); err != nil {
			return nil, err
		}
		xs = positions(labelsOf(first, len(ys)))
	} else {
		if xs, err = numbers(sc, first, "plot: x"); err != nil {
			// categorical x values are drawn at their positions
			cats, cerr := categories(sc, first)
			if cerr != nil {
				return nil, err
			}
			xs = positions(cats)
		}
		if ys, err = numbers(sc, second, "plot: y"); err != nil {
			return nil, err
		}
		if len(xs) != len(ys) {
			return nil, fmt.Errorf("plot: x and y must have same first dimension, but have shapes (%d,) and (%d,)", len(xs), len(ys))
		}
	}
	name := label(a)
	if name == "" {
		if s, ok := second.(*Series); ok {
			name = s.col.Name
		} else if s, ok := first.(*Series); ok && second == nil {
			name = s.col.Name
		}
	}
	sc.axes().Add(canvas.Mark{Kind: canvas.MarkLine, Label: name, X: xs, Y: ys})
	return starlark.None, nil
}

// labelsOf returns a Series' labels, or positions for plain sequences
func labelsOf(v starlark.Value, n int) []string {
	if s, ok := v.(*Series); ok && len(s.labels) == n {
		return s.labels
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprint(i)
	}
	return out
}

func axesBar(kind canvas.MarkKind) scopeMethod {
	return func(sc *scope, a *args) (starlark.Value, error) {
		xName, hName := "x", "height"
		if kind == canvas.MarkBarH {
			xName, hName = "y", "width"
		}
		x, h := a.get(0, xName), a.get(1, hName)
		if x == nil || h == nil {
			return nil, fmt.Errorf("%s: %s and %s are required", a.fn, xName, hName)
		}
		cats, err := categories(sc, x)
		if err != nil {
			return nil, err
		}
		vals, err := numbers(sc, h, a.fn+": "+hName)
		if err != nil {
			return nil, err
		}
		if len(cats) != len(vals) {
			return nil, fmt.Errorf("%s: got %d categories and %d values", a.fn, len(cats), len(vals))
		}
		sc.axes().Add(canvas.Mark{Kind: kind, Label: label(a), Categories: cats, Values: vals})
		return starlark.None, nil
	}
}

func axesHist(sc *scope, a *args) (starlark.Value, error) {
	x := a.get(0, "x")
	if x == nil {
		return nil, errors.New("hist: missing data")
	}
	vals, err := numbers(sc, x, "hist: x")
	if err != nil {
		return nil, err
	}
	bins, err := a.integer(1, "bins", canvas.DefaultBins)
	if err != nil {
		return nil, err
	}
	name := label(a)
	if s, ok := x.(*Series); ok && name == "" {
		name = s.col.Name
	}
	sc.axes().Add(canvas.Mark{Kind: canvas.MarkHist, Label: name, Values: present(vals), Bins: bins})
	return starlark.None, nil
}

func axesScatter(sc *scope, a *args) (starlark.Value, error) {
	x, y := a.get(0, "x"), a.get(1, "y")
	if x == nil || y == nil {
		return nil, errors.New("scatter: x and y are required")
	}
	xs, err := numbers(sc, x, "scatter: x")
	if err != nil {
		return nil, err
	}
	ys, err := numbers(sc, y, "scatter: y")
	if err != nil {
		return nil, err
	}
	if len(xs) != len(ys) {
		return nil, errors.New("scatter: x and y must be the same size")
	}
	sc.axes().Add(canvas.Mark{Kind: canvas.MarkScatter, Label: label(a), X: xs, Y: ys})
	return starlark.None, nil
}

// axesBoxplot accepts one sample or a list of samples
func axesBoxplot(sc *scope, a *args) (starlark.Value, error) {
	x := a.get(0, "x")
	if x == nil {
		return nil, errors.New("boxplot: missing data")
	}
	var groups [][]float64
	var names []string
	if f, ok := x.(*Frame); ok {
		for i := 0; i < f.t.Width(); i++ {
			if c := f.t.ColumnAt(i); c.Numeric() {
				groups = append(groups, c.Floats())
				names = append(names, c.Name)
			}
		}
	} else if nested, ok := nestedSamples(x); ok {
		for i, sample := range nested {
			vals, err := numbers(sc, sample, "boxplot: x")
			if err != nil {
				return nil, err
			}
			groups = append(groups, present(vals))
			names = append(names, fmt.Sprint(i+1))
		}
	} else {
		vals, err := numbers(sc, x, "boxplot: x")
		if err != nil {
			return nil, err
		}
		groups = [][]float64{present(vals)}
		names = []string{"1"}
		if s, ok := x.(*Series); ok && s.col.Name != "" {
			names[0] = s.col.Name
		}
	}
	for _, key := range []string{"labels", "tick_labels"} {
		if a.has(-1, key) {
			given, err := a.strs(-1, key)
			if err != nil {
				return nil, err
			}
			if len(given) == len(names) {
				names = given
			}
		}
	}
	sc.axes().Add(canvas.Mark{Kind: canvas.MarkBox, Categories: names, Groups: groups})
	return starlark.None, nil
}

// nestedSamples reports whether v is a list of sequences rather than numbers
func nestedSamples(v starlark.Value) ([]starlark.Value, bool) {
	switch v.(type) {
	case *starlark.List, starlark.Tuple:
	default:
		return nil, false
	}
	elems, err := values(v)
	if err != nil || len(elems) == 0 {
		return nil, false
	}
	for _, e := range elems {
		if _, ok := e.(starlark.Iterable); !ok {
			return nil, false
		}
		if _, ok := e.(starlark.String); ok {
			return nil, false
		}
	}
	return elems, true
}

// axesPie draws the slices as bars, which carry the same information
func axesPie(sc *scope, a *args) (starlark.Value, error) {
	x := a.get(0, "x")
	if x == nil {
		return nil, errors.New("pie: missing data")
	}
	vals, err := numbers(sc, x, "pie: x")
	if err != nil {
		return nil, err
	}
	var cats []string
	if a.has(-1, "labels") {
		if cats, err = categories(sc, a.kw["labels"]); err != nil {
			return nil, err
		}
	} else {
		cats = labelsOf(x, len(vals))
	}
	if len(cats) != len(vals) {
		return nil, fmt.Errorf("pie: got %d labels and %d values", len(cats), len(vals))
	}
	sc.axes().Add(canvas.Mark{Kind: canvas.MarkBar, Categories: cats, Values: vals})
	return starlark.None, nil
}

func axesSetText(field func(*canvas.Axes) *string) scopeMethod {
	return func(sc *scope, a *args) (starlark.Value, error) {
		s, err := a.str(0, "label", "")
		if err != nil {
			return nil, err
		}
		*field(sc.axes()) = s
		return starlark.None, nil
	}
}

func axesSetLim(field func(*canvas.Axes) **canvas.Range) scopeMethod {
	return func(sc *scope, a *args) (starlark.Value, error) {
		lo, hi, ok, err := a.pair(0, "left", "right")
		if err == nil && !ok {
			lo, hi, ok, err = a.pair(0, "bottom", "top")
		}
		if err != nil {
			return nil, err
		}
		if ok {
			*field(sc.axes()) = &canvas.Range{Min: lo, Max: hi}
		}
		return starlark.None, nil
	}
}

func axesSet(sc *scope, a *args) (starlark.Value, error) {
	return starlark.None, applyLabels(sc.axes(), a)
}

func figureSuptitle(sc *scope, a *args) (starlark.Value, error) {
	s, err := a.str(0, "t", "")
	if err != nil {
		return nil, err
	}
	sc.fig.Title = s
	return starlark.None, nil
}

func figureSetSize(sc *scope, a *args) (starlark.Value, error) {
	w, h, ok, err := a.pair(0, "w", "h")
	if err != nil {
		return nil, err
	}
	if ok && w > 0 && h > 0 {
		sc.fig.Width, sc.fig.Height = w, h
	}
	return starlark.None, nil
}

// pyplotFigure returns the provided canvas; figsize resizes it
func pyplotFigure(sc *scope, a *args) (starlark.Value, error) {
	w, h, ok, err := a.pair(-1, "figsize", "")
	if err != nil {
		return nil, err
	}
	if ok && w > 0 && h > 0 {
		sc.fig.Width, sc.fig.Height = w, h
	}
	return &figureValue{sc: sc}, nil
}

// pyplotSubplots hands out the single provided canvas as (fig, ax)
func pyplotSubplots(sc *scope, a *args) (starlark.Value, error) {
	rows, err := a.integer(0, "nrows", 1)
	if err != nil {
		return nil, err
	}
	cols, err := a.integer(1, "ncols", 1)
	if err != nil {
		return nil, err
	}
	if rows*cols != 1 {
		return nil, fmt.Errorf("subplots: only a single axes is available, got %dx%d", rows, cols)
	}
	if _, err := pyplotFigure(sc, a); err != nil {
		return nil, err
	}
	return starlark.Tuple{&figureValue{sc: sc}, &axesValue{sc: sc}}, nil
}
