package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/isdmx/dataagent/dataset"
)

// Frame exposes a dataset.Table to scripts with a pandas-like surface
type Frame struct {
	t  *dataset.Table
	sc *scope
}

var (
	_ starlark.HasAttrs = (*Frame)(nil)
	_ starlark.Mapping  = (*Frame)(nil)
	_ starlark.Sequence = (*Frame)(nil)
)

func newFrame(sc *scope, t *dataset.Table) *Frame {
	return &Frame{t: t, sc: sc}
}

func (f *Frame) String() string { return f.t.Format() }
func (f *Frame) Type() string { return "DataFrame" }
func (f *Frame) Freeze() {}
func (f *Frame) Truth() starlark.Bool { return f.t.Len() > 0 }
func (f *Frame) Hash() (uint32, error) { return 0, errors.New("unhashable type: DataFrame") }

// Len is the row count, so len(df) matches pandas
func (f *Frame) Len() int { return f.t.Len() }

// Iterate yields column names like iterating a pandas frame
func (f *Frame) Iterate() starlark.Iterator {
	return (&Index{labels: f.t.Columns()}).Iterate()
}

func (f *Frame) column(name string) (*Series, error) {
	c, ok := f.t.Column(name)
	if !ok {
		return nil, fmt.Errorf("KeyError: %q", name)
	}
	return newSeries(f.sc, c, f.t.Labels()), nil
}

// Get implements df['col'], df[['a', 'b']] and df[mask]
func (f *Frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	switch k := k.(type) {
	case starlark.String:
		s, err := f.column(string(k))
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	case *starlark.List, starlark.Tuple, *Index:
		names, err := toStrings(k)
		if err != nil {
			return nil, false, err
		}
		t, err := f.t.Select(names...)
		if err != nil {
			return nil, false, err
		}
		return newFrame(f.sc, t), true, nil
	case *Series:
		mask, err := k.mask(f.t.Len())
		if err != nil {
			return nil, false, err
		}
		t, err := f.t.Filter(mask)
		if err != nil {
			return nil, false, err
		}
		return newFrame(f.sc, t), true, nil
	}
	return nil, false, fmt.Errorf("cannot index DataFrame with %s", k.Type())
}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "shape":
		return starlark.Tuple{starlark.MakeInt(f.t.Len()), starlark.MakeInt(f.t.Width())}, nil
	case "columns":
		return &Index{labels: f.t.Columns()}, nil
	case "index":
		return &Index{labels: f.t.Labels()}, nil
	case "size":
		return starlark.MakeInt(f.t.Len() * f.t.Width()), nil
	case "ndim":
		return starlark.MakeInt(2), nil
	case "empty":
		return starlark.Bool(f.t.Len() == 0 || f.t.Width() == 0), nil
	case "dtypes":
		types := make([]string, f.t.Width())
		for i := range types {
			types[i] = f.t.ColumnAt(i).DType()
		}
		return newSeries(f.sc, dataset.NewTextColumn("", types, nil), f.t.Columns()), nil
	case "plot":
		return &plotAccessor{target: f}, nil
	}
	if m, ok := frameMethods[name]; ok {
		return builtin(name, func(thread *starlark.Thread, a *args) (starlark.Value, error) {
			return m(thread, f, a)
		}), nil
	}
	if _, ok := f.t.Column(name); ok {
		return f.column(name)
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string {
	return sortedNames(frameMethods, append(f.t.Columns(), "columns", "dtypes", "empty", "index", "ndim", "plot", "shape", "size")...)
}

type frameMethod func(thread *starlark.Thread, f *Frame, a *args) (starlark.Value, error)

var frameMethods map[string]frameMethod

func init() {
	frameMethods = map[string]frameMethod{
		"head":          frameHead,
		"tail":          frameTail,
		"describe":      frameDescribe,
		"info":          frameInfo,
		"mean":          frameReduce("mean"),
		"sum":           frameReduce("sum"),
		"min":           frameReduce("min"),
		"max":           frameReduce("max"),
		"median":        frameReduce("median"),
		"std":           frameReduce("std"),
		"var":           frameReduce("var"),
		"count":         frameReduce("count"),
		"nunique":       frameReduce("nunique"),
		"corr":          frameCorr,
		"isnull":        frameIsNull,
		"isna":          frameIsNull,
		"dropna":        frameDropNA,
		"sort_values":   frameSort,
		"groupby":       frameGroupBy,
		"select_dtypes": frameSelectDtypes,
		"drop":          frameDrop,
		"nlargest":      frameExtreme(false),
		"nsmallest":     frameExtreme(true),
		"copy":          func(_ *starlark.Thread, f *Frame, _ *args) (starlark.Value, error) { return f, nil },
	}
}

func frameHead(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
	n, err := a.integer(0, "n", 5)
	if err != nil {
		return nil, err
	}
	return newFrame(f.sc, f.t.Head(n)), nil
}

func frameTail(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
	n, err := a.integer(0, "n", 5)
	if err != nil {
		return nil, err
	}
	return newFrame(f.sc, f.t.Tail(n)), nil
}

func frameDescribe(_ *starlark.Thread, f *Frame, _ *args) (starlark.Value, error) {
	return newFrame(f.sc, f.t.Describe()), nil
}

func frameInfo(thread *starlark.Thread, f *Frame, _ *args) (starlark.Value, error) {
	var b strings.Builder
	b.WriteString("<class 'pandas.core.frame.DataFrame'>\n")
	labels := f.t.Labels()
	if len(labels) > 0 {
		fmt.Fprintf(&b, "Index: %d entries, %s to %s\n", len(labels), labels[0], labels[len(labels)-1])
	} else {
		b.WriteString("Index: 0 entries\n")
	}
	fmt.Fprintf(&b, "Data columns (total %d columns):\n", f.t.Width())

	nameWidth := len("Column")
	for _, n := range f.t.Columns() {
		nameWidth = max(nameWidth, len(n))
	}
	fmt.Fprintf(&b, " #   %-*s  Non-Null Count  Dtype\n", nameWidth, "Column")
	fmt.Fprintf(&b, "---  %s  --------------  -----\n", strings.Repeat("-", nameWidth))
	counts := make(map[string]int)
	var order []string
	for i := 0; i < f.t.Width(); i++ {
		c := f.t.ColumnAt(i)
		fmt.Fprintf(&b, " %-3d %-*s  %-14s  %s\n", i, nameWidth, c.Name, fmt.Sprintf("%d non-null", c.Count()), c.DType())
		if counts[c.DType()] == 0 {
			order = append(order, c.DType())
		}
		counts[c.DType()]++
	}
	parts := make([]string, len(order))
	for i, d := range order {
		parts[i] = fmt.Sprintf("%s(%d)", d, counts[d])
	}
	fmt.Fprintf(&b, "dtypes: %s", strings.Join(parts, ", "))
	printLine(thread, b.String())
	return starlark.None, nil
}

func frameReduce(agg string) frameMethod {
	return func(_ *starlark.Thread, f *Frame, _ *args) (starlark.Value, error) {
		col, labels, err := f.t.Reduce(agg)
		if err != nil {
			return nil, err
		}
		return newSeries(f.sc, col.Rename(""), labels), nil
	}
}

func frameCorr(_ *starlark.Thread, f *Frame, _ *args) (starlark.Value, error) {
	return newFrame(f.sc, f.t.Corr()), nil
}

func frameIsNull(_ *starlark.Thread, f *Frame, _ *args) (starlark.Value, error) {
	return newFrame(f.sc, f.t.IsNull()), nil
}

func frameDropNA(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
	subset, err := a.strs(-1, "subset")
	if err != nil {
		return nil, err
	}
	if len(subset) == 0 {
		return newFrame(f.sc, f.t.DropNA()), nil
	}
	part, err := f.t.Select(subset...)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, f.t.Len())
	for i := range mask {
		mask[i] = true
		for j := 0; j < part.Width(); j++ {
			if part.ColumnAt(j).IsMissing(i) {
				mask[i] = false
				break
			}
		}
	}
	t, err := f.t.Filter(mask)
	if err != nil {
		return nil, err
	}
	return newFrame(f.sc, t), nil
}

func frameSort(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
	by, err := a.strs(0, "by")
	if err != nil {
		return nil, err
	}
	if len(by) != 1 {
		return nil, errors.New("sort_values: exactly one column name is supported in by")
	}
	t, err := f.t.SortBy(by[0], a.boolean(-1, "ascending", true))
	if err != nil {
		return nil, err
	}
	return newFrame(f.sc, t), nil
}

func frameGroupBy(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
	by, err := a.strs(0, "by")
	if err != nil {
		return nil, err
	}
	if len(by) != 1 {
		return nil, errors.New("groupby: grouping by several columns is not supported")
	}
	g, err := f.t.GroupBy(by[0])
	if err != nil {
		return nil, err
	}
	return &GroupBy{g: g, sc: f.sc}, nil
}

func frameSelectDtypes(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
	include, err := a.strs(0, "include")
	if err != nil {
		return nil, err
	}
	exclude, err := a.strs(1, "exclude")
	if err != nil {
		return nil, err
	}
	var names []string
	for i := 0; i < f.t.Width(); i++ {
		c := f.t.ColumnAt(i)
		if len(include) > 0 && !dtypeMatches(c, include) {
			continue
		}
		if len(exclude) > 0 && dtypeMatches(c, exclude) {
			continue
		}
		names = append(names, c.Name)
	}
	t, err := f.t.Select(names...)
	if err != nil {
		return nil, err
	}
	return newFrame(f.sc, t), nil
}

func dtypeMatches(c *dataset.Column, selectors []string) bool {
	for _, s := range selectors {
		switch s {
		case "number", "numeric":
			if c.Kind == dataset.KindNumber {
				return true
			}
		case "object", "str", "string", "category":
			if c.Kind == dataset.KindText {
				return true
			}
		default:
			if s == c.DType() {
				return true
			}
		}
	}
	return false
}

func frameDrop(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
	drop, err := a.strs(-1, "columns")
	if err != nil {
		return nil, err
	}
	if drop == nil {
		if drop, err = a.strs(0, "labels"); err != nil {
			return nil, err
		}
	}
	skip := make(map[string]bool, len(drop))
	for _, n := range drop {
		if _, ok := f.t.Column(n); !ok {
			return nil, fmt.Errorf("drop: %w: %s", dataset.ErrColumnNotFound, n)
		}
		skip[n] = true
	}
	var keep []string
	for _, n := range f.t.Columns() {
		if !skip[n] {
			keep = append(keep, n)
		}
	}
	t, err := f.t.Select(keep...)
	if err != nil {
		return nil, err
	}
	return newFrame(f.sc, t), nil
}

func frameExtreme(lowest bool) frameMethod {
	return func(_ *starlark.Thread, f *Frame, a *args) (starlark.Value, error) {
		n, err := a.integer(0, "n", 5)
		if err != nil {
			return nil, err
		}
		cols, err := a.strs(1, "columns")
		if err != nil {
			return nil, err
		}
		if len(cols) != 1 {
			return nil, errors.New("exactly one column is supported")
		}
		t, err := f.t.SortBy(cols[0], lowest)
		if err != nil {
			return nil, err
		}
		return newFrame(f.sc, t.Head(n)), nil
	}
}
