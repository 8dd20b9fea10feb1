package sandbox

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/isdmx/dataagent/dataset"
)

// GroupBy is the result of df.groupby(key), optionally narrowed to one
// column with g['col']
type GroupBy struct {
	g      *dataset.Grouping
	sc     *scope
	column string
}

var (
	_ starlark.HasAttrs = (*GroupBy)(nil)
	_ starlark.Mapping  = (*GroupBy)(nil)
)

func (g *GroupBy) String() string {
	if g.column != "" {
		return fmt.Sprintf("<SeriesGroupBy %s by %s>", g.column, g.g.Key())
	}
	return fmt.Sprintf("<DataFrameGroupBy by %s>", g.g.Key())
}

func (g *GroupBy) Type() string { return "GroupBy" }
func (g *GroupBy) Freeze() {}
func (g *GroupBy) Truth() starlark.Bool { return true }
func (g *GroupBy) Hash() (uint32, error) { return 0, errors.New("unhashable type: GroupBy") }

func (g *GroupBy) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("groupby selection must be a column name, not %s", k.Type())
	}
	if _, exists := g.g.Table().Column(name); !exists {
		return nil, false, fmt.Errorf("KeyError: %q", name)
	}
	return &GroupBy{g: g.g, sc: g.sc, column: name}, true, nil
}

var groupAggs = []string{"sum", "mean", "median", "min", "max", "std", "var", "count", "nunique"}

func (g *GroupBy) Attr(name string) (starlark.Value, error) {
	switch name {
	case "size":
		return builtin(name, func(_ *starlark.Thread, _ *args) (starlark.Value, error) {
			return newSeries(g.sc, g.g.Sizes().Rename(""), g.g.Keys()), nil
		}), nil
	case "agg", "aggregate":
		return builtin(name, func(_ *starlark.Thread, a *args) (starlark.Value, error) {
			agg, err := a.str(0, "func", "")
			if err != nil {
				return nil, err
			}
			return g.aggregate(agg)
		}), nil
	}
	for _, agg := range groupAggs {
		if agg == name {
			return builtin(name, func(_ *starlark.Thread, _ *args) (starlark.Value, error) {
				return g.aggregate(agg)
			}), nil
		}
	}
	if _, ok := g.g.Table().Column(name); ok && g.column == "" {
		return &GroupBy{g: g.g, sc: g.sc, column: name}, nil
	}
	return nil, nil
}

func (g *GroupBy) AttrNames() []string {
	return append([]string{"agg", "aggregate", "size"}, groupAggs...)
}

func (g *GroupBy) aggregate(agg string) (starlark.Value, error) {
	if g.column != "" {
		col, err := g.g.Aggregate(g.column, agg)
		if err != nil {
			return nil, err
		}
		return newSeries(g.sc, col, g.g.Keys()), nil
	}
	t, err := g.g.AggregateAll(agg)
	if err != nil {
		return nil, err
	}
	return newFrame(g.sc, t), nil
}
