package sandbox

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/isdmx/dataagent/dataset"
)

// newPandas builds the pd module for one execution
func newPandas(sc *scope) *starlarkstruct.Module {
	funcs := map[string]scopeMethod{
		"DataFrame":  pdDataFrame,
		"Series":     pdSeries,
		"isna":       pdIsNA(false),
		"isnull":     pdIsNA(false),
		"notna":      pdIsNA(true),
		"notnull":    pdIsNA(true),
		"to_numeric": pdToNumeric,
	}
	members := make(starlark.StringDict, len(funcs)+1)
	for name, fn := range funcs {
		members[name] = sc.method(name, fn)
	}
	members["NA"] = starlark.None
	return &starlarkstruct.Module{Name: "pd", Members: members}
}

// pdDataFrame accepts a dict of columns, a list of row dicts or a DataFrame
func pdDataFrame(sc *scope, a *args) (starlark.Value, error) {
	data := a.get(0, "data")
	var (
		t   *dataset.Table
		err error
	)
	switch d := data.(type) {
	case nil:
		t, err = dataset.New()
	case *Frame:
		t = d.t
	case *starlark.Dict:
		t, err = frameFromDict(d)
	case *starlark.List, starlark.Tuple:
		t, err = frameFromRecords(d)
	default:
		return nil, fmt.Errorf("DataFrame: unsupported data of type %s", data.Type())
	}
	if err != nil {
		return nil, fmt.Errorf("DataFrame: %w", err)
	}
	cols, err := a.strs(-1, "columns")
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		if t, err = t.Select(cols...); err != nil {
			return nil, fmt.Errorf("DataFrame: %w", err)
		}
	}
	return newFrame(sc, t), nil
}

func frameFromDict(d *starlark.Dict) (*dataset.Table, error) {
	var (
		cols   []*dataset.Column
		labels []string
	)
	for _, item := range d.Items() {
		name, ok := starlark.AsString(item[0])
		if !ok {
			name = item[0].String()
		}
		if s, ok := item[1].(*Series); ok {
			if labels == nil {
				labels = s.labels
			}
			cols = append(cols, s.col.Rename(name))
			continue
		}
		vals, err := values(item[1])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		cols = append(cols, columnFromValues(name, vals))
	}
	return dataset.NewWithLabels(labels, cols...)
}

func frameFromRecords(v starlark.Value) (*dataset.Table, error) {
	rows, err := values(v)
	if err != nil {
		return nil, err
	}
	var names []string
	cells := make(map[string][]starlark.Value)
	for i, row := range rows {
		d, ok := row.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("row %d: expected a dict, got %s", i, row.Type())
		}
		for _, item := range d.Items() {
			name, ok := starlark.AsString(item[0])
			if !ok {
				name = item[0].String()
			}
			if _, seen := cells[name]; !seen {
				names = append(names, name)
				cells[name] = make([]starlark.Value, len(rows))
			}
			cells[name][i] = item[1]
		}
	}
	cols := make([]*dataset.Column, len(names))
	for j, name := range names {
		vals := cells[name]
		for i, v := range vals {
			if v == nil {
				vals[i] = starlark.None
			}
		}
		cols[j] = columnFromValues(name, vals)
	}
	return dataset.New(cols...)
}

func pdSeries(sc *scope, a *args) (starlark.Value, error) {
	data := a.get(0, "data")
	name, err := a.str(-1, "name", "")
	if err != nil {
		return nil, err
	}
	var vals []starlark.Value
	var labels []string
	switch d := data.(type) {
	case nil:
	case *starlark.Dict:
		for _, item := range d.Items() {
			labels = append(labels, labelText(item[0]))
			vals = append(vals, item[1])
		}
	default:
		if vals, err = values(data); err != nil {
			return nil, fmt.Errorf("Series: %w", err)
		}
	}
	if a.has(-1, "index") {
		idx, err := values(a.kw["index"])
		if err != nil {
			return nil, fmt.Errorf("Series: index: %w", err)
		}
		if len(idx) != len(vals) {
			return nil, fmt.Errorf("Series: length of values (%d) does not match length of index (%d)", len(vals), len(idx))
		}
		labels = make([]string, len(idx))
		for i, v := range idx {
			labels[i] = labelText(v)
		}
	}
	if labels == nil {
		labels = dataset.DefaultLabels(len(vals))
	}
	return newSeries(sc, columnFromValues(name, vals), labels), nil
}

func labelText(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

func pdIsNA(negate bool) scopeMethod {
	return func(sc *scope, a *args) (starlark.Value, error) {
		v, ok := a.kw["obj"]
		if len(a.pos) > 0 {
			v, ok = a.pos[0], true
		}
		if !ok {
			return nil, fmt.Errorf("%s: missing argument", a.fn)
		}
		switch x := v.(type) {
		case *Series:
			return seriesIsNull(negate)(nil, x, a)
		case *Frame:
			if negate {
				return nil, fmt.Errorf("%s: DataFrame input is not supported, use df.isnull()", a.fn)
			}
			return newFrame(sc, x.t.IsNull()), nil
		case starlark.NoneType:
			return starlark.Bool(!negate), nil
		case starlark.Float:
			return starlark.Bool(math.IsNaN(float64(x)) != negate), nil
		}
		return starlark.Bool(negate), nil
	}
}

// pdToNumeric parses text values; errors='coerce' turns failures into NaN
func pdToNumeric(sc *scope, a *args) (starlark.Value, error) {
	v := a.get(0, "arg")
	if v == nil {
		return nil, errors.New("to_numeric: missing argument")
	}
	mode, err := a.str(-1, "errors", "raise")
	if err != nil {
		return nil, err
	}
	parse := func(s string) (float64, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			if mode == "coerce" {
				return math.NaN(), nil
			}
			return 0, fmt.Errorf("to_numeric: unable to parse string %q", s)
		}
		return f, nil
	}

	if s, ok := starlark.AsString(v); ok {
		f, err := parse(s)
		if err != nil {
			return nil, err
		}
		return starlark.Float(f), nil
	}
	if f, ok := toFloat(v); ok {
		return starlark.Float(f), nil
	}
	s, err := seriesFrom(sc, v, "")
	if err != nil {
		return nil, err
	}
	if s.col.Numeric() {
		return s, nil
	}
	nums := make([]float64, s.Len())
	for i := range nums {
		if s.col.IsMissing(i) {
			nums[i] = math.NaN()
			continue
		}
		if nums[i], err = parse(s.col.Strs[i]); err != nil {
			return nil, err
		}
	}
	return s.derive(dataset.NewNumberColumn(s.col.Name, nums)), nil
}
