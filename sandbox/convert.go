package sandbox

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"

	"github.com/isdmx/dataagent/dataset"
)

// cellValue converts one cell to a script value. Missing numbers become
// nan, other missing cells None.
func cellValue(c *dataset.Column, i int) starlark.Value {
	switch c.Kind {
	case dataset.KindText:
		if c.Missing[i] {
			return starlark.None
		}
		return starlark.String(c.Strs[i])
	case dataset.KindBool:
		if math.IsNaN(c.Nums[i]) {
			return starlark.None
		}
		return starlark.Bool(c.Nums[i] != 0)
	default:
		return numberValue(c.Nums[i], c.Integer)
	}
}

func numberValue(v float64, integer bool) starlark.Value {
	if integer && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return starlark.MakeInt64(int64(v))
	}
	return starlark.Float(v)
}

// aggregateValue returns the scalar result of a reduction on c
func aggregateValue(c *dataset.Column, agg string) (starlark.Value, error) {
	v, err := dataset.Aggregate(c, agg)
	if err != nil {
		return nil, err
	}
	return numberValue(v, dataset.AggregateKeepsInteger(c, agg)), nil
}

func toFloat(v starlark.Value) (float64, bool) {
	switch x := v.(type) {
	case starlark.Bool:
		if x {
			return 1, true
		}
		return 0, true
	case starlark.NoneType:
		return math.NaN(), true
	default:
		return starlark.AsFloat(v)
	}
}

func toStrings(v starlark.Value) ([]string, error) {
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, nil
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a string or a list of strings, got %s", v.Type())
	}
	var out []string
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("expected strings, got %s", x.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

// values collects the elements of an iterable value
func values(v starlark.Value) ([]starlark.Value, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s is not iterable", v.Type())
	}
	var out []starlark.Value
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		out = append(out, x)
	}
	return out, nil
}

// columnFromValues infers a column from script values: all numbers give a
// numeric column, all booleans a bool column, anything else text.
func columnFromValues(name string, vals []starlark.Value) *dataset.Column {
	allNum, allBool, allInt := true, true, true
	for _, v := range vals {
		switch v.(type) {
		case starlark.NoneType:
			allInt = false
		case starlark.Bool:
			allNum = false
		case starlark.Int:
			allBool = false
		case starlark.Float:
			allBool, allInt = false, false
		default:
			allNum, allBool = false, false
		}
	}
	switch {
	case len(vals) == 0:
		return dataset.NewFloatColumn(name, nil)
	case allBool:
		nums := make([]float64, len(vals))
		for i, v := range vals {
			nums[i], _ = toFloat(v)
		}
		return &dataset.Column{Name: name, Kind: dataset.KindBool, Nums: nums}
	case allNum:
		nums := make([]float64, len(vals))
		for i, v := range vals {
			nums[i], _ = toFloat(v)
		}
		return &dataset.Column{Name: name, Kind: dataset.KindNumber, Integer: allInt, Nums: nums}
	}
	strs := make([]string, len(vals))
	missing := make([]bool, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case starlark.NoneType:
			missing[i] = true
		case starlark.String:
			strs[i] = string(x)
		default:
			strs[i] = v.String()
		}
	}
	return dataset.NewTextColumn(name, strs, missing)
}

// seriesFrom converts a Series or any iterable into a Series
func seriesFrom(sc *scope, v starlark.Value, name string) (*Series, error) {
	if s, ok := v.(*Series); ok {
		return s, nil
	}
	vals, err := values(v)
	if err != nil {
		return nil, err
	}
	col := columnFromValues(name, vals)
	return newSeries(sc, col, dataset.DefaultLabels(col.Len())), nil
}
