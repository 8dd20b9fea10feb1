package sandbox

import (
	"errors"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

// Index is the read-only label list behind df.columns, df.index and s.index
type Index struct {
	labels []string
}

var (
	_ starlark.Indexable = (*Index)(nil)
	_ starlark.Sequence  = (*Index)(nil)
	_ starlark.HasAttrs  = (*Index)(nil)
)

func (ix *Index) String() string {
	quoted := make([]string, len(ix.labels))
	for i, l := range ix.labels {
		quoted[i] = "'" + l + "'"
	}
	return "Index([" + strings.Join(quoted, ", ") + "], dtype='object')"
}

func (ix *Index) Type() string { return "Index" }
func (ix *Index) Freeze() {}
func (ix *Index) Truth() starlark.Bool { return len(ix.labels) > 0 }
func (ix *Index) Hash() (uint32, error) { return 0, errors.New("unhashable type: Index") }
func (ix *Index) Len() int { return len(ix.labels) }
func (ix *Index) Index(i int) starlark.Value { return labelValue(ix.labels[i]) }

func (ix *Index) Iterate() starlark.Iterator {
	return &indexIterator{ix: ix}
}

type indexIterator struct {
	ix *Index
	i  int
}

func (it *indexIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.ix.labels) {
		return false
	}
	*p = it.ix.Index(it.i)
	it.i++
	return true
}

func (*indexIterator) Done() {}

func (ix *Index) Attr(name string) (starlark.Value, error) {
	switch name {
	case "tolist", "to_list":
		return builtin(name, func(_ *starlark.Thread, _ *args) (starlark.Value, error) {
			return ix.list(), nil
		}), nil
	case "values":
		return ix.list(), nil
	case "size":
		return starlark.MakeInt(len(ix.labels)), nil
	}
	return nil, nil
}

func (*Index) AttrNames() []string { return []string{"size", "to_list", "tolist", "values"} }

func (ix *Index) list() *starlark.List {
	elems := make([]starlark.Value, len(ix.labels))
	for i := range elems {
		elems[i] = ix.Index(i)
	}
	return starlark.NewList(elems)
}

// numericLabels returns the labels as numbers when every label parses
func numericLabels(labels []string) ([]float64, bool) {
	out := make([]float64, len(labels))
	for i, l := range labels {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
