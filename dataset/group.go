package dataset

import (
	"fmt"
	"sort"
)

// Grouping partitions the rows of a table by the values of a key column.
// Groups are ordered by key, numerically for numeric keys.
type Grouping struct {
	table  *Table
	key    *Column
	keys   []string
	member [][]int
}

// GroupBy partitions rows by the named column. Rows with a missing key are dropped.
func (t *Table) GroupBy(name string) (*Grouping, error) {
	key, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	g := &Grouping{table: t, key: key}
	pos := make(map[string]int)
	first := make([]int, 0)
	for i := 0; i < t.rows; i++ {
		if key.IsMissing(i) {
			continue
		}
		k := key.Key(i)
		p, seen := pos[k]
		if !seen {
			p = len(g.keys)
			pos[k] = p
			g.keys = append(g.keys, k)
			g.member = append(g.member, nil)
			first = append(first, i)
		}
		g.member[p] = append(g.member[p], i)
	}
	order := make([]int, len(g.keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := first[order[a]], first[order[b]]
		if key.Kind == KindText {
			return key.Strs[ia] < key.Strs[ib]
		}
		return key.Nums[ia] < key.Nums[ib]
	})
	keys := make([]string, len(order))
	member := make([][]int, len(order))
	for j, i := range order {
		keys[j] = g.keys[i]
		member[j] = g.member[i]
	}
	g.keys, g.member = keys, member
	return g, nil
}

// Key returns the name of the grouping column
func (g *Grouping) Key() string { return g.key.Name }

// Keys returns the group labels in order
func (g *Grouping) Keys() []string { return g.keys }

// Table returns the grouped table
func (g *Grouping) Table() *Table { return g.table }

// Aggregate reduces one column per group
func (g *Grouping) Aggregate(name, agg string) (*Column, error) {
	col, ok := g.table.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	values := make([]float64, len(g.keys))
	for i, rows := range g.member {
		v, err := Aggregate(col.Take(rows), agg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	if AggregateKeepsInteger(col, agg) {
		return NewNumberColumn(name, values), nil
	}
	return NewFloatColumn(name, values), nil
}

// AggregateAll reduces every numeric non-key column per group
func (g *Grouping) AggregateAll(agg string) (*Table, error) {
	var cols []*Column
	for _, c := range g.table.cols {
		if c == g.key {
			continue
		}
		if !c.Numeric() && agg != "count" && agg != "nunique" && agg != "size" {
			continue
		}
		out, err := g.Aggregate(c.Name, agg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, out)
	}
	return NewWithLabels(g.keys, cols...)
}

// Sizes returns the number of rows in each group
func (g *Grouping) Sizes() *Column {
	values := make([]float64, len(g.member))
	for i, rows := range g.member {
		values[i] = float64(len(rows))
	}
	return NewNumberColumn("size", values)
}

// Values returns the non-missing numeric values of one column per group
func (g *Grouping) Values(name string) ([][]float64, error) {
	col, ok := g.table.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	if !col.Numeric() {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	out := make([][]float64, len(g.member))
	for i, rows := range g.member {
		out[i] = col.Take(rows).Floats()
	}
	return out, nil
}
