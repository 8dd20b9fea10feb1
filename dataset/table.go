package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrColumnNotFound is returned when a column name does not exist
var ErrColumnNotFound = errors.New("column not found")

// Table is an immutable collection of equally long columns with row labels
type Table struct {
	cols   []*Column
	byName map[string]int
	labels []string
	rows   int
}

// New builds a table with a default 0..n-1 row index
func New(cols ...*Column) (*Table, error) {
	return NewWithLabels(nil, cols...)
}

// NewWithLabels builds a table with explicit row labels. A nil label slice
// selects the default positional index.
func NewWithLabels(labels []string, cols ...*Column) (*Table, error) {
	t := &Table{byName: make(map[string]int, len(cols))}
	t.rows = -1
	for _, c := range cols {
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if t.rows >= 0 && c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), t.rows)
		}
		t.rows = c.Len()
		t.byName[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	if t.rows < 0 {
		t.rows = len(labels)
	}
	if labels != nil && len(labels) != t.rows {
		return nil, fmt.Errorf("got %d row labels for %d rows", len(labels), t.rows)
	}
	if labels == nil {
		labels = DefaultLabels(t.rows)
	}
	t.labels = labels
	return t, nil
}

// DefaultLabels returns the positional index "0".."n-1"
func DefaultLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return labels
}

// Len returns the number of rows
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns
func (t *Table) Width() int { return len(t.cols) }

// Columns returns the column names in order
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the i-th column
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// Labels returns the row labels
func (t *Table) Labels() []string { return t.labels }

// Take returns the rows at the given positions, keeping their labels
func (t *Table) Take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Take(idx)
	}
	labels := make([]string, len(idx))
	for j, i := range idx {
		labels[j] = t.labels[i]
	}
	out, _ := NewWithLabels(labels, cols...)
	return out
}

// Head returns the first n rows
func (t *Table) Head(n int) *Table {
	n = clampRows(n, t.rows)
	return t.Take(span(0, n))
}

// Tail returns the last n rows
func (t *Table) Tail(n int) *Table {
	n = clampRows(n, t.rows)
	return t.Take(span(t.rows-n, t.rows))
}

// Filter keeps the rows whose mask entry is true
func (t *Table) Filter(mask []bool) (*Table, error) {
	if len(mask) != t.rows {
		return nil, fmt.Errorf("mask has %d entries for %d rows", len(mask), t.rows)
	}
	var idx []int
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return t.Take(idx), nil
}

// Select projects the table onto the named columns
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, n)
		}
		cols = append(cols, c)
	}
	return NewWithLabels(t.labels, cols...)
}

// Numeric projects the table onto its numeric columns
func (t *Table) Numeric() *Table {
	var cols []*Column
	for _, c := range t.cols {
		if c.Numeric() {
			cols = append(cols, c)
		}
	}
	out, _ := NewWithLabels(t.labels, cols...)
	return out
}

// SortBy orders rows by one column, missing values last
func (t *Table) SortBy(name string, ascending bool) (*Table, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return t.Take(c.Order(ascending)), nil
}

// DropNA removes every row with at least one missing cell
func (t *Table) DropNA() *Table {
	var idx []int
	for i := 0; i < t.rows; i++ {
		complete := true
		for _, c := range t.cols {
			if c.IsMissing(i) {
				complete = false
				break
			}
		}
		if complete {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// IsNull maps every cell to a boolean missing flag
func (t *Table) IsNull() *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.IsNull()
	}
	out, _ := NewWithLabels(t.labels, cols...)
	return out
}

// Reduce applies an aggregation to every eligible column and returns the
// result as a column labelled by column name.
func (t *Table) Reduce(agg string) (*Column, []string, error) {
	var labels []string
	var values []float64
	keepInt := true
	for _, c := range t.cols {
		if !c.Numeric() && agg != "count" && agg != "nunique" {
			continue
		}
		v, err := Aggregate(c, agg)
		if err != nil {
			return nil, nil, err
		}
		labels = append(labels, c.Name)
		values = append(values, v)
		keepInt = keepInt && AggregateKeepsInteger(c, agg)
	}
	if keepInt {
		return NewNumberColumn(agg, values), labels, nil
	}
	return NewFloatColumn(agg, values), labels, nil
}

// DescribeLabels are the row labels of Describe
var DescribeLabels = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Describe summarises every numeric column. A table without numeric columns
// is summarised with count, unique, top and freq instead.
func (t *Table) Describe() *Table {
	var cols []*Column
	for _, c := range t.cols {
		if c.Numeric() {
			cols = append(cols, NewFloatColumn(c.Name, DescribeColumn(c)))
		}
	}
	if len(cols) > 0 {
		out, _ := NewWithLabels(DescribeLabels, cols...)
		return out
	}
	for _, c := range t.cols {
		cols = append(cols, NewTextColumn(c.Name, DescribeText(c), nil))
	}
	out, _ := NewWithLabels(DescribeTextLabels, cols...)
	return out
}

// DescribeColumn returns the numeric summary values in DescribeLabels order
func DescribeColumn(c *Column) []float64 {
	v := c.Floats()
	return []float64{
		float64(len(v)), Mean(v), Std(v), Min(v),
		Quantile(v, 0.25), Quantile(v, 0.5), Quantile(v, 0.75), Max(v),
	}
}

// DescribeTextLabels are the row labels of a non-numeric summary
var DescribeTextLabels = []string{"count", "unique", "top", "freq"}

// DescribeText returns count, unique, top and freq as display strings
func DescribeText(c *Column) []string {
	counts := c.ValueCounts()
	top, freq := "NaN", "NaN"
	if len(counts) > 0 {
		top = counts[0].Label
		freq = strconv.Itoa(counts[0].Count)
	}
	return []string{strconv.Itoa(c.Count()), strconv.Itoa(len(counts)), top, freq}
}

// Corr returns the pairwise Pearson correlation matrix of numeric columns
func (t *Table) Corr() *Table {
	num := t.Numeric()
	names := num.Columns()
	cols := make([]*Column, len(num.cols))
	for j, cj := range num.cols {
		values := make([]float64, len(num.cols))
		for i, ci := range num.cols {
			if i == j {
				values[i] = 1
				continue
			}
			values[i] = Pearson(ci.Nums, cj.Nums)
		}
		cols[j] = NewFloatColumn(cj.Name, values)
	}
	out, _ := NewWithLabels(names, cols...)
	return out
}

// Matrix returns the numeric cells row by row, NaN for missing or text cells
func (t *Table) Matrix() [][]float64 {
	m := make([][]float64, t.rows)
	for i := range m {
		m[i] = make([]float64, len(t.cols))
		for j, c := range t.cols {
			if c.Numeric() {
				m[i][j] = c.Nums[i]
			} else {
				m[i][j] = math.NaN()
			}
		}
	}
	return m
}

func clampRows(n, rows int) int {
	if n < 0 {
		n = rows + n
		if n < 0 {
			n = 0
		}
	}
	if n > rows {
		n = rows
	}
	return n
}

func span(from, to int) []int {
	idx := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		idx = append(idx, i)
	}
	return idx
}
