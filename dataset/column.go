package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind is the storage class of a column
type Kind int

const (
	// KindNumber holds float64 values, NaN marks a missing cell
	KindNumber Kind = iota
	// KindText holds strings with a separate missing mask
	KindText
	// KindBool holds 0/1 in the numeric slice, NaN marks a missing cell
	KindBool
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Column is a named, typed vector of cells
type Column struct {
	Name    string
	Kind    Kind
	Integer bool
	Nums    []float64
	Strs    []string
	Missing []bool
}

// NewNumberColumn builds a numeric column. NaN values are treated as missing.
func NewNumberColumn(name string, values []float64) *Column {
	integer := true
	for _, v := range values {
		if math.IsNaN(v) || v != math.Trunc(v) || math.IsInf(v, 0) {
			integer = false
			break
		}
	}
	return &Column{Name: name, Kind: KindNumber, Integer: integer, Nums: values}
}

// NewFloatColumn builds a numeric column that never reports integer values
func NewFloatColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: KindNumber, Nums: values}
}

// NewTextColumn builds a text column. A nil missing mask means no cell is missing.
func NewTextColumn(name string, values []string, missing []bool) *Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return &Column{Name: name, Kind: KindText, Strs: values, Missing: missing}
}

// NewBoolColumn builds a boolean column without missing cells
func NewBoolColumn(name string, values []bool) *Column {
	nums := make([]float64, len(values))
	for i, b := range values {
		if b {
			nums[i] = 1
		}
	}
	return &Column{Name: name, Kind: KindBool, Nums: nums}
}

// Len returns the number of cells
func (c *Column) Len() int {
	if c.Kind == KindText {
		return len(c.Strs)
	}
	return len(c.Nums)
}

// Numeric reports whether the column takes part in arithmetic aggregation
func (c *Column) Numeric() bool {
	return c.Kind == KindNumber || c.Kind == KindBool
}

// IsMissing reports whether cell i holds no value
func (c *Column) IsMissing(i int) bool {
	if c.Kind == KindText {
		return c.Missing[i]
	}
	return math.IsNaN(c.Nums[i])
}

// DType returns the pandas-style dtype name
func (c *Column) DType() string {
	switch c.Kind {
	case KindNumber:
		if c.Integer {
			return "int64"
		}
		return "float64"
	case KindBool:
		return "bool"
	default:
		return "object"
	}
}

// Value returns cell i as a Go value: int64, float64, bool, string, or nil when missing
func (c *Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	switch c.Kind {
	case KindNumber:
		if c.Integer {
			return int64(c.Nums[i])
		}
		return c.Nums[i]
	case KindBool:
		return c.Nums[i] != 0
	default:
		return c.Strs[i]
	}
}

// Cell returns the display text of cell i
func (c *Column) Cell(i int) string {
	switch c.Kind {
	case KindText:
		if c.Missing[i] {
			return "NaN"
		}
		return c.Strs[i]
	case KindBool:
		if math.IsNaN(c.Nums[i]) {
			return "NaN"
		}
		if c.Nums[i] != 0 {
			return "True"
		}
		return "False"
	default:
		return FormatNumber(c.Nums[i], c.Integer)
	}
}

// Key returns the grouping key of cell i
func (c *Column) Key(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	return c.Cell(i)
}

// Floats returns the non-missing numeric values
func (c *Column) Floats() []float64 {
	if !c.Numeric() {
		return nil
	}
	out := make([]float64, 0, len(c.Nums))
	for _, v := range c.Nums {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of non-missing cells
func (c *Column) Count() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if !c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Take returns a new column holding the cells at the given positions
func (c *Column) Take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Integer: c.Integer}
	if c.Kind == KindText {
		out.Strs = make([]string, len(idx))
		out.Missing = make([]bool, len(idx))
		for j, i := range idx {
			out.Strs[j] = c.Strs[i]
			out.Missing[j] = c.Missing[i]
		}
		return out
	}
	out.Nums = make([]float64, len(idx))
	for j, i := range idx {
		out.Nums[j] = c.Nums[i]
	}
	return out
}

// Rename returns a shallow copy of the column under a new name
func (c *Column) Rename(name string) *Column {
	out := *c
	out.Name = name
	return &out
}

// IsNull returns a boolean column marking missing cells
func (c *Column) IsNull() *Column {
	flags := make([]bool, c.Len())
	for i := range flags {
		flags[i] = c.IsMissing(i)
	}
	return NewBoolColumn(c.Name, flags)
}

// Unique returns the distinct non-missing cells in order of first appearance
func (c *Column) Unique() []int {
	seen := make(map[string]bool)
	var idx []int
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		k := c.Key(i)
		if !seen[k] {
			seen[k] = true
			idx = append(idx, i)
		}
	}
	return idx
}

// ValueCount is one entry of a frequency table
type ValueCount struct {
	Index int
	Label string
	Count int
}

// ValueCounts returns frequencies of the non-missing cells ordered by count
// descending, ties in order of first appearance.
func (c *Column) ValueCounts() []ValueCount {
	pos := make(map[string]int)
	var counts []ValueCount
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		k := c.Key(i)
		if p, ok := pos[k]; ok {
			counts[p].Count++
			continue
		}
		pos[k] = len(counts)
		counts = append(counts, ValueCount{Index: i, Label: k, Count: 1})
	}
	sort.SliceStable(counts, func(a, b int) bool { return counts[a].Count > counts[b].Count })
	return counts
}

// Order returns row positions sorting the column, missing cells last
func (c *Column) Order(ascending bool) []int {
	idx := make([]int, c.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		mi, mj := c.IsMissing(i), c.IsMissing(j)
		if mi || mj {
			return !mi && mj
		}
		if c.Kind == KindText {
			if ascending {
				return c.Strs[i] < c.Strs[j]
			}
			return c.Strs[i] > c.Strs[j]
		}
		if ascending {
			return c.Nums[i] < c.Nums[j]
		}
		return c.Nums[i] > c.Nums[j]
	})
	return idx
}

// FormatNumber renders a float the way pandas prints scalars: integers
// without a fraction, other values with up to six decimals.
func FormatNumber(v float64, integer bool) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case integer:
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}
