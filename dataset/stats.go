package dataset

import (
	"fmt"
	"math"
	"sort"
)

// Sum adds the values. An empty input sums to zero.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean or NaN for an empty input
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return Sum(values) / float64(len(values))
}

// Median returns the middle value or NaN for an empty input
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Quantile returns the q-th quantile using linear interpolation between
// closest ranks, the default of pandas.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Min returns the smallest value or NaN for an empty input
func Min(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value or NaN for an empty input
func Max(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Var returns the sample variance (one delta degree of freedom)
func Var(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	mean := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(values)-1)
}

// Std returns the sample standard deviation
func Std(values []float64) float64 {
	return math.Sqrt(Var(values))
}

// Pearson returns the correlation coefficient of the pairs where both
// sides are present.
func Pearson(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// Aggregate applies a named reduction to a column. Supported names are
// sum, mean, median, min, max, std, var, count, size and nunique.
func Aggregate(col *Column, name string) (float64, error) {
	switch name {
	case "count":
		return float64(col.Count()), nil
	case "size":
		return float64(col.Len()), nil
	case "nunique":
		return float64(len(col.Unique())), nil
	}
	if !col.Numeric() {
		return 0, fmt.Errorf("cannot compute %s of non-numeric column %q", name, col.Name)
	}
	values := col.Floats()
	switch name {
	case "sum":
		return Sum(values), nil
	case "mean":
		return Mean(values), nil
	case "median":
		return Median(values), nil
	case "min":
		return Min(values), nil
	case "max":
		return Max(values), nil
	case "std":
		return Std(values), nil
	case "var":
		return Var(values), nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", name)
	}
}

// AggregateKeepsInteger reports whether an aggregate of an integer column
// is itself integral.
func AggregateKeepsInteger(col *Column, name string) bool {
	switch name {
	case "count", "size", "nunique":
		return true
	case "sum", "min", "max":
		return col.Integer || col.Kind == KindBool
	default:
		return false
	}
}
