package sandbox

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/isdmx/dataagent/dataset"
)

// Series is a labelled column exposed to scripts
type Series struct {
	col    *dataset.Column
	labels []string
	sc     *scope
}

var (
	_ starlark.HasAttrs  = (*Series)(nil)
	_ starlark.Mapping   = (*Series)(nil)
	_ starlark.Sequence  = (*Series)(nil)
	_ starlark.HasBinary = (*Series)(nil)
	_ starlark.HasUnary  = (*Series)(nil)
)

func newSeries(sc *scope, col *dataset.Column, labels []string) *Series {
	return &Series{col: col, labels: labels, sc: sc}
}

func (s *Series) String() string { return dataset.FormatSeries(s.col, s.labels, true) }
func (s *Series) Type() string { return "Series" }
func (s *Series) Freeze() {}
func (s *Series) Truth() starlark.Bool { return s.col.Len() > 0 }
func (s *Series) Hash() (uint32, error) { return 0, errors.New("unhashable type: Series") }
func (s *Series) Len() int { return s.col.Len() }

func (s *Series) Iterate() starlark.Iterator { return &seriesIterator{s: s} }

type seriesIterator struct {
	s *Series
	i int
}

func (it *seriesIterator) Next(p *starlark.Value) bool {
	if it.i >= it.s.Len() {
		return false
	}
	*p = cellValue(it.s.col, it.i)
	it.i++
	return true
}

func (*seriesIterator) Done() {}

func (s *Series) take(idx []int) *Series {
	labels := make([]string, len(idx))
	for j, i := range idx {
		labels[j] = s.labels[i]
	}
	return newSeries(s.sc, s.col.Take(idx), labels)
}

func (s *Series) derive(col *dataset.Column) *Series {
	return newSeries(s.sc, col, s.labels)
}

// Get implements s[label], s[position] and s[mask]
func (s *Series) Get(k starlark.Value) (starlark.Value, bool, error) {
	switch k := k.(type) {
	case *Series:
		mask, err := k.mask(s.Len())
		if err != nil {
			return nil, false, err
		}
		return s.take(maskIndex(mask)), true, nil
	case starlark.String:
		if i := indexOf(s.labels, string(k)); i >= 0 {
			return cellValue(s.col, i), true, nil
		}
	case starlark.Int:
		if i := indexOf(s.labels, k.String()); i >= 0 {
			return cellValue(s.col, i), true, nil
		}
		if n, ok := k.Int64(); ok {
			if n < 0 {
				n += int64(s.Len())
			}
			if n >= 0 && n < int64(s.Len()) {
				return cellValue(s.col, int(n)), true, nil
			}
		}
	case *starlark.List, starlark.Tuple:
		keys, err := toStrings(k)
		if err != nil {
			return nil, false, err
		}
		idx := make([]int, 0, len(keys))
		for _, key := range keys {
			i := indexOf(s.labels, key)
			if i < 0 {
				return nil, false, fmt.Errorf("KeyError: %q", key)
			}
			idx = append(idx, i)
		}
		return s.take(idx), true, nil
	}
	return nil, false, nil
}

// mask interprets a boolean series as a row selector of length n
func (s *Series) mask(n int) ([]bool, error) {
	if s.col.Kind != dataset.KindBool {
		return nil, fmt.Errorf("cannot index with a %s Series, expected booleans", s.col.DType())
	}
	if s.Len() != n {
		return nil, fmt.Errorf("boolean index has %d entries, expected %d", s.Len(), n)
	}
	out := make([]bool, n)
	for i, v := range s.col.Nums {
		out[i] = v == 1
	}
	return out, nil
}

func (s *Series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		if s.col.Name == "" {
			return starlark.None, nil
		}
		return starlark.String(s.col.Name), nil
	case "size":
		return starlark.MakeInt(s.Len()), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(s.Len())}, nil
	case "dtype":
		return starlark.String(s.col.DType()), nil
	case "values":
		return s.list(), nil
	case "index":
		return &Index{labels: s.labels}, nil
	case "empty":
		return starlark.Bool(s.Len() == 0), nil
	case "plot":
		return &plotAccessor{target: s}, nil
	}
	if m, ok := seriesMethods[name]; ok {
		return builtin(name, func(thread *starlark.Thread, a *args) (starlark.Value, error) {
			return m(thread, s, a)
		}), nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string {
	return sortedNames(seriesMethods, "dtype", "empty", "index", "name", "plot", "shape", "size", "values")
}

func (s *Series) list() *starlark.List {
	elems := make([]starlark.Value, s.Len())
	for i := range elems {
		elems[i] = cellValue(s.col, i)
	}
	return starlark.NewList(elems)
}

func (s *Series) Unary(op syntax.Token) (starlark.Value, error) {
	switch op {
	case syntax.PLUS:
		return s, nil
	case syntax.MINUS:
		if s.col.Kind != dataset.KindNumber {
			return nil, fmt.Errorf("bad operand type for unary -: %s Series", s.col.DType())
		}
		out := make([]float64, s.Len())
		for i, v := range s.col.Nums {
			out[i] = -v
		}
		return s.derive(&dataset.Column{Name: s.col.Name, Kind: dataset.KindNumber, Integer: s.col.Integer, Nums: out}), nil
	case syntax.TILDE:
		if s.col.Kind != dataset.KindBool {
			return nil, fmt.Errorf("bad operand type for unary ~: %s Series", s.col.DType())
		}
		out := make([]bool, s.Len())
		for i, v := range s.col.Nums {
			out[i] = v != 1
		}
		return s.derive(dataset.NewBoolColumn(s.col.Name, out)), nil
	}
	return nil, nil
}

func (s *Series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.AMP, syntax.PIPE:
		other, ok := y.(*Series)
		if !ok {
			return nil, nil
		}
		a, err := s.mask(s.Len())
		if err != nil {
			return nil, err
		}
		b, err := other.mask(s.Len())
		if err != nil {
			return nil, err
		}
		out := make([]bool, len(a))
		for i := range a {
			if op == syntax.AMP {
				out[i] = a[i] && b[i]
			} else {
				out[i] = a[i] || b[i]
			}
		}
		return s.derive(dataset.NewBoolColumn(s.col.Name, out)), nil
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH, syntax.SLASHSLASH, syntax.PERCENT:
		return s.arith(op, y, side)
	}
	return nil, nil
}

func (s *Series) arith(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if !s.col.Numeric() {
		return nil, fmt.Errorf("unsupported operand for %s: %s Series", op, s.col.DType())
	}
	n := s.Len()
	var rhs func(int) float64
	rhsInt := false
	switch o := y.(type) {
	case *Series:
		if !o.col.Numeric() {
			return nil, fmt.Errorf("unsupported operand for %s: %s Series", op, o.col.DType())
		}
		if o.Len() != n {
			return nil, fmt.Errorf("cannot combine Series of length %d and %d", n, o.Len())
		}
		rhs = func(i int) float64 { return o.col.Nums[i] }
		rhsInt = o.col.Integer || o.col.Kind == dataset.KindBool
	default:
		f, ok := toFloat(y)
		if !ok {
			return nil, nil
		}
		rhs = func(int) float64 { return f }
		_, rhsInt = y.(starlark.Int)
	}

	out := make([]float64, n)
	integer := (s.col.Integer || s.col.Kind == dataset.KindBool) && rhsInt && op != syntax.SLASH
	for i := range out {
		a, b := s.col.Nums[i], rhs(i)
		if side == starlark.Right {
			a, b = b, a
		}
		out[i] = applyArith(op, a, b)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			integer = false
		}
	}
	return s.derive(&dataset.Column{Name: s.col.Name, Kind: dataset.KindNumber, Integer: integer, Nums: out}), nil
}

func applyArith(op syntax.Token, a, b float64) float64 {
	switch op {
	case syntax.PLUS:
		return a + b
	case syntax.MINUS:
		return a - b
	case syntax.STAR:
		return a * b
	case syntax.SLASH:
		return a / b
	case syntax.SLASHSLASH:
		return math.Floor(a / b)
	default:
		return a - b*math.Floor(a/b)
	}
}

// compare builds a boolean mask; missing cells compare false except for ne
func (s *Series) compare(op string, y starlark.Value) (*Series, error) {
	n := s.Len()
	out := make([]bool, n)
	other, isSeries := y.(*Series)
	if isSeries && other.Len() != n {
		return nil, fmt.Errorf("cannot compare Series of length %d and %d", n, other.Len())
	}
	for i := 0; i < n; i++ {
		rhs := y
		if isSeries {
			rhs = cellValue(other.col, i)
		}
		lhs := cellValue(s.col, i)
		if s.col.IsMissing(i) || rhs == starlark.None {
			out[i] = op == "ne"
			continue
		}
		ok, err := compareValues(op, lhs, rhs)
		if err != nil {
			return nil, err
		}
		out[i] = ok
	}
	return s.derive(dataset.NewBoolColumn(s.col.Name, out)), nil
}

var compareTokens = map[string]syntax.Token{
	"eq": syntax.EQL, "ne": syntax.NEQ, "gt": syntax.GT, "ge": syntax.GE, "lt": syntax.LT, "le": syntax.LE,
}

func compareValues(op string, x, y starlark.Value) (bool, error) {
	if fx, ok := toFloat(x); ok {
		if fy, ok := toFloat(y); ok {
			x, y = starlark.Float(fx), starlark.Float(fy)
		}
	}
	if x.Type() != y.Type() && (op == "eq" || op == "ne") {
		return op == "ne", nil
	}
	return starlark.Compare(compareTokens[op], x, y)
}

// mirroredOps swaps the operands of a comparison
var mirroredOps = map[string]string{
	"eq": "eq", "ne": "ne", "gt": "lt", "ge": "le", "lt": "gt", "le": "ge",
}

// compareBuiltin evaluates the comparison operators of a snippet. A Series
// on either side yields an element-wise mask, as in df[df["units"] > 5].
var compareBuiltin = starlark.NewBuiltin(compareName, func(_ *starlark.Thread, b *starlark.Builtin,
	pos starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var op string
	var x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), pos, kwargs, 3, &op, &x, &y); err != nil {
		return nil, err
	}
	tok, ok := compareTokens[op]
	if !ok {
		return nil, fmt.Errorf("unknown comparison %q", op)
	}
	if s, ok := x.(*Series); ok {
		return s.compare(op, y)
	}
	if s, ok := y.(*Series); ok {
		return s.compare(mirroredOps[op], x)
	}
	res, err := starlark.Compare(tok, x, y)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res), nil
})

type seriesMethod func(thread *starlark.Thread, s *Series, a *args) (starlark.Value, error)

var seriesMethods map[string]seriesMethod

func init() {
	seriesMethods = map[string]seriesMethod{
		"sum":          seriesAgg("sum"),
		"mean":         seriesAgg("mean"),
		"median":       seriesAgg("median"),
		"min":          seriesAgg("min"),
		"max":          seriesAgg("max"),
		"std":          seriesAgg("std"),
		"var":          seriesAgg("var"),
		"count":        seriesAgg("count"),
		"nunique":      seriesAgg("nunique"),
		"agg":          seriesAggNamed,
		"aggregate":    seriesAggNamed,
		"quantile":     seriesQuantile,
		"unique":       seriesUnique,
		"value_counts": seriesValueCounts,
		"idxmax":       seriesIdx(false),
		"idxmin":       seriesIdx(true),
		"head":         seriesHead,
		"tail":         seriesTail,
		"nlargest":     seriesExtreme(false),
		"nsmallest":    seriesExtreme(true),
		"tolist":       seriesToList,
		"to_list":      seriesToList,
		"describe":     seriesDescribe,
		"round":        seriesRound,
		"abs":          seriesAbs,
		"cumsum":       seriesCumsum,
		"isnull":       seriesIsNull(false),
		"isna":         seriesIsNull(false),
		"notnull":      seriesIsNull(true),
		"notna":        seriesIsNull(true),
		"dropna":       seriesDropNA,
		"fillna":       seriesFillNA,
		"sort_values":  seriesSort,
		"apply":        seriesApply,
		"map":          seriesApply,
		"isin":         seriesIsIn,
		"between":      seriesBetween,
		"corr":         seriesCorr,
		"copy":         func(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) { return s, nil },
	}
	for op := range compareTokens {
		seriesMethods[op] = seriesCompare(op)
	}
}

func seriesAgg(agg string) seriesMethod {
	return func(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
		if !s.col.Numeric() && (agg == "min" || agg == "max") {
			return textExtreme(s.col, agg == "min"), nil
		}
		return aggregateValue(s.col, agg)
	}
}

func seriesAggNamed(thread *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	name, err := a.str(0, "func", "")
	if err != nil {
		return nil, err
	}
	return seriesAgg(name)(thread, s, a)
}

func textExtreme(c *dataset.Column, lowest bool) starlark.Value {
	best := -1
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		if best < 0 || (lowest && c.Strs[i] < c.Strs[best]) || (!lowest && c.Strs[i] > c.Strs[best]) {
			best = i
		}
	}
	if best < 0 {
		return starlark.Float(math.NaN())
	}
	return starlark.String(c.Strs[best])
}

func seriesQuantile(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	q, err := a.float(0, "q", 0.5)
	if err != nil {
		return nil, err
	}
	if !s.col.Numeric() {
		return nil, fmt.Errorf("quantile: %s Series is not numeric", s.col.DType())
	}
	return starlark.Float(dataset.Quantile(s.col.Floats(), q)), nil
}

func seriesUnique(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
	idx := s.col.Unique()
	elems := make([]starlark.Value, len(idx))
	for j, i := range idx {
		elems[j] = cellValue(s.col, i)
	}
	return starlark.NewList(elems), nil
}

func seriesValueCounts(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	counts := s.col.ValueCounts()
	if a.boolean(-1, "ascending", false) {
		for i, j := 0, len(counts)-1; i < j; i, j = i+1, j-1 {
			counts[i], counts[j] = counts[j], counts[i]
		}
	}
	labels := make([]string, len(counts))
	nums := make([]float64, len(counts))
	total := 0
	for i, c := range counts {
		labels[i] = c.Label
		nums[i] = float64(c.Count)
		total += c.Count
	}
	if a.boolean(0, "normalize", false) {
		for i := range nums {
			nums[i] /= float64(total)
		}
		return newSeries(s.sc, dataset.NewFloatColumn("proportion", nums), labels), nil
	}
	return newSeries(s.sc, dataset.NewNumberColumn("count", nums), labels), nil
}

func seriesIdx(lowest bool) seriesMethod {
	return func(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
		if !s.col.Numeric() {
			return nil, fmt.Errorf("%s Series has no numeric extreme", s.col.DType())
		}
		best := -1
		for i, v := range s.col.Nums {
			if math.IsNaN(v) {
				continue
			}
			if best < 0 || (lowest && v < s.col.Nums[best]) || (!lowest && v > s.col.Nums[best]) {
				best = i
			}
		}
		if best < 0 {
			return starlark.Float(math.NaN()), nil
		}
		return labelValue(s.labels[best]), nil
	}
}

func seriesHead(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	n, err := a.integer(0, "n", 5)
	if err != nil {
		return nil, err
	}
	return s.take(headIndex(s.Len(), n)), nil
}

func seriesTail(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	n, err := a.integer(0, "n", 5)
	if err != nil {
		return nil, err
	}
	return s.take(tailIndex(s.Len(), n)), nil
}

func seriesExtreme(lowest bool) seriesMethod {
	return func(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
		n, err := a.integer(0, "n", 5)
		if err != nil {
			return nil, err
		}
		order := s.col.Order(lowest)
		var idx []int
		for _, i := range order {
			if len(idx) == n {
				break
			}
			if !s.col.IsMissing(i) {
				idx = append(idx, i)
			}
		}
		return s.take(idx), nil
	}
}

func seriesToList(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
	return s.list(), nil
}

func seriesDescribe(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
	if s.col.Numeric() {
		return newSeries(s.sc, dataset.NewFloatColumn(s.col.Name, dataset.DescribeColumn(s.col)), dataset.DescribeLabels), nil
	}
	return newSeries(s.sc, dataset.NewTextColumn(s.col.Name, dataset.DescribeText(s.col), nil), dataset.DescribeTextLabels), nil
}

func seriesRound(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	digits, err := a.integer(0, "decimals", 0)
	if err != nil {
		return nil, err
	}
	if !s.col.Numeric() {
		return nil, fmt.Errorf("round: %s Series is not numeric", s.col.DType())
	}
	out := make([]float64, s.Len())
	for i, v := range s.col.Nums {
		out[i] = roundHalfEven(v, digits)
	}
	return s.derive(&dataset.Column{Name: s.col.Name, Kind: dataset.KindNumber, Integer: s.col.Integer, Nums: out}), nil
}

func roundHalfEven(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.RoundToEven(v*p) / p
}

func seriesAbs(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
	if s.col.Kind != dataset.KindNumber {
		return nil, fmt.Errorf("abs: %s Series is not numeric", s.col.DType())
	}
	out := make([]float64, s.Len())
	for i, v := range s.col.Nums {
		out[i] = math.Abs(v)
	}
	return s.derive(&dataset.Column{Name: s.col.Name, Kind: dataset.KindNumber, Integer: s.col.Integer, Nums: out}), nil
}

func seriesCumsum(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
	if !s.col.Numeric() {
		return nil, fmt.Errorf("cumsum: %s Series is not numeric", s.col.DType())
	}
	out := make([]float64, s.Len())
	total := 0.0
	for i, v := range s.col.Nums {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		total += v
		out[i] = total
	}
	return s.derive(&dataset.Column{Name: s.col.Name, Kind: dataset.KindNumber, Integer: s.col.Integer || s.col.Kind == dataset.KindBool, Nums: out}), nil
}

func seriesIsNull(negate bool) seriesMethod {
	return func(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
		out := make([]bool, s.Len())
		for i := range out {
			out[i] = s.col.IsMissing(i) != negate
		}
		return s.derive(dataset.NewBoolColumn(s.col.Name, out)), nil
	}
}

func seriesDropNA(_ *starlark.Thread, s *Series, _ *args) (starlark.Value, error) {
	var idx []int
	for i := 0; i < s.Len(); i++ {
		if !s.col.IsMissing(i) {
			idx = append(idx, i)
		}
	}
	return s.take(idx), nil
}

func seriesFillNA(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	fill := a.get(0, "value")
	if fill == nil {
		return nil, errors.New("fillna: a fill value is required")
	}
	vals := make([]starlark.Value, s.Len())
	for i := range vals {
		if s.col.IsMissing(i) {
			vals[i] = fill
		} else {
			vals[i] = cellValue(s.col, i)
		}
	}
	return s.derive(columnFromValues(s.col.Name, vals)), nil
}

func seriesSort(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	return s.take(s.col.Order(a.boolean(-1, "ascending", true))), nil
}

func seriesApply(thread *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	fn := a.get(0, "func")
	if fn == nil {
		fn = a.get(0, "arg")
	}
	vals := make([]starlark.Value, s.Len())
	switch f := fn.(type) {
	case starlark.Callable:
		for i := range vals {
			v, err := starlark.Call(thread, f, starlark.Tuple{cellValue(s.col, i)}, nil)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
	case *starlark.Dict:
		for i := range vals {
			v, found, err := f.Get(cellValue(s.col, i))
			if err != nil {
				return nil, err
			}
			if !found {
				v = starlark.None
			}
			vals[i] = v
		}
	default:
		return nil, fmt.Errorf("%s: expected a function or a dict", a.fn)
	}
	return s.derive(columnFromValues(s.col.Name, vals)), nil
}

func seriesCompare(op string) seriesMethod {
	return func(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
		other := a.get(0, "other")
		if other == nil {
			return nil, fmt.Errorf("%s: missing operand", op)
		}
		return s.compare(op, other)
	}
}

func seriesIsIn(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	v := a.get(0, "values")
	if v == nil {
		return nil, errors.New("isin: values are required")
	}
	candidates, err := values(v)
	if err != nil {
		return nil, err
	}
	out := make([]bool, s.Len())
	for i := range out {
		if s.col.IsMissing(i) {
			continue
		}
		cell := cellValue(s.col, i)
		for _, c := range candidates {
			if ok, _ := compareValues("eq", cell, c); ok {
				out[i] = true
				break
			}
		}
	}
	return s.derive(dataset.NewBoolColumn(s.col.Name, out)), nil
}

func seriesBetween(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	lo, hi := a.get(0, "left"), a.get(1, "right")
	if lo == nil || hi == nil {
		return nil, errors.New("between: left and right bounds are required")
	}
	ge, err := s.compare("ge", lo)
	if err != nil {
		return nil, err
	}
	le, err := s.compare("le", hi)
	if err != nil {
		return nil, err
	}
	return ge.Binary(syntax.AMP, le, starlark.Left)
}

// seriesCorr is the Pearson correlation with another Series of the same
// length, paired by position
func seriesCorr(_ *starlark.Thread, s *Series, a *args) (starlark.Value, error) {
	other, ok := a.get(0, "other").(*Series)
	if !ok {
		return nil, errors.New("corr: other must be a Series")
	}
	if other.Len() != s.Len() {
		return nil, fmt.Errorf("corr: cannot pair Series of length %d and %d", s.Len(), other.Len())
	}
	if !s.col.Numeric() || !other.col.Numeric() {
		return nil, errors.New("corr: both Series must be numeric")
	}
	return starlark.Float(dataset.Pearson(s.col.Floats(), other.col.Floats())), nil
}

func indexOf(labels []string, key string) int {
	for i, l := range labels {
		if l == key {
			return i
		}
	}
	return -1
}

func maskIndex(mask []bool) []int {
	var idx []int
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return idx
}

func headIndex(n, k int) []int {
	if k < 0 {
		k = max(n+k, 0)
	}
	k = min(k, n)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func tailIndex(n, k int) []int {
	if k < 0 {
		k = max(n+k, 0)
	}
	k = min(k, n)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = n - k + i
	}
	return idx
}

// labelValue returns integer labels as ints, everything else as strings
func labelValue(label string) starlark.Value {
	if n, err := strconv.Atoi(label); err == nil {
		return starlark.MakeInt(n)
	}
	return starlark.String(label)
}
