package sandbox

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/isdmx/dataagent/canvas"
	"github.com/isdmx/dataagent/dataset"
)

// DefaultBuiltins is the whitelist of built-in functions visible to snippets
var DefaultBuiltins = []string{"print", "len", "sum", "min", "max", "abs", "round", "int", "float"}

const (
	// DefaultFigureWidth and DefaultFigureHeight size the canvas in inches
	DefaultFigureWidth  = 8.0
	DefaultFigureHeight = 5.0
)

// ErrOutputLimit is reported when a snippet prints more than allowed
var ErrOutputLimit = errors.New("output limit exceeded")

// hostExtras are built-ins the interpreter universe lacks, plus abs, which
// must also accept a Series
var hostExtras = starlark.StringDict{
	"sum":   builtin("sum", hostSum),
	"round": builtin("round", hostRound),
	"abs":   builtin("abs", hostAbs),
}

// HostBuiltins returns every built-in the interpreter can offer
func HostBuiltins() starlark.StringDict {
	host := make(starlark.StringDict, len(starlark.Universe)+len(hostExtras))
	for name, v := range starlark.Universe {
		host[name] = v
	}
	for name, v := range hostExtras {
		host[name] = v
	}
	return host
}

// scope is the state shared by the bindings of one execution
type scope struct {
	fig *canvas.Figure
}

func (sc *scope) axes() *canvas.Axes { return sc.fig.Axes }

// Environment is the namespace prepared for one execution. Globals hold the
// built-ins and libraries, Locals the canvas, so the executor can find the
// canvas after the run even if the snippet rebinds the names.
type Environment struct {
	Globals starlark.StringDict
	Locals  starlark.StringDict
	Figure  *canvas.Figure
	Output  *OutputBuffer
}

// Predeclared merges globals and locals into the names a snippet resolves
func (e *Environment) Predeclared() starlark.StringDict {
	all := make(starlark.StringDict, len(e.Globals)+len(e.Locals)+1)
	for k, v := range e.Globals {
		all[k] = v
	}
	for k, v := range e.Locals {
		all[k] = v
	}
	all[compareName] = compareBuiltin
	return all
}

// EnvironmentBuilder prepares the namespace for one execution
type EnvironmentBuilder interface {
	Build(table *dataset.Table) *Environment
}

// BuilderConfig controls what a Builder binds
type BuilderConfig struct {
	// Builtins is the whitelist; names the host lacks are skipped
	Builtins     []string
	FigureWidth  float64
	FigureHeight float64
	// MaxOutputBytes caps captured output, zero means unlimited
	MaxOutputBytes int
}

// Builder creates fresh environments. It is safe for concurrent use since
// every Build allocates its own canvas and buffer.
type Builder struct {
	builtins starlark.StringDict
	cfg      BuilderConfig
}

// NewBuilder intersects the whitelist with the host built-ins once
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Builtins == nil {
		cfg.Builtins = DefaultBuiltins
	}
	if cfg.FigureWidth <= 0 || cfg.FigureHeight <= 0 {
		cfg.FigureWidth, cfg.FigureHeight = DefaultFigureWidth, DefaultFigureHeight
	}
	host := HostBuiltins()
	allowed := make(starlark.StringDict, len(cfg.Builtins))
	for _, name := range cfg.Builtins {
		if v, ok := host[name]; ok {
			allowed[name] = v
		}
	}
	return &Builder{builtins: allowed, cfg: cfg}
}

// Build binds df, pd, plt and sns as globals and a fresh fig and ax as locals
func (b *Builder) Build(table *dataset.Table) *Environment {
	fig := canvas.New(b.cfg.FigureWidth, b.cfg.FigureHeight)
	sc := &scope{fig: fig}

	globals := make(starlark.StringDict, len(b.builtins)+4)
	for name, v := range b.builtins {
		globals[name] = v
	}
	globals["df"] = newFrame(sc, table)
	globals["pd"] = newPandas(sc)
	globals["plt"] = newPyplot(sc)
	globals["sns"] = newSeaborn(sc)

	return &Environment{
		Globals: globals,
		Locals: starlark.StringDict{
			"fig": &figureValue{sc: sc},
			"ax":  &axesValue{sc: sc},
		},
		Figure: fig,
		Output: NewOutputBuffer(b.cfg.MaxOutputBytes),
	}
}

// OutputBuffer collects printed text for one execution
type OutputBuffer struct {
	mu       sync.Mutex
	b        strings.Builder
	limit    int
	exceeded bool
}

// NewOutputBuffer creates a buffer; limit <= 0 disables the cap
func NewOutputBuffer(limit int) *OutputBuffer {
	return &OutputBuffer{limit: limit}
}

// WriteLine appends msg and a newline. Past the limit the text is truncated
// and ErrOutputLimit returned.
func (o *OutputBuffer) WriteLine(msg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exceeded {
		return ErrOutputLimit
	}
	line := msg + "\n"
	if o.limit > 0 && o.b.Len()+len(line) > o.limit {
		o.b.WriteString(line[:o.limit-o.b.Len()])
		o.exceeded = true
		return ErrOutputLimit
	}
	o.b.WriteString(line)
	return nil
}

func (o *OutputBuffer) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}

// Len returns the number of bytes captured
func (o *OutputBuffer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.Len()
}

func hostSum(_ *starlark.Thread, a *args) (starlark.Value, error) {
	v := a.get(0, "iterable")
	if v == nil {
		return nil, errors.New("sum: missing iterable")
	}
	if s, ok := v.(*Series); ok {
		return seriesAgg("sum")(nil, s, a)
	}
	elems, err := values(v)
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}
	var total starlark.Value = starlark.MakeInt(0)
	if start := a.get(1, "start"); start != nil {
		total = start
	}
	for _, e := range elems {
		if b, ok := e.(starlark.Bool); ok {
			e = starlark.MakeInt(0)
			if b {
				e = starlark.MakeInt(1)
			}
		}
		if total, err = starlark.Binary(syntax.PLUS, total, e); err != nil {
			return nil, fmt.Errorf("sum: %w", err)
		}
	}
	return total, nil
}

func hostRound(thread *starlark.Thread, a *args) (starlark.Value, error) {
	v := a.get(0, "number")
	if v == nil {
		return nil, errors.New("round: missing number")
	}
	if s, ok := v.(*Series); ok {
		return seriesRound(thread, s, &args{fn: "round", pos: a.pos[min(1, len(a.pos)):], kw: a.kw})
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("round: unsupported type %s", v.Type())
	}
	if !a.has(1, "ndigits") {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("round: cannot convert float %s to integer", starlark.Float(f))
		}
		return starlark.MakeInt64(int64(math.RoundToEven(f))), nil
	}
	digits, err := a.integer(1, "ndigits", 0)
	if err != nil {
		return nil, err
	}
	if _, isInt := v.(starlark.Int); isInt {
		return v, nil
	}
	return starlark.Float(roundHalfEven(f, digits)), nil
}

func hostAbs(thread *starlark.Thread, a *args) (starlark.Value, error) {
	v := a.get(0, "x")
	switch x := v.(type) {
	case *Series:
		return seriesAbs(thread, x, a)
	case starlark.Int:
		if x.Sign() < 0 {
			return starlark.Binary(syntax.MINUS, starlark.MakeInt(0), x)
		}
		return x, nil
	case starlark.Float:
		return starlark.Float(math.Abs(float64(x))), nil
	case nil:
		return nil, errors.New("abs: missing argument")
	}
	return nil, fmt.Errorf("abs: bad operand type %s", v.Type())
}
