package sandbox

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// args gives lenient access to positional and keyword arguments. Keywords
// a binding does not know, such as color or alpha, are ignored so cosmetic
// options in generated code do not fault.
type args struct {
	fn  string
	pos starlark.Tuple
	kw  map[string]starlark.Value
}

func newArgs(fn string, pos starlark.Tuple, kwargs []starlark.Tuple) *args {
	a := &args{fn: fn, pos: pos, kw: make(map[string]starlark.Value, len(kwargs))}
	for _, kv := range kwargs {
		if k, ok := kv[0].(starlark.String); ok {
			a.kw[string(k)] = kv[1]
		}
	}
	return a
}

// get returns positional argument i or keyword name. Absent and None both yield nil.
func (a *args) get(i int, name string) starlark.Value {
	var v starlark.Value
	if i >= 0 && i < len(a.pos) {
		v = a.pos[i]
	} else if kv, ok := a.kw[name]; ok {
		v = kv
	}
	if v == starlark.None {
		return nil
	}
	return v
}

func (a *args) has(i int, name string) bool {
	return a.get(i, name) != nil
}

func (a *args) str(i int, name, def string) (string, error) {
	v := a.get(i, name)
	if v == nil {
		return def, nil
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("%s: %s must be a string, not %s", a.fn, name, v.Type())
	}
	return s, nil
}

func (a *args) integer(i int, name string, def int) (int, error) {
	v := a.get(i, name)
	if v == nil {
		return def, nil
	}
	var n int
	if err := starlark.AsInt(v, &n); err != nil {
		return 0, fmt.Errorf("%s: %s must be an int: %w", a.fn, name, err)
	}
	return n, nil
}

func (a *args) float(i int, name string, def float64) (float64, error) {
	v := a.get(i, name)
	if v == nil {
		return def, nil
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s: %s must be a number, not %s", a.fn, name, v.Type())
	}
	return f, nil
}

func (a *args) boolean(i int, name string, def bool) bool {
	v := a.get(i, name)
	if v == nil {
		return def
	}
	return bool(v.Truth())
}

// strs accepts a single string or a sequence of strings
func (a *args) strs(i int, name string) ([]string, error) {
	v := a.get(i, name)
	if v == nil {
		return nil, nil
	}
	out, err := toStrings(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", a.fn, name, err)
	}
	return out, nil
}

// pair reads a two-number limit given either as one tuple or two arguments
func (a *args) pair(i int, lo, hi string) (float64, float64, bool, error) {
	if v := a.get(i, lo); v != nil {
		if seq, ok := v.(starlark.Indexable); ok && seq.Len() == 2 {
			x, ok1 := starlark.AsFloat(seq.Index(0))
			y, ok2 := starlark.AsFloat(seq.Index(1))
			if !ok1 || !ok2 {
				return 0, 0, false, fmt.Errorf("%s: limits must be numbers", a.fn)
			}
			return x, y, true, nil
		}
	}
	j := -1
	if i >= 0 {
		j = i + 1
	}
	if !a.has(i, lo) || !a.has(j, hi) {
		return 0, 0, false, nil
	}
	x, err := a.float(i, lo, 0)
	if err != nil {
		return 0, 0, false, err
	}
	y, err := a.float(j, hi, 0)
	if err != nil {
		return 0, 0, false, err
	}
	return x, y, true, nil
}

type builtinFunc func(thread *starlark.Thread, a *args) (starlark.Value, error)

func builtin(name string, fn builtinFunc) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, pos starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return fn(thread, newArgs(b.Name(), pos, kwargs))
	})
}

func sortedNames[T any](m map[string]T, extra ...string) []string {
	names := make([]string, 0, len(m)+len(extra))
	for n := range m {
		names = append(names, n)
	}
	names = append(names, extra...)
	sort.Strings(names)
	return names
}

func printLine(thread *starlark.Thread, msg string) {
	if thread.Print != nil {
		thread.Print(thread, msg)
	}
}
