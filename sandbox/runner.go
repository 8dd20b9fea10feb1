package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Runner evaluates a snippet inside an Environment. It never returns an
// error: every fault is folded into a Faulted result.
type Runner struct {
	maxSteps uint64
	timeout  time.Duration
}

// NewRunner creates a runner. Zero disables the step cap or the timeout.
func NewRunner(maxSteps uint64, timeout time.Duration) *Runner {
	return &Runner{maxSteps: maxSteps, timeout: timeout}
}

// Run evaluates code. On success the output buffer is returned as text and
// the canvas only when something was drawn on it.
func (r *Runner) Run(ctx context.Context, code string, env *Environment) (res ExecuteResult) {
	defer func() {
		if p := recover(); p != nil {
			res = faulted(fmt.Sprintf("internal error: %v", p))
		}
	}()

	predeclared := env.Predeclared()
	src, shift, err := rebindPredeclared(code, predeclared)
	if err != nil {
		return faulted(describe(err, 0))
	}
	f, err := syntax.Parse(snippetName, src, 0)
	if err != nil {
		return faulted(describe(err, shift))
	}
	rewriteComparisons(f)
	prog, err := starlark.FileProgram(f, predeclared.Has)
	if err != nil {
		return faulted(describe(err, shift))
	}

	thread := &starlark.Thread{
		Name: "snippet",
		Print: func(t *starlark.Thread, msg string) {
			if err := env.Output.WriteLine(msg); err != nil {
				t.Cancel(err.Error())
			}
		},
	}
	if r.maxSteps > 0 {
		thread.SetMaxExecutionSteps(r.maxSteps)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(cancelReason(ctx.Err()))
		case <-done:
		}
	}()

	if _, err := prog.Init(thread, predeclared); err != nil {
		return faulted(describe(err, shift))
	}

	res = ExecuteResult{State: StateSucceeded, Output: env.Output.String()}
	if env.Figure.HasData() {
		res.Figure = env.Figure
	}
	return res
}

// isConstant limits universal names to the constants. Built-ins reach
// snippets only through the whitelisted globals, so anything else resolves
// as undefined.
func isConstant(name string) bool {
	return name == "True" || name == "False" || name == "None"
}

const boundPrefix = "_bound_"

// rebindPredeclared resolves code against the restricted namespace. When the
// snippet assigns a predeclared name at top level, as in df = df.dropna(),
// the name becomes a module global for the whole file, so a first line
// initialises such globals from aliases added to predeclared. shift is the
// number of lines added.
func rebindPredeclared(code string, predeclared starlark.StringDict) (string, int, error) {
	f, err := syntax.Parse(snippetName, code, 0)
	if err != nil {
		return "", 0, err
	}
	if err := resolve.File(f, predeclared.Has, isConstant); err != nil {
		return "", 0, err
	}
	module, ok := f.Module.(*resolve.Module)
	if !ok {
		return code, 0, nil
	}
	var stmts []string
	for _, b := range module.Globals {
		name := b.First.Name
		if v, ok := predeclared[name]; ok {
			predeclared[boundPrefix+name] = v
			stmts = append(stmts, name+" = "+boundPrefix+name)
		}
	}
	if len(stmts) == 0 {
		return code, 0, nil
	}
	return strings.Join(stmts, "; ") + "\n" + code, 1, nil
}

func cancelReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "execution timed out"
	}
	return "execution cancelled"
}

var positionPattern = regexp.MustCompile(regexp.QuoteMeta(snippetName) + `:(\d+):`)

// describe turns an interpreter error into the message shown to the user.
// Line numbers are moved back by shift to point into the submitted snippet.
func describe(err error, shift int) string {
	var msg string
	var evalErr *starlark.EvalError
	var resolveErrs resolve.ErrorList
	switch {
	case errors.As(err, &evalErr):
		// innermost frame that points into the snippet
		for i := len(evalErr.CallStack) - 1; i >= 0; i-- {
			if pos := evalErr.CallStack[i].Pos; pos.IsValid() && pos.Filename() == snippetName {
				return fmt.Sprintf("%s (line %d)", evalErr.Msg, int(pos.Line)-shift)
			}
		}
		return evalErr.Msg
	case errors.As(err, &resolveErrs) && len(resolveErrs) > 0:
		msg = resolveErrs[0].Error()
	default:
		msg = err.Error()
	}
	if shift == 0 {
		return msg
	}
	return positionPattern.ReplaceAllStringFunc(msg, func(m string) string {
		n, _ := strconv.Atoi(positionPattern.FindStringSubmatch(m)[1])
		return fmt.Sprintf("%s:%d:", snippetName, n-shift)
	})
}
