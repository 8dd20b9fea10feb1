package sandbox

import (
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/syntax"
)

const snippetName = "snippet.py"

func init() {
	// top-level loops, while loops, rebinding and sets
	resolve.AllowSet = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

// deniedNames are identifiers that reach reflection or the host in Python.
// None of them is bound in the interpreter; rejecting them up front also
// protects the container backend, which runs real CPython.
var deniedNames = map[string]bool{
	"getattr": true, "setattr": true, "delattr": true, "hasattr": true,
	"globals": true, "locals": true, "vars": true, "dir": true,
	"type": true, "compile": true, "input": true, "breakpoint": true,
	"memoryview": true, "object": true, "help": true, "exit": true, "quit": true,
}

// deniedAttrs are library methods that read or write files or run commands
var deniedAttrs = map[string]bool{
	"savefig": true, "imsave": true, "imread": true,
	"to_csv": true, "to_excel": true, "to_json": true, "to_pickle": true,
	"to_parquet": true, "to_sql": true, "to_html": true, "to_clipboard": true,
	"to_feather": true, "to_hdf": true, "to_stata": true, "to_latex": true,
	"read_csv": true, "read_excel": true, "read_json": true, "read_pickle": true,
	"read_parquet": true, "read_sql": true, "read_table": true, "read_html": true,
	"read_clipboard": true, "read_fwf": true, "read_hdf": true, "read_feather": true,
	"load_dataset": true, "system": true, "popen": true, "remove": true, "unlink": true,
}

// checkSyntax applies the tree rules. Code that does not parse passes here
// and faults later with the parser's message, unless strict is set.
func checkSyntax(code string, strict bool) error {
	f, err := syntax.Parse(snippetName, code, 0)
	if err != nil {
		if strict {
			return &PolicyError{Rule: "unparsable code", Detail: err.Error()}
		}
		return nil
	}
	var violation *PolicyError
	report := func(v *PolicyError) {
		if violation == nil {
			violation = v
		}
	}
	v := &treeVisitor{
		stmt: func(s syntax.Stmt) {
			if load, ok := s.(*syntax.LoadStmt); ok {
				report(&PolicyError{Rule: "load statement", Detail: load.Module.Value.(string)})
			}
		},
		expr: func(e syntax.Expr) syntax.Expr {
			switch e := e.(type) {
			case *syntax.Ident:
				report(checkName(e.Name, nameVariable))
			case *syntax.DotExpr:
				report(checkName(e.Name.Name, nameAttribute))
			case *syntax.BinaryExpr:
				if id, ok := e.X.(*syntax.Ident); ok && e.Op == syntax.EQ {
					report(checkName(id.Name, nameKeyword))
				}
			}
			return e
		},
	}
	v.stmts(f.Stmts)
	if violation != nil {
		return violation
	}
	return nil
}

type nameKind int

const (
	nameVariable nameKind = iota
	nameAttribute
	nameKeyword
)

func checkName(name string, kind nameKind) *PolicyError {
	if strings.HasPrefix(name, "__") {
		return &PolicyError{Rule: "dunder name", Detail: name}
	}
	if kind == nameAttribute && deniedAttrs[name] {
		return &PolicyError{Rule: "denied attribute", Detail: name}
	}
	if kind == nameVariable && deniedNames[name] {
		return &PolicyError{Rule: "denied name", Detail: name}
	}
	return nil
}
