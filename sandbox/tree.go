package sandbox

import (
	"strconv"

	"go.starlark.net/syntax"
)

// treeVisitor traverses every statement and expression of a parsed file.
// syntax.Walk does not know every statement kind, while loops among them,
// so snippets are walked here. Expressions are visited after their operands
// and replaced by whatever expr returns.
type treeVisitor struct {
	stmt func(syntax.Stmt)
	expr func(syntax.Expr) syntax.Expr
}

func (v *treeVisitor) stmts(list []syntax.Stmt) {
	for _, s := range list {
		v.visitStmt(s)
	}
}

func (v *treeVisitor) visitStmt(s syntax.Stmt) {
	if v.stmt != nil {
		v.stmt(s)
	}
	switch s := s.(type) {
	case *syntax.AssignStmt:
		s.LHS = v.visitExpr(s.LHS)
		s.RHS = v.visitExpr(s.RHS)
	case *syntax.ExprStmt:
		s.X = v.visitExpr(s.X)
	case *syntax.DefStmt:
		v.visitExpr(s.Name)
		v.args(s.Params)
		v.stmts(s.Body)
	case *syntax.ForStmt:
		s.Vars = v.visitExpr(s.Vars)
		s.X = v.visitExpr(s.X)
		v.stmts(s.Body)
	case *syntax.WhileStmt:
		s.Cond = v.visitExpr(s.Cond)
		v.stmts(s.Body)
	case *syntax.IfStmt:
		s.Cond = v.visitExpr(s.Cond)
		v.stmts(s.True)
		v.stmts(s.False)
	case *syntax.ReturnStmt:
		s.Result = v.visitExpr(s.Result)
	}
}

// args visits call arguments and parameters. In name=value pairs only the
// value is walked; the pair itself is handed to expr so a keyword is never
// mistaken for a variable reference.
func (v *treeVisitor) args(list []syntax.Expr) {
	for i, a := range list {
		if kw, ok := a.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
			kw.Y = v.visitExpr(kw.Y)
			list[i] = v.expr(kw)
			continue
		}
		list[i] = v.visitExpr(a)
	}
}

func (v *treeVisitor) exprs(list []syntax.Expr) {
	for i, e := range list {
		list[i] = v.visitExpr(e)
	}
}

//nolint:gocyclo // one case per expression kind
func (v *treeVisitor) visitExpr(e syntax.Expr) syntax.Expr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *syntax.BinaryExpr:
		e.X = v.visitExpr(e.X)
		e.Y = v.visitExpr(e.Y)
	case *syntax.UnaryExpr:
		e.X = v.visitExpr(e.X)
	case *syntax.CallExpr:
		e.Fn = v.visitExpr(e.Fn)
		v.args(e.Args)
	case *syntax.Comprehension:
		for _, c := range e.Clauses {
			switch c := c.(type) {
			case *syntax.ForClause:
				c.Vars = v.visitExpr(c.Vars)
				c.X = v.visitExpr(c.X)
			case *syntax.IfClause:
				c.Cond = v.visitExpr(c.Cond)
			}
		}
		e.Body = v.visitExpr(e.Body)
	case *syntax.CondExpr:
		e.Cond = v.visitExpr(e.Cond)
		e.True = v.visitExpr(e.True)
		e.False = v.visitExpr(e.False)
	case *syntax.DictEntry:
		e.Key = v.visitExpr(e.Key)
		e.Value = v.visitExpr(e.Value)
	case *syntax.DictExpr:
		v.exprs(e.List)
	case *syntax.DotExpr:
		e.X = v.visitExpr(e.X)
	case *syntax.IndexExpr:
		e.X = v.visitExpr(e.X)
		e.Y = v.visitExpr(e.Y)
	case *syntax.LambdaExpr:
		v.args(e.Params)
		e.Body = v.visitExpr(e.Body)
	case *syntax.ListExpr:
		v.exprs(e.List)
	case *syntax.ParenExpr:
		e.X = v.visitExpr(e.X)
	case *syntax.SliceExpr:
		e.X = v.visitExpr(e.X)
		e.Lo = v.visitExpr(e.Lo)
		e.Hi = v.visitExpr(e.Hi)
		e.Step = v.visitExpr(e.Step)
	case *syntax.TupleExpr:
		v.exprs(e.List)
	}
	return v.expr(e)
}

const compareName = "_cmp"

// comparisonOps maps comparison tokens to the Series method names
var comparisonOps = map[syntax.Token]string{
	syntax.EQL: "eq", syntax.NEQ: "ne",
	syntax.GT: "gt", syntax.GE: "ge",
	syntax.LT: "lt", syntax.LE: "le",
}

// rewriteComparisons turns x > y into _cmp("gt", x, y). Starlark only
// compares values of one type, so without this a Series compared with a
// scalar would fail or silently be unequal.
func rewriteComparisons(f *syntax.File) {
	v := &treeVisitor{expr: func(e syntax.Expr) syntax.Expr {
		b, ok := e.(*syntax.BinaryExpr)
		if !ok {
			return e
		}
		op, ok := comparisonOps[b.Op]
		if !ok {
			return e
		}
		_, end := b.Y.Span()
		return &syntax.CallExpr{
			Fn:     &syntax.Ident{NamePos: b.OpPos, Name: compareName},
			Lparen: b.OpPos,
			Args: []syntax.Expr{
				&syntax.Literal{Token: syntax.STRING, TokenPos: b.OpPos, Raw: strconv.Quote(op), Value: op},
				b.X,
				b.Y,
			},
			Rparen: end,
		}
	}}
	v.stmts(f.Stmts)
}
