package sandbox

import (
	"fmt"
	"strings"
)

// DefaultDenylist holds the substrings that reject a snippet outright.
// Matching is done on the lower-cased code and ignores strings, comments
// and word boundaries, so "important" is rejected too.
var DefaultDenylist = []string{"import", "open(", "exec(", "eval(", "os.", "sys."}

// PolicyError reports why the guard refused a snippet
type PolicyError struct {
	Rule   string
	Detail string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Rule, e.Detail)
}

// Guard is the pre-execution policy check. It runs the lexical denylist
// first and then, for code that parses, the syntax tree rules in policy.go.
// A strict guard also rejects code that does not parse, since the tree
// rules cannot vouch for it.
type Guard struct {
	denylist []string
	strict   bool
}

// NewGuard creates a guard with the default denylist plus extra tokens
func NewGuard(extra []string) *Guard {
	deny := append([]string(nil), DefaultDenylist...)
	for _, tok := range extra {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			deny = append(deny, tok)
		}
	}
	return &Guard{denylist: deny}
}

// Strict returns a copy of the guard that rejects unparsable code. Backends
// that run real Python need it: Python syntax the interpreter cannot parse,
// such as try blocks or f-strings, would otherwise skip the tree rules.
func (g *Guard) Strict() *Guard {
	return &Guard{denylist: g.denylist, strict: true}
}

// Check returns a *PolicyError when the snippet must not run. A failure
// inside the check itself rejects the snippet.
func (g *Guard) Check(code string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PolicyError{Rule: "unverifiable code", Detail: fmt.Sprint(p)}
		}
	}()

	lower := strings.ToLower(code)
	for _, tok := range g.denylist {
		if strings.Contains(lower, tok) {
			return &PolicyError{Rule: "denylist", Detail: tok}
		}
	}
	return checkSyntax(code, g.strict)
}
