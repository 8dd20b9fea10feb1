package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	guard := NewGuard(nil)

	t.Run("AllowsAnalysisCode", func(t *testing.T) {
		code := "top = df.groupby(\"region\")[\"units\"].sum()\nprint(top)\nsns.histplot(data=df, x=\"price\", ax=ax)"
		assert.NoError(t, guard.Check(code))
	})

	rejectedCases := []struct {
		name string
		code string
		rule string
	}{
		{name: "Import", code: "import os", rule: "denylist"},
		{name: "ImportUpperCase", code: "IMPORT os", rule: "denylist"},
		{name: "ImportInComment", code: "x = 1  # no import here", rule: "denylist"},
		{name: "SubstringMatch", code: "important = 1", rule: "denylist"},
		{name: "Open", code: "f = open('/etc/passwd')", rule: "denylist"},
		{name: "Exec", code: "exec('print(1)')", rule: "denylist"},
		{name: "Eval", code: "eval('1+1')", rule: "denylist"},
		{name: "OsAttribute", code: "os.system('ls')", rule: "denylist"},
		{name: "SysAttribute", code: "sys.exit(1)", rule: "denylist"},
		{name: "DunderAttribute", code: "x = df.__class__", rule: "dunder name"},
		{name: "DunderName", code: "x = __builtins__", rule: "dunder name"},
		{name: "DeniedName", code: "x = getattr(df, 'shape')", rule: "denied name"},
		{name: "DeniedAttribute", code: "df.to_csv('out.csv')", rule: "denied attribute"},
		{name: "SaveFigure", code: "fig.savefig('chart.png')", rule: "denied attribute"},
		{name: "LoadStatement", code: "load('lib.star', 'x')", rule: "load statement"},
		{name: "DunderInWhileBody", code: "i = 0\nwhile i < 3:\n    i += 1\n    c = ().__class__", rule: "dunder name"},
		{name: "DeniedNameInWhileCondition", code: "while dir(df):\n    pass", rule: "denied name"},
		{name: "DunderInComprehension", code: "x = [v.__class__ for v in df]", rule: "dunder name"},
		{name: "DunderInLambda", code: "f = lambda v: v.__class__", rule: "dunder name"},
		{name: "DunderKeyword", code: "print(1, __x=1)", rule: "dunder name"},
		{name: "DeniedNameInFunction", code: "def f(x):\n    return vars(x)", rule: "denied name"},
	}
	for _, tc := range rejectedCases {
		t.Run(tc.name, func(t *testing.T) {
			err := guard.Check(tc.code)
			require.Error(t, err)

			var policyErr *PolicyError
			require.True(t, errors.As(err, &policyErr))
			assert.Equal(t, tc.rule, policyErr.Rule)
		})
	}

	t.Run("UnparsableCodePasses", func(t *testing.T) {
		assert.NoError(t, guard.Check("print(("))
	})

	t.Run("WhileLoopAllowed", func(t *testing.T) {
		assert.NoError(t, guard.Check("i = 0\nwhile i < 3:\n    i += 1\nprint(i)"))
	})

	t.Run("AttributeNamesAreNotVariables", func(t *testing.T) {
		assert.NoError(t, guard.Check("print(df.type)\nprint(x.help)"))
		assert.NoError(t, guard.Check("df.plot(kind=\"bar\", type=1, ax=ax)"))
	})

	t.Run("StrictRejectsUnparsableCode", func(t *testing.T) {
		strict := guard.Strict()
		cases := map[string]string{
			"TryBlock":   "try:\n    c = ().__class__.__base__.__subclasses__()\nexcept Exception:\n    pass",
			"FString":    "g = getattr(df, '__cl' + 'ass__')\nprint(f'{g}')",
			"Decorator":  "@staticmethod\ndef f():\n    pass",
			"SyntaxTypo": "print((",
		}
		for name, code := range cases {
			t.Run(name, func(t *testing.T) {
				err := strict.Check(code)
				var policyErr *PolicyError
				require.True(t, errors.As(err, &policyErr), "expected rejection")
				assert.Equal(t, "unparsable code", policyErr.Rule)
			})
		}
		assert.NoError(t, strict.Check("print(df[\"units\"].sum())"))
		assert.NoError(t, guard.Check("print(("), "strict copy must not change the original")
	})

	t.Run("ExtraDenylist", func(t *testing.T) {
		strict := NewGuard([]string{" Corr(", ""})
		require.Error(t, strict.Check("print(df.CORR())"))
		assert.NoError(t, guard.Check("print(df.corr())"))
	})
}

func TestExtractCode(t *testing.T) {
	t.Run("FencedBlock", func(t *testing.T) {
		answer := "Here is the code:\n```python\nprint(len(df))\n```\nDone."
		code, ok := ExtractCode(answer)
		require.True(t, ok)
		assert.Equal(t, "print(len(df))", code)
	})

	t.Run("FirstBlockWins", func(t *testing.T) {
		answer := "```python\nx = 1\n```\n```python\ny = 2\n```"
		code, ok := ExtractCode(answer)
		require.True(t, ok)
		assert.Equal(t, "x = 1", code)
	})

	t.Run("NoBlock", func(t *testing.T) {
		_, ok := ExtractCode("The average price is 2.5.")
		assert.False(t, ok)
	})
}
