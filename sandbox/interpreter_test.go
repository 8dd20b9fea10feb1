package sandbox

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/dataagent/dataset"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func salesTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.New(
		dataset.NewTextColumn("region", []string{
			"north", "south", "north", "east", "south", "north", "east", "south", "north", "east",
		}, nil),
		dataset.NewNumberColumn("units", []float64{3, 5, 7, 1, 4, 6, 2, 8, 9, 10}),
		dataset.NewFloatColumn("price", []float64{1, 2, 3, 4, 5, 1, 2, 3, 4, 0}),
	)
	require.NoError(t, err)
	return table
}

func run(t *testing.T, e *InterpreterExecutor, code string) ExecuteResult {
	t.Helper()
	result, err := e.Execute(context.Background(), ExecuteRequest{Code: code, Dataset: salesTable(t)})
	require.NoError(t, err)
	return result
}

func TestInterpreterExecutor(t *testing.T) {
	executor := NewInterpreterExecutor(zaptest.NewLogger(t))

	t.Run("PrintsRowCount", func(t *testing.T) {
		result := run(t, executor, "print(len(df))")
		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, "10\n", result.Output)
		assert.False(t, result.HasImage())
		assert.Nil(t, result.Figure)
	})

	t.Run("HistogramProducesImage", func(t *testing.T) {
		result := run(t, executor, "sns.histplot(data=df, x=\"price\", ax=ax)")
		assert.Equal(t, StateSucceeded, result.State)
		require.True(t, result.HasImage())
		assert.True(t, bytes.HasPrefix(result.Image, pngMagic))
		require.NotNil(t, result.Figure)
		assert.Equal(t, "price", result.Figure.Axes.XLabel)
	})

	t.Run("ImportIsRejected", func(t *testing.T) {
		result := run(t, executor, "import os\nprint(os.getcwd())")
		assert.Equal(t, StateRejected, result.State)
		assert.Equal(t, RejectionMessage, result.Output)
	})

	t.Run("DivisionByZeroFaults", func(t *testing.T) {
		result := run(t, executor, "print(1/0)")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, ErrorPrefix)
		assert.Contains(t, result.Output, "division")
	})

	t.Run("UndefinedNameFaults", func(t *testing.T) {
		result := run(t, executor, "x = 1\nprint(undefined_thing)")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, "undefined: undefined_thing")
		assert.Contains(t, result.Output, "snippet.py:2:")
	})

	t.Run("SyntaxErrorFaults", func(t *testing.T) {
		result := run(t, executor, "print((")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, ErrorPrefix)
	})

	t.Run("BuiltinOutsideWhitelistFaults", func(t *testing.T) {
		result := run(t, executor, "print(sorted([3, 1]))")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, "undefined: sorted")
	})

	t.Run("TitleOnlyHasNoImage", func(t *testing.T) {
		result := run(t, executor, "plt.title(\"empty\")")
		assert.Equal(t, StateSucceeded, result.State)
		assert.False(t, result.HasImage())
	})

	t.Run("PartialOutputIsDiscardedOnFault", func(t *testing.T) {
		result := run(t, executor, "print(\"before\")\nprint(df[\"missing\"])")
		assert.Equal(t, StateFaulted, result.State)
		assert.NotContains(t, result.Output, "before")
		assert.Contains(t, result.Output, "missing")
	})

	t.Run("NoDataset", func(t *testing.T) {
		_, err := executor.Execute(context.Background(), ExecuteRequest{Code: "print(1)"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoDataset))
	})

	t.Run("GuardRunsBeforeDatasetCheck", func(t *testing.T) {
		result, err := executor.Execute(context.Background(), ExecuteRequest{Code: "import os"})
		require.NoError(t, err)
		assert.Equal(t, StateRejected, result.State)
	})
}

func TestInterpreterBindings(t *testing.T) {
	executor := NewInterpreterExecutor(zaptest.NewLogger(t))

	cases := []struct {
		name string
		code string
		want string
	}{
		{name: "SeriesSum", code: "print(df[\"units\"].sum())", want: "55\n"},
		{name: "SeriesMean", code: "print(df[\"price\"].mean())", want: "2.5\n"},
		{name: "AttributeColumn", code: "print(df.units.max())", want: "10\n"},
		{name: "Shape", code: "print(df.shape)", want: "(10, 3)\n"},
		{name: "Columns", code: "print(df.columns[1])", want: "units\n"},
		{name: "GroupBySum", code: "g = df.groupby(\"region\")[\"units\"].sum()\nprint(g[\"north\"])", want: "25\n"},
		{name: "GroupBySize", code: "print(df.groupby(\"region\").size()[\"east\"])", want: "3\n"},
		{name: "CombinedMask", code: "print(len(df[df[\"units\"].gt(5) & df[\"region\"].eq(\"north\")]))", want: "3\n"},
		{name: "NegatedMask", code: "print(len(df[~df[\"region\"].eq(\"north\")]))", want: "6\n"},
		{name: "HostSum", code: "print(sum(df[\"units\"]))", want: "55\n"},
		{name: "HostRound", code: "print(round(df[\"price\"].mean() / 3, 2))", want: "0.83\n"},
		{name: "HeadLength", code: "print(len(df.head(3)))", want: "3\n"},
		{name: "Unique", code: "print(df[\"region\"].nunique())", want: "3\n"},
		{name: "PandasSeries", code: "s = pd.Series([1, 2, 3])\nprint(s.sum())", want: "6\n"},
		{name: "PandasFrame", code: "f = pd.DataFrame({\"a\": [1, 2], \"b\": [3, 4]})\nprint(f[\"b\"].sum())", want: "7\n"},
		{name: "RebindDataset", code: "df = df[df[\"units\"].ge(8)]\nprint(len(df))", want: "3\n"},
		{name: "LoopAtTopLevel", code: "total = 0\nfor v in df[\"units\"]:\n    total += v\nprint(total)", want: "55\n"},
		{name: "FunctionDefinition", code: "def double(x):\n    return x * 2\nprint(double(df[\"units\"].min()))", want: "2\n"},
		{name: "WhileLoop", code: "i = 0\nwhile i < 3:\n    i += 1\nprint(i)", want: "3\n"},
		{name: "GreaterThanMask", code: "print(len(df[df[\"units\"] > 5]))", want: "5\n"},
		{name: "EqualsMask", code: "print(len(df[df[\"region\"] == \"north\"]))", want: "4\n"},
		{name: "NotEqualsMask", code: "print(len(df[df[\"region\"] != \"north\"]))", want: "6\n"},
		{name: "ScalarOnLeft", code: "print(len(df[5 < df[\"units\"]]))", want: "5\n"},
		{name: "OperatorMasksCombined", code: "m = (df[\"units\"] > 5) & (df[\"region\"] == \"north\")\nprint(len(df[m]))", want: "3\n"},
		{name: "ScalarComparison", code: "print(2 > 1, \"a\" == \"b\", 1 == \"1\")", want: "True False False\n"},
		{name: "ComparisonInComprehension", code: "print(len([v for v in df[\"units\"] if v >= 9]))", want: "2\n"},
		{name: "SeriesCorr", code: "print(round(df[\"units\"].corr(df[\"units\"] * 2), 6))", want: "1.0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := run(t, executor, tc.code)
			require.Equal(t, StateSucceeded, result.State, result.Output)
			assert.Equal(t, tc.want, result.Output)
		})
	}

	charts := []struct {
		name string
		code string
	}{
		{name: "SeriesPlot", code: "df[\"units\"].plot(kind=\"bar\", ax=ax)"},
		{name: "FramePlot", code: "df.plot(x=\"units\", y=\"price\", kind=\"scatter\", ax=ax)"},
		{name: "ValueCountsBar", code: "df[\"region\"].value_counts().plot.bar(ax=ax)"},
		{name: "AxesMethods", code: "ax.bar([\"a\", \"b\"], [1, 2])\nax.set_title(\"t\")\nax.set_xlabel(\"x\")"},
		{name: "Pyplot", code: "plt.plot([1, 2, 3], [3, 1, 2])\nplt.xlabel(\"step\")"},
		{name: "Countplot", code: "sns.countplot(data=df, x=\"region\", ax=ax)"},
		{name: "Boxplot", code: "sns.boxplot(data=df, x=\"region\", y=\"units\", ax=ax)"},
		{name: "Heatmap", code: "sns.heatmap(df[[\"units\", \"price\"]].corr(), ax=ax)"},
		{name: "GroupedBar", code: "df.groupby(\"region\")[\"units\"].mean().plot(kind=\"bar\", ax=ax)"},
	}
	for _, tc := range charts {
		t.Run(tc.name, func(t *testing.T) {
			result := run(t, executor, tc.code)
			require.Equal(t, StateSucceeded, result.State, result.Output)
			assert.True(t, result.HasImage())
		})
	}
}

func TestInterpreterIsolation(t *testing.T) {
	executor := NewInterpreterExecutor(zaptest.NewLogger(t))

	t.Run("Idempotent", func(t *testing.T) {
		code := "df = df.head(2)\nprint(len(df))"
		first := run(t, executor, code)
		second := run(t, executor, code)
		assert.Equal(t, first, second)
	})

	t.Run("DatasetNotMutated", func(t *testing.T) {
		table := salesTable(t)
		ctx := context.Background()
		_, err := executor.Execute(ctx, ExecuteRequest{Code: "df = df.dropna().head(1)", Dataset: table})
		require.NoError(t, err)

		result, err := executor.Execute(ctx, ExecuteRequest{Code: "print(len(df))", Dataset: table})
		require.NoError(t, err)
		assert.Equal(t, "10\n", result.Output)
	})

	t.Run("CanvasNotShared", func(t *testing.T) {
		first := run(t, executor, "ax.bar([\"a\"], [1])")
		require.True(t, first.HasImage())

		second := run(t, executor, "print(ax.has_data())")
		assert.Equal(t, "False\n", second.Output)
		assert.False(t, second.HasImage())
	})

	t.Run("Concurrent", func(t *testing.T) {
		table := salesTable(t)
		var wg sync.WaitGroup
		results := make([]ExecuteResult, 16)
		errs := make([]error, len(results))
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = executor.Execute(context.Background(), ExecuteRequest{
					Code:    "print(df[\"units\"].sum())\nax.bar([\"a\"], [1])",
					Dataset: table,
				})
			}(i)
		}
		wg.Wait()

		for i := range results {
			require.NoError(t, errs[i])
			assert.Equal(t, "55\n", results[i].Output)
			assert.True(t, results[i].HasImage())
		}
	})
}

func TestInterpreterLimits(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("LineNumbersAfterRebind", func(t *testing.T) {
		executor := NewInterpreterExecutor(logger)
		result := run(t, executor, "df = df.head(3)\nprint(1/0)")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, "(line 2)")
	})

	t.Run("OutputLimit", func(t *testing.T) {
		executor := NewInterpreterExecutor(logger,
			WithEnvironmentBuilder(NewBuilder(BuilderConfig{MaxOutputBytes: 16})),
		)
		result := run(t, executor, "for v in df[\"units\"]:\n    print(\"line\")")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, ErrOutputLimit.Error())
	})

	t.Run("StepLimit", func(t *testing.T) {
		executor := NewInterpreterExecutor(logger, WithLimits(1000, 0))
		result := run(t, executor, "x = 0\nwhile True:\n    x += 1")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, "too many steps")
	})

	t.Run("Timeout", func(t *testing.T) {
		executor := NewInterpreterExecutor(logger, WithLimits(0, 50*time.Millisecond))
		start := time.Now()
		result := run(t, executor, "while True:\n    pass")
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, "execution timed out")
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		executor := NewInterpreterExecutor(logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result, err := executor.Execute(ctx, ExecuteRequest{Code: "while True:\n    pass", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, "execution cancelled")
	})

	t.Run("CustomWhitelist", func(t *testing.T) {
		executor := NewInterpreterExecutor(logger,
			WithEnvironmentBuilder(NewBuilder(BuilderConfig{Builtins: []string{"print", "sorted"}})),
		)
		result := run(t, executor, "print(sorted([3, 1]))")
		require.Equal(t, StateSucceeded, result.State, result.Output)
		assert.Equal(t, "[1, 3]\n", result.Output)

		result = run(t, executor, "print(len(df))")
		assert.Equal(t, StateFaulted, result.State)
	})
}

type panickingBuilder struct{}

func (panickingBuilder) Build(*dataset.Table) *Environment {
	panic("builder exploded")
}

func TestInterpreterRecoversPanics(t *testing.T) {
	executor := NewInterpreterExecutor(zaptest.NewLogger(t), WithEnvironmentBuilder(panickingBuilder{}))
	result, err := executor.Execute(context.Background(), ExecuteRequest{Code: "print(1)", Dataset: salesTable(t)})
	require.NoError(t, err)
	assert.Equal(t, StateFaulted, result.State)
	assert.Contains(t, result.Output, "builder exploded")
}

func TestOutputBuffer(t *testing.T) {
	t.Run("Unlimited", func(t *testing.T) {
		buf := NewOutputBuffer(0)
		require.NoError(t, buf.WriteLine("a"))
		require.NoError(t, buf.WriteLine("b"))
		assert.Equal(t, "a\nb\n", buf.String())
		assert.Equal(t, 4, buf.Len())
	})

	t.Run("Truncates", func(t *testing.T) {
		buf := NewOutputBuffer(5)
		require.NoError(t, buf.WriteLine("abc"))
		assert.ErrorIs(t, buf.WriteLine("def"), ErrOutputLimit)
		assert.Equal(t, "abc\nd", buf.String())
		assert.ErrorIs(t, buf.WriteLine("x"), ErrOutputLimit)
	})
}
