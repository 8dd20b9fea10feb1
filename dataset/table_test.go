package dataset

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	table, err := New(
		NewTextColumn("region", []string{"north", "south", "north", "east", "south"}, nil),
		NewNumberColumn("units", []float64{3, 5, 7, 1, math.NaN()}),
		NewNumberColumn("price", []float64{1.5, 2, 2.5, 4, 3}),
	)
	require.NoError(t, err)
	return table
}

func TestTableConstruction(t *testing.T) {
	t.Run("MismatchedLengths", func(t *testing.T) {
		_, err := New(NewNumberColumn("a", []float64{1}), NewNumberColumn("b", []float64{1, 2}))
		require.Error(t, err)
	})

	t.Run("DuplicateNames", func(t *testing.T) {
		_, err := New(NewNumberColumn("a", []float64{1}), NewNumberColumn("a", []float64{2}))
		require.Error(t, err)
	})
}

func TestTableOperations(t *testing.T) {
	table := sampleTable(t)

	t.Run("HeadTail", func(t *testing.T) {
		assert.Equal(t, 2, table.Head(2).Len())
		assert.Equal(t, []string{"3", "4"}, table.Tail(2).Labels())
		assert.Equal(t, 5, table.Head(50).Len())
		assert.Equal(t, 3, table.Head(-2).Len())
	})

	t.Run("FilterKeepsLabels", func(t *testing.T) {
		out, err := table.Filter([]bool{false, true, false, true, false})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "3"}, out.Labels())

		_, err = table.Filter([]bool{true})
		require.Error(t, err)
	})

	t.Run("SelectUnknownColumn", func(t *testing.T) {
		_, err := table.Select("units", "nope")
		require.ErrorIs(t, err, ErrColumnNotFound)
	})

	t.Run("SortByMissingLast", func(t *testing.T) {
		out, err := table.SortBy("units", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "1", "0", "3", "4"}, out.Labels())
	})

	t.Run("DropNA", func(t *testing.T) {
		assert.Equal(t, 4, table.DropNA().Len())
	})

	t.Run("ReduceMean", func(t *testing.T) {
		col, labels, err := table.Reduce("mean")
		require.NoError(t, err)
		assert.Equal(t, []string{"units", "price"}, labels)
		assert.InDelta(t, 4.0, col.Nums[0], 1e-9)
		assert.Equal(t, "float64", col.DType())
	})

	t.Run("ReduceSum", func(t *testing.T) {
		units, err := table.Select("units")
		require.NoError(t, err)
		sum, _, err := units.Reduce("sum")
		require.NoError(t, err)
		assert.InDelta(t, 16.0, sum.Nums[0], 1e-9)
	})

	t.Run("Describe", func(t *testing.T) {
		d := table.Describe()
		assert.Equal(t, DescribeLabels, d.Labels())
		units, _ := d.Column("units")
		assert.InDelta(t, 4.0, units.Nums[0], 1e-9)
		assert.InDelta(t, 7.0, units.Nums[7], 1e-9)
	})

	t.Run("Corr", func(t *testing.T) {
		c := table.Corr()
		assert.Equal(t, []string{"units", "price"}, c.Columns())
		units, _ := c.Column("units")
		assert.InDelta(t, 1.0, units.Nums[0], 1e-9)
	})
}

func TestGroupBy(t *testing.T) {
	table := sampleTable(t)
	g, err := table.GroupBy("region")
	require.NoError(t, err)
	assert.Equal(t, []string{"east", "north", "south"}, g.Keys())

	sums, err := g.Aggregate("units", "sum")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 10, 5}, sums.Nums)

	sizes := g.Sizes()
	assert.Equal(t, []float64{1, 2, 2}, sizes.Nums)

	_, err = g.Aggregate("region", "mean")
	require.Error(t, err)

	_, err = table.GroupBy("missing")
	require.ErrorIs(t, err, ErrColumnNotFound)
}

func TestStats(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-9)
	assert.InDelta(t, 4.5, Median(values), 1e-9)
	assert.InDelta(t, 2.138089935, Std(values), 1e-6)
	assert.True(t, math.IsNaN(Mean(nil)))
	assert.InDelta(t, 1.0, Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
}

func TestFormat(t *testing.T) {
	table := sampleTable(t)

	t.Run("Frame", func(t *testing.T) {
		out := table.Head(2).Format()
		lines := strings.Split(out, "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "   region  units  price", lines[0])
		assert.Equal(t, "0   north    3.0    1.5", lines[1])
	})

	t.Run("Truncated", func(t *testing.T) {
		values := make([]float64, 100)
		big, err := New(NewNumberColumn("v", values))
		require.NoError(t, err)
		assert.Contains(t, big.Format(), "[100 rows x 1 columns]")
	})

	t.Run("Series", func(t *testing.T) {
		col, _ := table.Column("units")
		out := FormatSeries(col.Take([]int{0, 1}), []string{"0", "1"}, true)
		assert.Equal(t, "0    3.0\n1    5.0\nName: units, dtype: float64", out)
	})

	t.Run("Numbers", func(t *testing.T) {
		assert.Equal(t, "3.0", FormatNumber(3, false))
		assert.Equal(t, "0.333333", FormatNumber(1.0/3, false))
		assert.Equal(t, "NaN", FormatNumber(math.NaN(), false))
	})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	table := sampleTable(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Put("a.csv", table)
			_, _ = r.Get("a.csv")
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"a.csv"}, r.Names())
	r.Delete("a.csv")
	assert.Empty(t, r.Names())
}
