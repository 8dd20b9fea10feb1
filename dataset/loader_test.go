package dataset

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadCSV(t *testing.T) {
	t.Run("InfersKinds", func(t *testing.T) {
		data := []byte("city,sales,price,active\nRio,10,1.5,true\nSP,,2.25,False\nBH,7,3,true\n")
		table, err := Load("sales.csv", data, LoadOptions{})
		require.NoError(t, err)

		assert.Equal(t, 3, table.Len())
		assert.Equal(t, []string{"city", "sales", "price", "active"}, table.Columns())

		city, _ := table.Column("city")
		assert.Equal(t, KindText, city.Kind)

		sales, _ := table.Column("sales")
		assert.Equal(t, KindNumber, sales.Kind)
		assert.False(t, sales.Integer, "a missing cell turns an integer column into floats")
		assert.True(t, sales.IsMissing(1))

		price, _ := table.Column("price")
		assert.Equal(t, "float64", price.DType())

		active, _ := table.Column("active")
		assert.Equal(t, KindBool, active.Kind)
		assert.Equal(t, false, active.Value(1))
	})

	t.Run("DetectsSemicolon", func(t *testing.T) {
		table, err := Load("data.csv", []byte("a;b\n1;2\n3;4\n"), LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, table.Columns())
		b, _ := table.Column("b")
		assert.Equal(t, int64(4), b.Value(1))
	})

	t.Run("MissingTokens", func(t *testing.T) {
		table, err := Load("data.csv", []byte("name\nAna\nNA\nnull\nN/A\nBia\n"), LoadOptions{})
		require.NoError(t, err)
		name, _ := table.Column("name")
		assert.Equal(t, 2, name.Count())
	})

	t.Run("ShortRowsArePadded", func(t *testing.T) {
		table, err := Load("data.csv", []byte("a,b,c\n1,2\n"), LoadOptions{})
		require.NoError(t, err)
		c, _ := table.Column("c")
		assert.True(t, c.IsMissing(0))
	})

	t.Run("DuplicateHeaders", func(t *testing.T) {
		table, err := Load("data.csv", []byte("a,a,\n1,2,3\n"), LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "a.1", "Unnamed: 2"}, table.Columns())
	})

	t.Run("RowLimit", func(t *testing.T) {
		_, err := Load("data.csv", []byte("a\n1\n2\n3\n"), LoadOptions{MaxRows: 2})
		require.ErrorIs(t, err, ErrTooManyRows)
	})
}

func TestLoadDocuments(t *testing.T) {
	t.Run("JSONRecords", func(t *testing.T) {
		data := []byte(`[{"b": 1, "a": "x"}, {"a": "y", "c": null}]`)
		table, err := Load("data.json", data, LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, table.Columns())
		b, _ := table.Column("b")
		assert.True(t, b.IsMissing(1))
		c, _ := table.Column("c")
		assert.Equal(t, 0, c.Count())
	})

	t.Run("JSONColumnsWithLabels", func(t *testing.T) {
		data := []byte(`{"v": {"r1": 1.5, "r2": 2.5}, "w": {"r1": "a", "r2": "b"}}`)
		table, err := Load("data.json", data, LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2"}, table.Labels())
		v, _ := table.Column("v")
		assert.InDelta(t, 2.5, v.Nums[1], 1e-9)
	})

	t.Run("JSONWrappedRecords", func(t *testing.T) {
		table, err := Load("data.json", []byte(`{"data": [{"x": 1}, {"x": 2}]}`), LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
	})

	t.Run("YAMLColumns", func(t *testing.T) {
		data := []byte("x: [1, 2, 3]\ny: [a, b, c]\n")
		table, err := Load("data.yaml", data, LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, table.Len())
		assert.Equal(t, 2, table.Width())
	})

	t.Run("NestedValueFails", func(t *testing.T) {
		_, err := Load("data.json", []byte(`[{"a": {"b": 1}}]`), LoadOptions{})
		require.Error(t, err)
	})

	t.Run("TOMLRows", func(t *testing.T) {
		data := []byte("[[rows]]\nname = \"a\"\nscore = 3\n\n[[rows]]\nname = \"b\"\nscore = 4.5\n")
		table, err := Load("data.toml", data, LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "score"}, table.Columns())
		score, _ := table.Column("score")
		assert.InDelta(t, 7.5, Sum(score.Floats()), 1e-9)
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		_, err := Load("data.parquet", []byte{}, LoadOptions{})
		require.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	t.Run("FirstSheet", func(t *testing.T) {
		data := workbook(t, [][]any{
			{"region", "units", "price"},
			{"north", 3, 1.5},
			{"south", nil, 2},
			{"east", 7},
		})
		table, err := Load("sales.xlsx", data, LoadOptions{})
		require.NoError(t, err)

		assert.Equal(t, 3, table.Len())
		assert.Equal(t, []string{"region", "units", "price"}, table.Columns())

		units, _ := table.Column("units")
		assert.True(t, units.Numeric())
		assert.True(t, units.IsMissing(1))
		assert.InDelta(t, 10, Sum(units.Floats()), 1e-9)

		price, _ := table.Column("price")
		assert.True(t, price.IsMissing(2))
		assert.InDelta(t, 3.5, Sum(price.Floats()), 1e-9)

		region, _ := table.Column("region")
		assert.Equal(t, "east", region.Cell(2))
	})

	t.Run("RowLimit", func(t *testing.T) {
		data := workbook(t, [][]any{{"x"}, {1}, {2}, {3}})
		_, err := Load("data.xlsx", data, LoadOptions{MaxRows: 2})
		require.ErrorIs(t, err, ErrTooManyRows)
	})

	t.Run("NotAWorkbook", func(t *testing.T) {
		_, err := Load("data.xlsx", []byte("region,units\n"), LoadOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse data.xlsx")
	})
}

func TestWriteCSVRoundTrip(t *testing.T) {
	table, err := New(
		NewNumberColumn("n", []float64{1, math.NaN(), 3}),
		NewTextColumn("s", []string{"a", "b,c", ""}, []bool{false, false, true}),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	back, err := Load("back.csv", buf.Bytes(), LoadOptions{})
	require.NoError(t, err)
	s, _ := back.Column("s")
	assert.Equal(t, "b,c", s.Value(1))
	assert.True(t, s.IsMissing(2))
	n, _ := back.Column("n")
	assert.True(t, n.IsMissing(1))
}
