package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	maxDisplayRows = 60
	truncatedRows  = 5
)

// Format renders the table as aligned text in the style of a pandas frame
func (t *Table) Format() string {
	rows := displayRows(t.rows)
	var b strings.Builder

	labelWidth := 0
	for _, r := range rows {
		if r >= 0 {
			labelWidth = max(labelWidth, width(t.labels[r]))
		}
	}
	widths := make([]int, len(t.cols))
	for j, c := range t.cols {
		widths[j] = width(c.Name)
		for _, r := range rows {
			if r >= 0 {
				widths[j] = max(widths[j], width(c.Cell(r)))
			} else {
				widths[j] = max(widths[j], 3)
			}
		}
	}

	if len(t.cols) == 0 {
		fmt.Fprintf(&b, "Empty DataFrame\nColumns: []\nIndex: [%s]", strings.Join(t.labels, ", "))
		return b.String()
	}

	b.WriteString(strings.Repeat(" ", labelWidth))
	for j, c := range t.cols {
		b.WriteString("  ")
		b.WriteString(padLeft(c.Name, widths[j]))
	}
	for _, r := range rows {
		b.WriteByte('\n')
		if r < 0 {
			b.WriteString(padRight("..", labelWidth))
			for j := range t.cols {
				b.WriteString("  ")
				b.WriteString(padLeft("...", widths[j]))
			}
			continue
		}
		b.WriteString(padRight(t.labels[r], labelWidth))
		for j, c := range t.cols {
			b.WriteString("  ")
			b.WriteString(padLeft(c.Cell(r), widths[j]))
		}
	}
	if len(rows) < t.rows {
		fmt.Fprintf(&b, "\n\n[%d rows x %d columns]", t.rows, len(t.cols))
	}
	return b.String()
}

// FormatSeries renders one column with its labels in the style of a pandas series
func FormatSeries(c *Column, labels []string, named bool) string {
	n := c.Len()
	rows := displayRows(n)
	var b strings.Builder

	labelWidth, valueWidth := 0, 0
	for _, r := range rows {
		if r < 0 {
			continue
		}
		labelWidth = max(labelWidth, width(labels[r]))
		valueWidth = max(valueWidth, width(c.Cell(r)))
	}
	for _, r := range rows {
		if r < 0 {
			b.WriteString("..\n")
			continue
		}
		b.WriteString(padRight(labels[r], labelWidth))
		b.WriteString("    ")
		b.WriteString(padLeft(c.Cell(r), valueWidth))
		b.WriteByte('\n')
	}
	var footer []string
	if named && c.Name != "" {
		footer = append(footer, "Name: "+c.Name)
	}
	if len(rows) < n {
		footer = append(footer, fmt.Sprintf("Length: %d", n))
	}
	footer = append(footer, "dtype: "+c.DType())
	if n == 0 {
		return "Series([], " + strings.Join(footer, ", ") + ")"
	}
	b.WriteString(strings.Join(footer, ", "))
	return b.String()
}

// WriteCSV writes the table with a header row. Missing cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(t.cols))
	for i := 0; i < t.rows; i++ {
		for j, c := range t.cols {
			if c.IsMissing(i) {
				record[j] = ""
				continue
			}
			record[j] = c.Cell(i)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// displayRows lists the row positions to print; -1 marks the ellipsis row
func displayRows(n int) []int {
	if n <= maxDisplayRows {
		return span(0, n)
	}
	rows := span(0, truncatedRows)
	rows = append(rows, -1)
	return append(rows, span(n-truncatedRows, n)...)
}

func width(s string) int { return utf8.RuneCountInString(s) }

func padLeft(s string, w int) string {
	if d := w - width(s); d > 0 {
		return strings.Repeat(" ", d) + s
	}
	return s
}

func padRight(s string, w int) string {
	if d := w - width(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}
