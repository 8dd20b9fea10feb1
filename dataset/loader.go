package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnsupportedFormat is returned for file extensions the loader cannot parse
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrTooManyRows is returned when a dataset exceeds LoadOptions.MaxRows
	ErrTooManyRows = errors.New("dataset exceeds row limit")
	// ErrEmptyDataset is returned when a file holds no columns
	ErrEmptyDataset = errors.New("dataset has no columns")
)

// LoadOptions tunes parsing
type LoadOptions struct {
	// MaxRows rejects larger datasets when positive
	MaxRows int
}

// SupportedExtensions lists the file extensions Load understands
var SupportedExtensions = []string{".csv", ".tsv", ".json", ".yaml", ".yml", ".toml", ".xlsx"}

var missingTokens = map[string]bool{
	"": true, "na": true, "nan": true, "null": true, "none": true, "n/a": true, "<na>": true, "#n/a": true,
}

type rawCell struct {
	text    string
	missing bool
}

// LoadFile reads and parses a dataset from disk
func LoadFile(path string, opts LoadOptions) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return Load(filepath.Base(path), data, opts)
}

// Load parses data according to the extension of name
func Load(name string, data []byte, opts LoadOptions) (*Table, error) {
	var (
		names []string
		cells [][]rawCell
		labs  []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		names, cells, err = parseDelimited(data, 0)
	case ".tsv":
		names, cells, err = parseDelimited(data, '\t')
	case ".json", ".yaml", ".yml":
		names, cells, labs, err = parseDocument(data)
	case ".toml":
		names, cells, err = parseTOML(data)
	case ".xlsx":
		names, cells, err = parseXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("failed to parse %s: %w", name, ErrEmptyDataset)
	}
	if opts.MaxRows > 0 && len(cells[0]) > opts.MaxRows {
		return nil, fmt.Errorf("%w: %d rows > %d", ErrTooManyRows, len(cells[0]), opts.MaxRows)
	}

	cols := make([]*Column, len(names))
	for i, n := range uniqueNames(names) {
		cols[i] = inferColumn(n, cells[i])
	}
	return NewWithLabels(labs, cols...)
}

func parseDelimited(data []byte, delim rune) ([]string, [][]rawCell, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if delim == 0 {
		delim = detectDelimiter(data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	cells := make([][]rawCell, len(header))
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read record: %w", err)
		}
		for j := range header {
			if j < len(record) {
				cells[j] = append(cells[j], textCell(record[j]))
			} else {
				cells[j] = append(cells[j], rawCell{missing: true})
			}
		}
	}
	return header, cells, nil
}

// parseXLSX reads the first worksheet; its first row holds the column names
func parseXLSX(data []byte) ([]string, [][]rawCell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	header := rows[0]
	cells := make([][]rawCell, len(header))
	for _, row := range rows[1:] {
		for j := range header {
			// trailing empty cells are omitted from a row
			if j < len(row) {
				cells[j] = append(cells[j], textCell(row[j]))
			} else {
				cells[j] = append(cells[j], rawCell{missing: true})
			}
		}
	}
	return header, cells, nil
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// parseDocument decodes JSON or YAML in records orientation (a list of
// objects) or columns orientation (an object of lists or of label maps).
func parseDocument(data []byte) ([]string, [][]rawCell, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil, nil, nil
	}
	doc := root.Content[0]
	if doc.Kind == yaml.MappingNode && len(doc.Content) == 2 && doc.Content[1].Kind == yaml.SequenceNode {
		if seq := doc.Content[1]; len(seq.Content) > 0 && seq.Content[0].Kind == yaml.MappingNode {
			doc = seq
		}
	}
	switch doc.Kind {
	case yaml.SequenceNode:
		names, cells, err := parseRecords(doc)
		return names, cells, nil, err
	case yaml.MappingNode:
		return parseColumns(doc)
	default:
		return nil, nil, nil, fmt.Errorf("expected a list of records or an object of columns at line %d", doc.Line)
	}
}

func parseRecords(seq *yaml.Node) ([]string, [][]rawCell, error) {
	var names []string
	index := make(map[string]int)
	var cells [][]rawCell
	for row, rec := range seq.Content {
		if rec.Kind != yaml.MappingNode {
			return nil, nil, fmt.Errorf("record %d is not an object", row)
		}
		for k := 0; k+1 < len(rec.Content); k += 2 {
			key := rec.Content[k].Value
			j, ok := index[key]
			if !ok {
				j = len(names)
				index[key] = j
				names = append(names, key)
				cells = append(cells, missingCells(row))
			}
			cell, err := nodeCell(rec.Content[k+1])
			if err != nil {
				return nil, nil, fmt.Errorf("record %d field %q: %w", row, key, err)
			}
			cells[j] = append(cells[j], cell)
		}
		for j := range cells {
			if len(cells[j]) < row+1 {
				cells[j] = append(cells[j], rawCell{missing: true})
			}
		}
	}
	return names, cells, nil
}

func parseColumns(m *yaml.Node) ([]string, [][]rawCell, []string, error) {
	var (
		names  []string
		cells  [][]rawCell
		labels []string
	)
	for k := 0; k+1 < len(m.Content); k += 2 {
		name, values := m.Content[k].Value, m.Content[k+1]
		var col []rawCell
		switch values.Kind {
		case yaml.SequenceNode:
			for _, v := range values.Content {
				cell, err := nodeCell(v)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("column %q: %w", name, err)
				}
				col = append(col, cell)
			}
		case yaml.MappingNode:
			byLabel := make(map[string]*yaml.Node)
			var own []string
			for i := 0; i+1 < len(values.Content); i += 2 {
				own = append(own, values.Content[i].Value)
				byLabel[values.Content[i].Value] = values.Content[i+1]
			}
			if labels == nil {
				labels = own
			}
			for _, l := range labels {
				v, ok := byLabel[l]
				if !ok {
					col = append(col, rawCell{missing: true})
					continue
				}
				cell, err := nodeCell(v)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("column %q: %w", name, err)
				}
				col = append(col, cell)
			}
		default:
			return nil, nil, nil, fmt.Errorf("column %q is neither a list nor an object", name)
		}
		if len(cells) > 0 && len(col) != len(cells[0]) {
			return nil, nil, nil, fmt.Errorf("column %q has %d values, expected %d", name, len(col), len(cells[0]))
		}
		names = append(names, name)
		cells = append(cells, col)
	}
	if labels != nil && len(cells) > 0 && len(labels) != len(cells[0]) {
		labels = nil
	}
	return names, cells, labels, nil
}

func nodeCell(n *yaml.Node) (rawCell, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.ScalarNode {
		return rawCell{}, fmt.Errorf("nested value at line %d", n.Line)
	}
	if n.Tag == "!!null" {
		return rawCell{missing: true}, nil
	}
	return textCell(n.Value), nil
}

// parseTOML reads the first array of tables, e.g. [[rows]], keeping key order
func parseTOML(data []byte) ([]string, [][]rawCell, error) {
	var doc map[string]any
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, nil, err
	}
	var table string
	var records []map[string]any
	for _, key := range meta.Keys() {
		if len(key) != 1 {
			continue
		}
		if recs, ok := doc[key[0]].([]map[string]any); ok {
			table, records = key[0], recs
			break
		}
	}
	if table == "" {
		return nil, nil, errors.New("expected an array of tables such as [[rows]]")
	}
	var names []string
	seen := make(map[string]bool)
	for _, key := range meta.Keys() {
		if len(key) == 2 && key[0] == table && !seen[key[1]] {
			seen[key[1]] = true
			names = append(names, key[1])
		}
	}
	cells := make([][]rawCell, len(names))
	for _, rec := range records {
		for j, n := range names {
			v, ok := rec[n]
			if !ok {
				cells[j] = append(cells[j], rawCell{missing: true})
				continue
			}
			cells[j] = append(cells[j], textCell(tomlText(v)))
		}
	}
	return names, cells, nil
}

func tomlText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func textCell(s string) rawCell {
	if missingTokens[strings.ToLower(strings.TrimSpace(s))] {
		return rawCell{missing: true}
	}
	return rawCell{text: s}
}

func missingCells(n int) []rawCell {
	cells := make([]rawCell, n)
	for i := range cells {
		cells[i].missing = true
	}
	return cells
}

func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]int)
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		if c, dup := used[n]; dup {
			used[n] = c + 1
			n = fmt.Sprintf("%s.%d", n, c+1)
		}
		used[n] = 0
		out[i] = n
	}
	return out
}

// inferColumn picks bool, then number, then text storage for the cells
func inferColumn(name string, cells []rawCell) *Column {
	present := 0
	isBool, isNum, isInt := true, true, true
	nums := make([]float64, len(cells))
	for i, c := range cells {
		if c.missing {
			nums[i] = math.NaN()
			isInt = false
			continue
		}
		present++
		s := strings.TrimSpace(c.text)
		switch strings.ToLower(s) {
		case "true":
			nums[i] = 1
			isNum = false
			continue
		case "false":
			nums[i] = 0
			isNum = false
			continue
		}
		isBool = false
		if !isNum {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			isNum = false
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			isInt = false
		}
		nums[i] = f
	}

	switch {
	case present == 0:
		return NewFloatColumn(name, nums)
	case isBool:
		return &Column{Name: name, Kind: KindBool, Nums: nums}
	case isNum:
		return &Column{Name: name, Kind: KindNumber, Integer: isInt, Nums: nums}
	}
	strs := make([]string, len(cells))
	missing := make([]bool, len(cells))
	for i, c := range cells {
		strs[i] = c.text
		missing[i] = c.missing
	}
	return NewTextColumn(name, strs, missing)
}
