// Package dataset holds a tabular training dataset in memory as named, typed
// columns. Datasets are treated as read-only for the lifetime of an audit;
// every mutating operation returns a new owned copy.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns are stored as float64, with NaN for missing values.
	Numeric Kind = iota
	// String columns keep raw cell text (categorical or datetime-parseable).
	String
)

// Column is one named column of a dataset. Exactly one of Floats/Strings is
// populated, matching Kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Values returns a string representation of every cell, used for cardinality
// and grouping work where the storage type does not matter.
func (c *Column) Values() []string {
	if c.Kind == String {
		return c.Strings
	}
	out := make([]string, len(c.Floats))
	for i, v := range c.Floats {
		if math.IsNaN(v) {
			out[i] = ""
			continue
		}
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// NUnique counts distinct values, counting missing as one value.
func (c *Column) NUnique() int {
	seen := make(map[string]struct{})
	for _, v := range c.Values() {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Mean returns the column mean, ignoring NaN entries.
func (c *Column) Mean() float64 {
	return stat.Mean(c.finite(), nil)
}

// Std returns the population standard deviation, ignoring NaN entries.
func (c *Column) Std() float64 {
	vals := c.finite()
	if len(vals) < 2 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(vals, nil))
}

// IsConstant reports whether the column has zero variance.
func (c *Column) IsConstant() bool {
	return c.Kind == Numeric && c.Std() == 0
}

func (c *Column) finite() []float64 {
	out := make([]float64, 0, len(c.Floats))
	for _, v := range c.Floats {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func (c *Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Floats = append([]float64(nil), c.Floats...)
	} else {
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

// Dataset is an ordered collection of equal-length columns.
type Dataset struct {
	cols  []Column
	index map[string]int
}

// New builds a dataset from columns, preserving order. Column lengths must
// agree and names must be unique.
func New(cols ...Column) (*Dataset, error) {
	ds := &Dataset{index: make(map[string]int, len(cols))}
	rows := -1
	for _, c := range cols {
		if _, dup := ds.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if rows >= 0 && c.Len() != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), rows)
		}
		rows = c.Len()
		ds.index[c.Name] = len(ds.cols)
		ds.cols = append(ds.cols, c)
	}
	return ds, nil
}

// NRows returns the row count.
func (d *Dataset) NRows() int {
	if len(d.cols) == 0 {
		return 0
	}
	return d.cols[0].Len()
}

// NCols returns the column count.
func (d *Dataset) NCols() int { return len(d.cols) }

// Names returns column names in dataset order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Col returns the named column.
func (d *Dataset) Col(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.cols[i], true
}

// Numeric returns the float values of a numeric column.
func (d *Dataset) Numeric(name string) ([]float64, bool) {
	c, ok := d.Col(name)
	if !ok || c.Kind != Numeric {
		return nil, false
	}
	return c.Floats, true
}

// Copy returns a deep copy of the dataset.
func (d *Dataset) Copy() *Dataset {
	cols := make([]Column, len(d.cols))
	for i, c := range d.cols {
		cols[i] = c.clone()
	}
	out, _ := New(cols...)
	return out
}

// Drop returns a new dataset without the named columns. Unknown names are
// ignored; the receiver is never modified.
func (d *Dataset) Drop(names ...string) *Dataset {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var cols []Column
	for _, c := range d.cols {
		if _, skip := drop[c.Name]; skip {
			continue
		}
		cols = append(cols, c.clone())
	}
	out, _ := New(cols...)
	return out
}

// timeLayouts are tried in order when parsing datetime-like string columns.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ParseTime parses a single cell as a timestamp.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimes parses every cell of a column as a timestamp. The returned slice
// has one entry per row; invalid is the count of non-empty cells that failed
// to parse. Numeric columns never parse.
func (d *Dataset) ParseTimes(name string) (times []time.Time, valid []bool, invalid int) {
	c, ok := d.Col(name)
	if !ok || c.Kind != String {
		if ok {
			return make([]time.Time, c.Len()), make([]bool, c.Len()), c.Len()
		}
		return nil, nil, 0
	}
	times = make([]time.Time, len(c.Strings))
	valid = make([]bool, len(c.Strings))
	for i, s := range c.Strings {
		t, ok := ParseTime(s)
		if !ok {
			invalid++
			continue
		}
		times[i] = t
		valid[i] = true
	}
	return times, valid, invalid
}

// FromCSV reads a dataset from CSV with a header row. A column is numeric
// when every non-empty cell parses as a float; otherwise it stays a string
// column.
func FromCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: empty input")
	}
	header := records[0]
	rows := records[1:]

	cols := make([]Column, len(header))
	for j, name := range header {
		raw := make([]string, len(rows))
		numeric := true
		for i, rec := range rows {
			cell := ""
			if j < len(rec) {
				cell = rec[j]
			}
			raw[i] = cell
			if cell == "" {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
			}
		}
		if numeric && len(rows) > 0 {
			floats := make([]float64, len(raw))
			for i, cell := range raw {
				if cell == "" {
					floats[i] = math.NaN()
					continue
				}
				floats[i], _ = strconv.ParseFloat(cell, 64)
			}
			cols[j] = Column{Name: name, Kind: Numeric, Floats: floats}
			continue
		}
		cols[j] = Column{Name: name, Kind: String, Strings: raw}
	}
	return New(cols...)
}

// FromCSVFile reads a dataset from a CSV file on disk.
func FromCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return FromCSV(f)
}

// WriteCSV writes the dataset back out as CSV with a header row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Names()); err != nil {
		return err
	}
	n := d.NRows()
	row := make([]string, d.NCols())
	for i := 0; i < n; i++ {
		for j, c := range d.cols {
			if c.Kind == Numeric {
				if math.IsNaN(c.Floats[i]) {
					row[j] = ""
				} else {
					row[j] = strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
				}
			} else {
				row[j] = c.Strings[i]
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the dataset to a CSV file on disk.
func (d *Dataset) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := d.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
