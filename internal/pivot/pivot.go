// Package pivot reshapes long measurement rows (one row per parameter and check
// event) into dense parameter x check-number tables for the water and soil datasets.
package pivot

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"kok-dashboard/internal/models"
)

// CheckNumber is one column of a pivot table
type CheckNumber struct {
	Key     string // mapping key used by every row
	Numeric bool
	Value   int // valid when Numeric
}

// MarshalJSON renders numeric check numbers as JSON numbers and the rest as strings
func (c CheckNumber) MarshalJSON() ([]byte, error) {
	if c.Numeric {
		return []byte(strconv.Itoa(c.Value)), nil
	}
	return json.Marshal(c.Key)
}

// Row is a table row: one parameter with a display value per check number
type Row struct {
	Parameter   string             `json:"parameter"`
	Unit        string             `json:"unit,omitempty"`
	CheckValues map[string]*string `json:"check_values"`
}

// ChartRow extends Row with the numeric series used for charts
type ChartRow struct {
	Parameter     string             `json:"parameter"`
	Unit          string             `json:"unit,omitempty"`
	CheckValues   map[string]*string `json:"check_values"`
	NumericValues map[string]float64 `json:"numeric_values"`
}

// Table is the pivot of one station's dataset
type Table struct {
	Dataset      models.Dataset                `json:"dataset"`
	Parameters   []string                      `json:"parameters"`
	CheckNumbers []CheckNumber                 `json:"check_numbers"`
	Units        map[string]string             `json:"units,omitempty"`
	Pivot        map[string]map[string]*string `json:"pivot"`
	Rows         []Row                         `json:"pivot_list"`
	ChartRows    []ChartRow                    `json:"pivot_list_filtered"`
}

// Keys returns the check-number keys in column order
func (t *Table) Keys() []string {
	keys := make([]string, len(t.CheckNumbers))
	for i, c := range t.CheckNumbers {
		keys[i] = c.Key
	}
	return keys
}

// Empty reports whether the table has no parameters
func (t *Table) Empty() bool {
	return len(t.Parameters) == 0
}

// Options controls how rows are pivoted
type Options struct {
	Dataset   models.Dataset
	Extractor models.CheckNumberExtractor
	WithUnit  bool

	// DropEmptyChartRows removes chart rows whose display values are all null.
	// Table rows are always kept.
	DropEmptyChartRows bool
}

// OptionsFor returns the standard options of a dataset
func OptionsFor(dataset models.Dataset) Options {
	return Options{
		Dataset:   dataset,
		Extractor: dataset.Extractor(),
		WithUnit:  dataset.HasUnit(),
	}
}

// Build pivots rows. Rows are consumed in order: the first unit seen for a
// parameter wins and a later row for the same (parameter, check number) replaces
// an earlier one.
func Build(rows []*models.MeasurementRow, opts Options) *Table {
	extract := opts.Extractor
	if extract == nil {
		extract = models.ExtractWaterCheckNumber
	}

	values := make(map[string]map[string]*string)
	numerics := make(map[string]map[string]float64)
	units := make(map[string]string)
	checks := make(map[string]CheckNumber)

	for _, row := range rows {
		param := row.Parameter
		if _, seen := values[param]; !seen {
			values[param] = make(map[string]*string)
			numerics[param] = make(map[string]float64)
			if opts.WithUnit {
				units[param] = row.Unit
			}
		}

		check := classify(row.CheckNumber, extract)
		checks[check.Key] = check

		values[param][check.Key] = row.DisplayValue
		numerics[param][check.Key] = row.NumericValue
	}

	table := &Table{
		Dataset:      opts.Dataset,
		Parameters:   make([]string, 0, len(values)),
		CheckNumbers: orderCheckNumbers(checks),
		Pivot:        values,
		Rows:         make([]Row, 0, len(values)),
		ChartRows:    make([]ChartRow, 0, len(values)),
	}
	if opts.WithUnit {
		table.Units = units
	}

	for param := range values {
		table.Parameters = append(table.Parameters, param)
	}
	sort.Strings(table.Parameters)

	for _, param := range table.Parameters {
		row := Row{
			Parameter:   param,
			Unit:        units[param],
			CheckValues: make(map[string]*string, len(table.CheckNumbers)),
		}
		chart := ChartRow{
			Parameter:     param,
			Unit:          units[param],
			CheckValues:   make(map[string]*string, len(table.CheckNumbers)),
			NumericValues: make(map[string]float64, len(table.CheckNumbers)),
		}

		allEmpty := true
		for _, c := range table.CheckNumbers {
			v := values[param][c.Key]
			if !present(v) {
				row.CheckValues[c.Key] = nil
				chart.CheckValues[c.Key] = nil
				chart.NumericValues[c.Key] = 0
				continue
			}
			allEmpty = false
			row.CheckValues[c.Key] = v
			chart.CheckValues[c.Key] = v
			chart.NumericValues[c.Key] = numerics[param][c.Key]
		}

		table.Rows = append(table.Rows, row)
		if opts.DropEmptyChartRows && allEmpty {
			continue
		}
		table.ChartRows = append(table.ChartRows, chart)
	}

	return table
}

// present reports whether a display value should be shown: non-null and non-empty.
func present(v *string) bool {
	return v != nil && *v != ""
}

// classify decides the column of a raw check number. Integers are keyed by their
// canonical decimal form; anything else keeps the raw text as its key.
func classify(raw string, extract models.CheckNumberExtractor) CheckNumber {
	if n, ok := ParseCheckNumber(extract(raw)); ok {
		return CheckNumber{Key: strconv.Itoa(n), Numeric: true, Value: n}
	}
	return CheckNumber{Key: raw}
}

// ParseCheckNumber parses an optionally signed integer written with ASCII or Thai digits.
func ParseCheckNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '๐' && r <= '๙':
			b.WriteRune('0' + (r - '๐'))
		case (r == '+' || r == '-') && i == 0:
			b.WriteRune(r)
		default:
			return 0, false
		}
	}

	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// orderCheckNumbers puts integers first in ascending order, then the remaining
// labels in lexicographic order. The two groups never interleave.
func orderCheckNumbers(checks map[string]CheckNumber) []CheckNumber {
	numeric := make([]CheckNumber, 0, len(checks))
	labels := make([]CheckNumber, 0)
	for _, c := range checks {
		if c.Numeric {
			numeric = append(numeric, c)
		} else {
			labels = append(labels, c)
		}
	}

	sort.Slice(numeric, func(i, j int) bool { return numeric[i].Value < numeric[j].Value })
	sort.Slice(labels, func(i, j int) bool { return labels[i].Key < labels[j].Key })

	return append(numeric, labels...)
}
