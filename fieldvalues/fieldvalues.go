/*
	Copyright 2025 The Runviz Authors
	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at
		https://www.apache.org/licenses/LICENSE-2.0
	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

// Package fieldvalues defines the payloads exchanged with the experiment
// store's field-values endpoints, and the coercion rules turning raw cells
// into typed values:
//
// Cell, a tagged value holding exactly one of a number, a string, or null,
// as returned by the store for one field of one run;
//
// FieldValuesResponse and HistogramResponse, the inbound payloads, with
// index-alignment validation;
//
// Coercion helpers (Cell.Numeric, CoerceX) classifying cells as numeric,
// categorical, or invalid.  Coercion happens once, at the boundary; all
// downstream computation operates on typed values only.
package fieldvalues

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// CellType enumerates the value types a Cell may hold.
type CellType int

// Enumerated cell types.
const (
	NullCellType CellType = iota
	NumberCellType
	StringCellType
)

// Cell represents a single raw field value: a number, a string, or null.
type Cell struct {
	V any
	T CellType
}

// Number returns a new Cell wrapping the provided float64.
func Number(f float64) Cell {
	return Cell{V: f, T: NumberCellType}
}

// String returns a new Cell wrapping the provided string.
func String(s string) Cell {
	return Cell{V: s, T: StringCellType}
}

// Null returns a new null Cell.
func Null() Cell {
	return Cell{}
}

// IsNull reports whether the receiver holds no value.
func (c Cell) IsNull() bool {
	return c.T == NullCellType
}

// Numeric coerces the receiver to a finite float64.  Numbers coerce to
// themselves; strings coerce only if they parse fully to a finite number.
// Null cells, unparseable strings, and non-finite values do not coerce.
func (c Cell) Numeric() (float64, bool) {
	switch c.T {
	case NumberCellType:
		f := c.V.(float64)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case StringCellType:
		f, err := strconv.ParseFloat(c.V.(string), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// MarshalJSON encodes the receiver as the plain JSON scalar it wraps.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.T == NullCellType {
		return []byte("null"), nil
	}
	return json.Marshal(c.V)
}

// UnmarshalJSON decodes a plain JSON number, string, or null into the
// receiver.  Any other JSON value is an error.
func (c *Cell) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var got any
	if err := dec.Decode(&got); err != nil {
		return err
	}
	switch v := got.(type) {
	case nil:
		*c = Null()
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return err
		}
		*c = Number(f)
	case string:
		*c = String(v)
	default:
		return fmt.Errorf("cell must be a number, a string, or null; got %T", got)
	}
	return nil
}

// XValue is a coerced x-axis value: numeric when the raw cell coerces to a
// finite number, categorical (the raw string) otherwise.
type XValue struct {
	Num     float64
	Str     string
	Numeric bool
}

// NumericX returns a numeric XValue.
func NumericX(f float64) XValue {
	return XValue{Num: f, Numeric: true}
}

// CategoricalX returns a categorical XValue.
func CategoricalX(s string) XValue {
	return XValue{Str: s}
}

// CoerceX coerces the receiver for use on an x axis.  Numbers and
// numeric strings yield numeric values; other strings fall back to their
// raw categorical form.  Null cells do not coerce.
func CoerceX(c Cell) (XValue, bool) {
	if f, ok := c.Numeric(); ok {
		return NumericX(f), true
	}
	if c.T == StringCellType {
		return CategoricalX(c.V.(string)), true
	}
	return XValue{}, false
}

// Key returns the canonical bucket-key form of the receiver.
func (x XValue) Key() string {
	if x.Numeric {
		return strconv.FormatFloat(x.Num, 'g', -1, 64)
	}
	return x.Str
}

// Less orders XValues deterministically: numeric values ascend before
// categorical values, which ascend lexicographically.
func (x XValue) Less(other XValue) bool {
	if x.Numeric != other.Numeric {
		return x.Numeric
	}
	if x.Numeric {
		return x.Num < other.Num
	}
	return x.Str < other.Str
}

// MarshalJSON encodes the receiver as a plain JSON number or string.
func (x XValue) MarshalJSON() ([]byte, error) {
	if x.Numeric {
		return json.Marshal(x.Num)
	}
	return json.Marshal(x.Str)
}

// UnmarshalJSON decodes a plain JSON number or string into the receiver.
func (x *XValue) UnmarshalJSON(data []byte) error {
	var c Cell
	if err := c.UnmarshalJSON(data); err != nil {
		return err
	}
	got, ok := CoerceX(c)
	if !ok {
		return fmt.Errorf("x value must be a number or a string")
	}
	*x = got
	return nil
}

// FieldValuesRequest asks the store for raw values of the named fields
// across all runs matching the filter.  When more than MaxPoints runs
// match, the store returns a seed-reproducible random sample.
type FieldValuesRequest struct {
	Fields        []string       `json:"fields"`
	Filter        map[string]any `json:"filter,omitempty"`
	MaxPoints     int            `json:"max_points"`
	Seed          int64          `json:"seed"`
	IncludeRunIDs bool           `json:"include_run_ids"`
}

// FieldValuesResponse carries raw, row-aligned field values.  Index i
// across all field columns and RunIDs describes the same run.
type FieldValuesResponse struct {
	Fields   map[string][]Cell `json:"fields"`
	RunIDs   []string          `json:"run_ids"`
	Total    int               `json:"total"`
	Returned int               `json:"returned"`
	Sampled  bool              `json:"sampled"`
}

// Validate checks the receiver's index alignment: every field column must
// have the same length as RunIDs, and Returned must agree with that length.
func (r *FieldValuesResponse) Validate() error {
	n := len(r.RunIDs)
	if r.Returned != n {
		return fmt.Errorf("returned count %d does not match %d run ids", r.Returned, n)
	}
	for name, col := range r.Fields {
		if len(col) != n {
			return fmt.Errorf("field %q has %d values for %d runs", name, len(col), n)
		}
	}
	if r.Returned > r.Total {
		return fmt.Errorf("returned %d exceeds total %d", r.Returned, r.Total)
	}
	return nil
}

// Column returns the named field column, or false if the response does not
// carry it.
func (r *FieldValuesResponse) Column(field string) ([]Cell, bool) {
	col, ok := r.Fields[field]
	return col, ok
}

// HistogramRequest asks the store to bin a field's values server-side.
type HistogramRequest struct {
	Field    string         `json:"field"`
	BinCount int            `json:"bin_count"`
	Filter   map[string]any `json:"filter,omitempty"`
}

// HistogramResponse carries a server-side binned value distribution:
// len(Bins) == len(Counts)+1, with strictly increasing edges.
type HistogramResponse struct {
	Field        string     `json:"field"`
	Bins         []float64  `json:"bins"`
	Counts       []int      `json:"counts"`
	Total        int        `json:"total"`
	RunIDsPerBin [][]string `json:"run_ids_per_bin,omitempty"`
}

// Validate checks the receiver's bin invariants.
func (r *HistogramResponse) Validate() error {
	if len(r.Bins) != len(r.Counts)+1 {
		return fmt.Errorf("%d bin edges for %d counts", len(r.Bins), len(r.Counts))
	}
	for i := 1; i < len(r.Bins); i++ {
		if r.Bins[i] <= r.Bins[i-1] {
			return fmt.Errorf("bin edges must strictly increase; edge %d (%g) <= edge %d (%g)",
				i, r.Bins[i], i-1, r.Bins[i-1])
		}
	}
	sum := 0
	for i, count := range r.Counts {
		if count < 0 {
			return fmt.Errorf("bin %d has negative count %d", i, count)
		}
		sum += count
	}
	if sum != r.Total {
		return fmt.Errorf("counts sum to %d, total is %d", sum, r.Total)
	}
	if r.RunIDsPerBin != nil && len(r.RunIDsPerBin) != len(r.Counts) {
		return fmt.Errorf("%d run id bins for %d counts", len(r.RunIDsPerBin), len(r.Counts))
	}
	return nil
}
