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

// Package plotconfig defines PlotConfig, the immutable configuration
// snapshot consumed by the plotting engine.  A PlotConfig is constructed by
// the caller, validated once, and read-only thereafter; the engine never
// mutates it and never reads configuration from anywhere else.
package plotconfig

import (
	"encoding/json"
	"fmt"
)

// ChartType enumerates the supported chart kinds.
type ChartType string

// Supported chart kinds.
const (
	ScatterChart   ChartType = "scatter"
	LineChart      ChartType = "line"
	BarChart       ChartType = "bar"
	HistogramChart ChartType = "histogram"
)

// ParseChartType parses the wire form of a ChartType.
func ParseChartType(s string) (ChartType, error) {
	switch ct := ChartType(s); ct {
	case ScatterChart, LineChart, BarChart, HistogramChart:
		return ct, nil
	}
	return "", fmt.Errorf("unknown chart type %q", s)
}

// AggFn enumerates the aggregation functions applicable to a bucket of
// y-values.
type AggFn string

// Supported aggregation functions.  AggNone plots every coercible row as
// its own point, with no bucket reduction.
const (
	AggNone   AggFn = "none"
	AggMean   AggFn = "mean"
	AggMedian AggFn = "median"
	AggMin    AggFn = "min"
	AggMax    AggFn = "max"
	AggCount  AggFn = "count"
	AggSum    AggFn = "sum"
)

// ParseAggFn parses the wire form of an AggFn.
func ParseAggFn(s string) (AggFn, error) {
	switch fn := AggFn(s); fn {
	case AggNone, AggMean, AggMedian, AggMin, AggMax, AggCount, AggSum:
		return fn, nil
	}
	return "", fmt.Errorf("unknown aggregation function %q", s)
}

// ErrorBarKind enumerates the dispersion statistics available as error
// bars.  Error bars only apply to mean aggregation; dispersion around
// other aggregators has no agreed definition and is never fabricated.
type ErrorBarKind string

// Supported error bar kinds.
const (
	NoErrorBars ErrorBarKind = "none"
	StdDevBars  ErrorBarKind = "std"
	StdErrBars  ErrorBarKind = "sem"
	CI95Bars    ErrorBarKind = "ci95"
)

// ParseErrorBarKind parses the wire form of an ErrorBarKind.
func ParseErrorBarKind(s string) (ErrorBarKind, error) {
	switch eb := ErrorBarKind(s); eb {
	case NoErrorBars, StdDevBars, StdErrBars, CI95Bars:
		return eb, nil
	}
	return "", fmt.Errorf("unknown error bar kind %q", s)
}

// PlotConfig is a complete description of one requested chart.  Field
// selectors address store fields as `namespace.name`, e.g. `metrics.loss`.
type PlotConfig struct {
	ChartType ChartType `json:"chartType"`
	XField    string    `json:"xField"`
	YField    string    `json:"yField"`
	// GroupBy splits the data into one series per distinct value.  Empty
	// means a single implicit series.
	GroupBy string `json:"groupBy,omitempty"`
	// ReplicateField identifies repeated runs of the same parameter
	// configuration (a seed fingerprint).
	ReplicateField string       `json:"replicateField,omitempty"`
	Aggregation    AggFn        `json:"aggregation"`
	ErrorBars      ErrorBarKind `json:"errorBars"`
	// BinCount is the histogram bin count; 0 selects the adaptive
	// heuristic.
	BinCount int `json:"binCount,omitempty"`
	// AggregateReplicates collapses runs sharing an x value into one
	// bucket.  When false, runs with distinct replicate identifiers stay
	// distinguishable as separate points, showing seed-level spread.
	AggregateReplicates bool `json:"aggregateReplicates"`
}

// Validate checks the receiver for internal consistency.
func (c PlotConfig) Validate() error {
	if _, err := ParseChartType(string(c.ChartType)); err != nil {
		return err
	}
	if _, err := ParseAggFn(string(c.Aggregation)); err != nil {
		return err
	}
	if _, err := ParseErrorBarKind(string(c.ErrorBars)); err != nil {
		return err
	}
	if c.ChartType == HistogramChart {
		if c.XField == "" {
			return fmt.Errorf("histogram charts require an x field")
		}
		if c.BinCount < 0 {
			return fmt.Errorf("bin count must be non-negative, got %d", c.BinCount)
		}
		return nil
	}
	if c.XField == "" || c.YField == "" {
		return fmt.Errorf("%s charts require both x and y fields", c.ChartType)
	}
	return nil
}

// Fields returns the store fields the receiver needs fetched, deduplicated
// and in selector order (x, y, group, replicate).
func (c PlotConfig) Fields() []string {
	fields := []string{}
	seen := map[string]bool{}
	for _, f := range []string{c.XField, c.YField, c.GroupBy, c.ReplicateField} {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields
}

// Fingerprint returns a canonical string form of the receiver, suitable as
// a memoization key component.
func (c PlotConfig) Fingerprint() string {
	// Struct field order is fixed, so marshaling is deterministic.
	b, err := json.Marshal(c)
	if err != nil {
		// PlotConfig contains only marshalable fields.
		panic(err)
	}
	return string(b)
}
