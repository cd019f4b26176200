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

// Package plotspec converts aggregated buckets and histogram bins into
// renderer-agnostic chart specifications.
//
// A ChartSpec carries everything a renderer needs -- ordered series of
// points with attached run metadata, a per-chart axis-kind decision, and
// stable palette slot assignments -- without depending on any concrete
// charting library.  A thin adapter converts a spec to a specific chart
// library's option format, so the engine and its tests have no rendering
// dependency.
//
// Rebuilding a spec from identical inputs yields an identical spec: there
// is no hidden state and no randomness in this package.
package plotspec

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/runviz/runviz/aggregate"
	"github.com/runviz/runviz/fieldvalues"
	"github.com/runviz/runviz/histogram"
	"github.com/runviz/runviz/plotconfig"
)

// AxisKind describes an axis' domain.  Mixed types are not allowed within
// one axis: the kind is decided once per chart.
type AxisKind string

// Supported axis kinds.
const (
	ContinuousAxis  AxisKind = "continuous"
	CategoricalAxis AxisKind = "categorical"
)

// DefaultPalette is the default series color continuum.  A series' color
// is its slot in this sequence; the same group name maps to the same slot
// across re-renders as long as series order is stable.
var DefaultPalette = []string{
	"rgba(66, 133, 244, .8)",
	"rgba(219, 68, 55, .8)",
	"rgba(244, 180, 0, .8)",
	"rgba(15, 157, 88, .8)",
	"rgba(171, 71, 188, .8)",
	"rgba(0, 172, 193, .8)",
	"rgba(255, 112, 67, .8)",
	"rgba(158, 157, 36, .8)",
}

// Series is one ordered run of plot points within a chart.
type Series struct {
	Name      string            `json:"name"`
	ColorSlot int               `json:"colorSlot"`
	Points    []aggregate.Point `json:"points"`
	// ErrorBand marks a non-interactive dispersion overlay.  Band points
	// carry no run metadata and must not be clickable or navigable.
	ErrorBand bool `json:"errorBand,omitempty"`
}

// ChartSpec is a complete renderer-agnostic description of one chart.
type ChartSpec struct {
	Kind    plotconfig.ChartType `json:"kind"`
	XField  string               `json:"xField"`
	YField  string               `json:"yField"`
	XAxis   AxisKind             `json:"xAxis"`
	Series  []Series             `json:"series,omitempty"`
	Palette []string             `json:"palette,omitempty"`
	// NoData distinguishes an empty result set from an empty chart with
	// misleading axes.
	NoData   bool `json:"noData,omitempty"`
	Sampled  bool `json:"sampled,omitempty"`
	Total    int  `json:"total"`
	Returned int  `json:"returned"`
}

// HistogramSpec is a renderer-agnostic description of one histogram.
type HistogramSpec struct {
	Field        string     `json:"field"`
	Bins         []float64  `json:"bins"`
	Counts       []int      `json:"counts"`
	Total        int        `json:"total"`
	RunIDsPerBin [][]string `json:"runIdsPerBin,omitempty"`
	NoData       bool       `json:"noData,omitempty"`
	Sampled      bool       `json:"sampled,omitempty"`
}

// Build converts a raw field-values response and a configuration snapshot
// into a chart spec.  palette may be nil to use DefaultPalette.  An input
// yielding no coercible rows produces an explicit no-data spec.
func Build(resp *fieldvalues.FieldValuesResponse, cfg plotconfig.PlotConfig, palette []string) (*ChartSpec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ChartType == plotconfig.HistogramChart {
		return nil, fmt.Errorf("histogram charts are built with BuildHistogram")
	}
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	spec := &ChartSpec{
		Kind:     cfg.ChartType,
		XField:   cfg.XField,
		YField:   cfg.YField,
		XAxis:    ContinuousAxis,
		Palette:  palette,
		Sampled:  resp.Sampled,
		Total:    resp.Total,
		Returned: resp.Returned,
	}

	in := aggregate.Input{RunIDs: resp.RunIDs}
	var ok bool
	if in.X, ok = resp.Column(cfg.XField); !ok {
		spec.NoData = true
		return spec, nil
	}
	if in.Y, ok = resp.Column(cfg.YField); !ok {
		spec.NoData = true
		return spec, nil
	}
	if cfg.GroupBy != "" {
		in.Group, _ = resp.Column(cfg.GroupBy)
	}
	if cfg.ReplicateField != "" {
		in.Replicate, _ = resp.Column(cfg.ReplicateField)
	}

	bucketsByGroup, err := aggregate.Group(in, cfg.AggregateReplicates)
	if err != nil {
		return nil, err
	}
	if len(bucketsByGroup) == 0 {
		spec.NoData = true
		return spec, nil
	}

	// One axis-kind decision per chart: categorical as soon as any x value
	// failed numeric coercion.
	for _, buckets := range bucketsByGroup {
		for _, bucket := range buckets {
			if !bucket.X.Numeric {
				spec.XAxis = CategoricalAxis
			}
		}
	}

	groups := make([]string, 0, len(bucketsByGroup))
	for group := range bucketsByGroup {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	bands := []Series{}
	for idx, group := range groups {
		points, err := aggregate.Reduce(group, bucketsByGroup[group], cfg.Aggregation, cfg.ErrorBars)
		if err != nil {
			return nil, err
		}
		if spec.XAxis == CategoricalAxis {
			// Lexicographic point order on a categorical axis.
			sort.SliceStable(points, func(a, b int) bool {
				return points[a].X.Key() < points[b].X.Key()
			})
		}
		series := Series{
			Name:      group,
			ColorSlot: idx % len(palette),
			Points:    points,
		}
		spec.Series = append(spec.Series, series)
		if band, ok := errorBand(series); ok {
			bands = append(bands, band)
		}
	}
	// Dispersion overlays follow the base series so renderers draw them on
	// top.
	spec.Series = append(spec.Series, bands...)
	return spec, nil
}

// errorBand extracts a non-interactive dispersion overlay from a series:
// only the points carrying dispersion intervals, stripped of run metadata
// so the band can never resolve to a run.
func errorBand(s Series) (Series, bool) {
	points := []aggregate.Point{}
	for _, p := range s.Points {
		if p.YLow == nil || p.YHigh == nil {
			continue
		}
		points = append(points, aggregate.Point{
			X:     p.X,
			Y:     p.Y,
			YLow:  p.YLow,
			YHigh: p.YHigh,
			Group: p.Group,
		})
	}
	if len(points) == 0 {
		return Series{}, false
	}
	return Series{
		Name:      s.Name,
		ColorSlot: s.ColorSlot,
		Points:    points,
		ErrorBand: true,
	}, true
}

// BuildHistogram bins the configured x field client-side and wraps the
// result as a histogram spec.  Rows whose cells fail numeric coercion are
// dropped; when nothing coerces, the spec is an explicit no-data state.
func BuildHistogram(resp *fieldvalues.FieldValuesResponse, cfg plotconfig.PlotConfig) (*HistogramSpec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ChartType != plotconfig.HistogramChart {
		return nil, fmt.Errorf("%s charts are built with Build", cfg.ChartType)
	}
	spec := &HistogramSpec{
		Field:   cfg.XField,
		Sampled: resp.Sampled,
	}
	col, ok := resp.Column(cfg.XField)
	if !ok {
		spec.NoData = true
		return spec, nil
	}
	values := []float64{}
	runIDs := []string{}
	for i, c := range col {
		v, ok := c.Numeric()
		if !ok {
			continue
		}
		values = append(values, v)
		if i < len(resp.RunIDs) {
			runIDs = append(runIDs, resp.RunIDs[i])
		}
	}
	if len(values) == 0 {
		spec.NoData = true
		return spec, nil
	}
	if len(runIDs) != len(values) {
		runIDs = nil
	}
	result, err := histogram.Compute(values, runIDs, cfg.BinCount)
	if err != nil {
		return nil, err
	}
	spec.Bins = result.Bins
	spec.Counts = result.Counts
	spec.Total = result.Total
	spec.RunIDsPerBin = result.RunIDsPerBin
	return spec, nil
}

// FromHistogramResponse wraps a server-side binned distribution as a
// histogram spec.  The two binning paths are never mixed for one chart.
func FromHistogramResponse(resp *fieldvalues.HistogramResponse) (*HistogramSpec, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	spec := &HistogramSpec{
		Field:        resp.Field,
		Bins:         resp.Bins,
		Counts:       resp.Counts,
		Total:        resp.Total,
		RunIDsPerBin: resp.RunIDsPerBin,
	}
	if resp.Total == 0 {
		spec.NoData = true
		spec.Bins, spec.Counts, spec.RunIDsPerBin = nil, nil, nil
	}
	return spec, nil
}

// Thresholds beyond which values format in scientific notation.
const (
	scientificBelow = 1e-3
	scientificAbove = 1e6
)

// FormatValue formats v for tooltips and axis labels: scientific notation
// for very small or very large magnitudes, fixed notation otherwise.
func FormatValue(v float64) string {
	if v == 0 {
		return "0"
	}
	a := math.Abs(v)
	if a < scientificBelow || a > scientificAbove {
		return strconv.FormatFloat(v, 'e', 3, 64)
	}
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// formatX formats a point's x value for display.
func formatX(x fieldvalues.XValue) string {
	if x.Numeric {
		return FormatValue(x.Num)
	}
	return x.Str
}

// Run ids shown in full in a tooltip before eliding.
const tooltipMaxRunIDs = 5

// Tooltip renders a point's hover text.  It is a pure function of the
// point's fields.
func Tooltip(seriesName string, p aggregate.Point) string {
	lines := []string{
		seriesName,
		fmt.Sprintf("x: %s", formatX(p.X)),
		fmt.Sprintf("y: %s", FormatValue(p.Y)),
	}
	if p.YLow != nil && p.YHigh != nil {
		lines = append(lines, fmt.Sprintf("range: %s .. %s", FormatValue(*p.YLow), FormatValue(*p.YHigh)))
	}
	switch {
	case p.N == 1:
		lines = append(lines, fmt.Sprintf("run: %s", p.RunIDs[0]))
	case p.N > 1:
		shown := p.RunIDs
		elided := 0
		if len(shown) > tooltipMaxRunIDs {
			elided = len(shown) - tooltipMaxRunIDs
			shown = shown[:tooltipMaxRunIDs]
		}
		runs := strings.Join(shown, ", ")
		if elided > 0 {
			runs = fmt.Sprintf("%s (+%d more)", runs, elided)
		}
		lines = append(lines, fmt.Sprintf("%d runs: %s", p.N, runs))
	}
	return strings.Join(lines, "\n")
}
