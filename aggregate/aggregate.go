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

// Package aggregate partitions coerced field values into buckets and
// reduces each bucket to a single aggregated point.
//
// Rows are partitioned first by a group field into named series, then
// within a series by x value.  When replicate aggregation is disabled,
// runs sharing an x value but differing replicate identifiers land in
// separate buckets, so seed-level spread stays visible instead of being
// collapsed.  Buckets are engine-internal: they are created fresh per
// aggregation pass and discarded once reduced to Points.
//
// A row contributes to a bucket only if both its x and y cells coerce
// (see package fieldvalues); rows failing coercion are silently dropped,
// per-field, since partial field coverage across runs is expected.
// Missing group or replicate values fall back to sentinel labels rather
// than being dropped, so every coercible (x, y) row lands in exactly one
// bucket.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/runviz/runviz/fieldvalues"
	"github.com/runviz/runviz/plotconfig"
)

const (
	// DefaultGroup names the single implicit series used when no group
	// field is configured.
	DefaultGroup = "all"
	// OtherGroup labels rows whose group cell is null.
	OtherGroup = "Other"
	// UnknownReplicate labels rows whose replicate cell is null.
	UnknownReplicate = "unknown"

	// replicateKeySep joins an x key and a replicate identifier into a
	// bucket key.  Unit separator, so natural x values can't collide with
	// composite keys.
	replicateKeySep = "\x1f"
)

// Input carries the parallel, row-aligned columns of one aggregation pass.
// Group and Replicate may be nil.
type Input struct {
	X, Y      []fieldvalues.Cell
	Group     []fieldvalues.Cell
	Replicate []fieldvalues.Cell
	RunIDs    []string
}

// Bucket is the set of y values sharing a group and an x position
// (and, when replicate aggregation is disabled, a replicate identifier),
// prior to aggregation.
type Bucket struct {
	X      fieldvalues.XValue
	Key    string
	Ys     []float64
	RunIDs []string
}

// label returns the string form of a cell for use as a group or replicate
// label, or the fallback when the cell is null.
func label(c fieldvalues.Cell, fallback string) string {
	switch c.T {
	case fieldvalues.StringCellType:
		return c.V.(string)
	case fieldvalues.NumberCellType:
		if x, ok := fieldvalues.CoerceX(c); ok {
			return x.Key()
		}
	}
	return fallback
}

// Group partitions the input rows into per-series buckets.  It returns a
// mapping from series name to that series' buckets, ordered by ascending
// x (numeric values before categorical) and then by bucket key.
func Group(in Input, aggregateReplicates bool) (map[string][]*Bucket, error) {
	n := len(in.X)
	if len(in.Y) != n || len(in.RunIDs) != n {
		return nil, fmt.Errorf("misaligned columns: %d x values, %d y values, %d run ids",
			len(in.X), len(in.Y), len(in.RunIDs))
	}
	if in.Group != nil && len(in.Group) != n {
		return nil, fmt.Errorf("misaligned group column: %d values for %d rows", len(in.Group), n)
	}
	if in.Replicate != nil && len(in.Replicate) != n {
		return nil, fmt.Errorf("misaligned replicate column: %d values for %d rows", len(in.Replicate), n)
	}

	bucketsByGroup := map[string]map[string]*Bucket{}
	for i := 0; i < n; i++ {
		x, ok := fieldvalues.CoerceX(in.X[i])
		if !ok {
			continue
		}
		y, ok := in.Y[i].Numeric()
		if !ok {
			continue
		}
		group := DefaultGroup
		if in.Group != nil {
			group = label(in.Group[i], OtherGroup)
		}
		key := x.Key()
		if !aggregateReplicates {
			replicate := UnknownReplicate
			if in.Replicate != nil {
				replicate = label(in.Replicate[i], UnknownReplicate)
			}
			key = key + replicateKeySep + replicate
		}
		buckets, ok := bucketsByGroup[group]
		if !ok {
			buckets = map[string]*Bucket{}
			bucketsByGroup[group] = buckets
		}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &Bucket{X: x, Key: key}
			buckets[key] = bucket
		}
		bucket.Ys = append(bucket.Ys, y)
		bucket.RunIDs = append(bucket.RunIDs, in.RunIDs[i])
	}

	ret := make(map[string][]*Bucket, len(bucketsByGroup))
	for group, buckets := range bucketsByGroup {
		ordered := make([]*Bucket, 0, len(buckets))
		for _, bucket := range buckets {
			ordered = append(ordered, bucket)
		}
		sort.Slice(ordered, func(a, b int) bool {
			if ordered[a].X.Less(ordered[b].X) {
				return true
			}
			if ordered[b].X.Less(ordered[a].X) {
				return false
			}
			return ordered[a].Key < ordered[b].Key
		})
		ret[group] = ordered
	}
	return ret, nil
}

// Apply reduces a non-empty bucket of y values to a single scalar per the
// provided aggregation function.  AggNone is not a reduction and is
// rejected; empty buckets must not be emitted and are also rejected.
func Apply(fn plotconfig.AggFn, ys []float64) (float64, error) {
	if len(ys) == 0 {
		return 0, fmt.Errorf("cannot aggregate an empty bucket")
	}
	switch fn {
	case plotconfig.AggMean:
		return mean(ys), nil
	case plotconfig.AggMedian:
		sorted := append([]float64(nil), ys...)
		sort.Float64s(sorted)
		return medianSorted(sorted), nil
	case plotconfig.AggMin:
		min := ys[0]
		for _, y := range ys[1:] {
			if y < min {
				min = y
			}
		}
		return min, nil
	case plotconfig.AggMax:
		max := ys[0]
		for _, y := range ys[1:] {
			if y > max {
				max = y
			}
		}
		return max, nil
	case plotconfig.AggCount:
		return float64(len(ys)), nil
	case plotconfig.AggSum:
		sum := 0.0
		for _, y := range ys {
			sum += y
		}
		return sum, nil
	}
	return 0, fmt.Errorf("unsupported aggregation function %q", fn)
}

func mean(ys []float64) float64 {
	sum := 0.0
	for _, y := range ys {
		sum += y
	}
	return sum / float64(len(ys))
}

// medianSorted returns the median of an already-sorted, non-empty slice:
// the central value for odd lengths, the average of the two central values
// for even lengths.
func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev returns the Bessel-corrected sample standard deviation of ys.
// It requires at least two values.
func StdDev(ys []float64) (float64, error) {
	n := len(ys)
	if n < 2 {
		return 0, fmt.Errorf("sample standard deviation requires at least 2 values, got %d", n)
	}
	m := mean(ys)
	sumSq := 0.0
	for _, y := range ys {
		d := y - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1)), nil
}

// Bounds computes the dispersion interval around center.  Error bars are
// defined only for mean aggregation over at least two values; in every
// other case Bounds reports ok=false and the bucket is plotted without a
// dispersion overlay.
func Bounds(fn plotconfig.AggFn, kind plotconfig.ErrorBarKind, ys []float64, center float64) (low, high float64, ok bool) {
	if kind == plotconfig.NoErrorBars || fn != plotconfig.AggMean || len(ys) < 2 {
		return 0, 0, false
	}
	std, err := StdDev(ys)
	if err != nil {
		return 0, 0, false
	}
	n := float64(len(ys))
	var spread float64
	switch kind {
	case plotconfig.StdDevBars:
		spread = std
	case plotconfig.StdErrBars:
		spread = std / math.Sqrt(n)
	case plotconfig.CI95Bars:
		spread = tValue95(len(ys)-1) * std / math.Sqrt(n)
	default:
		return 0, 0, false
	}
	return center - spread, center + spread, true
}

// t-distribution critical values for a two-sided 95% interval, by degrees
// of freedom.  Above 30 degrees the normal approximation 1.96 is used.
var tTable95 = map[int]float64{
	1: 12.71, 2: 4.30, 3: 3.18, 4: 2.78, 5: 2.57,
	6: 2.45, 7: 2.36, 8: 2.31, 9: 2.26, 10: 2.23,
	15: 2.13, 20: 2.09, 25: 2.06, 30: 2.04,
}

func tValue95(df int) float64 {
	if t, ok := tTable95[df]; ok {
		return t
	}
	if df > 30 {
		return 1.96
	}
	// Between tabulated entries: take the next entry up, which is
	// conservative (wider interval).
	for _, k := range []int{15, 20, 25, 30} {
		if df < k {
			return tTable95[k]
		}
	}
	return 1.96
}

// Quartiles summarizes a bucket's value distribution for box-plot style
// overlays.
type Quartiles struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// ComputeQuartiles returns the five-number summary of ys.  Q1 and Q3 are
// the medians of the lower and upper halves, excluding the overall median
// for odd lengths.
func ComputeQuartiles(ys []float64) (Quartiles, error) {
	n := len(ys)
	if n == 0 {
		return Quartiles{}, fmt.Errorf("cannot summarize an empty bucket")
	}
	sorted := append([]float64(nil), ys...)
	sort.Float64s(sorted)
	if n == 1 {
		v := sorted[0]
		return Quartiles{Min: v, Q1: v, Median: v, Q3: v, Max: v}, nil
	}
	q := Quartiles{
		Min:    sorted[0],
		Median: medianSorted(sorted),
		Max:    sorted[n-1],
	}
	lower := sorted[:n/2]
	upper := sorted[(n+1)/2:]
	q.Q1 = medianSorted(lower)
	q.Q3 = medianSorted(upper)
	return q, nil
}

// Point is one aggregated plot point: the reduced y value for a bucket,
// with the dispersion interval when defined and the contributing runs for
// drill-down.  Invariants: YLow <= Y <= YHigh when present, and
// N == len(RunIDs).
type Point struct {
	X      fieldvalues.XValue `json:"x"`
	Y      float64            `json:"y"`
	YLow   *float64           `json:"yLow,omitempty"`
	YHigh  *float64           `json:"yHigh,omitempty"`
	N      int                `json:"n"`
	RunIDs []string           `json:"runIds"`
	Group  string             `json:"group"`
	// Quartiles is populated for buckets of two or more values under a
	// reducing aggregation, for distribution overlays.
	Quartiles *Quartiles `json:"quartiles,omitempty"`
}

// Reduce converts a series' ordered buckets into aggregated points.
// Under AggNone every bucket row becomes its own point; otherwise each
// bucket reduces to one point carrying the configured aggregate and, for
// mean aggregation of two or more values, the configured dispersion
// interval.
func Reduce(group string, buckets []*Bucket, fn plotconfig.AggFn, errorBars plotconfig.ErrorBarKind) ([]Point, error) {
	points := []Point{}
	for _, bucket := range buckets {
		if len(bucket.Ys) == 0 {
			// Group never emits empty buckets.
			return nil, fmt.Errorf("empty bucket %q in group %q", bucket.Key, group)
		}
		if fn == plotconfig.AggNone {
			for i, y := range bucket.Ys {
				points = append(points, Point{
					X:      bucket.X,
					Y:      y,
					N:      1,
					RunIDs: []string{bucket.RunIDs[i]},
					Group:  group,
				})
			}
			continue
		}
		y, err := Apply(fn, bucket.Ys)
		if err != nil {
			return nil, err
		}
		point := Point{
			X:      bucket.X,
			Y:      y,
			N:      len(bucket.Ys),
			RunIDs: bucket.RunIDs,
			Group:  group,
		}
		if low, high, ok := Bounds(fn, errorBars, bucket.Ys, y); ok {
			point.YLow = &low
			point.YHigh = &high
		}
		if len(bucket.Ys) > 1 {
			q, err := ComputeQuartiles(bucket.Ys)
			if err != nil {
				return nil, err
			}
			point.Quartiles = &q
		}
		points = append(points, point)
	}
	return points, nil
}
