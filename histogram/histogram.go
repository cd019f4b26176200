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

// Package histogram bins a numeric column into equal-width bins.
//
// Bins span [min, max] of the input values.  A degenerate input whose
// values are all equal still produces a valid histogram: the bin width
// falls back to 1, so the single value lands inside the first bin rather
// than dividing by zero.  The maximum value is clamped into the last bin,
// keeping the upper range edge inclusive.
package histogram

import (
	"fmt"
	"math"
)

const (
	// Bin-count heuristic clamps.
	minAutoBins = 5
	maxAutoBins = 50
	// The fixed bin count for inputs too small for the heuristic.
	tinyInputBins = 10
)

// Result is a binned value distribution: len(Bins) == len(Counts)+1
// strictly increasing edges, and sum(Counts) == Total.
type Result struct {
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
	Total  int       `json:"total"`
	// RunIDsPerBin maps each bin to the runs whose values landed in it,
	// parallel to Counts.  Populated only when run ids accompany the
	// values.
	RunIDsPerBin [][]string `json:"runIdsPerBin,omitempty"`
}

// DefaultBinCount picks a bin count for n values: the smaller of Sturges'
// estimate ceil(1+log2(n)) and the square-root estimate ceil(sqrt(n)),
// clamped to [5, 50].  Inputs of one or fewer values get a fixed default
// of 10.
func DefaultBinCount(n int) int {
	if n <= 1 {
		return tinyInputBins
	}
	sturges := int(math.Ceil(1 + math.Log2(float64(n))))
	sqrt := int(math.Ceil(math.Sqrt(float64(n))))
	bins := sturges
	if sqrt < bins {
		bins = sqrt
	}
	if bins < minAutoBins {
		bins = minAutoBins
	}
	if bins > maxAutoBins {
		bins = maxAutoBins
	}
	return bins
}

// Compute bins values into binCount equal-width bins.  A binCount of 0
// selects the adaptive heuristic.  runIDs, when non-nil, must parallel
// values and yields per-bin run id lists for drill-down.  An empty input
// is an error; the caller is expected to surface an explicit no-data state
// instead of an empty histogram.
func Compute(values []float64, runIDs []string, binCount int) (*Result, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("cannot bin an empty column")
	}
	if runIDs != nil && len(runIDs) != len(values) {
		return nil, fmt.Errorf("%d run ids for %d values", len(runIDs), len(values))
	}
	if binCount == 0 {
		binCount = DefaultBinCount(len(values))
	}
	if binCount < 1 {
		return nil, fmt.Errorf("bin count must be positive, got %d", binCount)
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	binWidth := (max - min) / float64(binCount)
	if binWidth == 0 {
		// Degenerate range: all values equal.
		binWidth = 1
	}

	ret := &Result{
		Bins:   make([]float64, binCount+1),
		Counts: make([]int, binCount),
		Total:  len(values),
	}
	for i := range ret.Bins {
		ret.Bins[i] = min + binWidth*float64(i)
	}
	// The computed upper edge can fall below max through rounding; pin it.
	if ret.Bins[binCount] < max {
		ret.Bins[binCount] = max
	}
	if runIDs != nil {
		ret.RunIDsPerBin = make([][]string, binCount)
	}
	for i, v := range values {
		bin := int(math.Floor((v - min) / binWidth))
		if bin > binCount-1 {
			// Keep the maximum value inside the last bin.
			bin = binCount - 1
		}
		ret.Counts[bin]++
		if runIDs != nil {
			ret.RunIDsPerBin[bin] = append(ret.RunIDsPerBin[bin], runIDs[i])
		}
	}
	return ret, nil
}
