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

package plotspec

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/runviz/runviz/aggregate"
	"github.com/runviz/runviz/fieldvalues"
	"github.com/runviz/runviz/plotconfig"
)

func scatterConfig() plotconfig.PlotConfig {
	return plotconfig.PlotConfig{
		ChartType:           plotconfig.ScatterChart,
		XField:              "config.lr",
		YField:              "metrics.loss",
		GroupBy:             "config.optimizer",
		Aggregation:         plotconfig.AggMean,
		ErrorBars:           plotconfig.StdDevBars,
		AggregateReplicates: true,
	}
}

func response() *fieldvalues.FieldValuesResponse {
	return &fieldvalues.FieldValuesResponse{
		Fields: map[string][]fieldvalues.Cell{
			"config.lr": {
				fieldvalues.Number(1e-3), fieldvalues.Number(1e-3),
				fieldvalues.Number(1e-2), fieldvalues.Number(1e-2),
			},
			"metrics.loss": {
				fieldvalues.Number(10), fieldvalues.Number(12),
				fieldvalues.Number(5), fieldvalues.Number(7),
			},
			"config.optimizer": {
				fieldvalues.String("adam"), fieldvalues.String("adam"),
				fieldvalues.String("sgd"), fieldvalues.String("sgd"),
			},
		},
		RunIDs:   []string{"r1", "r2", "r3", "r4"},
		Total:    4,
		Returned: 4,
	}
}

func TestBuild(t *testing.T) {
	spec, err := Build(response(), scatterConfig(), nil)
	if err != nil {
		t.Fatalf("Build yielded unexpected error %s", err)
	}
	if spec.NoData {
		t.Fatalf("Build unexpectedly yielded a no-data spec")
	}
	if spec.XAxis != ContinuousAxis {
		t.Errorf("XAxis = %s, want %s", spec.XAxis, ContinuousAxis)
	}
	// Two base series in group order, then their dispersion overlays.
	if len(spec.Series) != 4 {
		t.Fatalf("got %d series, want 4", len(spec.Series))
	}
	wantNames := []string{"adam", "sgd", "adam", "sgd"}
	for i, s := range spec.Series {
		if s.Name != wantNames[i] {
			t.Errorf("series %d is %q, want %q", i, s.Name, wantNames[i])
		}
		if wantBand := i >= 2; s.ErrorBand != wantBand {
			t.Errorf("series %d has ErrorBand = %v, want %v", i, s.ErrorBand, wantBand)
		}
	}
	// Slot assignment is positional within the base series and shared by
	// each series' overlay.
	if spec.Series[0].ColorSlot != 0 || spec.Series[1].ColorSlot != 1 {
		t.Errorf("base slots = (%d, %d), want (0, 1)",
			spec.Series[0].ColorSlot, spec.Series[1].ColorSlot)
	}
	if spec.Series[2].ColorSlot != 0 || spec.Series[3].ColorSlot != 1 {
		t.Errorf("band slots = (%d, %d), want (0, 1)",
			spec.Series[2].ColorSlot, spec.Series[3].ColorSlot)
	}

	adam := spec.Series[0].Points
	if len(adam) != 1 {
		t.Fatalf("adam has %d points, want 1", len(adam))
	}
	if adam[0].Y != 11 || adam[0].N != 2 {
		t.Errorf("adam point (y, n) = (%v, %d), want (11, 2)", adam[0].Y, adam[0].N)
	}
	if diff := cmp.Diff([]string{"r1", "r2"}, adam[0].RunIDs); diff != "" {
		t.Errorf("adam run ids yielded diff (-want +got) %s", diff)
	}

	// Overlay points never carry run metadata.
	for _, p := range spec.Series[2].Points {
		if p.N != 0 || p.RunIDs != nil {
			t.Errorf("overlay point carries run metadata: n=%d runIds=%v", p.N, p.RunIDs)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := Build(response(), scatterConfig(), nil)
	if err != nil {
		t.Fatalf("Build yielded unexpected error %s", err)
	}
	second, err := Build(response(), scatterConfig(), nil)
	if err != nil {
		t.Fatalf("Build yielded unexpected error %s", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("identical inputs yielded different specs (-first +second) %s", diff)
	}
}

func TestBuildCategoricalAxis(t *testing.T) {
	resp := response()
	// One non-numeric x value makes the whole axis categorical.
	resp.Fields["config.lr"][3] = fieldvalues.String("warmup")
	spec, err := Build(resp, scatterConfig(), nil)
	if err != nil {
		t.Fatalf("Build yielded unexpected error %s", err)
	}
	if spec.XAxis != CategoricalAxis {
		t.Errorf("XAxis = %s, want %s", spec.XAxis, CategoricalAxis)
	}
}

func TestBuildNoData(t *testing.T) {
	for _, test := range []struct {
		description string
		resp        *fieldvalues.FieldValuesResponse
	}{{
		description: "missing x column",
		resp: &fieldvalues.FieldValuesResponse{
			Fields: map[string][]fieldvalues.Cell{
				"metrics.loss": {},
			},
		},
	}, {
		description: "no coercible rows",
		resp: &fieldvalues.FieldValuesResponse{
			Fields: map[string][]fieldvalues.Cell{
				"config.lr":        {fieldvalues.Null()},
				"metrics.loss":     {fieldvalues.Number(1)},
				"config.optimizer": {fieldvalues.String("adam")},
			},
			RunIDs:   []string{"r1"},
			Total:    1,
			Returned: 1,
		},
	}} {
		t.Run(test.description, func(t *testing.T) {
			spec, err := Build(test.resp, scatterConfig(), nil)
			if err != nil {
				t.Fatalf("Build yielded unexpected error %s", err)
			}
			if !spec.NoData {
				t.Errorf("Build did not mark an empty result as no-data")
			}
		})
	}
}

func TestBuildHistogram(t *testing.T) {
	resp := &fieldvalues.FieldValuesResponse{
		Fields: map[string][]fieldvalues.Cell{
			"metrics.loss": {
				fieldvalues.Number(1), fieldvalues.String("oops"), fieldvalues.Number(9),
			},
		},
		RunIDs:   []string{"r1", "r2", "r3"},
		Total:    3,
		Returned: 3,
	}
	cfg := plotconfig.PlotConfig{
		ChartType:   plotconfig.HistogramChart,
		XField:      "metrics.loss",
		Aggregation: plotconfig.AggNone,
		ErrorBars:   plotconfig.NoErrorBars,
		BinCount:    2,
	}
	spec, err := BuildHistogram(resp, cfg)
	if err != nil {
		t.Fatalf("BuildHistogram yielded unexpected error %s", err)
	}
	if spec.Total != 2 {
		t.Errorf("Total = %d, want 2 (the non-coercible row drops)", spec.Total)
	}
	want := [][]string{{"r1"}, {"r3"}}
	if diff := cmp.Diff(want, spec.RunIDsPerBin); diff != "" {
		t.Errorf("RunIDsPerBin yielded diff (-want +got) %s", diff)
	}
}

func TestBuildHistogramNoData(t *testing.T) {
	resp := &fieldvalues.FieldValuesResponse{
		Fields: map[string][]fieldvalues.Cell{
			"metrics.loss": {fieldvalues.String("oops")},
		},
		RunIDs:   []string{"r1"},
		Total:    1,
		Returned: 1,
	}
	cfg := plotconfig.PlotConfig{
		ChartType:   plotconfig.HistogramChart,
		XField:      "metrics.loss",
		Aggregation: plotconfig.AggNone,
		ErrorBars:   plotconfig.NoErrorBars,
	}
	spec, err := BuildHistogram(resp, cfg)
	if err != nil {
		t.Fatalf("BuildHistogram yielded unexpected error %s", err)
	}
	if !spec.NoData {
		t.Errorf("BuildHistogram did not mark an uncoercible column as no-data")
	}
}

func TestFromHistogramResponse(t *testing.T) {
	spec, err := FromHistogramResponse(&fieldvalues.HistogramResponse{
		Field:  "metrics.loss",
		Bins:   []float64{0, 1, 2},
		Counts: []int{1, 2},
		Total:  3,
	})
	if err != nil {
		t.Fatalf("FromHistogramResponse yielded unexpected error %s", err)
	}
	if spec.NoData || spec.Total != 3 {
		t.Errorf("got (noData, total) = (%v, %d), want (false, 3)", spec.NoData, spec.Total)
	}

	empty, err := FromHistogramResponse(&fieldvalues.HistogramResponse{
		Field:  "metrics.loss",
		Bins:   []float64{0, 1},
		Counts: []int{0},
	})
	if err != nil {
		t.Fatalf("FromHistogramResponse yielded unexpected error %s", err)
	}
	if !empty.NoData {
		t.Errorf("FromHistogramResponse did not mark an empty distribution as no-data")
	}

	if _, err := FromHistogramResponse(&fieldvalues.HistogramResponse{
		Bins:   []float64{0},
		Counts: []int{1},
		Total:  1,
	}); err == nil {
		t.Errorf("FromHistogramResponse unexpectedly accepted a malformed distribution")
	}
}

func TestFormatValue(t *testing.T) {
	for _, test := range []struct {
		v    float64
		want string
	}{
		{0, "0"},
		{1.5, "1.5"},
		{-42, "-42"},
		{0.25, "0.25"},
		{0.0001, "1.000e-04"},
		{1e7, "1.000e+07"},
	} {
		if got := FormatValue(test.v); got != test.want {
			t.Errorf("FormatValue(%v) = %q, want %q", test.v, got, test.want)
		}
	}
}

func TestTooltip(t *testing.T) {
	low, high := 9.0, 13.0
	p := aggregate.Point{
		X:      fieldvalues.NumericX(0.001),
		Y:      11,
		YLow:   &low,
		YHigh:  &high,
		N:      7,
		RunIDs: []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"},
		Group:  "adam",
	}
	got := Tooltip("adam", p)
	for _, want := range []string{"adam", "x: 0.001", "y: 11", "range: 9 .. 13", "7 runs:", "(+2 more)"} {
		if !strings.Contains(got, want) {
			t.Errorf("Tooltip() = %q, missing %q", got, want)
		}
	}

	single := aggregate.Point{
		X:      fieldvalues.CategoricalX("warmup"),
		Y:      2,
		N:      1,
		RunIDs: []string{"r9"},
	}
	got = Tooltip("all", single)
	if !strings.Contains(got, "run: r9") {
		t.Errorf("Tooltip() = %q, missing single-run line", got)
	}
}
