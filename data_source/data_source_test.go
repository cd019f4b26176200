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

package datasource

import (
	"context"
	"testing"

	"github.com/runviz/runviz/fieldvalues"
	"github.com/runviz/runviz/plotconfig"
	querydispatcher "github.com/runviz/runviz/query_dispatcher"
	"github.com/runviz/runviz/sampling"
)

// fakeFetcher serves canned responses and counts fetches.
type fakeFetcher struct {
	fieldValues     *fieldvalues.FieldValuesResponse
	histogram       *fieldvalues.HistogramResponse
	fieldValueCalls int
	histogramCalls  int
}

func (f *fakeFetcher) FieldValues(ctx context.Context, req *fieldvalues.FieldValuesRequest) (*fieldvalues.FieldValuesResponse, error) {
	f.fieldValueCalls++
	return f.fieldValues, nil
}

func (f *fakeFetcher) Histogram(ctx context.Context, req *fieldvalues.HistogramRequest) (*fieldvalues.HistogramResponse, error) {
	f.histogramCalls++
	return f.histogram, nil
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fieldValues: &fieldvalues.FieldValuesResponse{
			Fields: map[string][]fieldvalues.Cell{
				"config.lr":    {fieldvalues.Number(1e-3), fieldvalues.Number(1e-2)},
				"metrics.loss": {fieldvalues.Number(10), fieldvalues.Number(5)},
			},
			RunIDs:   []string{"r1", "r2"},
			Total:    2,
			Returned: 2,
		},
		histogram: &fieldvalues.HistogramResponse{
			Field:  "metrics.loss",
			Bins:   []float64{0, 5, 10},
			Counts: []int{1, 1},
			Total:  2,
		},
	}
}

func scatterRequest(name string) *querydispatcher.PlotSeriesRequest {
	return &querydispatcher.PlotSeriesRequest{
		QueryName:  PlotQuery,
		SeriesName: name,
		Config: plotconfig.PlotConfig{
			ChartType:           plotconfig.ScatterChart,
			XField:              "config.lr",
			YField:              "metrics.loss",
			Aggregation:         plotconfig.AggMean,
			ErrorBars:           plotconfig.NoErrorBars,
			AggregateReplicates: true,
		},
	}
}

func histogramRequest(name string) *querydispatcher.PlotSeriesRequest {
	return &querydispatcher.PlotSeriesRequest{
		QueryName:  HistogramQuery,
		SeriesName: name,
		Config: plotconfig.PlotConfig{
			ChartType:   plotconfig.HistogramChart,
			XField:      "metrics.loss",
			Aggregation: plotconfig.AggNone,
			ErrorBars:   plotconfig.NoErrorBars,
			BinCount:    2,
		},
	}
}

func handle(t *testing.T, ds *DataSource, seed int64, reqs ...*querydispatcher.PlotSeriesRequest) *querydispatcher.PlotResponse {
	t.Helper()
	rb := querydispatcher.NewResponseBuilder()
	if err := ds.HandlePlotRequests(context.Background(), nil, seed, rb, reqs); err != nil {
		t.Fatalf("HandlePlotRequests yielded unexpected error %s", err)
	}
	return rb.Response()
}

func TestHandlePlot(t *testing.T) {
	fetcher := newFakeFetcher()
	ds, err := New(fetcher, sampling.NewController(1), Options{})
	if err != nil {
		t.Fatalf("New yielded unexpected error %s", err)
	}
	resp := handle(t, ds, 7, scatterRequest("loss by lr"))
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	chart := resp.Results[0].Chart
	if chart == nil {
		t.Fatalf("result carries no chart")
	}
	if chart.NoData || len(chart.Series) != 1 {
		t.Errorf("chart has (noData, series) = (%v, %d), want (false, 1)", chart.NoData, len(chart.Series))
	}
}

func TestHandlePlotMemoizesSpecs(t *testing.T) {
	fetcher := newFakeFetcher()
	ds, err := New(fetcher, sampling.NewController(1), Options{})
	if err != nil {
		t.Fatalf("New yielded unexpected error %s", err)
	}

	first := handle(t, ds, 7, scatterRequest("loss by lr"))
	second := handle(t, ds, 7, scatterRequest("loss by lr"))
	if fetcher.fieldValueCalls != 1 {
		t.Errorf("fetcher saw %d calls, want 1 (second request memoized)", fetcher.fieldValueCalls)
	}
	if first.Results[0].Chart != second.Results[0].Chart {
		t.Errorf("memoized request did not return the memoized spec")
	}

	// A different seed is a different computation.
	handle(t, ds, 8, scatterRequest("loss by lr"))
	if fetcher.fieldValueCalls != 2 {
		t.Errorf("fetcher saw %d calls, want 2 after a reseeded request", fetcher.fieldValueCalls)
	}
}

func TestHandleHistogramClientSide(t *testing.T) {
	fetcher := newFakeFetcher()
	ds, err := New(fetcher, sampling.NewController(1), Options{})
	if err != nil {
		t.Fatalf("New yielded unexpected error %s", err)
	}
	resp := handle(t, ds, 7, histogramRequest("loss distribution"))
	hist := resp.Results[0].Histogram
	if hist == nil {
		t.Fatalf("result carries no histogram")
	}
	if hist.Total != 2 {
		t.Errorf("histogram total = %d, want 2", hist.Total)
	}
	if fetcher.fieldValueCalls != 1 || fetcher.histogramCalls != 0 {
		t.Errorf("fetcher saw (%d, %d) calls, want client-side binning (1, 0)",
			fetcher.fieldValueCalls, fetcher.histogramCalls)
	}
}

func TestHandleHistogramServerSide(t *testing.T) {
	fetcher := newFakeFetcher()
	ds, err := New(fetcher, sampling.NewController(1), Options{ServerHistograms: true})
	if err != nil {
		t.Fatalf("New yielded unexpected error %s", err)
	}
	resp := handle(t, ds, 7, histogramRequest("loss distribution"))
	hist := resp.Results[0].Histogram
	if hist == nil {
		t.Fatalf("result carries no histogram")
	}
	if fetcher.fieldValueCalls != 0 || fetcher.histogramCalls != 1 {
		t.Errorf("fetcher saw (%d, %d) calls, want server-side binning (0, 1)",
			fetcher.fieldValueCalls, fetcher.histogramCalls)
	}
}

func TestHandleResample(t *testing.T) {
	sampler := sampling.NewController(1)
	ds, err := New(newFakeFetcher(), sampler, Options{})
	if err != nil {
		t.Fatalf("New yielded unexpected error %s", err)
	}
	resp := handle(t, ds, 1, &querydispatcher.PlotSeriesRequest{
		QueryName:  ResampleQuery,
		SeriesName: "resample",
	})
	result := resp.Results[0]
	if result.Seed == nil {
		t.Fatalf("resample result carries no seed")
	}
	if *result.Seed != sampler.Seed() {
		t.Errorf("result seed %d does not match controller seed %d", *result.Seed, sampler.Seed())
	}
}

func TestHandlePlotRejectsMismatchedChartKinds(t *testing.T) {
	ds, err := New(newFakeFetcher(), sampling.NewController(1), Options{})
	if err != nil {
		t.Fatalf("New yielded unexpected error %s", err)
	}
	rb := querydispatcher.NewResponseBuilder()

	histViaPlot := histogramRequest("wrong")
	histViaPlot.QueryName = PlotQuery
	if err := ds.HandlePlotRequests(context.Background(), nil, 1, rb, []*querydispatcher.PlotSeriesRequest{histViaPlot}); err == nil {
		t.Errorf("plot query unexpectedly accepted a histogram config")
	}

	scatterViaHistogram := scatterRequest("wrong")
	scatterViaHistogram.QueryName = HistogramQuery
	if err := ds.HandlePlotRequests(context.Background(), nil, 1, rb, []*querydispatcher.PlotSeriesRequest{scatterViaHistogram}); err == nil {
		t.Errorf("histogram query unexpectedly accepted a scatter config")
	}
}
