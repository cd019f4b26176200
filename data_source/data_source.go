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

// Package datasource provides the runviz plot data source: it handles
// named plot queries over experiment-run data, driving the query client
// and the aggregation engine to produce renderer-agnostic chart specs.
//
// Computed specs are memoized by identity of their inputs -- the
// (filter, fields, seed) request key plus the plot configuration
// fingerprint -- and nothing else: recomputation with identical inputs
// yields an identical spec, so a memoized result is indistinguishable
// from a fresh one.
package datasource

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/runviz/runviz/fieldvalues"
	"github.com/runviz/runviz/plotconfig"
	"github.com/runviz/runviz/plotspec"
	querydispatcher "github.com/runviz/runviz/query_dispatcher"
	"github.com/runviz/runviz/sampling"
)

// Query names handled by this data source.
const (
	// PlotQuery builds a scatter, line, or bar chart spec.
	PlotQuery = "runs.plot"
	// HistogramQuery builds a histogram spec.
	HistogramQuery = "runs.histogram"
	// ResampleQuery draws a fresh sampling seed.
	ResampleQuery = "runs.resample"
)

// Fetcher describes types capable of fetching raw field values and
// server-side histograms from the experiment store.
type Fetcher interface {
	FieldValues(ctx context.Context, req *fieldvalues.FieldValuesRequest) (*fieldvalues.FieldValuesResponse, error)
	Histogram(ctx context.Context, req *fieldvalues.HistogramRequest) (*fieldvalues.HistogramResponse, error)
}

// Options configures a DataSource.
type Options struct {
	// MaxPoints caps the rows fetched per chart; larger result sets are
	// sampled server-side.  Bounding the per-pass volume keeps spec
	// recomputation within interactive latency.
	MaxPoints int
	// SpecCacheSize is the memoized-spec LRU capacity.
	SpecCacheSize int
	// Palette overrides the default series palette.
	Palette []string
	// ServerHistograms selects server-side binning over the default
	// client-side binning of raw values.  The two paths are never mixed
	// for one chart.
	ServerHistograms bool
}

// Option defaults.
const (
	DefaultMaxPoints     = 10000
	DefaultSpecCacheSize = 32
)

// DataSource implements querydispatcher.DataSource for experiment-run
// plot data.
type DataSource struct {
	fetcher Fetcher
	sampler *sampling.Controller
	opts    Options
	// Memoized specs by input identity.
	specs *lockedLRU
}

// New returns a new DataSource using the provided fetcher and sampling
// controller.
func New(fetcher Fetcher, sampler *sampling.Controller, opts Options) (*DataSource, error) {
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.SpecCacheSize <= 0 {
		opts.SpecCacheSize = DefaultSpecCacheSize
	}
	if len(opts.Palette) == 0 {
		opts.Palette = plotspec.DefaultPalette
	}
	specs, err := newLockedLRU(opts.SpecCacheSize)
	if err != nil {
		return nil, err
	}
	return &DataSource{
		fetcher: fetcher,
		sampler: sampler,
		opts:    opts,
		specs:   specs,
	}, nil
}

// SupportedPlotQueries returns the query names supported by DataSource.
func (ds *DataSource) SupportedPlotQueries() []string {
	return []string{
		PlotQuery,
		HistogramQuery,
		ResampleQuery,
	}
}

// HandlePlotRequests handles the provided series requests, which share a
// filter and sampling seed, adding one result per request to rb.
func (ds *DataSource) HandlePlotRequests(ctx context.Context, filter map[string]any, seed int64, rb *querydispatcher.ResponseBuilder, reqs []*querydispatcher.PlotSeriesRequest) error {
	// Log how long handling each batch takes.
	start := time.Now()
	queryNames := make([]string, 0, len(reqs))
	for _, req := range reqs {
		queryNames = append(queryNames, req.QueryName)
	}
	defer func() {
		log.Printf("Handled [%s] queries in %s", strings.Join(queryNames, ", "), time.Since(start))
	}()
	for _, req := range reqs {
		var err error
		switch req.QueryName {
		case PlotQuery:
			err = ds.handlePlot(ctx, filter, seed, rb, req)
		case HistogramQuery:
			err = ds.handleHistogram(ctx, filter, seed, rb, req)
		case ResampleQuery:
			newSeed := ds.sampler.Resample()
			rb.Add(&querydispatcher.SeriesResult{
				SeriesName: req.SeriesName,
				Seed:       &newSeed,
			})
		default:
			err = fmt.Errorf("unsupported plot query")
		}
		if err != nil {
			return fmt.Errorf("error handling plot query %s: %w", req.QueryName, err)
		}
	}
	return nil
}

func (ds *DataSource) handlePlot(ctx context.Context, filter map[string]any, seed int64, rb *querydispatcher.ResponseBuilder, req *querydispatcher.PlotSeriesRequest) error {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ChartType == plotconfig.HistogramChart {
		return fmt.Errorf("histogram charts use query %s", HistogramQuery)
	}
	memoKey, err := memoKey(filter, cfg, seed)
	if err != nil {
		return err
	}
	if spec, ok := ds.specs.get(memoKey); ok {
		rb.Add(&querydispatcher.SeriesResult{SeriesName: req.SeriesName, Chart: spec.(*plotspec.ChartSpec)})
		return nil
	}
	resp, err := ds.fetcher.FieldValues(ctx, &fieldvalues.FieldValuesRequest{
		Fields:        cfg.Fields(),
		Filter:        filter,
		MaxPoints:     ds.opts.MaxPoints,
		Seed:          seed,
		IncludeRunIDs: true,
	})
	if err != nil {
		return err
	}
	spec, err := plotspec.Build(resp, cfg, ds.opts.Palette)
	if err != nil {
		return err
	}
	ds.specs.add(memoKey, spec)
	rb.Add(&querydispatcher.SeriesResult{SeriesName: req.SeriesName, Chart: spec})
	return nil
}

func (ds *DataSource) handleHistogram(ctx context.Context, filter map[string]any, seed int64, rb *querydispatcher.ResponseBuilder, req *querydispatcher.PlotSeriesRequest) error {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ChartType != plotconfig.HistogramChart {
		return fmt.Errorf("%s charts use query %s", cfg.ChartType, PlotQuery)
	}
	memoKey, err := memoKey(filter, cfg, seed)
	if err != nil {
		return err
	}
	if spec, ok := ds.specs.get(memoKey); ok {
		rb.Add(&querydispatcher.SeriesResult{SeriesName: req.SeriesName, Histogram: spec.(*plotspec.HistogramSpec)})
		return nil
	}
	var spec *plotspec.HistogramSpec
	if ds.opts.ServerHistograms {
		resp, err := ds.fetcher.Histogram(ctx, &fieldvalues.HistogramRequest{
			Field:    cfg.XField,
			BinCount: cfg.BinCount,
			Filter:   filter,
		})
		if err != nil {
			return err
		}
		spec, err = plotspec.FromHistogramResponse(resp)
		if err != nil {
			return err
		}
	} else {
		resp, err := ds.fetcher.FieldValues(ctx, &fieldvalues.FieldValuesRequest{
			Fields:        cfg.Fields(),
			Filter:        filter,
			MaxPoints:     ds.opts.MaxPoints,
			Seed:          seed,
			IncludeRunIDs: true,
		})
		if err != nil {
			return err
		}
		spec, err = plotspec.BuildHistogram(resp, cfg)
		if err != nil {
			return err
		}
	}
	ds.specs.add(memoKey, spec)
	rb.Add(&querydispatcher.SeriesResult{SeriesName: req.SeriesName, Histogram: spec})
	return nil
}

// memoKey identifies one spec computation: the fetch identity plus the
// configuration fingerprint.
func memoKey(filter map[string]any, cfg plotconfig.PlotConfig, seed int64) (string, error) {
	requestKey, err := sampling.RequestKey(filter, cfg.Fields(), seed)
	if err != nil {
		return "", err
	}
	return requestKey + "|" + cfg.Fingerprint(), nil
}
