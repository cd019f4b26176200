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

// Package querydispatcher provides QueryDispatcher, a type for
// multiplexing named plot queries across multiple data sources.  A single
// dashboard request may carry several series queries; the dispatcher
// routes each to the data source that handles its query name and fans the
// work out concurrently.
package querydispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/runviz/runviz/plotconfig"
	"github.com/runviz/runviz/plotspec"
	"golang.org/x/sync/errgroup"
)

// PlotSeriesRequest asks for one named chart within a dashboard request.
type PlotSeriesRequest struct {
	// QueryName selects the data source and operation, e.g. `runs.plot`.
	QueryName string `json:"queryName"`
	// SeriesName identifies this chart within the response.
	SeriesName string `json:"seriesName"`
	// Config is the immutable plot configuration snapshot for this chart.
	Config plotconfig.PlotConfig `json:"config"`
}

// PlotRequest is a dashboard request for one or more charts sharing a
// filter and sampling seed.
type PlotRequest struct {
	Filter         map[string]any       `json:"filter,omitempty"`
	Seed           int64                `json:"seed"`
	SeriesRequests []*PlotSeriesRequest `json:"seriesRequests"`
}

// SeriesResult is the outcome of one PlotSeriesRequest: exactly one of
// Chart, Histogram, or Seed is populated, per the query's kind.
type SeriesResult struct {
	SeriesName string                  `json:"seriesName"`
	Chart      *plotspec.ChartSpec     `json:"chart,omitempty"`
	Histogram  *plotspec.HistogramSpec `json:"histogram,omitempty"`
	Seed       *int64                  `json:"seed,omitempty"`
}

// PlotResponse is a complete dashboard response.
type PlotResponse struct {
	Results []*SeriesResult `json:"results"`
}

// ResponseBuilder assembles a PlotResponse from concurrently handled
// series requests.  It is safe for concurrent use.
type ResponseBuilder struct {
	mu      sync.Mutex
	results []*SeriesResult
}

// NewResponseBuilder returns a new, empty ResponseBuilder.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// Add appends a series result to the response under construction.
func (rb *ResponseBuilder) Add(result *SeriesResult) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.results = append(rb.results, result)
}

// Response completes and returns the PlotResponse under construction,
// with results ordered deterministically by series name.
func (rb *ResponseBuilder) Response() *PlotResponse {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	sort.Slice(rb.results, func(a, b int) bool {
		return rb.results[a].SeriesName < rb.results[b].SeriesName
	})
	return &PlotResponse{Results: rb.results}
}

// DataSource is implemented by plot data providers.  Implementations must
// support concurrent HandlePlotRequests calls.
type DataSource interface {
	// SupportedPlotQueries returns the query names this DataSource
	// handles.  Query names should be unique to their DataSource, e.g.
	// prefixed with the source's domain.
	SupportedPlotQueries() []string
	// HandlePlotRequests handles a set of series requests sharing the
	// provided filter and sampling seed, adding one SeriesResult per
	// request to rb.  Any returned error cancels the entire PlotRequest
	// and surfaces to the client.
	HandlePlotRequests(ctx context.Context, filter map[string]any, seed int64, rb *ResponseBuilder, reqs []*PlotSeriesRequest) error
}

// QueryDispatcher multiplexes multiple plot data sources, which may serve
// entirely different datasets, allowing one dashboard request to be
// satisfied by a variety of providers.
type QueryDispatcher struct {
	dataSources []DataSource
	// Maps query names to indices (in dataSources) of the sources that
	// handle those queries.
	queryHandlers map[string]int
}

// New returns a *QueryDispatcher wrapping the provided data sources.
func New(dss ...DataSource) (*QueryDispatcher, error) {
	qd := &QueryDispatcher{
		queryHandlers: map[string]int{},
	}
	for dsIdx, ds := range dss {
		qd.dataSources = append(qd.dataSources, ds)
		for _, queryName := range ds.SupportedPlotQueries() {
			if _, ok := qd.queryHandlers[queryName]; ok {
				return nil, fmt.Errorf("multiple data sources handle plot query `%s`", queryName)
			}
			qd.queryHandlers[queryName] = dsIdx
		}
	}
	return qd, nil
}

// HandlePlotRequest distributes the provided PlotRequest's constituent
// series requests to their appropriate data sources for processing, then
// assembles the returned results into a PlotResponse.
func (qd *QueryDispatcher) HandlePlotRequest(ctx context.Context, req *PlotRequest) (*PlotResponse, error) {
	rb := NewResponseBuilder()
	// A mapping from data source index to the series requests that source
	// can handle.
	groupedReqs := map[int][]*PlotSeriesRequest{}
	for _, seriesReq := range req.SeriesRequests {
		dsIdx, ok := qd.queryHandlers[seriesReq.QueryName]
		if !ok {
			return nil, fmt.Errorf("unsupported plot query `%s`", seriesReq.QueryName)
		}
		groupedReqs[dsIdx] = append(groupedReqs[dsIdx], seriesReq)
	}
	errg, ctx := errgroup.WithContext(ctx)
	for dsIdx, seriesReqs := range groupedReqs {
		ds := qd.dataSources[dsIdx]
		seriesReqs := seriesReqs
		errg.Go(func() error {
			return ds.HandlePlotRequests(ctx, req.Filter, req.Seed, rb, seriesReqs)
		})
	}
	if err := errg.Wait(); err != nil {
		return nil, err
	}
	return rb.Response(), nil
}
