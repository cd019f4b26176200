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

package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/runviz/runviz/config"
	"github.com/runviz/runviz/plotconfig"
	querydispatcher "github.com/runviz/runviz/query_dispatcher"
	testutil "github.com/runviz/runviz/test_util"
)

// newWiredService stands up a fake experiment store and a Service
// configured against it.
func newWiredService(t *testing.T) *httptest.Server {
	t.Helper()
	store := httptest.NewServer(testutil.NewStore(testutil.GenerateRuns(
		20,
		[]float64{1e-4, 1e-3},
		[]string{"adam", "sgd"},
	)).Handler())
	t.Cleanup(store.Close)

	cfg := config.Default()
	cfg.BackendURL = store.URL
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New yielded unexpected error %s", err)
	}
	mux := http.NewServeMux()
	svc.RegisterHandlers(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestEndToEndPlot(t *testing.T) {
	server := newWiredService(t)
	reqBody, err := json.Marshal(&querydispatcher.PlotRequest{
		Seed: 7,
		SeriesRequests: []*querydispatcher.PlotSeriesRequest{{
			QueryName:  "runs.plot",
			SeriesName: "loss by lr",
			Config: plotconfig.PlotConfig{
				ChartType:           plotconfig.ScatterChart,
				XField:              "config.lr",
				YField:              "metrics.loss",
				GroupBy:             "config.optimizer",
				Aggregation:         plotconfig.AggMean,
				ErrorBars:           plotconfig.StdDevBars,
				AggregateReplicates: true,
			},
		}},
	})
	if err != nil {
		t.Fatalf("failed to encode request: %s", err)
	}
	resp, err := http.Post(server.URL+"/api/plot", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("request failed: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
	plotResp := &querydispatcher.PlotResponse{}
	if err := json.NewDecoder(resp.Body).Decode(plotResp); err != nil {
		t.Fatalf("failed to decode response: %s", err)
	}
	if len(plotResp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(plotResp.Results))
	}
	chart := plotResp.Results[0].Chart
	if chart == nil || chart.NoData {
		t.Fatalf("end-to-end plot yielded no chart data: %+v", plotResp.Results[0])
	}
	// Two optimizers, mean-aggregated with error bars: two base series
	// plus their dispersion overlays.
	if len(chart.Series) != 4 {
		t.Errorf("got %d series, want 4", len(chart.Series))
	}
}
