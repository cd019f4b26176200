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

// Package testutil provides an in-memory experiment store for tests and
// demos.  It serves the same field-values and histogram endpoints as a
// real store, over a fixed set of runs, with seed-reproducible sampling:
// the same seed against an unchanged filter always yields the same
// sample.
package testutil

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/runviz/runviz/fieldvalues"
	"github.com/runviz/runviz/histogram"
)

// Run is one stored experiment run.
type Run struct {
	ID     string
	Fields map[string]fieldvalues.Cell
}

// Store is an in-memory experiment store.
type Store struct {
	runs []Run
}

// NewStore returns a Store holding the provided runs.
func NewStore(runs []Run) *Store {
	return &Store{runs: runs}
}

// Handler returns an http.Handler serving the store's query endpoints.
func (s *Store) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fields/values", s.fieldValuesHandler)
	mux.HandleFunc("/api/histogram", s.histogramHandler)
	return mux
}

// matches reports whether the run satisfies the filter: every filter
// entry must equal the run's raw value for that field.
func (r *Run) matches(filter map[string]any) bool {
	for field, want := range filter {
		cell, ok := r.Fields[field]
		if !ok {
			return false
		}
		switch want := want.(type) {
		case float64:
			got, ok := cell.Numeric()
			if !ok || got != want {
				return false
			}
		case string:
			if cell.T != fieldvalues.StringCellType || cell.V.(string) != want {
				return false
			}
		case nil:
			if !cell.IsNull() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// matching returns the indices of runs satisfying the filter, in stored
// order.
func (s *Store) matching(filter map[string]any) []int {
	var idxs []int
	for i := range s.runs {
		if s.runs[i].matches(filter) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// sample returns up to maxPoints of idxs, drawn reproducibly from seed
// and re-sorted into stored order.  A non-positive maxPoints disables
// sampling.
func sample(idxs []int, maxPoints int, seed int64) ([]int, bool) {
	if maxPoints <= 0 || len(idxs) <= maxPoints {
		return idxs, false
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	perm := rng.Perm(len(idxs))
	picked := make([]int, maxPoints)
	for i := range picked {
		picked[i] = idxs[perm[i]]
	}
	sort.Ints(picked)
	return picked, true
}

func (s *Store) fieldValuesHandler(w http.ResponseWriter, req *http.Request) {
	fvReq := &fieldvalues.FieldValuesRequest{}
	if err := json.NewDecoder(req.Body).Decode(fvReq); err != nil {
		http.Error(w, "Failed to parse request: "+err.Error(), http.StatusBadRequest)
		return
	}
	idxs := s.matching(fvReq.Filter)
	total := len(idxs)
	idxs, sampled := sample(idxs, fvReq.MaxPoints, fvReq.Seed)
	resp := &fieldvalues.FieldValuesResponse{
		Fields:   map[string][]fieldvalues.Cell{},
		Total:    total,
		Returned: len(idxs),
		Sampled:  sampled,
	}
	resp.RunIDs = make([]string, 0, len(idxs))
	for _, idx := range idxs {
		resp.RunIDs = append(resp.RunIDs, s.runs[idx].ID)
	}
	for _, field := range fvReq.Fields {
		col := make([]fieldvalues.Cell, 0, len(idxs))
		for _, idx := range idxs {
			cell, ok := s.runs[idx].Fields[field]
			if !ok {
				cell = fieldvalues.Null()
			}
			col = append(col, cell)
		}
		resp.Fields[field] = col
	}
	if !fvReq.IncludeRunIDs {
		resp.RunIDs = make([]string, len(idxs))
	}
	sendJSON(w, resp)
}

func (s *Store) histogramHandler(w http.ResponseWriter, req *http.Request) {
	hReq := &fieldvalues.HistogramRequest{}
	if err := json.NewDecoder(req.Body).Decode(hReq); err != nil {
		http.Error(w, "Failed to parse request: "+err.Error(), http.StatusBadRequest)
		return
	}
	var values []float64
	var runIDs []string
	for _, idx := range s.matching(hReq.Filter) {
		cell, ok := s.runs[idx].Fields[hReq.Field]
		if !ok {
			continue
		}
		if v, ok := cell.Numeric(); ok {
			values = append(values, v)
			runIDs = append(runIDs, s.runs[idx].ID)
		}
	}
	resp := &fieldvalues.HistogramResponse{Field: hReq.Field}
	if len(values) == 0 {
		// No coercible values: an empty but well-formed distribution.
		resp.Bins = []float64{0, 1}
		resp.Counts = []int{0}
		sendJSON(w, resp)
		return
	}
	res, err := histogram.Compute(values, runIDs, hReq.BinCount)
	if err != nil {
		http.Error(w, "Failed to bin values: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp.Bins = res.Bins
	resp.Counts = res.Counts
	resp.Total = res.Total
	resp.RunIDsPerBin = res.RunIDsPerBin
	sendJSON(w, resp)
}

func sendJSON(w http.ResponseWriter, resp any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
	}
}

// GenerateRuns returns n synthetic runs with fresh unique ids.  Run i
// carries numeric fields metrics.loss and metrics.accuracy, a numeric
// config.lr swept over lrs, and a categorical config.optimizer
// alternating over optimizers.
func GenerateRuns(n int, lrs []float64, optimizers []string) []Run {
	runs := make([]Run, 0, n)
	for i := 0; i < n; i++ {
		runs = append(runs, Run{
			ID: uuid.NewString(),
			Fields: map[string]fieldvalues.Cell{
				"config.lr":        fieldvalues.Number(lrs[i%len(lrs)]),
				"config.optimizer": fieldvalues.String(optimizers[i%len(optimizers)]),
				"metrics.loss":     fieldvalues.Number(2.0 / float64(i+1)),
				"metrics.accuracy": fieldvalues.Number(1.0 - 1.0/float64(i+2)),
				"run.name":         fieldvalues.String(fmt.Sprintf("run-%03d", i)),
			},
		})
	}
	return runs
}
