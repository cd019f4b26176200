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

// Package runresolver maps a rendered point back to its originating
// run(s).  A point backed by exactly one run resolves to a single run id,
// for direct navigation to that run's detail view; a point backed by
// several runs resolves to the full id list, for navigation to a filtered
// run list.  Resolution is pure; performing the navigation is the
// caller's responsibility.
package runresolver

import "encoding/json"

// Kind describes a resolution's navigation form.
type Kind int

// Resolution kinds.
const (
	// NoRuns means the point resolves to nothing; no navigation occurs.
	NoRuns Kind = iota
	// SingleRun means direct navigation to one run.
	SingleRun
	// MultipleRuns means navigation to a filtered list of runs.
	MultipleRuns
)

// Resolution is the outcome of resolving a clicked point.
type Resolution struct {
	Kind   Kind
	RunID  string
	RunIDs []string
}

// Resolve maps a clicked point's attached run ids to a Resolution.
func Resolve(runIDs []string) Resolution {
	switch len(runIDs) {
	case 0:
		return Resolution{Kind: NoRuns}
	case 1:
		return Resolution{Kind: SingleRun, RunID: runIDs[0]}
	}
	return Resolution{Kind: MultipleRuns, RunIDs: runIDs}
}

// MarshalJSON encodes the receiver as the outbound interaction event:
// {"runId": ...} for a single run, {"runIds": [...]} for several, and {}
// when there is nothing to navigate to.
func (r Resolution) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case SingleRun:
		return json.Marshal(struct {
			RunID string `json:"runId"`
		}{r.RunID})
	case MultipleRuns:
		return json.Marshal(struct {
			RunIDs []string `json:"runIds"`
		}{r.RunIDs})
	}
	return []byte("{}"), nil
}
