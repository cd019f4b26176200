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

package runresolver

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolve(t *testing.T) {
	for _, test := range []struct {
		description string
		runIDs      []string
		want        Resolution
		wantJSON    string
	}{{
		description: "no runs resolves to nothing",
		runIDs:      nil,
		want:        Resolution{Kind: NoRuns},
		wantJSON:    `{}`,
	}, {
		description: "one run resolves to direct navigation",
		runIDs:      []string{"r1"},
		want:        Resolution{Kind: SingleRun, RunID: "r1"},
		wantJSON:    `{"runId":"r1"}`,
	}, {
		description: "several runs resolve to a filtered list",
		runIDs:      []string{"r1", "r2"},
		want:        Resolution{Kind: MultipleRuns, RunIDs: []string{"r1", "r2"}},
		wantJSON:    `{"runIds":["r1","r2"]}`,
	}} {
		t.Run(test.description, func(t *testing.T) {
			got := Resolve(test.runIDs)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("Resolve yielded diff (-want +got) %s", diff)
			}
			encoded, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal yielded unexpected error %s", err)
			}
			if string(encoded) != test.wantJSON {
				t.Errorf("Marshal = %s, want %s", encoded, test.wantJSON)
			}
		})
	}
}
