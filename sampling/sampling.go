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

// Package sampling controls seeded server-side subsampling of large
// result sets.
//
// When a field-values request matches more runs than the configured cap,
// the store returns a bounded random sample reproducible from a seed: the
// same seed against unchanged filters yields the same sample (a contract
// the store upholds, and this package depends on).  The Controller holds
// the current seed; Resample draws a fresh seed uniformly at random,
// yielding a different sample on the next request.  This is the only
// source of randomness in the engine.
package sampling

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// Controller holds the sampling seed for one chart's requests.  It is
// safe for concurrent use.
type Controller struct {
	mu   sync.Mutex
	seed int64
}

// NewController returns a Controller starting at the provided seed.
func NewController(seed int64) *Controller {
	return &Controller{seed: seed}
}

// Seed returns the current seed.
func (c *Controller) Seed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seed
}

// Resample draws a new seed uniformly at random, stores it, and returns
// it.  Reissuing a request with the new seed yields a different sample;
// the prior sample remains reproducible from the prior seed.
func (c *Controller) Resample() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seed = rand.Int64()
	return c.seed
}

// RequestKey returns a deterministic key identifying one distinct
// (filter, fields, seed) request.  Identical inputs always produce the
// same key, so it is usable for caching, deduplication, and superseding
// in-flight fetches.
func RequestKey(filter map[string]any, fields []string, seed int64) (string, error) {
	// encoding/json sorts map keys, so the encoded form is canonical.
	b, err := json.Marshal(struct {
		Filter map[string]any `json:"filter"`
		Fields []string       `json:"fields"`
		Seed   int64          `json:"seed"`
	}{filter, fields, seed})
	if err != nil {
		return "", fmt.Errorf("filter is not encodable: %w", err)
	}
	hasher := fnv.New64a()
	hasher.Write(b)
	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}
