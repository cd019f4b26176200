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
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
)

// lockedLRU wraps simplelru.LRU for concurrent HandlePlotRequests calls.
type lockedLRU struct {
	mu  sync.Mutex
	lru *simplelru.LRU
}

func newLockedLRU(size int) (*lockedLRU, error) {
	lru, err := simplelru.NewLRU(size, nil /* no onEvict policy */)
	if err != nil {
		return nil, err
	}
	return &lockedLRU{lru: lru}, nil
}

func (l *lockedLRU) get(key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Get(key)
}

func (l *lockedLRU) add(key string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lru.Add(key, value)
}
