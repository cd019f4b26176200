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

// Package queryclient fetches raw field values and server-side histograms
// from the experiment store.
//
// The client keeps at most one fetch in flight per distinct
// (filter, fields, seed) request key: concurrent callers of the same key
// share one round trip.  Validated responses are cached in an LRU keyed
// by the same request key; entries are immutable once stored.  Fetch
// failures surface as errors wrapping ErrLoad, so callers can distinguish
// a load failure from an empty result.  The client never retries;
// retry policy belongs to the caller.
package queryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/runviz/runviz/fieldvalues"
	"github.com/runviz/runviz/sampling"
	"golang.org/x/sync/singleflight"
)

// Store endpoint paths.
const (
	fieldValuesPath = "/api/fields/values"
	histogramPath   = "/api/histogram"
)

// ErrLoad marks a failure to load data from the store, as distinct from a
// successful load of an empty result set.
var ErrLoad = errors.New("experiment store fetch failed")

// Client is a caching, deduplicating client for the experiment store's
// query endpoints.  It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	group singleflight.Group

	mu sync.Mutex
	// Validated responses by request key.
	lru *simplelru.LRU
	// Cancels the most recent superseding fetch.
	supersedeCancel context.CancelFunc
}

// New returns a Client for the store at baseURL, caching up to cacheSize
// validated responses.  httpClient may be nil to use http.DefaultClient.
func New(baseURL string, cacheSize int, httpClient *http.Client) (*Client, error) {
	lru, err := simplelru.NewLRU(cacheSize, nil /* no onEvict policy */)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		lru:        lru,
	}, nil
}

// FieldValues fetches raw field values for the provided request.  Repeat
// requests with an unchanged (filter, fields, seed) key are served from
// cache; concurrent requests for one key share a single round trip.
func (c *Client) FieldValues(ctx context.Context, req *fieldvalues.FieldValuesRequest) (*fieldvalues.FieldValuesResponse, error) {
	key, err := sampling.RequestKey(req.Filter, req.Fields, req.Seed)
	if err != nil {
		return nil, err
	}
	if resp, ok := c.cached(key); ok {
		return resp.(*fieldvalues.FieldValuesResponse), nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		resp := &fieldvalues.FieldValuesResponse{}
		if err := c.post(ctx, fieldValuesPath, req, resp); err != nil {
			return nil, err
		}
		if err := resp.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		c.store(key, resp)
		return resp, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*fieldvalues.FieldValuesResponse), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SupersedingFieldValues behaves like FieldValues, but first cancels any
// fetch previously started through this method.  Use it when inputs have
// changed and the prior request's result is no longer wanted.
func (c *Client) SupersedingFieldValues(ctx context.Context, req *fieldvalues.FieldValuesRequest) (*fieldvalues.FieldValuesResponse, error) {
	c.mu.Lock()
	if c.supersedeCancel != nil {
		c.supersedeCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.supersedeCancel = cancel
	c.mu.Unlock()
	return c.FieldValues(ctx, req)
}

// Histogram fetches a server-side binned distribution for the provided
// request.
func (c *Client) Histogram(ctx context.Context, req *fieldvalues.HistogramRequest) (*fieldvalues.HistogramResponse, error) {
	key, err := sampling.RequestKey(req.Filter, []string{"histogram", req.Field, strconv.Itoa(req.BinCount)}, 0)
	if err != nil {
		return nil, err
	}
	if resp, ok := c.cached(key); ok {
		return resp.(*fieldvalues.HistogramResponse), nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		resp := &fieldvalues.HistogramResponse{}
		if err := c.post(ctx, histogramPath, req, resp); err != nil {
			return nil, err
		}
		if err := resp.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		c.store(key, resp)
		return resp, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*fieldvalues.HistogramResponse), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) cached(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

func (c *Client) store(key string, resp any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, resp)
}

// post sends reqBody as JSON to the store and decodes the response into
// respBody.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("%w: %s returned status %d: %s", ErrLoad, path, httpResp.StatusCode, body)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("%w: undecodable response from %s: %v", ErrLoad, path, err)
	}
	return nil
}
