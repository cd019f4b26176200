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

// Package service wires the runviz dashboard: the experiment-store query
// client, the plot data source, the query dispatcher, and the HTTP
// handlers.
package service

import (
	"math/rand/v2"
	"net/http"

	"github.com/runviz/runviz/config"
	datasource "github.com/runviz/runviz/data_source"
	"github.com/runviz/runviz/handlers"
	queryclient "github.com/runviz/runviz/query_client"
	querydispatcher "github.com/runviz/runviz/query_dispatcher"
	"github.com/runviz/runviz/sampling"
)

// Service is a wired runviz dashboard backend.
type Service struct {
	queryHandler handlers.QueryHandler
}

// New returns a Service configured per cfg.
func New(cfg config.Config) (*Service, error) {
	client, err := queryclient.New(cfg.BackendURL, cfg.ResponseCacheSize, nil)
	if err != nil {
		return nil, err
	}
	sampler := sampling.NewController(rand.Int64())
	ds, err := datasource.New(client, sampler, datasource.Options{
		MaxPoints:        cfg.MaxPoints,
		SpecCacheSize:    cfg.SpecCacheSize,
		Palette:          cfg.Palette,
		ServerHistograms: cfg.ServerHistograms,
	})
	if err != nil {
		return nil, err
	}
	qd, err := querydispatcher.New(ds)
	if err != nil {
		return nil, err
	}
	return &Service{
		queryHandler: handlers.NewQueryHandler(qd),
	}, nil
}

// RegisterHandlers registers the service's HTTP handlers on mux.
func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	for path, handler := range s.queryHandler.HandlersByPath() {
		mux.HandleFunc(path, handler)
	}
}
