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

// Package handlers exposes the runviz engine over HTTP: plot queries in,
// renderer-agnostic chart specs out, plus point-click run resolution.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	querydispatcher "github.com/runviz/runviz/query_dispatcher"
	runresolver "github.com/runviz/runviz/run_resolver"
)

// HandlerFunc is a HTTP handler function.
type HandlerFunc func(http.ResponseWriter, *http.Request)

// WrapFunc is a function that rewrites a HandlerFunc.
type WrapFunc func(HandlerFunc) HandlerFunc

// Handler describes a runviz HTTP handler.
type Handler interface {
	HandlersByPath() map[string]func(http.ResponseWriter, *http.Request)
}

// QueryHandler is a Handler for plot queries.  It supports a Wrap method
// that wraps all handlers, e.g. adding cookies.
type QueryHandler interface {
	Handler
	Wrap(...WrapFunc) Handler
}

// Served paths.
const (
	plotMethod    = "/api/plot"
	resolveMethod = "/api/resolve"
)

// sendJSONResponse serializes the provided value and sends it along the
// provided http.ResponseWriter.  Any failure during serialization yields
// an HTTP internal status error.
func sendJSONResponse(resp any, w http.ResponseWriter) {
	respStr, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	fmt.Fprint(w, string(respStr))
}

// queryHandler is an http.Handler serving runviz plot queries.
type queryHandler struct {
	qd       *querydispatcher.QueryDispatcher
	wrappers []WrapFunc
}

// NewQueryHandler returns a new Handler serving runviz requests using the
// provided QueryDispatcher.
func NewQueryHandler(qd *querydispatcher.QueryDispatcher) QueryHandler {
	return &queryHandler{
		qd: qd,
	}
}

func (qh *queryHandler) Wrap(wrappers ...WrapFunc) Handler {
	qh.wrappers = append(qh.wrappers, wrappers...)
	return qh
}

// HandlersByPath returns a mapping of HTTP request path to HTTP handler
// for this Handler.
func (qh *queryHandler) HandlersByPath() map[string]func(http.ResponseWriter, *http.Request) {
	var ph HandlerFunc = qh.plotHandler
	var rh HandlerFunc = qh.resolveHandler
	for _, wrapper := range qh.wrappers {
		ph = wrapper(ph)
		rh = wrapper(rh)
	}
	return map[string]func(http.ResponseWriter, *http.Request){
		plotMethod:    ph,
		resolveMethod: rh,
	}
}

func (qh *queryHandler) plotHandler(w http.ResponseWriter, req *http.Request) {
	plotReq := &querydispatcher.PlotRequest{}
	if err := json.NewDecoder(req.Body).Decode(plotReq); err != nil {
		http.Error(w, "Failed to parse PlotRequest: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := qh.qd.HandlePlotRequest(req.Context(), plotReq)
	if err != nil {
		http.Error(w, "PlotRequest failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	sendJSONResponse(resp, w)
}

// resolveRequest carries a clicked point's attached run metadata.
type resolveRequest struct {
	RunIDs []string `json:"runIds"`
}

func (qh *queryHandler) resolveHandler(w http.ResponseWriter, req *http.Request) {
	resolveReq := &resolveRequest{}
	if err := json.NewDecoder(req.Body).Decode(resolveReq); err != nil {
		http.Error(w, "Failed to parse resolve request: "+err.Error(), http.StatusBadRequest)
		return
	}
	sendJSONResponse(runresolver.Resolve(resolveReq.RunIDs), w)
}
