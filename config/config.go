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

// Package config loads the runviz service configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the runviz service configuration.
type Config struct {
	// BackendURL is the base URL of the experiment store.
	BackendURL string `yaml:"backend_url"`
	// MaxPoints caps the rows fetched per chart; larger result sets are
	// sampled server-side.
	MaxPoints int `yaml:"max_points"`
	// ResponseCacheSize is the query client's response LRU capacity.
	ResponseCacheSize int `yaml:"response_cache_size"`
	// SpecCacheSize is the memoized-spec LRU capacity.
	SpecCacheSize int `yaml:"spec_cache_size"`
	// ServerHistograms selects server-side binning over client-side
	// binning of raw values.
	ServerHistograms bool `yaml:"server_histograms"`
	// Palette overrides the default series palette with HTML color
	// strings.
	Palette []string `yaml:"palette"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		BackendURL:        "http://localhost:7600",
		MaxPoints:         10000,
		ResponseCacheSize: 16,
		SpecCacheSize:     32,
	}
}

// Load reads the configuration at path, filling unset fields from
// Default.  An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	loaded := Config{}
	if err := yaml.Unmarshal(b, &loaded); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if loaded.BackendURL != "" {
		cfg.BackendURL = loaded.BackendURL
	}
	if loaded.MaxPoints > 0 {
		cfg.MaxPoints = loaded.MaxPoints
	}
	if loaded.ResponseCacheSize > 0 {
		cfg.ResponseCacheSize = loaded.ResponseCacheSize
	}
	if loaded.SpecCacheSize > 0 {
		cfg.SpecCacheSize = loaded.SpecCacheSize
	}
	cfg.ServerHistograms = loaded.ServerHistograms
	if len(loaded.Palette) > 0 {
		cfg.Palette = loaded.Palette
	}
	return cfg, nil
}
