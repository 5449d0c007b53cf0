package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// nodeConfig holds the directory-level defaults for a new FLU instance.
// It is optional: fluctl only reads it for `new`, never for reopening an
// existing node (geometry there comes from hard state on disk).
type nodeConfig struct {
	PageSize uint32 `json:"page_size,omitempty"` //nolint:tagliatelle // snake_case for config file
	MaxMem   uint64 `json:"max_mem,omitempty"`   //nolint:tagliatelle // snake_case for config file
}

// configFileName is the optional JSON-with-comments defaults file fluctl
// looks for alongside a FLU directory when creating a new node.
const configFileName = "flu.json"

// loadNodeConfig reads dir/flu.json if present. A missing file is not an
// error - fluctl falls back to CLI flags and then package defaults.
func loadNodeConfig(dir string) (nodeConfig, error) {
	path := filepath.Join(dir, configFileName)

	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if errors.Is(err, os.ErrNotExist) {
		return nodeConfig{}, nil
	}

	if err != nil {
		return nodeConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nodeConfig{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var cfg nodeConfig

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nodeConfig{}, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	return cfg, nil
}
