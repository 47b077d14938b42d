// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tailscale/hujson"
	"go4.org/xdgdir"
)

// globalConfig is the merged configuration for every subcommand.
// Defaults are overridden by configuration files
// (see [configFilePaths]), which are overridden by flags.
type globalConfig struct {
	Debug bool `json:"debug"`
	// Libraries restricts which standard libraries scripts see.
	// Empty means all of them.
	Libraries []string `json:"libraries"`
	// RandomSeed makes math.random deterministic when non-nil.
	RandomSeed *int64 `json:"randomSeed"`
}

func newGlobalConfig() *globalConfig {
	return new(globalConfig)
}

// mergeFiles reads each path in order,
// treating the contents as HuJSON ("JSON with commas and comments")
// and merging any fields present into g.
// Missing files are skipped.
func (g *globalConfig) mergeFiles(paths []string) error {
	for _, path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, g, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}
	return nil
}

// configFilePaths returns the candidate configuration files
// in ascending order of precedence.
func configFilePaths() []string {
	var paths []string
	for _, dir := range xdgdir.Config.SearchPaths() {
		paths = append(paths, filepath.Join(dir, "luna", "config.jwcc"))
	}
	// SearchPaths lists the highest-precedence directory first;
	// merging wants the opposite.
	slices.Reverse(paths)
	return paths
}
