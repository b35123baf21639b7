// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFile loads a single skill document from a YAML or JSON file.
func LoadFile(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("skill path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	spec, err := parseByExt(path, data)
	if err != nil {
		return nil, err
	}
	spec.Path = path
	return spec, nil
}

func parseByExt(path string, data []byte) (*Spec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseSkillAuto(data)
	}
}

func parseSkillAuto(data []byte) (*Spec, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if spec, err := ParseJSON(data); err == nil {
			return spec, nil
		}
	}
	if spec, err := ParseYAML(data); err == nil {
		return spec, nil
	}
	if spec, err := ParseJSON(data); err == nil {
		return spec, nil
	}
	return nil, fmt.Errorf("unsupported skill format")
}

// LoadDir loads every skill document directly under root, sorted by file
// name so insertion order is stable across runs. Files without a
// recognized extension are skipped.
func LoadDir(root string) ([]*Spec, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(paths)

	specs := make([]*Spec, 0, len(paths))
	for _, path := range paths {
		spec, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
