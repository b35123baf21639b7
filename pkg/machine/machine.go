// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

// Package machine loads the machine database: per-machine parameter sets
// (docking waypoints, interface positions) that fill binding placeholders
// the caller's inputs leave open. Values are opaque to the engine; only a
// downstream executor interprets them.
package machine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Entry is one machine's parameter sets. Params apply to every skill;
// Skills carries per-skill overrides that win over Params.
type Entry struct {
	Params map[string]any            `json:"params,omitempty"`
	Skills map[string]map[string]any `json:"skills,omitempty"`
}

// Database is a read-only index of machine entries loaded from JSON.
type Database struct {
	machines map[string]Entry
}

// Load reads a machine database file. A missing file is an error; callers
// that treat the database as optional should check for existence first.
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a machine database document.
func Parse(data []byte) (*Database, error) {
	var machines map[string]Entry
	if err := json.Unmarshal(data, &machines); err != nil {
		return nil, fmt.Errorf("parse machine database: %w", err)
	}
	return &Database{machines: machines}, nil
}

// Machines returns the known machine IDs, sorted.
func (db *Database) Machines() []string {
	out := make([]string, 0, len(db.machines))
	for id := range db.machines {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Has reports whether id is in the database.
func (db *Database) Has(id string) bool {
	_, ok := db.machines[id]
	return ok
}

// Source binds the database to one machine and returns a parameter
// source for binding resolution. An unknown machine yields a source that
// resolves nothing.
func (db *Database) Source(machineID string) *Source {
	entry := db.machines[machineID]
	return &Source{machine: machineID, entry: entry}
}

// Source resolves binding placeholders from one machine's entry.
type Source struct {
	machine string
	entry   Entry
}

// Machine returns the bound machine ID.
func (s *Source) Machine() string {
	return s.machine
}

// Param returns the value for name, preferring the skill-specific
// override over the machine-wide parameter set.
func (s *Source) Param(skillName, name string) (any, bool) {
	if overrides, ok := s.entry.Skills[skillName]; ok {
		if v, ok := overrides[name]; ok {
			return v, true
		}
	}
	v, ok := s.entry.Params[name]
	return v, ok
}
