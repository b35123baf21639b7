// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeonlabs/skillgraph/pkg/composition"
	"github.com/zeonlabs/skillgraph/pkg/config"
)

func runFlatten(ctx context.Context, app *appContext, args []string) {
	fs := flag.NewFlagSet("flatten", flag.ExitOnError)
	var inputs multiFlag
	fs.Var(&inputs, "input", "Skill input as key=value (repeatable)")
	machineID := fs.String("machine", "", "Machine entry overriding registry.machine")
	if err := fs.Parse(args); err != nil {
		fatal(err, app.global.JSON)
	}
	if fs.NArg() < 1 {
		fatal(fmt.Errorf("usage: skillgraph flatten <skill> [--input key=value ...]"), app.global.JSON)
	}
	name := fs.Arg(0)

	if err := applyMachineOverride(app.cfg, *machineID); err != nil {
		fatal(err, app.global.JSON)
	}

	values, err := parseInputs(inputs)
	if err != nil {
		fatal(err, app.global.JSON)
	}

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	trace, err := e.Flatten(ctx, name, values)
	if err != nil {
		fatal(err, app.global.JSON)
	}

	if app.global.JSON {
		printJSON(map[string]any{
			"skill":       name,
			"invocations": trace.Len(),
			"trace":       trace,
		})
		return
	}

	fmt.Printf("%s flattens to %d invocations:\n", name, trace.Len())
	printTrace(trace, "  ")
}

// applyMachineOverride selects the machine parameter entry for this
// invocation. Machine parameters are read from the SQLite file named by
// registry.machine_db; an override without that file configured would
// silently bind nothing, so it is rejected instead.
func applyMachineOverride(cfg *config.Config, machineID string) error {
	if machineID == "" {
		return nil
	}
	if cfg.Registry.MachineDB == "" {
		return NewInvalidArgumentError("--machine", "registry.machine_db is not configured")
	}
	cfg.Registry.Machine = machineID
	return nil
}

func printTrace(trace composition.Trace, indent string) {
	for _, entry := range trace {
		if entry.Kind == composition.EntryLoop {
			fmt.Printf("%srepeat until %s:\n", indent, entry.Until)
			printTrace(entry.Body, indent+"  ")
			continue
		}
		fmt.Printf("%s%s%s\n", indent, entry.Skill, formatInputs(entry.Inputs))
	}
}

func formatInputs(inputs map[string]any) string {
	if len(inputs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(inputs))
	for _, key := range sortedKeys(inputs) {
		parts = append(parts, fmt.Sprintf("%s=%v", key, inputs[key]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// parseInputs converts --input key=value pairs into a payload map.
// Values that read as booleans or numbers are typed accordingly,
// matching how a YAML document would carry them.
func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, NewInvalidArgumentError("--input",
				fmt.Sprintf("%q is not of the form key=value", pair))
		}
		out[key] = coerceInputValue(strings.TrimSpace(value))
	}
	return out, nil
}

func coerceInputValue(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
