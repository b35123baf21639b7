// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zeonlabs/skillgraph/pkg/composition"
	"github.com/zeonlabs/skillgraph/pkg/engine"
	"github.com/zeonlabs/skillgraph/pkg/registry"
	"github.com/zeonlabs/skillgraph/pkg/skill"
)

func runList(ctx context.Context, app *appContext, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	tiers := fs.String("tier", "", "Comma-separated tier filter (T0,T1,T2)")
	all := fs.Bool("all", false, "Include deprecated skills")
	if err := fs.Parse(args); err != nil {
		fatal(err, app.global.JSON)
	}

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	opts := registry.ListOptions{IncludeDeprecated: *all}
	for _, part := range strings.Split(*tiers, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tier, err := skill.ParseTier(part)
		if err != nil {
			fatal(NewInvalidArgumentError("--tier", err.Error()), app.global.JSON)
		}
		opts.Tiers = append(opts.Tiers, tier)
	}

	specs := e.Snapshot().Registry.List(opts)

	if app.global.JSON {
		printJSON(specs)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "NAME", "TIER", "VERSION", "STEPS", "DESCRIPTION")
	for _, spec := range specs {
		steps := "-"
		if spec.IsComposite() {
			steps = fmt.Sprintf("%d", len(spec.Composition))
		}
		writeRow(writer, spec.Name, string(spec.Tier), spec.Version, steps, truncate(spec.Description, 60))
	}
	_ = writer.Flush()
}

func runShow(ctx context.Context, app *appContext, args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("usage: skillgraph show <skill>"), app.global.JSON)
	}
	name := args[0]

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	spec, err := e.Lookup(name)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	tree, err := e.Snapshot().Graph.Hierarchy(name)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	depth, err := e.Snapshot().Graph.Depth(name)
	if err != nil {
		fatal(err, app.global.JSON)
	}

	if app.global.JSON {
		printJSON(map[string]any{
			"skill":     spec,
			"hierarchy": tree,
			"depth":     depth,
		})
		return
	}

	fmt.Printf("Name:        %s\n", spec.Name)
	fmt.Printf("Tier:        %s (%s)\n", spec.Tier, spec.Tier.Label())
	if spec.Version != "" {
		fmt.Printf("Version:     %s\n", spec.Version)
	}
	if spec.Description != "" {
		fmt.Printf("Description: %s\n", spec.Description)
	}
	if spec.Deprecated {
		fmt.Println("Deprecated:  yes")
	}
	if fields := spec.InputFields(); len(fields) > 0 {
		fmt.Printf("Inputs:      %s\n", strings.Join(fields, ", "))
	}
	if len(spec.Preconditions) > 0 {
		fmt.Printf("Pre:         %s\n", joinConditions(spec.Preconditions))
	}
	if len(spec.Postconditions) > 0 {
		fmt.Printf("Post:        %s\n", joinConditions(spec.Postconditions))
	}
	fmt.Printf("Depth:       %d\n", depth)
	if spec.IsComposite() {
		fmt.Println("Composition:")
		printHierarchy(tree, "  ")
	}
}

func printHierarchy(node *composition.HierarchyNode, indent string) {
	fmt.Printf("%s%s (%s)\n", indent, node.Name, node.Tier)
	for i := range node.SubSkills {
		printHierarchy(&node.SubSkills[i], indent+"  ")
	}
}

func joinConditions(list []skill.Condition) string {
	parts := make([]string, len(list))
	for i, c := range list {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func runSearch(ctx context.Context, app *appContext, args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("usage: skillgraph search <query>"), app.global.JSON)
	}
	query := strings.Join(args, " ")

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	specs := e.Snapshot().Registry.Search(query)
	if app.global.JSON {
		printJSON(specs)
		return
	}
	if len(specs) == 0 {
		fmt.Printf("no skills match %q\n", query)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "NAME", "TIER", "DESCRIPTION")
	for _, spec := range specs {
		writeRow(writer, spec.Name, string(spec.Tier), truncate(spec.Description, 70))
	}
	_ = writer.Flush()
}

// runCheck loads the registry and builds the composition graph, exiting
// non-zero with a structured error when any document or reference is
// defective.
func runCheck(ctx context.Context, app *appContext, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fatal(err, app.global.JSON)
	}

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	snapshot := e.Snapshot()
	if app.global.JSON {
		printJSON(map[string]any{
			"ok":     true,
			"dir":    e.Dir(),
			"skills": snapshot.Registry.Len(),
			"edges":  len(snapshot.Graph.Edges()),
		})
		return
	}
	fmt.Printf("ok: %d skills, %d composition edges (%s)\n",
		snapshot.Registry.Len(), len(snapshot.Graph.Edges()), e.Dir())
}

func runStats(ctx context.Context, app *appContext, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fatal(err, app.global.JSON)
	}

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	stats := e.Snapshot().Graph.Stats()
	if app.global.JSON {
		printJSON(stats)
		return
	}

	fmt.Printf("Skills:       %d\n", stats.TotalSkills)
	for _, tier := range skill.Tiers() {
		fmt.Printf("  %s:         %d\n", tier, stats.TierCounts[tier])
	}
	fmt.Printf("Edges:        %d\n", stats.EdgeCount)
	fmt.Printf("Max depth:    %d\n", stats.MaxDepth)
	if stats.MostComplex != "" {
		fmt.Printf("Most complex: %s\n", stats.MostComplex)
	}
	if stats.MostUsed != "" {
		fmt.Printf("Most used:    %s\n", stats.MostUsed)
	}
}

// runWatch keeps the engine live, reloading the snapshot whenever a
// skill document changes, until interrupted.
func runWatch(ctx context.Context, app *appContext, args []string) {
	defaultInterval := 2 * time.Second
	if s := app.cfg.Registry.WatchIntervalSeconds; s > 0 {
		defaultInterval = time.Duration(s) * time.Second
	}
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", defaultInterval, "Directory poll interval")
	if err := fs.Parse(args); err != nil {
		fatal(err, app.global.JSON)
	}

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	watcher := engine.NewWatcher(e,
		engine.WithWatchInterval(*interval),
		engine.WithWatchLogger(app.logger),
	)
	watcher.OnChange(func(s *engine.Snapshot) {
		fmt.Printf("reloaded: %d skills\n", s.Registry.Len())
	})

	fmt.Printf("watching %s (every %s), %d skills loaded\n", e.Dir(), *interval, e.Snapshot().Registry.Len())
	watcher.Start(ctx)
	<-ctx.Done()
	watcher.Stop()
}

func printJSON(value any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
