// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/zeonlabs/skillgraph/pkg/composition"
)

type graphResult struct {
	Format  string `json:"format"`
	Content string `json:"content"`
	Root    string `json:"root,omitempty"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
}

func runGraph(ctx context.Context, app *appContext, args []string) {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	output := fs.String("output", "mermaid", "Output format: mermaid, dot, json")
	root := fs.String("root", "", "Restrict output to the subtree of one skill")
	if err := fs.Parse(args); err != nil {
		fatal(err, app.global.JSON)
	}

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	data := e.Snapshot().Graph.Export()
	if *root != "" {
		data, err = subgraph(e.Snapshot().Graph, *root)
		if err != nil {
			fatal(err, app.global.JSON)
		}
	}

	result := graphResult{
		Format: *output,
		Root:   *root,
		Nodes:  len(data.Nodes),
		Edges:  len(data.Edges),
	}

	switch *output {
	case "mermaid":
		result.Content = toMermaid(data)
	case "dot":
		result.Content = toDot(data)
	case "json":
		payload, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			fatal(err, app.global.JSON)
		}
		result.Content = string(payload)
	default:
		fatal(fmt.Errorf("unknown output format %q; use mermaid, dot, or json", *output), app.global.JSON)
	}

	if app.global.JSON {
		printJSON(result)
		return
	}
	fmt.Println(result.Content)
}

// subgraph keeps only the nodes reachable from root and the edges
// between them.
func subgraph(g *composition.Graph, root string) (composition.ExportData, error) {
	deps, err := g.Dependencies(root)
	if err != nil {
		return composition.ExportData{}, err
	}
	keep := map[string]bool{root: true}
	for _, name := range deps {
		keep[name] = true
	}

	full := g.Export()
	out := composition.ExportData{}
	for _, node := range full.Nodes {
		if keep[node.ID] {
			out.Nodes = append(out.Nodes, node)
		}
	}
	for _, edge := range full.Edges {
		if keep[edge.From] && keep[edge.To] {
			out.Edges = append(out.Edges, edge)
		}
	}
	return out, nil
}

func toMermaid(data composition.ExportData) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, node := range data.Nodes {
		sb.WriteString(fmt.Sprintf("    %s[%s: %s]\n", node.ID, node.Label, node.Tier))
	}
	for _, edge := range data.Edges {
		if edge.RepeatUntil != "" {
			sb.WriteString(fmt.Sprintf("    %s -->|until %s| %s\n", edge.From, edge.RepeatUntil, edge.To))
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", edge.From, edge.To))
	}
	return sb.String()
}

func toDot(data composition.ExportData) string {
	var sb strings.Builder
	sb.WriteString("digraph skills {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n")
	for _, node := range data.Nodes {
		sb.WriteString(fmt.Sprintf("    %q [label=\"%s\\n(%s)\"];\n", node.ID, node.Label, node.Tier))
	}
	for _, edge := range data.Edges {
		attrs := ""
		if edge.RepeatUntil != "" {
			attrs = fmt.Sprintf(" [label=\"until %s\"]", edge.RepeatUntil)
		}
		sb.WriteString(fmt.Sprintf("    %q -> %q%s;\n", edge.From, edge.To, attrs))
	}
	sb.WriteString("}\n")
	return sb.String()
}
