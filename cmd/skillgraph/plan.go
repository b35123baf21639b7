// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"

	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/plan"
)

func runPlan(ctx context.Context, app *appContext, args []string) {
	if len(args) == 0 || args[0] != "validate" {
		fatal(fmt.Errorf("usage: skillgraph plan validate --file <plan.json|.yaml>"), app.global.JSON)
	}

	fs := flag.NewFlagSet("plan validate", flag.ExitOnError)
	file := fs.String("file", "", "Candidate plan document")
	if err := fs.Parse(args[1:]); err != nil {
		fatal(err, app.global.JSON)
	}
	if *file == "" {
		fatal(NewInvalidArgumentError("--file", "a plan document path is required"), app.global.JSON)
	}

	candidate, err := plan.LoadFile(*file)
	if err != nil {
		fatal(err, app.global.JSON)
	}

	e, cleanup, err := newEngine(ctx, app)
	if err != nil {
		fatal(err, app.global.JSON)
	}
	defer cleanup()

	validated, err := e.ValidatePlan(ctx, *candidate)
	if err != nil {
		printRejection(err, app.global.JSON)
		return
	}

	if app.global.JSON {
		printJSON(map[string]any{
			"accepted": true,
			"plan_id":  validated.ID,
			"task":     validated.Task,
			"steps":    len(validated.Steps),
		})
		return
	}

	fmt.Printf("accepted: plan %s (%d steps)\n", validated.ID, len(validated.Steps))
	writer := newTabWriter()
	writeRow(writer, "STEP", "SKILL", "TIER", "RATIONALE")
	for i, step := range validated.Steps {
		writeRow(writer, fmt.Sprintf("%d", i), step.Skill, string(step.Spec.Tier), truncate(step.Rationale, 60))
	}
	_ = writer.Flush()
}

// printRejection reports a rejected plan with the step index and field
// path the validator pinned the defect to, then exits non-zero.
func printRejection(err error, asJSON bool) {
	se := sgerrors.AsError(err)
	if se == nil {
		fatal(err, asJSON)
	}

	if asJSON {
		printJSON(map[string]any{
			"accepted": false,
			"error":    se,
		})
		exit(1)
	}

	fmt.Printf("rejected: [%s] %s\n", se.Code, se.Message)
	if se.StepIndex >= 0 {
		fmt.Printf("  step:  %d\n", se.StepIndex)
	}
	if se.Skill != "" {
		fmt.Printf("  skill: %s\n", se.Skill)
	}
	if se.Path != "" {
		fmt.Printf("  path:  %s\n", se.Path)
	}
	if se.Err != nil {
		fmt.Printf("  cause: %v\n", se.Err)
	}
	exit(1)
}
