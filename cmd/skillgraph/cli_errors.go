// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the skillgraph CLI.
package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/zeonlabs/skillgraph/pkg/errors"
)

// CLIError wraps a structured engine error with CLI-specific hints.
type CLIError struct {
	Cause *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(se *errors.Error, hint string) *CLIError {
	return &CLIError{Cause: se, Hint: hint}
}

// Error returns the formatted message with the hint appended.
func (e *CLIError) Error() string {
	if e.Cause == nil {
		return "unknown error"
	}
	msg := e.Cause.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the structured cause to errors.As chains.
func (e *CLIError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// PrintError writes the error to stderr in plain or JSON form.
func (e *CLIError) PrintError(asJSON bool) {
	if asJSON {
		payload, err := json.Marshal(map[string]any{
			"error": e.Cause,
			"hint":  e.Hint,
		})
		if err == nil {
			fmt.Fprintln(os.Stderr, string(payload))
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", e.Cause.Code, e.Cause.Message)
	if e.Hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", e.Hint)
	}
}

// NewNotFoundError creates a not-found error with CLI hints.
func NewNotFoundError(resource, name string) *CLIError {
	se := errors.New(errors.CodeSkillNotFound,
		fmt.Sprintf("%s %q not found", resource, name), nil)
	return NewCLIError(se, fmt.Sprintf("run 'skillgraph list' to see the registered %ss", resource))
}

// NewInvalidArgumentError creates an invalid-argument error with CLI
// hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	se := errors.New(errors.CodeInvalidInput,
		fmt.Sprintf("invalid %s: %s", arg, reason), nil)
	return NewCLIError(se, "run 'skillgraph help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	se := errors.New(errors.CodeInvalidInput, "configuration error", err)
	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(se, hint)
}

// fatal reports err on stderr and exits non-zero. Structured errors keep
// their code and hint; everything else prints as-is.
func fatal(err error, asJSON bool) {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		cliErr.PrintError(asJSON)
		exit(1)
	}
	if se := errors.AsError(err); se != nil {
		if asJSON {
			if payload, merr := json.Marshal(map[string]any{"error": se}); merr == nil {
				fmt.Fprintln(os.Stderr, string(payload))
				exit(1)
			}
		}
		fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", se.Code, se.Message)
		if se.Err != nil {
			fmt.Fprintf(os.Stderr, "  cause: %v\n", se.Err)
		}
		exit(1)
	}
	if asJSON {
		fmt.Fprintf(os.Stderr, `{"error":{"code":"UNKNOWN","message":%q}}%s`, err.Error(), "\n")
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	exit(1)
}

func exit(code int) {
	os.Exit(code)
}
