// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with positional context for
// the skill engine. Callers branch on the ErrorCode rather than on message
// text.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies engine errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeDuplicateSkill indicates two skill documents declared the same name.
	CodeDuplicateSkill ErrorCode = "DUPLICATE_SKILL_NAME"

	// CodeMalformedSpec indicates a skill document is missing required fields
	// or carries fields of the wrong shape.
	CodeMalformedSpec ErrorCode = "MALFORMED_SPEC"

	// CodeSkillNotFound indicates a registry lookup for an unknown name.
	CodeSkillNotFound ErrorCode = "SKILL_NOT_FOUND"

	// CodeUnknownSubSkill indicates a composition step references a skill
	// that is not in the registry.
	CodeUnknownSubSkill ErrorCode = "UNKNOWN_SUB_SKILL"

	// CodeTierViolation indicates a composition step references a skill whose
	// tier is not strictly lower than the owner's.
	CodeTierViolation ErrorCode = "TIER_VIOLATION"

	// CodeCycleDetected indicates the composition graph contains a cycle.
	CodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// CodeUnboundParameter indicates a parameter placeholder that no binding,
	// owner input, or machine database entry resolves.
	CodeUnboundParameter ErrorCode = "UNBOUND_PARAMETER"

	// CodeUnboundRepeatCondition indicates a repeat condition token that is
	// not a postcondition of the loop body's final step.
	CodeUnboundRepeatCondition ErrorCode = "UNBOUND_REPEAT_CONDITION"

	// CodeSchemaViolation indicates a payload does not satisfy a skill's
	// input schema.
	CodeSchemaViolation ErrorCode = "SCHEMA_VIOLATION"

	// CodeUnknownSkill indicates a plan step names an absent or deprecated
	// skill.
	CodeUnknownSkill ErrorCode = "UNKNOWN_SKILL"

	// CodeInvalidInput indicates a plan step's inputs failed validation.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnresolvableComposition indicates a plan step names a skill whose
	// composition cannot be flattened to atomic actions.
	CodeUnresolvableComposition ErrorCode = "UNRESOLVABLE_COMPOSITION"
)

// Error is a typed error with positional context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Skill       string // offending skill name, when known
	Path        string // schema field path or cycle path, when known
	StepIndex   int    // plan step index; -1 outside plan validation
	Recoverable bool
	StatusCode  int // for HTTP/gRPC responses
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.StepIndex >= 0 {
		prefix = fmt.Sprintf("%s step %d:", prefix, e.StepIndex)
	}
	if e.Skill != "" {
		prefix = fmt.Sprintf("%s skill %q:", prefix, e.Skill)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	payload := struct {
		Code        string `json:"code"`
		Message     string `json:"message"`
		Cause       string `json:"cause,omitempty"`
		Skill       string `json:"skill,omitempty"`
		Path        string `json:"path,omitempty"`
		StepIndex   *int   `json:"step_index,omitempty"`
		Recoverable bool   `json:"recoverable"`
		StatusCode  int    `json:"status_code"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Skill:       e.Skill,
		Path:        e.Path,
		Recoverable: e.Recoverable,
		StatusCode:  e.StatusCode,
	}
	if e.Err != nil {
		payload.Cause = e.Err.Error()
	}
	if e.StepIndex >= 0 {
		idx := e.StepIndex
		payload.StepIndex = &idx
	}
	return json.Marshal(payload)
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:        code,
		Message:     msg,
		Err:         cause,
		StepIndex:   -1,
		Recoverable: codeRecoverable(code),
		StatusCode:  codeToStatusCode(code),
	}
}

// WithSkill records the offending skill name.
// Returns the error for method chaining.
func (e *Error) WithSkill(name string) *Error {
	e.Skill = name
	return e
}

// WithPath records a schema field path or cycle path.
// Returns the error for method chaining.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithStep records the plan step index the error occurred at.
// Returns the error for method chaining.
func (e *Error) WithStep(index int) *Error {
	e.StepIndex = index
	return e
}

// WithRecoverable overrides whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// AsError attempts to convert an error to an Error.
// Returns the error as Error if it is one, or wraps it otherwise.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}
	// Wrap unknown error as internal
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the ErrorCode carried by err, or CodeInternal for untyped
// errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Code
	}
	return CodeInternal
}

// IsCode reports whether err or any error in its chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var typed *Error
		if !stderrors.As(err, &typed) {
			return false
		}
		if typed.Code == code {
			return true
		}
		err = typed.Err
	}
	return false
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeRecoverable reports whether the caller can usefully retry with a
// corrected request. Registry and composition defects need a registry fix
// first, so they are not recoverable by the caller alone.
func codeRecoverable(code ErrorCode) bool {
	switch code {
	case CodeSchemaViolation, CodeUnknownSkill, CodeInvalidInput, CodeUnresolvableComposition:
		return true
	default:
		return false
	}
}

// codeToStatusCode maps error codes to gRPC/HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeSkillNotFound:
		return 404 // NOT_FOUND
	case CodeDuplicateSkill:
		return 409 // CONFLICT
	case CodeSchemaViolation, CodeUnknownSkill, CodeInvalidInput, CodeMalformedSpec:
		return 400 // INVALID_ARGUMENT
	case CodeUnknownSubSkill, CodeTierViolation, CodeCycleDetected,
		CodeUnboundParameter, CodeUnboundRepeatCondition,
		CodeUnresolvableComposition:
		return 422 // UNPROCESSABLE
	default:
		return 500 // INTERNAL
	}
}
