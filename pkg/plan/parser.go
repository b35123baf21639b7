package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseJSON loads a candidate plan from JSON.
func ParseJSON(data []byte) (*Plan, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse json plan: %w", err)
	}
	if err := plan.checkShape(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ParseYAML loads a candidate plan from YAML.
func ParseYAML(data []byte) (*Plan, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse yaml plan: %w", err)
	}
	if err := plan.checkShape(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// checkShape enforces document-level shape only; semantic validation
// against a registry is the Validator's job.
func (p *Plan) checkShape() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i, step := range p.Steps {
		if strings.TrimSpace(step.Skill) == "" {
			return fmt.Errorf("step %d: skill is required", i)
		}
	}
	return nil
}

// LoadFile loads a candidate plan from a YAML or JSON file, picking the
// parser by extension with content sniffing as a fallback.
func LoadFile(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("plan path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parsePlanAuto(data)
	}
}

func parsePlanAuto(data []byte) (*Plan, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if plan, err := ParseJSON(data); err == nil {
			return plan, nil
		}
	}
	if plan, err := ParseYAML(data); err == nil {
		return plan, nil
	}
	if plan, err := ParseJSON(data); err == nil {
		return plan, nil
	}
	return nil, fmt.Errorf("unsupported plan format")
}

// MarshalJSON serializes a plan to JSON. Use pretty for indented output.
func MarshalJSON(plan *Plan, pretty bool) ([]byte, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	if pretty {
		return json.MarshalIndent(plan, "", "  ")
	}
	return json.Marshal(plan)
}
