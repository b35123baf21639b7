package skill

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseJSON loads a skill spec from JSON and validates its shape.
func ParseJSON(data []byte) (*Spec, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse json skill: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ParseYAML loads a skill spec from YAML and validates its shape.
func ParseYAML(data []byte) (*Spec, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse yaml skill: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// MarshalJSON serializes a skill spec to JSON. Use pretty for indented
// output.
func MarshalJSON(spec *Spec, pretty bool) ([]byte, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec is nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if pretty {
		return json.MarshalIndent(spec, "", "  ")
	}
	return json.Marshal(spec)
}

// MarshalYAML serializes a skill spec to YAML.
func MarshalYAML(spec *Spec) ([]byte, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec is nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(spec)
}
