// Package schema models the structural constraint trees that skill
// documents declare for their input, output, and error payloads.
//
// A schema document is a mapping of field name to constraint, for example:
//
//	rack_id: {type: string, required: true}
//	force:   {type: number, min: 0.1, max: 5.0}
//	action:  {type: string, enum: [open, close]}
//
// Field order follows the document, so diagnostics are reproducible. The
// reserved key additional_properties toggles the closed-world default.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Type enumerates the payload value kinds a constraint can require.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Valid reports whether t is a known constraint type.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject:
		return true
	}
	return false
}

// Field is one named constraint of an object schema. Fields keep the order
// of the schema document they were parsed from.
type Field struct {
	Name     string
	Type     Type
	Required bool
	Enum     []any
	Min      *float64
	Max      *float64
	Items    *Field  // array element constraint; Name is empty
	Fields   []Field // object sub-constraints in document order
	// AdditionalProperties applies to object constraints only.
	AdditionalProperties bool
}

// Schema is the root object constraint declared by a skill document.
type Schema struct {
	Fields               []Field
	AdditionalProperties bool
}

// Lookup returns the constraint for a top-level field name.
func (s *Schema) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the declared top-level field names in document order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// UnmarshalYAML decodes a schema mapping, preserving field order.
func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	fields, additional, err := decodeMappingNode(value)
	if err != nil {
		return err
	}
	s.Fields = fields
	s.AdditionalProperties = additional
	return nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		return node.Alias
	}
	return node
}

func decodeMappingNode(node *yaml.Node) ([]Field, bool, error) {
	node = resolveAlias(node)
	if node.Kind != yaml.MappingNode {
		return nil, false, fmt.Errorf("schema must be a mapping, got %s", nodeKindName(node))
	}
	var fields []Field
	additional := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := resolveAlias(node.Content[i+1])
		if keyNode.Value == "additional_properties" {
			if err := valNode.Decode(&additional); err != nil {
				return nil, false, fmt.Errorf("additional_properties must be a boolean: %w", err)
			}
			continue
		}
		field, err := decodeConstraintNode(keyNode.Value, valNode)
		if err != nil {
			return nil, false, err
		}
		fields = append(fields, field)
	}
	return fields, additional, nil
}

func decodeConstraintNode(name string, node *yaml.Node) (Field, error) {
	node = resolveAlias(node)
	field := Field{Name: name}
	if node.Kind != yaml.MappingNode {
		return field, fmt.Errorf("constraint for %q must be a mapping, got %s", name, nodeKindName(node))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		valNode := resolveAlias(node.Content[i+1])
		var err error
		switch key {
		case "type":
			var t string
			if err = valNode.Decode(&t); err == nil {
				field.Type = Type(t)
			}
		case "required":
			err = valNode.Decode(&field.Required)
		case "enum":
			err = valNode.Decode(&field.Enum)
		case "min":
			var min float64
			if err = valNode.Decode(&min); err == nil {
				field.Min = &min
			}
		case "max":
			var max float64
			if err = valNode.Decode(&max); err == nil {
				field.Max = &max
			}
		case "items":
			var items Field
			if items, err = decodeConstraintNode("", valNode); err == nil {
				field.Items = &items
			}
		case "fields":
			var subAdditional bool
			if field.Fields, subAdditional, err = decodeMappingNode(valNode); err == nil && subAdditional {
				err = fmt.Errorf("additional_properties belongs on the constraint, not inside fields")
			}
		case "additional_properties":
			err = valNode.Decode(&field.AdditionalProperties)
		default:
			err = fmt.Errorf("unknown constraint key %q", key)
		}
		if err != nil {
			return field, fmt.Errorf("constraint for %q: %w", name, err)
		}
	}
	if err := field.check(); err != nil {
		return field, fmt.Errorf("constraint for %q: %w", name, err)
	}
	return field, nil
}

func nodeKindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown node"
}

// UnmarshalJSON decodes a schema object, preserving field order by walking
// the token stream instead of an unordered map.
func (s *Schema) UnmarshalJSON(data []byte) error {
	fields, additional, err := decodeMappingJSON(data)
	if err != nil {
		return err
	}
	s.Fields = fields
	s.AdditionalProperties = additional
	return nil
}

func decodeMappingJSON(data []byte) ([]Field, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, false, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, false, fmt.Errorf("schema must be an object, got %v", tok)
	}
	var fields []Field
	additional := false
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, false, err
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false, fmt.Errorf("constraint for %q: %w", key, err)
		}
		if key == "additional_properties" {
			if err := json.Unmarshal(raw, &additional); err != nil {
				return nil, false, fmt.Errorf("additional_properties must be a boolean: %w", err)
			}
			continue
		}
		field, err := decodeConstraintJSON(key, raw)
		if err != nil {
			return nil, false, err
		}
		fields = append(fields, field)
	}
	return fields, additional, nil
}

func decodeConstraintJSON(name string, raw json.RawMessage) (Field, error) {
	var doc struct {
		Type                 string          `json:"type"`
		Required             bool            `json:"required"`
		Enum                 []any           `json:"enum"`
		Min                  *float64        `json:"min"`
		Max                  *float64        `json:"max"`
		Items                json.RawMessage `json:"items"`
		Fields               json.RawMessage `json:"fields"`
		AdditionalProperties bool            `json:"additional_properties"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Field{}, fmt.Errorf("constraint for %q: %w", name, err)
	}
	field := Field{
		Name:                 name,
		Type:                 Type(doc.Type),
		Required:             doc.Required,
		Enum:                 doc.Enum,
		Min:                  doc.Min,
		Max:                  doc.Max,
		AdditionalProperties: doc.AdditionalProperties,
	}
	if doc.Items != nil {
		items, err := decodeConstraintJSON("", doc.Items)
		if err != nil {
			return Field{}, err
		}
		field.Items = &items
	}
	if doc.Fields != nil {
		sub, additional, err := decodeMappingJSON(doc.Fields)
		if err != nil {
			return Field{}, fmt.Errorf("constraint for %q: %w", name, err)
		}
		if additional {
			return Field{}, fmt.Errorf("constraint for %q: additional_properties belongs on the constraint, not inside fields", name)
		}
		field.Fields = sub
	}
	if err := field.check(); err != nil {
		return Field{}, fmt.Errorf("constraint for %q: %w", name, err)
	}
	return field, nil
}

// check enforces constraint sanity at parse time so payload validation
// never encounters an ill-formed schema.
func (f *Field) check() error {
	if f.Type == "" {
		return fmt.Errorf("missing type")
	}
	if !f.Type.Valid() {
		return fmt.Errorf("unknown type %q", f.Type)
	}
	if (f.Min != nil || f.Max != nil) && f.Type != TypeNumber && f.Type != TypeInteger {
		return fmt.Errorf("min/max apply to number and integer fields only")
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("min %v exceeds max %v", *f.Min, *f.Max)
	}
	if f.Items != nil && f.Type != TypeArray {
		return fmt.Errorf("items applies to array fields only")
	}
	if len(f.Fields) > 0 && f.Type != TypeObject {
		return fmt.Errorf("fields applies to object fields only")
	}
	if f.AdditionalProperties && f.Type != TypeObject {
		return fmt.Errorf("additional_properties applies to object fields only")
	}
	return nil
}

// MarshalYAML encodes the schema as an ordered mapping.
func (s *Schema) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range s.Fields {
		valNode, err := constraintNode(f)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, scalarNode(f.Name), valNode)
	}
	if s.AdditionalProperties {
		node.Content = append(node.Content, scalarNode("additional_properties"), scalarNode(true))
	}
	return node, nil
}

func scalarNode(value any) *yaml.Node {
	node := &yaml.Node{}
	// Encode cannot fail for scalars.
	_ = node.Encode(value)
	return node
}

func constraintNode(f Field) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
	add := func(key string, value *yaml.Node) {
		node.Content = append(node.Content, scalarNode(key), value)
	}
	add("type", scalarNode(string(f.Type)))
	if f.Required {
		add("required", scalarNode(true))
	}
	if len(f.Enum) > 0 {
		enumNode := &yaml.Node{}
		if err := enumNode.Encode(f.Enum); err != nil {
			return nil, err
		}
		enumNode.Style = yaml.FlowStyle
		add("enum", enumNode)
	}
	if f.Min != nil {
		add("min", scalarNode(*f.Min))
	}
	if f.Max != nil {
		add("max", scalarNode(*f.Max))
	}
	if f.Items != nil {
		itemsNode, err := constraintNode(*f.Items)
		if err != nil {
			return nil, err
		}
		add("items", itemsNode)
	}
	if len(f.Fields) > 0 {
		fieldsNode := &yaml.Node{Kind: yaml.MappingNode}
		for _, sub := range f.Fields {
			subNode, err := constraintNode(sub)
			if err != nil {
				return nil, err
			}
			fieldsNode.Content = append(fieldsNode.Content, scalarNode(sub.Name), subNode)
		}
		node.Style = 0
		add("fields", fieldsNode)
	}
	if f.AdditionalProperties {
		add("additional_properties", scalarNode(true))
	}
	return node, nil
}

// MarshalJSON encodes the schema as an object with fields in document order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONKey(&buf, f.Name)
		if err := writeConstraintJSON(&buf, f); err != nil {
			return nil, err
		}
	}
	if s.AdditionalProperties {
		if len(s.Fields) > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`"additional_properties":true`)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONKey(buf *bytes.Buffer, name string) {
	buf.WriteString(strconv.Quote(name))
	buf.WriteByte(':')
}

func writeConstraintJSON(buf *bytes.Buffer, f Field) error {
	buf.WriteByte('{')
	buf.WriteString(`"type":`)
	buf.WriteString(strconv.Quote(string(f.Type)))
	if f.Required {
		buf.WriteString(`,"required":true`)
	}
	if len(f.Enum) > 0 {
		data, err := json.Marshal(f.Enum)
		if err != nil {
			return err
		}
		buf.WriteString(`,"enum":`)
		buf.Write(data)
	}
	if f.Min != nil {
		buf.WriteString(`,"min":`)
		buf.WriteString(strconv.FormatFloat(*f.Min, 'g', -1, 64))
	}
	if f.Max != nil {
		buf.WriteString(`,"max":`)
		buf.WriteString(strconv.FormatFloat(*f.Max, 'g', -1, 64))
	}
	if f.Items != nil {
		buf.WriteString(`,"items":`)
		if err := writeConstraintJSON(buf, *f.Items); err != nil {
			return err
		}
	}
	if len(f.Fields) > 0 {
		buf.WriteString(`,"fields":{`)
		for i, sub := range f.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONKey(buf, sub.Name)
			if err := writeConstraintJSON(buf, sub); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	if f.AdditionalProperties {
		buf.WriteString(`,"additional_properties":true`)
	}
	buf.WriteByte('}')
	return nil
}
