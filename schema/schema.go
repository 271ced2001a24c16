package schema

import "encoding/json"

// Schema is a JSON Schema fragment restricted to the shape this package
// emits and consumes: object with properties+required, array with items,
// primitives, enum, const, anyOf/oneOf/allOf, and $ref/$defs (resolved and
// inlined by normalisation).
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	PropertyOrder        []string           `json:"-"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Default              any                `json:"default,omitempty"`
	HasDefault           bool               `json:"-"`
	Enum                 []any              `json:"enum,omitempty"`
	Const                any                `json:"const,omitempty"`
	HasConst             bool               `json:"-"`
	AnyOf                []*Schema          `json:"anyOf,omitempty"`
	OneOf                []*Schema          `json:"oneOf,omitempty"`
	AllOf                []*Schema          `json:"allOf,omitempty"`
	Not                  *Schema            `json:"not,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`

	// RootRestricted marks a schema that went through Normalize's root-key
	// restriction pass; ToMap only filters root keys when this is set, so a
	// schema built directly (e.g. via FromMap from a caller-supplied
	// document) renders every key it carries.
	RootRestricted bool `json:"-"`
	// ExtraRootKeys names additional keys let through at the document root,
	// on top of rootAllowedKeys, when RootRestricted is set.
	ExtraRootKeys []string `json:"-"`
}

// rootAllowedKeys is the fixed set of keys normalisation permits at the
// document root; anything else is stripped.
var rootAllowedKeys = map[string]bool{
	"description":          true,
	"properties":           true,
	"type":                 true,
	"required":             true,
	"additionalProperties": true,
	"allOf":                true,
	"anyOf":                true,
	"oneOf":                true,
	"not":                  true,
}

// ToMap renders the schema to the wire-level map[string]any shape used by
// provider request bodies and the grammar emitter, honoring
// PropertyOrder/HasDefault/HasConst bookkeeping that the Schema struct's tags
// alone cannot express (ordered property emission, a zero-value default or
// const that must still be emitted). At the document root, emission is
// further restricted to rootAllowedKeys plus s.ExtraRootKeys (normalisation
// rule 2); nested schemas (properties, items, unions, ...) are unrestricted.
func (s *Schema) ToMap() map[string]any {
	if s == nil {
		return nil
	}
	m := s.toMap()
	if !s.RootRestricted {
		return m
	}
	return restrictToRootKeys(m, s.ExtraRootKeys)
}

// toMap is ToMap's unrestricted recursive body, shared by the root call and
// every nested sub-schema.
func (s *Schema) toMap() map[string]any {
	if s == nil {
		return nil
	}
	m := map[string]any{}
	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Title != "" {
		m["title"] = s.Title
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := map[string]any{}
		order := s.PropertyOrder
		if len(order) == 0 {
			for k := range s.Properties {
				order = append(order, k)
			}
		}
		for _, k := range order {
			if sub, ok := s.Properties[k]; ok {
				props[k] = sub.toMap()
			}
		}
		m["properties"] = props
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	if s.Items != nil {
		m["items"] = s.Items.toMap()
	}
	if s.AdditionalProperties != nil {
		switch v := s.AdditionalProperties.(type) {
		case *Schema:
			m["additionalProperties"] = v.toMap()
		default:
			m["additionalProperties"] = v
		}
	}
	if s.HasDefault {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	if s.HasConst {
		m["const"] = s.Const
	}
	if len(s.AnyOf) > 0 {
		m["anyOf"] = schemasToMaps(s.AnyOf)
	}
	if len(s.OneOf) > 0 {
		m["oneOf"] = schemasToMaps(s.OneOf)
	}
	if len(s.AllOf) > 0 {
		m["allOf"] = schemasToMaps(s.AllOf)
	}
	if s.Not != nil {
		m["not"] = s.Not.toMap()
	}
	if s.Ref != "" {
		m["$ref"] = s.Ref
	}
	if len(s.Defs) > 0 {
		defs := map[string]any{}
		for k, v := range s.Defs {
			defs[k] = v.toMap()
		}
		m["$defs"] = defs
	}
	return m
}

// restrictToRootKeys drops every key from m not in rootAllowedKeys or extra,
// per normalisation rule 2.
func restrictToRootKeys(m map[string]any, extra []string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if rootAllowedKeys[k] {
			out[k] = v
		}
	}
	for _, k := range extra {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

func schemasToMaps(in []*Schema) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s.toMap()
	}
	return out
}

// FromMap parses a wire-level JSON Schema document (e.g. user-supplied at
// runtime) into a *Schema, for the validator and for normalising schemas
// that did not originate from Compile.
func FromMap(m map[string]any) (*Schema, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if d, ok := m["default"]; ok {
		s.HasDefault = true
		s.Default = d
	}
	if c, ok := m["const"]; ok {
		s.HasConst = true
		s.Const = c
	}
	if props, ok := m["properties"].(map[string]any); ok {
		for k := range props {
			s.PropertyOrder = append(s.PropertyOrder, k)
		}
	}
	return &s, nil
}
