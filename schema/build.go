package schema

import (
	"fmt"
	"reflect"
)

// build converts a Target into a raw (un-normalised) *Schema. No $refs are
// introduced here: Compile's input is always a fully-expanded Target, so
// $ref inlining during normalisation only has work to do on schemas parsed
// with FromMap.
func build(t Target) (*Schema, error) {
	switch t.Kind {
	case KindBool:
		return &Schema{Type: "boolean", Description: t.Description}, nil
	case KindInt:
		return &Schema{Type: "integer", Description: t.Description}, nil
	case KindFloat:
		return &Schema{Type: "number", Description: t.Description}, nil
	case KindString:
		return &Schema{Type: "string", Description: t.Description}, nil
	case KindDate:
		return &Schema{Type: "string", Description: joinDesc(t.Description, "ISO 8601 date (YYYY-MM-DD)")}, nil
	case KindTime:
		return &Schema{Type: "string", Description: joinDesc(t.Description, "ISO 8601 time (HH:MM:SS)")}, nil
	case KindDateTime:
		return &Schema{Type: "string", Description: joinDesc(t.Description, "ISO 8601 date-time")}, nil
	case KindEnum:
		return buildEnum(t)
	case KindList:
		return buildList(t)
	case KindRecord:
		return buildRecord(t)
	default:
		return nil, fmt.Errorf("schema: unknown target kind %v", t.Kind)
	}
}

func joinDesc(a, b string) string {
	if a == "" {
		return b
	}
	return a + " (" + b + ")"
}

// buildEnum requires that every member share one JSON primitive type; an
// enum mixing strings and numbers, for example, fails compilation rather
// than producing an ambiguous schema.
func buildEnum(t Target) (*Schema, error) {
	if len(t.EnumValues) == 0 {
		return nil, fmt.Errorf("schema: enum target has no values")
	}
	jsonType, err := jsonPrimitiveType(t.EnumValues[0])
	if err != nil {
		return nil, err
	}
	for _, v := range t.EnumValues[1:] {
		vt, err := jsonPrimitiveType(v)
		if err != nil {
			return nil, err
		}
		if vt != jsonType {
			// Integral and fractional numbers are one JSON type: "number".
			if (vt == "integer" || vt == "number") && (jsonType == "integer" || jsonType == "number") {
				jsonType = "number"
				continue
			}
			return nil, fmt.Errorf("schema: enum target has mixed member types (%s and %s)", jsonType, vt)
		}
	}
	return &Schema{Type: jsonType, Enum: t.EnumValues, Description: t.Description}, nil
}

// jsonPrimitiveType classifies v's JSON type, accepting both Go-native
// values (string, bool, int*, float*) and json.Unmarshal's float64/bool/
// string decoding, so enum members may originate from either Target
// literals or a round-tripped JSON document.
func jsonPrimitiveType(v any) (string, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return "string", nil
	case reflect.Bool:
		return "boolean", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer", nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == float64(int64(f)) {
			return "integer", nil
		}
		return "number", nil
	default:
		return "", fmt.Errorf("schema: enum member %v is not a JSON primitive", v)
	}
}

func buildList(t Target) (*Schema, error) {
	if t.Elem == nil {
		return nil, fmt.Errorf("schema: list target has no element type")
	}
	items, err := build(*t.Elem)
	if err != nil {
		return nil, err
	}
	return &Schema{Type: "array", Items: items, Description: t.Description}, nil
}

func buildRecord(t Target) (*Schema, error) {
	s := &Schema{Type: "object", Description: t.Description, Properties: map[string]*Schema{}}
	for _, f := range t.Fields {
		fs, err := build(f.Target)
		if err != nil {
			return nil, fmt.Errorf("schema: field %q: %w", f.Name, err)
		}
		if f.Description != "" {
			fs.Description = f.Description
		}
		if f.HasDefault {
			fs.HasDefault = true
			fs.Default = f.Default
		}
		s.Properties[f.Name] = fs
		s.PropertyOrder = append(s.PropertyOrder, f.Name)
		if !f.HasDefault {
			s.Required = append(s.Required, f.Name)
		}
	}
	s.AdditionalProperties = false
	return s, nil
}
