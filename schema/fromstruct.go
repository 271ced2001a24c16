package schema

import (
	"reflect"
	"strings"
	"time"
)

// FromStruct derives a KindRecord Target from a Go struct type's exported
// fields via reflection. The wire name comes from the field's `json` tag
// (falling back to the field name); a sibling `desc` tag supplies the
// per-field description, and `default` supplies a literal default value
// (string-typed; callers needing a non-string default should build the
// Target by hand instead).
//
// FromStruct does not support recursive struct types: a self-referential
// field panics rather than silently infinite-looping.
func FromStruct(t reflect.Type, desc string) Target {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return fromGoType(t, desc, map[reflect.Type]bool{})
}

func fromGoType(t reflect.Type, desc string, visiting map[reflect.Type]bool) Target {
	if t == reflect.TypeOf(time.Time{}) {
		return DateTime(desc)
	}

	switch t.Kind() {
	case reflect.Bool:
		return Bool(desc)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(desc)
	case reflect.Float32, reflect.Float64:
		return Float(desc)
	case reflect.String:
		return String(desc)
	case reflect.Slice, reflect.Array:
		elem := fromGoType(t.Elem(), "", visiting)
		return List(desc, elem)
	case reflect.Ptr:
		return fromGoType(t.Elem(), desc, visiting)
	case reflect.Struct:
		if visiting[t] {
			panic("schema: FromStruct does not support recursive struct types: " + t.String())
		}
		visiting[t] = true
		defer delete(visiting, t)

		target := Target{Kind: KindRecord, Description: desc, GoType: t}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, omitted := jsonFieldName(f)
			if omitted {
				continue
			}
			fieldDesc := f.Tag.Get("desc")
			fieldTarget := fromGoType(f.Type, "", visiting)
			field := Field{Name: name, Target: fieldTarget, Description: fieldDesc}
			if def, ok := f.Tag.Lookup("default"); ok {
				field.Default = def
				field.HasDefault = true
			}
			target.Fields = append(target.Fields, field)
		}
		return target
	default:
		return String(desc)
	}
}

func jsonFieldName(f reflect.StructField) (name string, omitted bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		return parts[0], false
	}
	return f.Name, false
}
