// Package schema compiles a user-defined target-type description into a
// normalised JSON Schema plus the inverse instantiation plan.
package schema

import "reflect"

// Kind enumerates the target-type kinds the compiler accepts. Targets are
// exposed as a tagged variant plus an accompanying field/enum descriptor
// list, rather than through runtime class introspection.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindDate
	KindTime
	KindDateTime
	KindEnum
	KindList
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindDateTime:
		return "datetime"
	case KindEnum:
		return "enum"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Target is a user-supplied type description: a primitive, an enumeration,
// a list, or a record. Any target may carry a Description.
type Target struct {
	Kind        Kind
	Description string

	// EnumValues holds the members of a KindEnum target. All members must
	// share one JSON primitive type (string, number, or bool; integral and
	// fractional numbers count as one type) or compilation fails with a
	// *CompileError.
	EnumValues []any

	// Elem is the element type of a KindList target.
	Elem *Target

	// Fields describes a KindRecord target's fields, in declaration order.
	Fields []Field

	// GoType, when set (by FromStruct), is the concrete Go struct type a
	// KindRecord target instantiates into via reflection. When nil,
	// Instantiate returns a map[string]any for records instead.
	GoType reflect.Type
}

// Field is one field of a KindRecord target.
type Field struct {
	Name        string
	Target      Target
	Description string
	Default     any
	HasDefault  bool
}

// Bool, Int, Float, String, Date, Time, DateTime construct primitive targets.
func Bool(desc string) Target     { return Target{Kind: KindBool, Description: desc} }
func Int(desc string) Target      { return Target{Kind: KindInt, Description: desc} }
func Float(desc string) Target    { return Target{Kind: KindFloat, Description: desc} }
func String(desc string) Target   { return Target{Kind: KindString, Description: desc} }
func Date(desc string) Target     { return Target{Kind: KindDate, Description: desc} }
func Time(desc string) Target     { return Target{Kind: KindTime, Description: desc} }
func DateTime(desc string) Target { return Target{Kind: KindDateTime, Description: desc} }

// Enum constructs an enumeration target from same-typed primitive values.
func Enum(desc string, values ...any) Target {
	return Target{Kind: KindEnum, Description: desc, EnumValues: values}
}

// List constructs a list target over the given element type.
func List(desc string, elem Target) Target {
	return Target{Kind: KindList, Description: desc, Elem: &elem}
}

// Record constructs a record target from its fields.
func Record(desc string, fields ...Field) Target {
	return Target{Kind: KindRecord, Description: desc, Fields: fields}
}

// Plan is the instantiation plan captured during schema compilation: the
// final target type and whether the compiler synthesised a wrapping object
// with a single known key.
type Plan struct {
	Target  Target
	Wrapped bool
	WrapKey string
}
