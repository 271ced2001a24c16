package schema

import (
	"fmt"
	"reflect"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = time.RFC3339
)

// Instantiate reverses a decoded JSON value back into the shape Plan
// describes: it unwraps the synthetic root key when Plan.Wrapped, then
// recursively coerces the value into Plan.Target's native Go
// representation. Coercion failures surface as *ValueError.
func Instantiate(plan Plan, decoded any) (any, error) {
	value := decoded
	if plan.Wrapped {
		m, ok := decoded.(map[string]any)
		if !ok {
			return nil, NewValueError(fmt.Sprintf("expected wrapped object, got %T", decoded), nil)
		}
		v, ok := m[plan.WrapKey]
		if !ok {
			return nil, NewValueError(fmt.Sprintf("wrapped object missing key %q", plan.WrapKey), nil)
		}
		value = v
	}
	return instantiate(plan.Target, value)
}

func instantiate(t Target, value any) (any, error) {
	switch t.Kind {
	case KindBool:
		return coerceBool(value)
	case KindInt:
		return coerceInt(value)
	case KindFloat:
		return coerceFloat(value)
	case KindString:
		return coerceString(value)
	case KindDate:
		return coerceTime(value, dateLayout)
	case KindTime:
		return coerceTime(value, timeLayout)
	case KindDateTime:
		return coerceTime(value, dateTimeLayout)
	case KindEnum:
		return coerceEnum(t, value)
	case KindList:
		return instantiateList(t, value)
	case KindRecord:
		return instantiateRecord(t, value)
	default:
		return nil, NewValueError(fmt.Sprintf("unknown target kind %v", t.Kind), nil)
	}
}

func coerceBool(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, NewValueError(fmt.Sprintf("expected bool, got %T", value), nil)
	}
	return b, nil
}

func coerceInt(value any) (any, error) {
	f, ok := value.(float64)
	if !ok {
		return nil, NewValueError(fmt.Sprintf("expected integer, got %T", value), nil)
	}
	if f != float64(int64(f)) {
		return nil, NewValueError(fmt.Sprintf("expected integer, got non-integral number %v", f), nil)
	}
	return int64(f), nil
}

func coerceFloat(value any) (any, error) {
	f, ok := value.(float64)
	if !ok {
		return nil, NewValueError(fmt.Sprintf("expected number, got %T", value), nil)
	}
	return f, nil
}

func coerceString(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, NewValueError(fmt.Sprintf("expected string, got %T", value), nil)
	}
	return s, nil
}

func coerceTime(value any, layout string) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, NewValueError(fmt.Sprintf("expected string, got %T", value), nil)
	}
	parsed, err := time.Parse(layout, s)
	if err != nil {
		return nil, NewValueError(fmt.Sprintf("invalid date/time value %q", s), err)
	}
	return parsed, nil
}

func coerceEnum(t Target, value any) (any, error) {
	for _, member := range t.EnumValues {
		if enumMemberEquals(member, value) {
			return value, nil
		}
	}
	return nil, NewValueError(fmt.Sprintf("value %v is not a member of the enum", value), nil)
}

func enumMemberEquals(member, value any) bool {
	mv := reflect.ValueOf(member)
	vv := reflect.ValueOf(value)
	if mv.Kind() == vv.Kind() {
		return member == value
	}
	// JSON decoding always yields float64 for numbers; Target literals may
	// carry native Go int types, so compare numerically when both are numeric.
	mf, mok := toFloat(mv)
	vf, vok := toFloat(vv)
	if mok && vok {
		return mf == vf
	}
	return false
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

func instantiateList(t Target, value any) (any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, NewValueError(fmt.Sprintf("expected array, got %T", value), nil)
	}
	if t.Elem == nil {
		return nil, NewValueError("list target has no element type", nil)
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := instantiate(*t.Elem, item)
		if err != nil {
			return nil, NewValueError(fmt.Sprintf("element %d", i), err)
		}
		out[i] = v
	}
	return out, nil
}

func instantiateRecord(t Target, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, NewValueError(fmt.Sprintf("expected object, got %T", value), nil)
	}

	fields := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		raw, present := m[f.Name]
		if !present {
			if f.HasDefault {
				fields[f.Name] = f.Default
				continue
			}
			return nil, NewValueError(fmt.Sprintf("missing required field %q", f.Name), nil)
		}
		v, err := instantiate(f.Target, raw)
		if err != nil {
			return nil, NewValueError(fmt.Sprintf("field %q", f.Name), err)
		}
		fields[f.Name] = v
	}

	if t.GoType == nil {
		return fields, nil
	}
	return populateStruct(t, fields)
}

// populateStruct builds a reflect.Value of t.GoType and fills it from the
// already-coerced field map, matching struct fields to wire names the same
// way FromStruct derived them.
func populateStruct(t Target, fields map[string]any) (any, error) {
	out := reflect.New(t.GoType).Elem()
	for i := 0; i < t.GoType.NumField(); i++ {
		sf := t.GoType.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitted := jsonFieldName(sf)
		if omitted {
			continue
		}
		value, ok := fields[name]
		if !ok {
			continue
		}
		fv := out.Field(i)
		if err := assignField(fv, value); err != nil {
			return nil, NewValueError(fmt.Sprintf("field %q", name), err)
		}
	}
	return out.Interface(), nil
}

func assignField(fv reflect.Value, value any) error {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)

	if fv.Kind() == reflect.Ptr {
		ptr := reflect.New(fv.Type().Elem())
		if err := assignField(ptr.Elem(), value); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}

	if fv.Kind() == reflect.Slice && rv.Kind() == reflect.Slice {
		out := reflect.MakeSlice(fv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := assignField(out.Index(i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		fv.Set(out)
		return nil
	}

	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %s into %s", rv.Type(), fv.Type())
}
