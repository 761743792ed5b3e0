package kv

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueType is the persisted discriminant of a Value.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeDate    ValueType = "date"
	TypeArray   ValueType = "array"
	TypeObject  ValueType = "object"
)

// Value is a closed sum type over the shapes an indexed value can take.
// The only implementations are String, Number, Boolean, Date, List and Object.
type Value interface {
	Type() ValueType
	// Interface returns the plain Go representation (string, float64, bool,
	// time.Time, []any, map[string]any).
	Interface() any
	isValue()
}

type (
	String  string
	Number  float64
	Boolean bool
	Date    time.Time
	List    []Value
	Object  map[string]Value
)

func (String) Type() ValueType  { return TypeString }
func (Number) Type() ValueType  { return TypeNumber }
func (Boolean) Type() ValueType { return TypeBoolean }
func (Date) Type() ValueType    { return TypeDate }
func (List) Type() ValueType    { return TypeArray }
func (Object) Type() ValueType  { return TypeObject }

func (String) isValue()  {}
func (Number) isValue()  {}
func (Boolean) isValue() {}
func (Date) isValue()    {}
func (List) isValue()    {}
func (Object) isValue()  {}

func (v String) Interface() any  { return string(v) }
func (v Number) Interface() any  { return float64(v) }
func (v Boolean) Interface() any { return bool(v) }
func (v Date) Interface() any    { return time.Time(v) }

func (v List) Interface() any {
	out := make([]any, len(v))
	for i, item := range v {
		out[i] = item.Interface()
	}
	return out
}

func (v Object) Interface() any {
	out := make(map[string]any, len(v))
	for k, item := range v {
		out[k] = item.Interface()
	}
	return out
}

// MarshalJSON keeps dates in RFC 3339 form.
func (v Date) MarshalJSON() ([]byte, error) {
	return time.Time(v).UTC().MarshalJSON()
}

// Infer maps a decoded value onto the closed Value set. Unknown shapes fall back
// to their string form. Infer returns nil for nil input.
func Infer(v any) Value {
	switch x := v.(type) {
	case nil:
		return nil
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Boolean(x)
	case float64:
		return Number(x)
	case float32:
		return Number(x)
	case int:
		return Number(x)
	case int32:
		return Number(x)
	case int64:
		return Number(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return String(x.String())
	case time.Time:
		return Date(x)
	case []any:
		list := make(List, 0, len(x))
		for _, item := range x {
			if iv := Infer(item); iv != nil {
				list = append(list, iv)
			}
		}
		return list
	case []string:
		list := make(List, 0, len(x))
		for _, item := range x {
			list = append(list, String(item))
		}
		return list
	case map[string]any:
		obj := make(Object, len(x))
		for k, item := range x {
			if iv := Infer(item); iv != nil {
				obj[k] = iv
			}
		}
		return obj
	default:
		return String(fmt.Sprint(x))
	}
}

// Decode rebuilds a Value from its persisted JSON and discriminant.
func Decode(t ValueType, raw []byte) (Value, error) {
	switch t {
	case TypeDate:
		var ts time.Time
		if err := json.Unmarshal(raw, &ts); err != nil {
			return nil, fmt.Errorf("decode date value: %w", err)
		}
		return Date(ts), nil
	case TypeString, "":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode string value: %w", err)
		}
		return String(s), nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode %s value: %w", t, err)
	}
	v := Infer(decoded)
	if v == nil || v.Type() != t {
		return nil, fmt.Errorf("decode %s value: got %T", t, decoded)
	}
	return v, nil
}

// Canonical returns a stable string identity for a value, used to compare
// values when aggregating.
func Canonical(v Value) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v.Interface())
	}
	return string(b)
}

// Display renders a raw pair value for human-readable answers.
func Display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case Value:
		return Display(x.Interface())
	case float64:
		return fmt.Sprintf("%g", x)
	case time.Time:
		return x.Format("2006-01-02")
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
