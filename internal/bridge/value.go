package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
)

// Value is a sealed interface representing values that cross the bridge.
// Only Null, Bool, Int, Float, String, Bytes, List, Map and Ref implement it.
type Value interface {
	bridgeValue() // Sealed - only these types implement it
}

// Null represents a Java null.
type Null struct{}

func (Null) bridgeValue() {}

// Bool represents a Java boolean.
type Bool bool

func (Bool) bridgeValue() {}

// Int represents any Java integral value (byte, short, int, long).
type Int int64

func (Int) bridgeValue() {}

// Float represents a Java float or double.
type Float float64

func (Float) bridgeValue() {}

// String represents a java.lang.String.
type String string

func (String) bridgeValue() {}

// Bytes represents a Java byte[].
type Bytes []byte

func (Bytes) bridgeValue() {}

// List represents a Java array or java.util.List, marshalled element-wise.
type List []Value

func (List) bridgeValue() {}

// Map represents a java.util.Map with string keys.
type Map map[string]Value

func (Map) bridgeValue() {}

// Ref is a reference to an object living in the JVM.
//
// The bridge server keeps one ID per live Java object, so two refs with the
// same ID denote the same remote instance.
type Ref struct {
	ID    string
	Class string
}

func (Ref) bridgeValue() {}

// Referencer is implemented by local wrappers of remote objects.
// ValueOf unwraps a Referencer into its Ref.
type Referencer interface {
	Ref() Ref
}

// ValueOf converts a Go value into a bridge Value.
//
// Supported inputs: nil, Value, Referencer, bool, string, []byte, all
// integer kinds, float32/float64, []any and map[string]any (recursively).
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case Referencer:
		if rv := reflect.ValueOf(val); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null{}, nil
		}
		return val.Ref(), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > 1<<63-1 {
			return nil, fmt.Errorf("bridge: uint value %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("bridge: uint64 value %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			ev, err := ValueOf(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			ev, err := ValueOf(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = ev
		}
		return m, nil
	default:
		return nil, fmt.Errorf("bridge: unsupported value type %T", v)
	}
}

// ValuesOf converts each argument with ValueOf.
func ValuesOf(args ...any) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := ValueOf(a)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// AsString returns the string held by v.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// AsBool returns the boolean held by v.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}

// AsInt returns the integer held by v.
func AsInt(v Value) (int64, bool) {
	n, ok := v.(Int)
	return int64(n), ok
}

// AsRef returns the object reference held by v.
func AsRef(v Value) (Ref, bool) {
	r, ok := v.(Ref)
	return r, ok
}

// Wire type tags.
const (
	typeNull   = "null"
	typeBool   = "bool"
	typeInt    = "int"
	typeFloat  = "float"
	typeString = "string"
	typeBytes  = "bytes"
	typeList   = "list"
	typeMap    = "map"
	typeRef    = "ref"
)

// WireValue is the tagged JSON form of a Value.
type WireValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Ref   string          `json:"ref,omitempty"`
	Class string          `json:"class,omitempty"`
}

// Encode converts a Value into its wire form.
func Encode(v Value) (WireValue, error) {
	switch val := v.(type) {
	case nil, Null:
		return WireValue{Type: typeNull}, nil
	case Bool:
		return encodeScalar(typeBool, bool(val))
	case Int:
		return encodeScalar(typeInt, int64(val))
	case Float:
		return encodeScalar(typeFloat, float64(val))
	case String:
		return encodeScalar(typeString, string(val))
	case Bytes:
		return encodeScalar(typeBytes, base64.StdEncoding.EncodeToString(val))
	case List:
		elems := make([]WireValue, len(val))
		for i, elem := range val {
			w, err := Encode(elem)
			if err != nil {
				return WireValue{}, fmt.Errorf("list[%d]: %w", i, err)
			}
			elems[i] = w
		}
		return encodeScalar(typeList, elems)
	case Map:
		entries := make(map[string]WireValue, len(val))
		for k, elem := range val {
			w, err := Encode(elem)
			if err != nil {
				return WireValue{}, fmt.Errorf("map[%q]: %w", k, err)
			}
			entries[k] = w
		}
		return encodeScalar(typeMap, entries)
	case Ref:
		if val.ID == "" {
			return WireValue{}, fmt.Errorf("bridge: ref without id")
		}
		return WireValue{Type: typeRef, Ref: val.ID, Class: val.Class}, nil
	default:
		return WireValue{}, fmt.Errorf("bridge: cannot encode %T", v)
	}
}

func encodeScalar(typ string, v any) (WireValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return WireValue{}, fmt.Errorf("encode %s: %w", typ, err)
	}
	return WireValue{Type: typ, Value: raw}, nil
}

// Decode converts a wire value back into a Value.
func Decode(w WireValue) (Value, error) {
	switch w.Type {
	case typeNull, "":
		return Null{}, nil
	case typeBool:
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return nil, fmt.Errorf("decode bool: %w", err)
		}
		return Bool(b), nil
	case typeInt:
		var n int64
		if err := json.Unmarshal(w.Value, &n); err != nil {
			return nil, fmt.Errorf("decode int: %w", err)
		}
		return Int(n), nil
	case typeFloat:
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return nil, fmt.Errorf("decode float: %w", err)
		}
		return Float(f), nil
	case typeString:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("decode string: %w", err)
		}
		return String(s), nil
	case typeBytes:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("decode bytes: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode bytes: %w", err)
		}
		return Bytes(b), nil
	case typeList:
		var elems []WireValue
		if err := json.Unmarshal(w.Value, &elems); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		list := make(List, len(elems))
		for i, elem := range elems {
			v, err := Decode(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = v
		}
		return list, nil
	case typeMap:
		var entries map[string]WireValue
		if err := json.Unmarshal(w.Value, &entries); err != nil {
			return nil, fmt.Errorf("decode map: %w", err)
		}
		m := make(Map, len(entries))
		for k, elem := range entries {
			v, err := Decode(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = v
		}
		return m, nil
	case typeRef:
		if w.Ref == "" {
			return nil, fmt.Errorf("bridge: ref without id")
		}
		return Ref{ID: w.Ref, Class: w.Class}, nil
	default:
		return nil, fmt.Errorf("bridge: unknown value type %q", w.Type)
	}
}

// EncodeAll encodes a slice of values.
func EncodeAll(vals []Value) ([]WireValue, error) {
	out := make([]WireValue, len(vals))
	for i, v := range vals {
		w, err := Encode(v)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

// DecodeAll decodes a slice of wire values.
func DecodeAll(ws []WireValue) ([]Value, error) {
	out := make([]Value, len(ws))
	for i, w := range ws {
		v, err := Decode(w)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
