package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is an event attribute: a string, an exact decimal number, a bool or a list of values.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	b    bool
	list []Value
}

// String returns a string value
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric value
func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

// Float returns a numeric value from a float
func Float(f float64) Value {
	return Number(decimal.NewFromFloat(f))
}

// Int returns a numeric value from an integer
func Int(i int64) Value {
	return Number(decimal.NewFromInt(i))
}

// Bool returns a boolean value
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// List returns a list value
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Str returns the string payload when the value is a string
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the numeric payload when the value is a number
func (v Value) Num() (decimal.Decimal, bool) {
	return v.num, v.kind == KindNumber
}

// Boolean returns the bool payload when the value is a bool
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Items returns a copy of the list elements
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return append([]Value(nil), v.list...), true
}

// FromAny converts loosely typed producer data into a Value.
// Unsupported types are rendered with fmt and kept as strings.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case decimal.Decimal:
		return Number(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return String(x.String())
		}
		return Number(d)
	case float64:
		return Float(x)
	case float32:
		return Number(decimal.NewFromFloat32(x))
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return fromUint(x)
	case []Value:
		return List(x...)
	case []any:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			items = append(items, FromAny(item))
		}
		return Value{kind: KindList, list: items}
	case []string:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			items = append(items, String(item))
		}
		return Value{kind: KindList, list: items}
	case []float64:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			items = append(items, Float(item))
		}
		return Value{kind: KindList, list: items}
	case []int:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			items = append(items, Int(int64(item)))
		}
		return Value{kind: KindList, list: items}
	case fmt.Stringer:
		return String(x.String())
	default:
		return String(fmt.Sprint(x))
	}
}

func fromUint(u uint64) Value {
	d, err := decimal.NewFromString(strconv.FormatUint(u, 10))
	if err != nil {
		return String(strconv.FormatUint(u, 10))
	}
	return Number(d)
}

// Raw returns a plain Go value suitable for templates and JSON encoding.
// Numbers are returned as decimal.Decimal so they print without float noise.
func (v Value) Raw() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Raw())
		}
		return out
	default:
		return nil
	}
}

// String renders the value for humans
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			parts = append(parts, item.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

// Equal reports deep equality. Numbers compare by value (1 == 1.0); no cross-kind coercion.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num.Equal(o.num)
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Compare orders two values of the same orderable kind (numbers, strings).
// ok is false when the pair cannot be ordered.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.kind != o.kind {
		return 0, false
	}
	switch v.kind {
	case KindNumber:
		return v.num.Cmp(o.num), true
	case KindString:
		return strings.Compare(v.str, o.str), true
	default:
		return 0, false
	}
}

// Contains reports membership of item in v: element of a list or substring of a string
func (v Value) Contains(item Value) bool {
	switch v.kind {
	case KindList:
		for _, elem := range v.list {
			if elem.Equal(item) {
				return true
			}
		}
		return false
	case KindString:
		s, ok := item.Str()
		return ok && strings.Contains(v.str, s)
	default:
		return false
	}
}

// MarshalJSON encodes the value as its natural JSON form
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindList:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.Raw())
	}
}

// UnmarshalJSON decodes any JSON scalar or array; numbers keep full precision
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if _, isObject := raw.(map[string]any); isObject {
		return fmt.Errorf("attribute value cannot be an object")
	}
	*v = FromAny(raw)
	return nil
}

// Attributes is the typed attribute map of an event
type Attributes map[string]Value

// AttributesFromMap converts producer data into typed attributes
func AttributesFromMap(m map[string]any) Attributes {
	out := make(Attributes, len(m))
	for k, raw := range m {
		out[k] = FromAny(raw)
	}
	return out
}

// Get returns the attribute and whether it is present
func (a Attributes) Get(field string) (Value, bool) {
	v, ok := a[field]
	return v, ok
}

// Clone returns a shallow copy safe to extend
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a)+4)
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Raw converts the map into plain Go values for templating
func (a Attributes) Raw() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v.Raw()
	}
	return out
}

// String renders attributes deterministically, sorted by key
func (a Attributes) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(a[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}
