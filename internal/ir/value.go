package ir

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the values a row cell can hold.
// Only Null, Text, Int, Float and Date implement it.
//
// Values extracted from a document are always Text. Transform steps may turn
// them into Int, Float, Date or Null.
type Value interface {
	isValue() // Sealed - only these types implement it

	// String renders the value as plain text. Null renders as "".
	String() string
}

// Null is the absent value.
type Null struct{}

func (Null) isValue() {}
func (Null) String() string { return "" }
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Text is a string value.
type Text string

func (Text) isValue() {}
func (t Text) String() string { return string(t) }

// Int is an integer value produced by to_number.
type Int int64

func (Int) isValue() {}
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a non-integral number produced by to_number.
type Float float64

func (Float) isValue() {}
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}

// Date is an ISO-8601 calendar date (YYYY-MM-DD) produced by parse_date.
type Date string

func (Date) isValue() {}
func (d Date) String() string { return string(d) }

// IsAbsent reports whether v is nil or Null.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// IsEmpty reports whether v carries no content: absent, or text that is
// blank after trimming whitespace.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case Text:
		return strings.TrimSpace(string(val)) == ""
	case Date:
		return strings.TrimSpace(string(val)) == ""
	default:
		return false
	}
}

// IsNumeric reports whether v is an Int or a Float.
func IsNumeric(v Value) bool {
	switch v.(type) {
	case Int, Float:
		return true
	default:
		return false
	}
}

// ValueOf converts a plain Go value into a Value.
// Unsupported types render through their JSON form as Text.
func ValueOf(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case string:
		return Text(val)
	case int:
		return Int(val)
	case int64:
		return Int(val)
	case float64:
		return Float(val)
	case bool:
		return Text(strconv.FormatBool(val))
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return Null{}
		}
		return Text(data)
	}
}

// sortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
