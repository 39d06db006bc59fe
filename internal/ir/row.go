package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cell is one named value of a Row.
type Cell struct {
	Name  string
	Value Value
}

// Row is one extracted record: a resource name and its fields in order.
// Rows are owned by the caller of the extraction that produced them.
type Row struct {
	Resource string
	Cells    []Cell
}

// NewRow builds a row from parallel name and value slices.
func NewRow(resource string, names []string, values []Value) Row {
	cells := make([]Cell, len(names))
	for i, name := range names {
		var v Value = Null{}
		if i < len(values) && values[i] != nil {
			v = values[i]
		}
		cells[i] = Cell{Name: name, Value: v}
	}
	return Row{Resource: resource, Cells: cells}
}

// Get returns the value of the named field, or Null when the row has no
// such field.
func (r Row) Get(name string) Value {
	for _, c := range r.Cells {
		if c.Name == name {
			return c.Value
		}
	}
	return Null{}
}

// Has reports whether the row declares the named field.
func (r Row) Has(name string) bool {
	for _, c := range r.Cells {
		if c.Name == name {
			return true
		}
	}
	return false
}

// IsEmpty reports whether every cell of the row is empty.
func (r Row) IsEmpty() bool {
	for _, c := range r.Cells {
		if !IsEmpty(c.Value) {
			return false
		}
	}
	return true
}

// Map returns the row as a field-to-value map.
func (r Row) Map() map[string]Value {
	m := make(map[string]Value, len(r.Cells))
	for _, c := range r.Cells {
		m[c.Name] = c.Value
	}
	return m
}

// Key returns the canonical identity of the row: all field/value pairs
// sorted by field name, rendered as canonical JSON. Two rows with equal keys
// are duplicates regardless of field order.
func (r Row) Key() string {
	obj := make(map[string]any, len(r.Cells))
	for _, c := range r.Cells {
		obj[c.Name] = c.Value
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		// Row values are closed over canonical-safe types.
		panic(fmt.Sprintf("row key: %v", err))
	}
	return string(data)
}

// MarshalJSON renders the row as a JSON object in field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var v Value = c.Value
		if v == nil {
			v = Null{}
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", c.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
