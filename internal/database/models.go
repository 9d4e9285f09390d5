package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// QueryResult holds the result of a query-module invocation.
type QueryResult struct {
	// Query is the final statement text with arguments interpolated as literals.
	Query         string        `json:"query"`
	RowCount      int64         `json:"rowcount"`
	StatusMessage string        `json:"statusmessage"`
	QueryResult   Rows          `json:"query_result"`
	Changed       bool          `json:"changed"`
	Duration      time.Duration `json:"-"`
}

// Row is one result row. Values are stored in column order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as an unordered column mapping.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		if i < len(r.Values) {
			m[c] = r.Values[i]
		}
	}
	return m
}

// MarshalJSON preserves column order unlike map marshaling.
func (r Row) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping its key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}
	r.Columns = nil
	r.Values = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row %q: %w", key, err)
		}
		r.Columns = append(r.Columns, key)
		r.Values = append(r.Values, v)
	}
	_, err = dec.Token()
	return err
}

// Rows is the materialized result set of the final statement.
//
// A statement that produced no result set (DDL, UPDATE without RETURNING)
// marshals to the empty mapping {}. A statement that produced one marshals
// to an array with one object per row, which may be empty.
type Rows struct {
	Columns      []string
	Items        []Row
	HasResultSet bool
}

// Len returns the number of materialized rows.
func (r Rows) Len() int {
	return len(r.Items)
}

// MarshalJSON implements json.Marshaler.
func (r Rows) MarshalJSON() ([]byte, error) {
	if !r.HasResultSet {
		return []byte("{}"), nil
	}
	items := r.Items
	if items == nil {
		items = []Row{}
	}
	return json.Marshal(items)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rows) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '{' || bytes.Equal(data, []byte("null")) {
		*r = Rows{}
		return nil
	}
	var items []Row
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*r = Rows{Items: items, HasResultSet: true}
	if len(items) > 0 {
		r.Columns = items[0].Columns
	}
	return nil
}
