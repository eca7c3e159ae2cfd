package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Row is one result row keyed by column name. Values are whatever the driver
// produced, so accessors accept both string and []byte for textual columns.
type Row map[string]any

// String returns the column as a string, or "" when NULL or missing.
func (r Row) String(key string) string {
	if s := r.StringPtr(key); s != nil {
		return *s
	}
	return ""
}

// StringPtr returns nil for NULL or missing columns.
func (r Row) StringPtr(key string) *string {
	switch v := r[key].(type) {
	case nil:
		return nil
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	case time.Time:
		s := v.Format(time.RFC3339Nano)
		return &s
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

// JSON returns a JSON-typed column as raw JSON, nil for NULL.
// Non-textual values are marshalled so numeric columns still round-trip.
func (r Row) JSON(key string) json.RawMessage {
	switch v := r[key].(type) {
	case nil:
		return nil
	case []byte:
		return json.RawMessage(v)
	case string:
		return json.RawMessage(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return b
	}
}

// Float64Ptr parses numeric columns; lib/pq returns NUMERIC as text.
func (r Row) Float64Ptr(key string) *float64 {
	switch v := r[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	case []byte, string:
		f, err := strconv.ParseFloat(r.String(key), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// Time returns the zero time for NULL or unparsable values.
func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case []byte, string:
		t, err := time.Parse(time.RFC3339Nano, r.String(key))
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
