package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fields is the schemaless content of a document. After a write, values are
// normalized to their JSON forms: string, float64, bool, nil, []any and map[string]any.
// Timestamps are stored as RFC3339 strings in UTC.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp is a field value the store replaces with its own clock at write time.
var ServerTimestamp = serverTimestamp{}

// Document is a stored record addressed by an opaque id within a collection.
type Document struct {
	ID         string
	Collection string
	Fields     Fields
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Revision   uint64
}

// NewID returns a fresh opaque document id.
func NewID() string {
	return uuid.New().String()
}

// Decode unmarshals the document fields into v. The document id is exposed
// under the "id" key so entity structs can carry it.
func (d Document) Decode(v any) error {
	m := make(map[string]any, len(d.Fields)+1)
	for k, val := range d.Fields {
		m[k] = val
	}
	m["id"] = d.ID
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", d.Collection, d.ID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// Clone returns a deep copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the string value of a field, or "".
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Bool returns the boolean value of a field, or false.
func (f Fields) Bool(name string) bool {
	b, _ := f[name].(bool)
	return b
}

// Strings returns a field holding a list of strings. Non-string elements are skipped.
func (f Fields) Strings(name string) []string {
	raw, ok := f[name].([]any)
	if !ok {
		if ss, ok := f[name].([]string); ok {
			return append([]string(nil), ss...)
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Normalize resolves ServerTimestamp sentinels against now and converts every
// value to its JSON form so that all backends return identical field types.
func Normalize(f Fields, now time.Time) (Fields, error) {
	resolved := make(map[string]any, len(f))
	for k, v := range f {
		resolved[k] = resolveTimestamps(v, now)
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return DecodeFields(data)
}

// Merge applies a top-level patch on top of base and returns the result.
func Merge(base, patch Fields) Fields {
	out := base.Clone()
	if out == nil {
		out = Fields{}
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

// EncodeFields serializes fields for persistence.
func EncodeFields(f Fields) ([]byte, error) {
	if f == nil {
		f = Fields{}
	}
	return json.Marshal(f)
}

// DecodeFields parses persisted fields.
func DecodeFields(data []byte) (Fields, error) {
	f := Fields{}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return f, nil
}

// FormatTime renders a timestamp the way stores persist it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a persisted timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func resolveTimestamps(v any, now time.Time) any {
	switch val := v.(type) {
	case serverTimestamp:
		return FormatTime(now)
	case *serverTimestamp:
		return FormatTime(now)
	case time.Time:
		return FormatTime(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = resolveTimestamps(inner, now)
		}
		return out
	case Fields:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = resolveTimestamps(inner, now)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = resolveTimestamps(inner, now)
		}
		return out
	default:
		return v
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Fields:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
