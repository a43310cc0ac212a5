package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query to documents whose field satisfies Op against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by a field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Limit      int
}

// Collection starts a query over every document in a collection.
func Collection(name string) Query {
	return Query{Collection: name}
}

// Where returns a copy of q with an additional filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy returns a copy of q with an additional sort key.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Desc: desc})
	return q
}

// WithLimit returns a copy of q returning at most n documents (0 means no limit).
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate reports whether the query can be evaluated.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("%w: missing collection", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	for _, f := range q.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: filter without field", ErrInvalidQuery)
		}
		switch f.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpArrayContains:
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
	}
	for _, o := range q.Orders {
		if strings.TrimSpace(o.Field) == "" {
			return fmt.Errorf("%w: order without field", ErrInvalidQuery)
		}
	}
	return nil
}

// Apply evaluates the filters, ordering and limit of q over docs, which must
// all belong to q.Collection. Ties are broken by creation time (newest first)
// and then id, so results are deterministic across backends.
func Apply(q Query, docs []Document) []Document {
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		f.Value = normalizeValue(f.Value)
		filters[i] = f
	}

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matches(d, filters) {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			c := compareField(out[i].Fields[o.Field], out[j].Fields[o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matches(d Document, filters []Filter) bool {
	for _, f := range filters {
		v, present := d.Fields[f.Field]
		switch f.Op {
		case OpEqual:
			if !present || !equalValues(v, f.Value) {
				return false
			}
		case OpNotEqual:
			if present && equalValues(v, f.Value) {
				return false
			}
		case OpArrayContains:
			arr, ok := v.([]any)
			if !ok {
				return false
			}
			found := false
			for _, el := range arr {
				if equalValues(el, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			c, ok := compareValues(v, f.Value)
			if !present || !ok {
				return false
			}
			switch f.Op {
			case OpLess:
				if c >= 0 {
					return false
				}
			case OpLessEqual:
				if c > 0 {
					return false
				}
			case OpGreater:
				if c <= 0 {
					return false
				}
			case OpGreaterEqual:
				if c < 0 {
					return false
				}
			}
		}
	}
	return true
}

func equalValues(a, b any) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}

// compareValues compares two normalized values of the same kind. RFC3339
// strings compare as instants. ok is false when the kinds differ.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case nil:
		return 0, b == nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if at, err := ParseTime(av); err == nil {
			if bt, err := ParseTime(bv); err == nil {
				return at.Compare(bt), true
			}
		}
		return strings.Compare(av, bv), true
	default:
		return 0, false
	}
}

// compareField orders values of mixed kinds: missing/nil first, then bools,
// numbers, strings, and anything else last.
func compareField(a, b any) int {
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return kindRank(a) - kindRank(b)
}

func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil, bool, float64, string:
		return v
	case time.Time:
		return FormatTime(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
