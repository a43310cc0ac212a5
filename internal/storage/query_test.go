package storage

import (
	"errors"
	"testing"
	"time"
)

func doc(id string, created time.Time, fields Fields) Document {
	return Document{ID: id, Collection: "todos", Fields: fields, CreatedAt: created}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApply(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		doc("a", t0, Fields{"name": "alpha", "n": 3.0, "done": false, "tags": []any{"x"}, "at": FormatTime(t0.Add(2 * time.Hour))}),
		doc("b", t0.Add(time.Minute), Fields{"name": "beta", "n": 1.0, "done": true, "tags": []any{"x", "y"}, "at": FormatTime(t0.Add(10 * time.Hour))}),
		doc("c", t0.Add(2*time.Minute), Fields{"name": "gamma", "n": 2.0, "done": false, "at": FormatTime(t0.Add(time.Hour))}),
		doc("d", t0.Add(3*time.Minute), Fields{"name": "delta"}),
	}

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"default order is newest first", Collection("todos"), []string{"d", "c", "b", "a"}},
		{"equality", Collection("todos").Where("done", OpEqual, false), []string{"c", "a"}},
		{"not equal includes missing", Collection("todos").Where("done", OpNotEqual, true), []string{"d", "c", "a"}},
		{"numeric range", Collection("todos").Where("n", OpGreater, 1).OrderBy("n", false), []string{"c", "a"}},
		{"int and float compare", Collection("todos").Where("n", OpEqual, 2), []string{"c"}},
		{"array contains", Collection("todos").Where("tags", OpArrayContains, "y"), []string{"b"}},
		{"timestamps compare as instants", Collection("todos").Where("at", OpLess, t0.Add(3*time.Hour)).OrderBy("at", true), []string{"a", "c"}},
		{"order asc puts missing first", Collection("todos").OrderBy("n", false), []string{"d", "b", "c", "a"}},
		{"order desc", Collection("todos").OrderBy("name", true), []string{"c", "d", "b", "a"}},
		{"limit", Collection("todos").OrderBy("name", false).WithLimit(2), []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(tt.q, docs))
			if !equalIDs(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyBreaksTiesByID(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{doc("b", t0, Fields{}), doc("a", t0, Fields{})}
	if got := ids(Apply(Collection("todos"), docs)); !equalIDs(got, []string{"a", "b"}) {
		t.Errorf("Apply() = %v", got)
	}
}

func TestQueryBuildersDoNotAlias(t *testing.T) {
	base := Collection("todos").Where("ownerId", OpEqual, "u1")
	a := base.Where("done", OpEqual, true)
	b := base.Where("done", OpEqual, false)
	if len(base.Filters) != 1 || a.Filters[1].Value != true || b.Filters[1].Value != false {
		t.Errorf("builders share backing arrays: base=%v a=%v b=%v", base.Filters, a.Filters, b.Filters)
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		ok   bool
	}{
		{"valid", Collection("todos").Where("name", OpEqual, "x").OrderBy("name", false), true},
		{"missing collection", Query{}, false},
		{"negative limit", Collection("todos").WithLimit(-1), false},
		{"empty filter field", Collection("todos").Where("", OpEqual, 1), false},
		{"bad operator", Collection("todos").Where("a", Op("~"), 1), false},
		{"empty order field", Collection("todos").OrderBy(" ", true), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}
