package storage

import (
	"testing"
	"time"
)

func TestNormalizeResolvesTimestamps(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)
	when := time.Date(2023, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))

	got, err := Normalize(Fields{
		"created": ServerTimestamp,
		"when":    when,
		"count":   3,
		"nested":  map[string]any{"at": ServerTimestamp},
		"list":    []string{"a"},
	}, now)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if got.String("created") != FormatTime(now) {
		t.Errorf("created = %v", got["created"])
	}
	if got.String("when") != "2022-12-31T23:00:00Z" {
		t.Errorf("when = %v", got["when"])
	}
	if got["count"] != 3.0 {
		t.Errorf("count = %#v, want float64", got["count"])
	}
	nested, _ := got["nested"].(map[string]any)
	if nested["at"] != FormatTime(now) {
		t.Errorf("nested.at = %v", nested["at"])
	}
	if _, ok := got["list"].([]any); !ok {
		t.Errorf("list = %#v, want []any", got["list"])
	}
}

func TestMergeDoesNotMutateBase(t *testing.T) {
	base := Fields{"name": "a", "tags": []any{"x"}}
	merged := Merge(base, Fields{"name": "b"})
	if base.String("name") != "a" {
		t.Error("Merge mutated base")
	}
	if merged.String("name") != "b" || len(merged.Strings("tags")) != 1 {
		t.Errorf("merged = %v", merged)
	}
	merged["tags"].([]any)[0] = "changed"
	if base.Strings("tags")[0] != "x" {
		t.Error("Merge shared nested slices with base")
	}
}

func TestDecodeExposesID(t *testing.T) {
	d := Document{ID: "abc", Collection: "todos", Fields: Fields{"name": "n", "isCompleted": true}}
	var out struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		IsCompleted bool   `json:"isCompleted"`
	}
	if err := d.Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.ID != "abc" || out.Name != "n" || !out.IsCompleted {
		t.Errorf("Decode() = %+v", out)
	}
}

func TestFieldAccessors(t *testing.T) {
	f := Fields{"s": "v", "b": true, "l": []any{"a", 1.0, "b"}, "n": 1.0}
	if f.String("s") != "v" || f.String("n") != "" {
		t.Error("String accessor")
	}
	if !f.Bool("b") || f.Bool("s") {
		t.Error("Bool accessor")
	}
	if got := f.Strings("l"); len(got) != 2 || got[1] != "b" {
		t.Errorf("Strings() = %v", got)
	}
	if f.Strings("missing") != nil {
		t.Error("Strings on a missing field should be nil")
	}
}

func TestEncodeDecodeEmpty(t *testing.T) {
	data, err := EncodeFields(nil)
	if err != nil || string(data) != "{}" {
		t.Fatalf("EncodeFields(nil) = %q, %v", data, err)
	}
	f, err := DecodeFields(nil)
	if err != nil || f == nil || len(f) != 0 {
		t.Errorf("DecodeFields(nil) = %v, %v", f, err)
	}
}
