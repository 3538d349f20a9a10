package expression

import (
	"testing"
)

func TestEvaluateSingleFragmentReturnsTypedValue(t *testing.T) {
	ctx := NewContext()
	ctx.JSON = map[string]interface{}{"status": "active", "count": float64(3)}

	v, err := New().Evaluate(`{{ $json.status }}`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "active" {
		t.Fatalf("expected raw string \"active\", got %#v", v)
	}

	v, err = New().Evaluate(`{{ $json.count }}`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != float64(3) {
		t.Fatalf("expected raw float64(3), got %#v (%T)", v, v)
	}
}

func TestEvaluateConcatenatesMultipleFragments(t *testing.T) {
	ctx := NewContext()
	ctx.JSON = map[string]interface{}{"name": "Ada", "age": float64(30)}

	v, err := New().Evaluate(`Hello {{ $json.name }}, age {{ $json.age }}`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "Hello Ada, age 30" {
		t.Fatalf("unexpected result: %q", v)
	}
}

func TestEvaluateNoFragmentsReturnsVerbatim(t *testing.T) {
	ctx := NewContext()
	v, err := New().Evaluate("plain text", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "plain text" {
		t.Fatalf("expected verbatim string, got %#v", v)
	}
}

func TestEvaluateNodeLookup(t *testing.T) {
	ctx := NewContext()
	ctx.Node = map[string]interface{}{
		"Fetch": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"title": "first"},
			},
		},
	}
	v, err := New().Evaluate(`{{ $node["Fetch"].items[0].title }}`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "first" {
		t.Fatalf("expected \"first\", got %#v", v)
	}
}

func TestEvaluatePurity(t *testing.T) {
	ctx := NewContext()
	ctx.JSON = map[string]interface{}{"a": float64(1), "b": float64(2)}
	e := New()
	v1, err := e.Evaluate(`{{ $json.a + $json.b }}`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := e.Evaluate(`{{ $json.a + $json.b }}`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v1 != v2 {
		t.Fatalf("expected pure evaluation, got %#v then %#v", v1, v2)
	}
}

func TestEvaluateFailureSurfacesFragment(t *testing.T) {
	ctx := NewContext()
	_, err := New().Evaluate(`{{ $json. }}`, ctx)
	if err == nil {
		t.Fatal("expected an error for malformed expression")
	}
	failed, ok := err.(*Failed)
	if !ok {
		t.Fatalf("expected *Failed, got %T", err)
	}
	if failed.Fragment != "$json." {
		t.Fatalf("expected offending fragment to be reported, got %q", failed.Fragment)
	}
}

func TestResolveParametersPreservesShape(t *testing.T) {
	ctx := NewContext()
	ctx.JSON = map[string]interface{}{"id": "abc"}
	params := map[string]interface{}{
		"url":     "https://api.example.com/items/{{ $json.id }}",
		"count":   float64(5),
		"nested":  map[string]interface{}{"key": "{{ $json.id }}"},
		"list":    []interface{}{"{{ $json.id }}", "literal"},
	}
	out, err := New().ResolveParameters(params, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["url"] != "https://api.example.com/items/abc" {
		t.Fatalf("unexpected url: %v", out["url"])
	}
	if out["count"] != float64(5) {
		t.Fatalf("count should be passed through untouched: %v", out["count"])
	}
	nested := out["nested"].(map[string]interface{})
	if nested["key"] != "abc" {
		t.Fatalf("nested resolution failed: %v", nested["key"])
	}
	list := out["list"].([]interface{})
	if list[0] != "abc" || list[1] != "literal" {
		t.Fatalf("list resolution failed: %#v", list)
	}
}
