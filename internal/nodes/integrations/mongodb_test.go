package integrations

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConvertObjectIDsTopLevel(t *testing.T) {
	n := &MongoDBNode{}
	oid := primitive.NewObjectID()
	doc := map[string]interface{}{"_id": oid, "name": "alice"}

	out := n.convertObjectIDs(doc)
	if out["_id"] != oid.Hex() {
		t.Fatalf("expected ObjectID converted to hex, got %#v", out["_id"])
	}
	if out["name"] != "alice" {
		t.Fatalf("unrelated fields must be preserved, got %#v", out["name"])
	}
}

func TestConvertObjectIDsDateTimeAndNesting(t *testing.T) {
	n := &MongoDBNode{}
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := map[string]interface{}{
		"createdAt": primitive.NewDateTimeFromTime(when),
		"nested": map[string]interface{}{
			"_id": primitive.NewObjectID(),
		},
		"items": []interface{}{
			map[string]interface{}{"_id": primitive.NewObjectID()},
			"plain",
		},
	}

	out := n.convertObjectIDs(doc)
	if out["createdAt"] != when.Format(time.RFC3339) {
		t.Fatalf("expected RFC3339 timestamp, got %#v", out["createdAt"])
	}

	nested, ok := out["nested"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested map to survive conversion, got %#v", out["nested"])
	}
	if _, ok := nested["_id"].(string); !ok {
		t.Fatalf("expected nested ObjectID converted to string, got %#v", nested["_id"])
	}

	items, ok := out["items"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("expected items slice preserved, got %#v", out["items"])
	}
	if _, ok := items[1].(string); !ok || items[1] != "plain" {
		t.Fatalf("expected non-map array items untouched, got %#v", items[1])
	}
}

func TestParseFilterConvertsStringIDToObjectID(t *testing.T) {
	n := &MongoDBNode{}
	oid := primitive.NewObjectID()
	p := map[string]interface{}{
		"filter": map[string]interface{}{"_id": oid.Hex()},
	}

	filter := n.parseFilter(p)
	got, ok := filter["_id"].(primitive.ObjectID)
	if !ok {
		t.Fatalf("expected _id converted to ObjectID, got %#v", filter["_id"])
	}
	if got != oid {
		t.Fatalf("expected %v, got %v", oid, got)
	}
}

func TestParseFilterFallsBackToFilterJson(t *testing.T) {
	n := &MongoDBNode{}
	p := map[string]interface{}{"filterJson": `{"status": "active"}`}

	filter := n.parseFilter(p)
	if filter["status"] != "active" {
		t.Fatalf("expected filterJson parsed, got %#v", filter)
	}
}

func TestParseFilterEmptyReturnsEmptyMap(t *testing.T) {
	n := &MongoDBNode{}
	filter := n.parseFilter(map[string]interface{}{})
	if len(filter) != 0 {
		t.Fatalf("expected empty filter, got %#v", filter)
	}
}
