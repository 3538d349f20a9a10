package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "integration.mongodb",
		DisplayName: "MongoDB",
		Group:       []string{"integration"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "operation", DisplayName: "Operation", Kind: core.KindOptions, Default: "find",
				Options: []interface{}{"find", "findOne", "insertOne", "insertMany", "updateOne", "updateMany", "deleteOne", "deleteMany", "aggregate", "count"}},
			{Name: "database", DisplayName: "Database", Kind: core.KindString},
			{Name: "collection", DisplayName: "Collection", Kind: core.KindString, Required: true},
			{Name: "filter", DisplayName: "Filter", Kind: core.KindJSON},
			{Name: "document", DisplayName: "Document", Kind: core.KindJSON},
			{Name: "documents", DisplayName: "Documents", Kind: core.KindJSON},
			{Name: "update", DisplayName: "Update", Kind: core.KindJSON},
			{Name: "pipeline", DisplayName: "Pipeline", Kind: core.KindJSON},
			{Name: "limit", DisplayName: "Limit", Kind: core.KindNumber},
			{Name: "skip", DisplayName: "Skip", Kind: core.KindNumber},
			{Name: "upsert", DisplayName: "Upsert", Kind: core.KindBoolean},
		},
		Credentials: []core.CredentialDefinition{{Type: "mongodb", Required: true}},
		Node:        &MongoDBNode{},
	})
}

// MongoDBNode connects fresh per invocation and runs one CRUD/aggregate
// operation against a single collection named by parameters.
type MongoDBNode struct{}

func (n *MongoDBNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	p := execCtx.Parameters
	cred := execCtx.Credentials["mongodb"]

	client, err := n.connect(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("integration.mongodb: connection failed: %w", err)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	database := getStr(p, "database", getStr(cred, "database", ""))
	collection := getStr(p, "collection", "")
	if database == "" || collection == "" {
		return nil, fmt.Errorf("integration.mongodb: database and collection are required")
	}
	coll := client.Database(database).Collection(collection)

	items := execCtx.InputData["main"]
	var input map[string]interface{}
	if len(items) > 0 {
		input = items[0].JSON
	}

	var result map[string]interface{}
	switch getStr(p, "operation", "find") {
	case "find":
		result, err = n.find(ctx, coll, p)
	case "findOne":
		result, err = n.findOne(ctx, coll, p)
	case "insertOne":
		result, err = n.insertOne(ctx, coll, p, input)
	case "insertMany":
		result, err = n.insertMany(ctx, coll, p, input)
	case "updateOne":
		result, err = n.updateOne(ctx, coll, p, input)
	case "updateMany":
		result, err = n.updateMany(ctx, coll, p, input)
	case "deleteOne":
		result, err = n.deleteOne(ctx, coll, p)
	case "deleteMany":
		result, err = n.deleteMany(ctx, coll, p)
	case "aggregate":
		result, err = n.aggregate(ctx, coll, p)
	case "count":
		result, err = n.count(ctx, coll, p)
	default:
		return nil, fmt.Errorf("integration.mongodb: unsupported operation")
	}
	if err != nil {
		return nil, fmt.Errorf("integration.mongodb: %w", err)
	}
	return core.PortData{"main": core.Items{{JSON: result}}}, nil
}

func (n *MongoDBNode) connect(ctx context.Context, cred map[string]interface{}) (*mongo.Client, error) {
	uri := getStr(cred, "connectionString", "")
	if uri == "" {
		host := getStr(cred, "host", "localhost")
		port := getInt(cred, "port", 27017)
		user := getStr(cred, "user", "")
		password := getStr(cred, "password", "")
		if user != "" && password != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", user, password, host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", host, port)
		}
	}

	clientOptions := options.Client().ApplyURI(uri).SetConnectTimeout(10 * time.Second).SetMaxPoolSize(5)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func (n *MongoDBNode) find(ctx context.Context, coll *mongo.Collection, p map[string]interface{}) (map[string]interface{}, error) {
	filter := n.parseFilter(p)
	opts := options.Find()
	if limit := getInt(p, "limit", 0); limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if skip := getInt(p, "skip", 0); skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if sort := getMap(p, "sort"); len(sort) > 0 {
		opts.SetSort(sort)
	}
	if projection := getMap(p, "projection"); len(projection) > 0 {
		opts.SetProjection(projection)
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []map[string]interface{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	for i, doc := range results {
		results[i] = n.convertObjectIDs(doc)
	}
	return map[string]interface{}{"documents": results, "count": len(results)}, nil
}

func (n *MongoDBNode) findOne(ctx context.Context, coll *mongo.Collection, p map[string]interface{}) (map[string]interface{}, error) {
	filter := n.parseFilter(p)
	opts := options.FindOne()
	if projection := getMap(p, "projection"); len(projection) > 0 {
		opts.SetProjection(projection)
	}

	var result map[string]interface{}
	err := coll.FindOne(ctx, filter, opts).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return map[string]interface{}{"document": nil, "found": false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("findOne failed: %w", err)
	}
	return map[string]interface{}{"document": n.convertObjectIDs(result), "found": true}, nil
}

func (n *MongoDBNode) insertOne(ctx context.Context, coll *mongo.Collection, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	document := getMap(p, "document")
	if len(document) == 0 && input != nil {
		if d, ok := input["document"].(map[string]interface{}); ok {
			document = d
		}
	}
	if len(document) == 0 {
		return nil, fmt.Errorf("document is required")
	}

	result, err := coll.InsertOne(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("insertOne failed: %w", err)
	}
	insertedID := ""
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		insertedID = oid.Hex()
	}
	return map[string]interface{}{"success": true, "insertedId": insertedID}, nil
}

func (n *MongoDBNode) insertMany(ctx context.Context, coll *mongo.Collection, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	documents := getArray(p, "documents")
	if len(documents) == 0 && input != nil {
		if d, ok := input["documents"].([]interface{}); ok {
			documents = d
		}
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("documents are required")
	}

	result, err := coll.InsertMany(ctx, documents)
	if err != nil {
		return nil, fmt.Errorf("insertMany failed: %w", err)
	}
	insertedIDs := make([]string, len(result.InsertedIDs))
	for i, id := range result.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok {
			insertedIDs[i] = oid.Hex()
		}
	}
	return map[string]interface{}{"success": true, "insertedIds": insertedIDs, "insertedCount": len(insertedIDs)}, nil
}

func (n *MongoDBNode) updateOne(ctx context.Context, coll *mongo.Collection, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	filter := n.parseFilter(p)
	update := getMap(p, "update")
	if len(update) == 0 && input != nil {
		if u, ok := input["update"].(map[string]interface{}); ok {
			update = u
		}
	}
	if len(update) == 0 {
		return nil, fmt.Errorf("update is required")
	}
	if _, hasOperator := update["$set"]; !hasOperator {
		update = map[string]interface{}{"$set": update}
	}

	opts := options.Update()
	if b, _ := p["upsert"].(bool); b {
		opts.SetUpsert(true)
	}
	result, err := coll.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return nil, fmt.Errorf("updateOne failed: %w", err)
	}
	return map[string]interface{}{
		"success": true, "matchedCount": result.MatchedCount,
		"modifiedCount": result.ModifiedCount, "upsertedCount": result.UpsertedCount,
	}, nil
}

func (n *MongoDBNode) updateMany(ctx context.Context, coll *mongo.Collection, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	filter := n.parseFilter(p)
	update := getMap(p, "update")
	if len(update) == 0 && input != nil {
		if u, ok := input["update"].(map[string]interface{}); ok {
			update = u
		}
	}
	if len(update) == 0 {
		return nil, fmt.Errorf("update is required")
	}
	if _, hasOperator := update["$set"]; !hasOperator {
		update = map[string]interface{}{"$set": update}
	}

	result, err := coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("updateMany failed: %w", err)
	}
	return map[string]interface{}{"success": true, "matchedCount": result.MatchedCount, "modifiedCount": result.ModifiedCount}, nil
}

func (n *MongoDBNode) deleteOne(ctx context.Context, coll *mongo.Collection, p map[string]interface{}) (map[string]interface{}, error) {
	result, err := coll.DeleteOne(ctx, n.parseFilter(p))
	if err != nil {
		return nil, fmt.Errorf("deleteOne failed: %w", err)
	}
	return map[string]interface{}{"success": true, "deletedCount": result.DeletedCount}, nil
}

func (n *MongoDBNode) deleteMany(ctx context.Context, coll *mongo.Collection, p map[string]interface{}) (map[string]interface{}, error) {
	result, err := coll.DeleteMany(ctx, n.parseFilter(p))
	if err != nil {
		return nil, fmt.Errorf("deleteMany failed: %w", err)
	}
	return map[string]interface{}{"success": true, "deletedCount": result.DeletedCount}, nil
}

func (n *MongoDBNode) aggregate(ctx context.Context, coll *mongo.Collection, p map[string]interface{}) (map[string]interface{}, error) {
	pipeline := getArray(p, "pipeline")
	if len(pipeline) == 0 {
		return nil, fmt.Errorf("pipeline is required")
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []map[string]interface{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	for i, doc := range results {
		results[i] = n.convertObjectIDs(doc)
	}
	return map[string]interface{}{"results": results, "count": len(results)}, nil
}

func (n *MongoDBNode) count(ctx context.Context, coll *mongo.Collection, p map[string]interface{}) (map[string]interface{}, error) {
	count, err := coll.CountDocuments(ctx, n.parseFilter(p))
	if err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}
	return map[string]interface{}{"count": count}, nil
}

func (n *MongoDBNode) parseFilter(p map[string]interface{}) bson.M {
	filter := getMap(p, "filter")
	if len(filter) == 0 {
		if filterStr := getStr(p, "filterJson", ""); filterStr != "" {
			var f map[string]interface{}
			if err := json.Unmarshal([]byte(filterStr), &f); err == nil {
				filter = f
			}
		}
	}
	if len(filter) == 0 {
		return bson.M{}
	}
	if id, ok := filter["_id"].(string); ok {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			filter["_id"] = oid
		}
	}
	return filter
}

func (n *MongoDBNode) convertObjectIDs(doc map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case primitive.ObjectID:
			result[k] = val.Hex()
		case primitive.DateTime:
			result[k] = val.Time().Format(time.RFC3339)
		case map[string]interface{}:
			result[k] = n.convertObjectIDs(val)
		case []interface{}:
			arr := make([]interface{}, len(val))
			for i, item := range val {
				switch iv := item.(type) {
				case map[string]interface{}:
					arr[i] = n.convertObjectIDs(iv)
				case primitive.ObjectID:
					arr[i] = iv.Hex()
				default:
					arr[i] = item
				}
			}
			result[k] = arr
		default:
			result[k] = v
		}
	}
	return result
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func getArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key].([]interface{}); ok {
		return v
	}
	return nil
}
