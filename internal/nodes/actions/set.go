package actions

import (
	"context"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "action.set",
		DisplayName: "Set",
		Group:       []string{"action"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "values", DisplayName: "Values", Kind: core.KindCollection, Required: true},
		},
		Node: &SetNode{},
	})

	core.Register(&core.NodeType{
		Identifier:  "action.respond",
		DisplayName: "Respond to Webhook",
		Group:       []string{"action"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "statusCode", DisplayName: "Status Code", Kind: core.KindNumber, Default: 200},
			{Name: "body", DisplayName: "Body", Kind: core.KindJSON},
			{Name: "headers", DisplayName: "Headers", Kind: core.KindCollection},
		},
		Node: &RespondNode{},
	})
}

// SetNode merges its resolved `values` parameter onto every incoming item's
// JSON, overwriting fields of the same name.
type SetNode struct{}

func (n *SetNode) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	values, _ := execCtx.Parameters["values"].(map[string]interface{})
	items := execCtx.InputData["main"]
	if len(items) == 0 {
		items = core.Items{{JSON: map[string]interface{}{}}}
	}

	out := make(core.Items, len(items))
	for i, it := range items {
		merged := make(map[string]interface{}, len(it.JSON)+len(values))
		for k, v := range it.JSON {
			merged[k] = v
		}
		for k, v := range values {
			merged[k] = v
		}
		out[i] = core.Item{JSON: merged, Binary: it.Binary, PairedItem: &core.PairedItem{Item: i}}
	}
	return core.PortData{"main": out}, nil
}

// RespondNode produces a single item describing the HTTP response a webhook
// caller should receive; the webhook receiver reads this item to reply.
type RespondNode struct{}

func (n *RespondNode) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	statusCode := 200
	switch v := execCtx.Parameters["statusCode"].(type) {
	case int:
		statusCode = v
	case float64:
		statusCode = int(v)
	}
	headers, _ := execCtx.Parameters["headers"].(map[string]interface{})

	return core.PortData{"main": core.Items{{JSON: map[string]interface{}{
		"statusCode": statusCode,
		"body":       execCtx.Parameters["body"],
		"headers":    headers,
	}}}}, nil
}
