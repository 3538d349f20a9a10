// Package triggers implements the entry-node types the scheduler's
// entryNodes computation can select.
package triggers

import (
	"context"
	"time"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "trigger.manual",
		DisplayName: "Manual Trigger",
		Group:       []string{"trigger"},
		Version:     1,
		Outputs:     []string{"main"},
		TriggerType: core.TriggerManual,
		Node:        &ManualTrigger{},
	})

	core.Register(&core.NodeType{
		Identifier:  "trigger.webhook",
		DisplayName: "Webhook Trigger",
		Group:       []string{"trigger"},
		Version:     1,
		Outputs:     []string{"main"},
		TriggerType: core.TriggerWebhook,
		Node:        &WebhookTrigger{},
	})

	core.Register(&core.NodeType{
		Identifier:  "trigger.schedule",
		DisplayName: "Schedule Trigger",
		Group:       []string{"trigger"},
		Version:     1,
		Outputs:     []string{"main"},
		TriggerType: core.TriggerSchedule,
		Node:        &ScheduleTrigger{},
	})
}

// ManualTrigger starts a workflow with whatever payload the caller supplied
// as triggerData.data, with a triggeredAt timestamp added to each item.
type ManualTrigger struct{}

func (n *ManualTrigger) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	return passthroughWithTimestamp(execCtx.InputData), nil
}

// WebhookTrigger starts a workflow from an inbound HTTP request; the
// headers/body/query/method shape is assembled by the webhook receiver into
// triggerData.data before submission, so Execute only forwards it.
type WebhookTrigger struct{}

func (n *WebhookTrigger) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	return passthroughWithTimestamp(execCtx.InputData), nil
}

// ScheduleTrigger starts a workflow on a cron tick; the scheduler passes the
// schedule's stored input data as triggerData.data and adds no scheduled-time
// field, so the item's only timestamp is triggeredAt.
type ScheduleTrigger struct{}

func (n *ScheduleTrigger) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	return passthroughWithTimestamp(execCtx.InputData), nil
}

// passthroughWithTimestamp forwards the input items, stamping each with the
// time the trigger fired.
func passthroughWithTimestamp(in core.PortData) core.PortData {
	items := in["main"]
	if len(items) == 0 {
		items = core.Items{{JSON: map[string]interface{}{}}}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	out := make(core.Items, len(items))
	for i, it := range items {
		j := make(map[string]interface{}, len(it.JSON)+1)
		for k, v := range it.JSON {
			j[k] = v
		}
		j["triggeredAt"] = now
		out[i] = core.Item{JSON: j, Binary: it.Binary}
	}
	return core.PortData{"main": out}
}
