package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/linkflow-ai/linkflow/internal/engine"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

// DefaultSubWorkflowNode is the instance registered into core.Global(); its
// Runner is nil until cmd/ wiring sets it once the engine exists (node
// packages register their types from init(), before an *engine.Engine can
// be constructed).
var DefaultSubWorkflowNode = &SubWorkflowNode{}

func init() {
	core.Register(&core.NodeType{
		Identifier:  "action.subworkflow",
		DisplayName: "Sub-Workflow",
		Group:       []string{"action"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "workflowId", DisplayName: "Workflow", Kind: core.KindString, Required: true},
			{Name: "mode", DisplayName: "Mode", Kind: core.KindOptions, Default: "wait", Options: []interface{}{"wait", "fireAndForget"}},
			{Name: "timeout", DisplayName: "Timeout (s)", Kind: core.KindNumber, Default: 300},
		},
		Node: DefaultSubWorkflowNode,
	})
}

// Runner is the subset of Engine a sub-workflow invocation needs. It exists
// so this package does not require a concrete *engine.Engine at
// registration time; cmd/ wiring sets SubWorkflowNode.Runner once the real
// engine exists (the node types are registered from package init(), before
// the engine is constructed).
type Runner interface {
	Submit(ctx context.Context, req engine.ExecutionRequest) (uuid.UUID, error)
	GetExecution(ctx context.Context, executionID uuid.UUID) (*engine.ExecutionRecord, []engine.NodeExecutionRecord, error)
}

// SubWorkflowNode executes another workflow in-process and, in "wait" mode,
// polls until it reaches a terminal status. The engine runs an execution's
// nodes as goroutines of the same process, so waiting on the shared
// repository needs no external coordination channel (see DESIGN.md).
type SubWorkflowNode struct {
	Runner Runner
}

func (n *SubWorkflowNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	if n.Runner == nil {
		return nil, fmt.Errorf("action.subworkflow: no runner wired")
	}
	idStr := getStr(execCtx.Parameters, "workflowId", "")
	if idStr == "" {
		return nil, fmt.Errorf("action.subworkflow: workflowId is required")
	}
	workflowID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("action.subworkflow: invalid workflowId: %w", err)
	}
	mode := getStr(execCtx.Parameters, "mode", "wait")
	timeoutSec := getInt(execCtx.Parameters, "timeout", 300)

	triggerData := map[string]interface{}{"trigger": "workflow-called", "data": execCtx.InputData["main"]}
	childID, err := n.Runner.Submit(ctx, engine.ExecutionRequest{WorkflowID: workflowID, TriggerData: triggerData})
	if err != nil {
		return nil, fmt.Errorf("action.subworkflow: submit failed: %w", err)
	}

	if mode == "fireAndForget" {
		return core.PortData{"main": core.Items{{JSON: map[string]interface{}{
			"queued": true, "executionId": childID.String(),
		}}}}, nil
	}

	deadline := time.Now().Add(time.Duration(timeoutSec) * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			rec, _, err := n.Runner.GetExecution(ctx, childID)
			if err != nil {
				return nil, fmt.Errorf("action.subworkflow: %w", err)
			}
			switch rec.Status {
			case engine.ExecutionSuccess:
				return core.PortData{"main": core.Items{{JSON: map[string]interface{}{
					"executionId": childID.String(), "status": string(rec.Status),
				}}}}, nil
			case engine.ExecutionFailed, engine.ExecutionCancelled:
				return nil, fmt.Errorf("action.subworkflow: sub-workflow ended with status %s", rec.Status)
			}
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("action.subworkflow: timeout waiting for sub-workflow result")
			}
		}
	}
}
