package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

// runtimeContext is the mutable state of one in-flight execution, owned by
// the scheduler goroutine that runs it; fields touched by concurrently
// running node invocations are guarded by mu.
type runtimeContext struct {
	executionID uuid.UUID
	workflow    *Workflow
	dag         *DAG
	triggerData map[string]interface{}

	mu              sync.Mutex
	outputs         map[string]core.PortData // nodeID -> produced items per port
	completionOrder map[string]int           // nodeID -> order it finished in
	nextOrder       int
	running         map[string]bool
	completed       int
	failed          int
	firstFailure    *ExecutionError
}

func newRuntimeContext(executionID uuid.UUID, wf *Workflow, dag *DAG, triggerData map[string]interface{}) *runtimeContext {
	return &runtimeContext{
		executionID:     executionID,
		workflow:        wf,
		dag:             dag,
		triggerData:     triggerData,
		outputs:         make(map[string]core.PortData),
		completionOrder: make(map[string]int),
		running:         make(map[string]bool),
	}
}

func (rc *runtimeContext) markRunning(nodeID string) {
	rc.mu.Lock()
	rc.running[nodeID] = true
	rc.mu.Unlock()
}

func (rc *runtimeContext) markFinished(nodeID string, status NodeStatus, outputs core.PortData, execErr *ExecutionError) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.running, nodeID)
	rc.outputs[nodeID] = outputs
	rc.completionOrder[nodeID] = rc.nextOrder
	rc.nextOrder++
	switch status {
	case NodeSuccess:
		rc.completed++
	case NodeError:
		rc.failed++
		if rc.firstFailure == nil && execErr != nil {
			rc.firstFailure = execErr
		}
	}
}

func (rc *runtimeContext) currentNodeIDs() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]string, 0, len(rc.running))
	for id := range rc.running {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (rc *runtimeContext) progressCounts() (completed, failed int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.completed, rc.failed
}

// getOutput returns the items a completed node produced on a given port.
func (rc *runtimeContext) getOutput(nodeID, port string) core.Items {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	pd, ok := rc.outputs[nodeID]
	if !ok {
		return nil
	}
	return pd[port]
}

// allOutputs returns a node's full port-keyed output, or nil if it hasn't
// completed.
func (rc *runtimeContext) allOutputs(nodeID string) core.PortData {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	pd, ok := rc.outputs[nodeID]
	if !ok {
		return nil
	}
	return pd
}

// hasCompleted reports whether a node has already been dispatched and
// reported a terminal status, regardless of whether it produced any output
// (a failed node completes with nil output, which allOutputs cannot
// distinguish from "never started").
func (rc *runtimeContext) hasCompleted(nodeID string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	_, ok := rc.completionOrder[nodeID]
	return ok
}

// assembleInput builds inputData for a node: per input port, the items from
// each incoming connection concatenated in predecessor-completion order,
// ties broken by source-node name.
func (rc *runtimeContext) assembleInput(nodeID string) core.PortData {
	in := rc.dag.IncomingByPort(nodeID)
	if len(in) == 0 {
		return rc.triggerInput()
	}

	rc.mu.Lock()
	order := make(map[string]int, len(rc.completionOrder))
	for k, v := range rc.completionOrder {
		order[k] = v
	}
	rc.mu.Unlock()

	result := make(core.PortData, len(in))
	for port, conns := range in {
		type src struct {
			nodeID string
			name   string
			output string
			order  int
		}
		sources := make([]src, 0, len(conns))
		for _, c := range conns {
			name := c.SourceNodeID
			if n, ok := rc.dag.Nodes()[c.SourceNodeID]; ok {
				name = n.Name
			}
			sources = append(sources, src{nodeID: c.SourceNodeID, name: name, output: c.SourceOutput, order: order[c.SourceNodeID]})
		}
		sort.Slice(sources, func(i, j int) bool {
			if sources[i].order != sources[j].order {
				return sources[i].order < sources[j].order
			}
			return sources[i].name < sources[j].name
		})
		var items core.Items
		for _, s := range sources {
			items = append(items, rc.getOutput(s.nodeID, s.output)...)
		}
		result[port] = items
	}
	return result
}

// triggerInput builds the item an entry node sees. triggerData carries a
// classification envelope (`trigger`, matched against entryNodes) around the
// caller's actual payload (`data`); entry nodes see the payload, not the
// envelope.
func (rc *runtimeContext) triggerInput() core.PortData {
	if rc.triggerData == nil {
		return core.PortData{}
	}
	if data, ok := rc.triggerData["data"].(map[string]interface{}); ok {
		return core.PortData{"main": core.Items{{JSON: data}}}
	}
	return core.PortData{"main": core.Items{{JSON: rc.triggerData}}}
}

// FlattenPort collapses a PortData's "main" port to the single-item
// shortcut convention used by $json/$node[name]: a lone item yields its
// JSON object directly, multiple items yield an array of JSON objects
//.
func FlattenPort(pd core.PortData) interface{} {
	items := pd["main"]
	return FlattenItems(items)
}

// FlattenItems applies the same single-item shortcut to an arbitrary item
// list.
func FlattenItems(items core.Items) interface{} {
	switch len(items) {
	case 0:
		return map[string]interface{}{}
	case 1:
		return items[0].JSON
	default:
		arr := make([]interface{}, len(items))
		for i, it := range items {
			arr[i] = it.JSON
		}
		return arr
	}
}

// buildNodeRoot builds the $node root: every completed node's flattened
// output, keyed by node name.
func (rc *runtimeContext) buildNodeRoot() map[string]interface{} {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]interface{}, len(rc.outputs))
	for id, pd := range rc.outputs {
		name := id
		if n, ok := rc.dag.Nodes()[id]; ok {
			name = n.Name
		}
		out[name] = FlattenPort(pd)
	}
	return out
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }
