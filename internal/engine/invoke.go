package engine

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
	"github.com/linkflow-ai/linkflow/internal/engine/events"
	"github.com/linkflow-ai/linkflow/internal/expression"
)

// invokeWithRetry drives one node to a terminal NodeStatus, retrying per its
// effective RetryPolicy, and reports the outcome to the scheduler goroutine
// over completions. It owns nothing the scheduler reads
// concurrently except rc, which is internally synchronized.
func (e *Engine) invokeWithRetry(ctx context.Context, rc *runtimeContext, nodeID string, completions chan<- completion) {
	node := rc.dag.Nodes()[nodeID]
	policy := e.effectiveRetryPolicy(rc.workflow, node)

	started := time.Now()
	rec := &NodeExecutionRecord{ExecutionID: rc.executionID, NodeID: nodeID, Status: NodeRunning, StartedAt: &started}
	if err := e.repo.CreateNodeExecution(ctx, rec); err != nil {
		log.Error().Err(err).Str("node_id", nodeID).Msg("create node execution record")
	}
	rc.markRunning(nodeID)
	e.bus.Publish(ctx, events.Event{Type: events.NodeStarted, ExecutionID: rc.executionID, WorkflowID: rc.workflow.ID, NodeID: nodeID, Timestamp: started})

	var (
		outputs core.PortData
		execErr *ExecutionError
		status  NodeStatus
		attempt int
	)

retryLoop:
	for {
		attempt++
		select {
		case <-ctx.Done():
			status, execErr = NodeCancelled, &ExecutionError{Kind: ErrCancelled, NodeID: nodeID, Message: "execution cancelled"}
			break retryLoop
		default:
		}

		outputs, execErr = e.invokeOnce(ctx, rc, nodeID, node)
		if execErr == nil {
			status = NodeSuccess
			break retryLoop
		}
		if execErr.Kind == ErrCancelled {
			status = NodeCancelled
			break retryLoop
		}
		if attempt >= policy.MaxAttempts || !policy.Retryable(execErr.Kind) {
			status = NodeError
			break retryLoop
		}

		select {
		case <-ctx.Done():
			status, execErr = NodeCancelled, &ExecutionError{Kind: ErrCancelled, NodeID: nodeID, Message: "execution cancelled"}
			break retryLoop
		case <-time.After(backoffDelay(policy, attempt)):
		}
	}

	finished := time.Now()
	attemptCount := attempt
	patch := NodeExecutionPatch{Status: &status, FinishedAt: &finished, OutputData: outputs, Error: execErr, AttemptCount: &attemptCount}
	if err := e.repo.UpdateNodeExecution(ctx, rc.executionID, nodeID, patch); err != nil {
		log.Error().Err(err).Str("node_id", nodeID).Msg("persist node result")
	}

	evType := events.NodeCompleted
	switch status {
	case NodeError:
		evType = events.NodeFailed
	case NodeCancelled:
		evType = events.NodeCancelled
	}
	data := map[string]interface{}{"attempt": attempt}
	if execErr != nil {
		data["error"] = execErr
	}
	e.bus.Publish(ctx, events.Event{
		Type: evType, ExecutionID: rc.executionID, WorkflowID: rc.workflow.ID, NodeID: nodeID,
		Status: string(status), Timestamp: finished, Data: data,
	})

	if e.metrics != nil && node != nil {
		e.metrics.NodeDuration.WithLabelValues(node.Type).Observe(finished.Sub(started).Seconds())
	}

	completions <- completion{nodeID: nodeID, status: status, outputs: outputs, err: execErr}
}

// invokeOnce assembles a node's input, resolves its parameters through
// expressions, materializes its credentials, and calls its Execute exactly
// once.
func (e *Engine) invokeOnce(ctx context.Context, rc *runtimeContext, nodeID string, node *Node) (core.PortData, *ExecutionError) {
	nt, ok := e.registry.Get(node.Type)
	if !ok {
		return nil, &ExecutionError{Kind: ErrNodeExecutionError, NodeID: nodeID, Message: fmt.Sprintf("unknown node type %q", node.Type)}
	}

	inputData := rc.assembleInput(nodeID)

	exprCtx := expression.NewContext()
	exprCtx.JSON = FlattenPort(inputData)
	exprCtx.Node = rc.buildNodeRoot()
	exprCtx.Workflow = map[string]interface{}{"id": rc.workflow.ID.String(), "name": rc.workflow.Name}
	exprCtx.Execution = map[string]interface{}{"id": rc.executionID.String()}
	exprCtx.Vars = map[string]interface{}{}
	exprCtx.Now = nowISO()
	if len(exprCtx.Now) >= 10 {
		exprCtx.Today = exprCtx.Now[:10]
	}

	params, err := e.evaluator.ResolveParameters(node.Parameters, exprCtx)
	if err != nil {
		return nil, &ExecutionError{Kind: ErrExpressionFailed, NodeID: nodeID, Message: err.Error()}
	}

	creds := core.Credentials{}
	for _, credID := range node.CredentialIDs {
		credType, payload, err := e.credStore.Materialize(ctx, credID, rc.workflow.UserID)
		if err != nil {
			return nil, &ExecutionError{Kind: ErrCredentialUnavailable, NodeID: nodeID, Message: err.Error()}
		}
		creds[credType] = payload
	}

	execCtx := &core.ExecutionContext{
		ExecutionID: rc.executionID.String(),
		WorkflowID:  rc.workflow.ID.String(),
		NodeID:      nodeID,
		NodeName:    node.Name,
		InputData:   inputData,
		Parameters:  params,
		Credentials: creds,
		Helpers:     core.Helpers{RequestWithAuthentication: e.requestWithAuthentication},
		Variables:   map[string]interface{}{},
	}

	timeout := e.opts.DefaultTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outputs, err := nt.Node.Execute(nodeCtx, execCtx)
	if err != nil {
		if nodeCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &ExecutionError{Kind: ErrTimeout, NodeID: nodeID, Message: err.Error()}
		}
		if ctx.Err() != nil {
			return nil, &ExecutionError{Kind: ErrCancelled, NodeID: nodeID, Message: err.Error()}
		}
		return nil, &ExecutionError{Kind: ErrNodeExecutionError, NodeID: nodeID, Message: err.Error()}
	}
	return outputs, nil
}

// requestWithAuthentication is the concrete Helpers.RequestWithAuthentication
// every node receives: it applies the credential type's auth policy to the
// descriptor, then performs the call.
func (e *Engine) requestWithAuthentication(ctx context.Context, credType string, payload map[string]interface{}, req *core.RequestDescriptor) (*http.Response, error) {
	if err := e.credStore.ApplyAuthentication(req, credType, payload); err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return http.DefaultClient.Do(httpReq)
}

// effectiveRetryPolicy resolves a node's RetryPolicy: workflow default,
// overridden field-by-field by the node's own settings.
func (e *Engine) effectiveRetryPolicy(wf *Workflow, node *Node) RetryPolicy {
	policy := wf.Settings.DefaultRetryPolicy
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	if node == nil || node.Settings == nil {
		return policy
	}
	s := node.Settings
	if s.MaxAttempts != nil {
		policy.MaxAttempts = *s.MaxAttempts
	}
	if s.InitialDelayMs != nil {
		policy.InitialDelayMs = *s.InitialDelayMs
	}
	if s.BackoffMultiplier != nil {
		policy.BackoffMultiplier = *s.BackoffMultiplier
	}
	if s.MaxDelayMs != nil {
		policy.MaxDelayMs = *s.MaxDelayMs
	}
	if s.RetryableKinds != nil {
		policy.RetryableKinds = s.RetryableKinds
	}
	return policy
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delayMs := float64(policy.InitialDelayMs) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	if policy.MaxDelayMs > 0 && delayMs > float64(policy.MaxDelayMs) {
		delayMs = float64(policy.MaxDelayMs)
	}
	if delayMs < 0 {
		delayMs = 0
	}
	return time.Duration(delayMs) * time.Millisecond
}
