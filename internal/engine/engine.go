package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/linkflow-ai/linkflow/internal/credential"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
	"github.com/linkflow-ai/linkflow/internal/engine/events"
	"github.com/linkflow-ai/linkflow/internal/engine/metrics"
	"github.com/linkflow-ai/linkflow/internal/expression"
)

// Options configures an Engine.
type Options struct {
	WorkerCount     int           // default 8; not read from config or the environment
	DefaultTimeout  time.Duration // timeout for every node invocation; zero means 5 minutes
}

// DefaultOptions mirrors's documented defaults.
func DefaultOptions() Options {
	return Options{WorkerCount: 8}
}

// Engine is the Execution Engine: the central subsystem driving a
// workflow from submission to terminal state, unified into one internally
// consistent component rather than split across separate processor/executor
// stages (see DESIGN.md).
type Engine struct {
	repo       Repository
	registry   *core.Registry
	credStore  *credential.Store
	evaluator  *expression.Evaluator
	bus        *events.Bus
	cancelMgr  *CancellationManager
	metrics    *metrics.Metrics
	opts       Options

	statsMu sync.Mutex
	stats   Stats
}

// New constructs an Engine. metrics may be nil to disable Prometheus
// collection (e.g. in unit tests).
func New(repo Repository, registry *core.Registry, credStore *credential.Store, bus *events.Bus, cancelMgr *CancellationManager, m *metrics.Metrics, opts Options) *Engine {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 8
	}
	return &Engine{
		repo: repo, registry: registry, credStore: credStore,
		evaluator: expression.New(), bus: bus, cancelMgr: cancelMgr, metrics: m, opts: opts,
	}
}

// Submit implements submit(workflowId, triggerData) -> executionId.
func (e *Engine) Submit(ctx context.Context, req ExecutionRequest) (uuid.UUID, error) {
	wf, err := e.repo.LoadWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return uuid.Nil, NewError(ErrNotFound, "", err)
	}
	if wf == nil {
		return uuid.Nil, NewError(ErrNotFound, "", fmt.Errorf("workflow %s not found", req.WorkflowID))
	}

	triggerType, _ := req.TriggerData["trigger"].(string)
	dag := BuildDAG(wf, triggerType)
	if len(dag.EntryNodes()) == 0 {
		return uuid.Nil, NewError(ErrNoTriggerAvailable, "", fmt.Errorf("workflow %s has no matching trigger for %q", wf.ID, triggerType))
	}

	executionID := uuid.New()
	rec := &ExecutionRecord{
		ID: executionID, WorkflowID: wf.ID, Workflow: *wf,
		TriggerData: req.TriggerData, Status: ExecutionRunning, StartedAt: time.Now(),
	}

	if _, cyclic, ok := dag.Validate(); !ok {
		rec.Status = ExecutionFailed
		rec.Error = &ExecutionError{Kind: ErrCycle, Message: fmt.Sprintf("cycle detected among nodes: %v", cyclic)}
		finishedAt := time.Now()
		rec.FinishedAt = &finishedAt
		if err := e.repo.CreateExecution(ctx, rec); err != nil {
			return uuid.Nil, err
		}
		e.bus.Publish(ctx, events.Event{Type: events.ExecutionCompleted, ExecutionID: executionID, WorkflowID: wf.ID, Status: string(ExecutionFailed), Timestamp: finishedAt})
		if e.metrics != nil {
			e.metrics.Failed.Inc()
		}
		e.statsMu.Lock()
		e.stats.TotalExecutions++
		e.stats.Failed++
		e.statsMu.Unlock()
		return executionID, nil
	}

	if err := e.repo.CreateExecution(ctx, rec); err != nil {
		return uuid.Nil, err
	}
	if e.metrics != nil {
		e.metrics.TotalExecutions.Inc()
		e.metrics.Running.Inc()
	}
	e.statsMu.Lock()
	e.stats.TotalExecutions++
	e.stats.Running++
	e.statsMu.Unlock()

	e.bus.Publish(ctx, events.Event{
		Type: events.ExecutionStarted, ExecutionID: executionID, WorkflowID: wf.ID,
		Timestamp: rec.StartedAt,
		Data:      map[string]interface{}{"startedAt": rec.StartedAt},
	})

	execCtx, cancel := context.WithCancel(context.Background())
	if wf.Settings.ExecutionTimeout > 0 {
		execCtx, cancel = context.WithTimeout(execCtx, wf.Settings.ExecutionTimeout)
	}
	e.cancelMgr.Register(executionID, cancel)

	go func() {
		defer cancel()
		defer e.cancelMgr.Unregister(executionID)
		e.run(execCtx, rec, dag)
	}()

	return executionID, nil
}

// Cancel implements cancel(executionId, userId). Fire-and-forget: it
// returns once the signal is delivered, not once the execution reaches
// CANCELLED.
func (e *Engine) Cancel(ctx context.Context, executionID uuid.UUID, reason string) {
	e.cancelMgr.Cancel(ctx, executionID, reason)
}

// GetExecution implements getExecution(executionId, userId).
func (e *Engine) GetExecution(ctx context.Context, executionID uuid.UUID) (*ExecutionRecord, []NodeExecutionRecord, error) {
	rec, err := e.repo.GetExecution(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, NewError(ErrNotFound, "", fmt.Errorf("execution %s not found", executionID))
	}
	nodes, err := e.repo.ListNodeExecutions(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	return rec, nodes, nil
}

// GetExecutionProgress implements getExecutionProgress.
func (e *Engine) GetExecutionProgress(ctx context.Context, executionID uuid.UUID) (*ExecutionProgress, error) {
	rec, nodes, err := e.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	completed, failed := 0, 0
	for _, n := range nodes {
		switch n.Status {
		case NodeSuccess, NodeSkipped:
			completed++
		case NodeError, NodeCancelled:
			failed++
		}
	}
	return &ExecutionProgress{
		ExecutionID: executionID, TotalNodes: len(nodes), CompletedNodes: completed,
		FailedNodes: failed, Status: rec.Status, StartedAt: rec.StartedAt, FinishedAt: rec.FinishedAt,
	}, nil
}

// GetNodeExecution implements getNodeExecution(executionId, nodeId, userId)
//.
func (e *Engine) GetNodeExecution(ctx context.Context, executionID uuid.UUID, nodeID string) (*NodeExecutionRecord, error) {
	nodes, err := e.repo.ListNodeExecutions(ctx, executionID)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if nodes[i].NodeID == nodeID {
			return &nodes[i], nil
		}
	}
	return nil, NewError(ErrNotFound, nodeID, fmt.Errorf("no execution record for node %s on execution %s", nodeID, executionID))
}

// GetExecutionStats implements getExecutionStats. Stats
// are accumulated in-process since execution startup; they are not a
// historical query across restarts.
func (e *Engine) GetExecutionStats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// RetryExecution implements retryExecution(executionId, userId) ->
// newExecutionId.
func (e *Engine) RetryExecution(ctx context.Context, executionID, userID uuid.UUID) (uuid.UUID, error) {
	rec, err := e.repo.GetExecution(ctx, executionID)
	if err != nil {
		return uuid.Nil, err
	}
	if rec == nil {
		return uuid.Nil, NewError(ErrNotFound, "", fmt.Errorf("execution %s not found", executionID))
	}
	return e.Submit(ctx, ExecutionRequest{WorkflowID: rec.WorkflowID, UserID: userID, TriggerData: rec.TriggerData})
}

// completion is the message a node invocation goroutine sends back to the
// single scheduler goroutine.
type completion struct {
	nodeID  string
	status  NodeStatus
	outputs core.PortData
	err     *ExecutionError
}

// run drives one execution from entry nodes to terminal state. It is the
// sole owner of scheduling state; node invocations run in their own
// goroutines and report back over completions.
func (e *Engine) run(ctx context.Context, rec *ExecutionRecord, dag *DAG) {
	rc := newRuntimeContext(rec.ID, &rec.Workflow, dag, rec.TriggerData)

	remaining := make(map[string]int)
	for id := range dag.Nodes() {
		remaining[id] = len(dag.Predecessors(id))
	}

	queue := dag.EntryNodes()
	completions := make(chan completion, len(dag.Nodes())+1)
	inFlight := 0
	cancelled := false

	dispatch := func() {
		sort.Strings(queue)
		for len(queue) > 0 && inFlight < e.opts.WorkerCount {
			id := queue[0]
			queue = queue[1:]
			inFlight++
			go e.invokeWithRetry(ctx, rc, id, completions)
		}
	}
	dispatch()

	for inFlight > 0 {
		var c completion
		if cancelled {
			c = <-completions
		} else {
			select {
			case <-ctx.Done():
				cancelled = true
				continue
			case c = <-completions:
			}
		}
		inFlight--
		rc.markFinished(c.nodeID, c.status, c.outputs, c.err)
		e.emitNodeProgress(ctx, rc)

		if !cancelled && c.status == NodeSuccess {
			for _, succ := range dag.Successors(c.nodeID) {
				remaining[succ]--
				if remaining[succ] == 0 {
					queue = append(queue, succ)
				}
			}
			dispatch()
		}
	}

	e.finish(ctx, rec, rc, dag, cancelled)
}

func (e *Engine) emitNodeProgress(ctx context.Context, rc *runtimeContext) {
	completed, failed := rc.progressCounts()
	e.bus.Publish(ctx, events.Event{
		Type: events.ExecutionProgress, ExecutionID: rc.executionID, WorkflowID: rc.workflow.ID,
		Data: map[string]interface{}{
			"totalNodes":     len(rc.dag.Nodes()),
			"completedNodes": completed,
			"failedNodes":    failed,
			"currentNodeIds": rc.currentNodeIDs(),
		},
	})
}

// finish determines the terminal status, sweeps never-started reachable
// nodes to SKIPPED, persists the execution row
// and emits exactly one execution-completed event.
func (e *Engine) finish(ctx context.Context, rec *ExecutionRecord, rc *runtimeContext, dag *DAG, cancelled bool) {
	reachable := dag.Reachable()
	for id := range reachable {
		if _, isEnabled := dag.Nodes()[id]; !isEnabled {
			continue
		}
		if rc.hasCompleted(id) {
			continue
		}
		now := time.Now()
		skipped := NodeExecutionRecord{
			ExecutionID: rc.executionID, NodeID: id, Status: NodeSkipped,
			StartedAt: &now, FinishedAt: &now,
		}
		if err := e.repo.CreateNodeExecution(ctx, &skipped); err != nil {
			log.Error().Err(err).Str("execution_id", rc.executionID.String()).Str("node_id", id).Msg("persist skipped node")
		}
		e.bus.Publish(ctx, events.Event{
			Type: events.NodeSkipped, ExecutionID: rc.executionID, WorkflowID: rc.workflow.ID,
			NodeID: id, Status: string(NodeSkipped), Timestamp: now,
		})
	}

	var status ExecutionStatus
	var execErr *ExecutionError
	switch {
	case cancelled:
		status = ExecutionCancelled
	case rc.firstFailure != nil:
		status = ExecutionFailed
		execErr = rc.firstFailure
	default:
		status = ExecutionSuccess
	}

	finishedAt := time.Now()
	rec.Status = status
	rec.FinishedAt = &finishedAt
	rec.Error = execErr
	if err := e.repo.UpdateExecution(ctx, rec.ID, ExecutionPatch{Status: &status, FinishedAt: &finishedAt, Error: execErr}); err != nil {
		log.Error().Err(err).Str("execution_id", rec.ID.String()).Msg("persist terminal execution status")
	}

	if e.metrics != nil {
		e.metrics.Running.Dec()
		e.metrics.ExecutionTime.Observe(finishedAt.Sub(rec.StartedAt).Seconds())
		switch status {
		case ExecutionSuccess:
			e.metrics.Completed.Inc()
		case ExecutionFailed:
			e.metrics.Failed.Inc()
		case ExecutionCancelled:
			e.metrics.Cancelled.Inc()
		}
	}

	duration := finishedAt.Sub(rec.StartedAt)
	e.statsMu.Lock()
	e.stats.Running--
	switch status {
	case ExecutionSuccess:
		e.stats.Completed++
	case ExecutionFailed:
		e.stats.Failed++
	case ExecutionCancelled:
		e.stats.Cancelled++
	}
	finishedCount := e.stats.Completed + e.stats.Failed + e.stats.Cancelled
	if finishedCount > 0 {
		total := e.stats.AverageExecutionTime*time.Duration(finishedCount-1) + duration
		e.stats.AverageExecutionTime = total / time.Duration(finishedCount)
	}
	e.statsMu.Unlock()

	data := map[string]interface{}{"finishedAt": finishedAt}
	if execErr != nil {
		data["error"] = execErr
	}
	e.bus.Publish(ctx, events.Event{
		Type: events.ExecutionCompleted, ExecutionID: rec.ID, WorkflowID: rec.WorkflowID,
		Status: string(status), Timestamp: finishedAt, Data: data,
	})

	if status == ExecutionFailed && rc.workflow.Settings.ErrorWorkflowID != "" {
		e.bus.Publish(ctx, events.Event{
			Type: events.FailureEscalation, ExecutionID: rec.ID, WorkflowID: rec.WorkflowID,
			Timestamp: finishedAt,
			Data:      map[string]interface{}{"errorWorkflowId": rc.workflow.Settings.ErrorWorkflowID, "error": execErr},
		})
	}
}

