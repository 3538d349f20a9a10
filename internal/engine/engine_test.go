package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/linkflow-ai/linkflow/internal/credential"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
	"github.com/linkflow-ai/linkflow/internal/engine/events"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
)

// memRepo is an in-memory Repository fake for engine tests.
type memRepo struct {
	mu         sync.Mutex
	workflows  map[uuid.UUID]*Workflow
	executions map[uuid.UUID]*ExecutionRecord
	nodeExecs  map[uuid.UUID]map[string]*NodeExecutionRecord
}

func newMemRepo() *memRepo {
	return &memRepo{
		workflows:  make(map[uuid.UUID]*Workflow),
		executions: make(map[uuid.UUID]*ExecutionRecord),
		nodeExecs:  make(map[uuid.UUID]map[string]*NodeExecutionRecord),
	}
}

func (r *memRepo) LoadWorkflow(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, nil
	}
	cp := *wf
	return &cp, nil
}

func (r *memRepo) CreateExecution(ctx context.Context, rec *ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.executions[rec.ID] = &cp
	r.nodeExecs[rec.ID] = make(map[string]*NodeExecutionRecord)
	return nil
}

func (r *memRepo) UpdateExecution(ctx context.Context, id uuid.UUID, patch ExecutionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.executions[id]
	if !ok {
		return fmt.Errorf("execution %s not found", id)
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.FinishedAt != nil {
		rec.FinishedAt = patch.FinishedAt
	}
	if patch.Error != nil {
		rec.Error = patch.Error
	}
	return nil
}

func (r *memRepo) GetExecution(ctx context.Context, id uuid.UUID) (*ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.executions[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memRepo) CreateNodeExecution(ctx context.Context, rec *NodeExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	if r.nodeExecs[rec.ExecutionID] == nil {
		r.nodeExecs[rec.ExecutionID] = make(map[string]*NodeExecutionRecord)
	}
	r.nodeExecs[rec.ExecutionID][rec.NodeID] = &cp
	return nil
}

func (r *memRepo) UpdateNodeExecution(ctx context.Context, executionID uuid.UUID, nodeID string, patch NodeExecutionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.nodeExecs[executionID][nodeID]
	if !ok {
		return fmt.Errorf("node execution %s/%s not found", executionID, nodeID)
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		rec.StartedAt = patch.StartedAt
	}
	if patch.FinishedAt != nil {
		rec.FinishedAt = patch.FinishedAt
	}
	if patch.InputData != nil {
		rec.InputData = patch.InputData
	}
	if patch.OutputData != nil {
		rec.OutputData = patch.OutputData
	}
	if patch.Error != nil {
		rec.Error = patch.Error
	}
	if patch.AttemptCount != nil {
		rec.AttemptCount = *patch.AttemptCount
	}
	return nil
}

func (r *memRepo) ListNodeExecutions(ctx context.Context, executionID uuid.UUID) ([]NodeExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []NodeExecutionRecord
	for _, rec := range r.nodeExecs[executionID] {
		out = append(out, *rec)
	}
	return out, nil
}

// passthroughNode copies its "main" input straight to a "main" output.
type passthroughNode struct{}

func (passthroughNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	return core.PortData{"main": execCtx.InputData["main"]}, nil
}

// failingNode always errors.
type failingNode struct{}

func (failingNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	return nil, fmt.Errorf("boom")
}

// flakyNode fails its first N calls then succeeds.
type flakyNode struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (n *flakyNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	n.mu.Lock()
	n.calls++
	shouldFail := n.calls <= n.failures
	n.mu.Unlock()
	if shouldFail {
		return nil, fmt.Errorf("transient failure")
	}
	return core.PortData{"main": execCtx.InputData["main"]}, nil
}

// sleepNode blocks until ctx is cancelled or a fixed duration elapses.
type sleepNode struct{ d time.Duration }

func (n sleepNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	select {
	case <-time.After(n.d):
		return core.PortData{"main": execCtx.InputData["main"]}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testRegistry(types map[string]core.Node) *core.Registry {
	reg := core.NewRegistry()
	for id, n := range types {
		reg.Register(&core.NodeType{Identifier: id, DisplayName: id, Inputs: []string{"main"}, Outputs: []string{"main"}, Node: n})
	}
	return reg
}

func testStore(t *testing.T) *credential.Store {
	t.Helper()
	enc, err := pkgcrypto.NewEncryptor("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	reg := credential.NewRegistry()
	for _, ty := range credential.BuiltinTypes() {
		reg.Register(ty)
	}
	return credential.NewStore(nil, enc, reg)
}

func simpleWorkflow(nodeTypes ...string) *Workflow {
	wfID := uuid.New()
	nodes := make([]Node, len(nodeTypes))
	for i, t := range nodeTypes {
		nodes[i] = Node{ID: fmt.Sprintf("n%d", i), Type: t, Name: fmt.Sprintf("Node%d", i)}
	}
	var conns []Connection
	for i := 0; i < len(nodes)-1; i++ {
		conns = append(conns, Connection{
			ID: fmt.Sprintf("c%d", i), SourceNodeID: nodes[i].ID, SourceOutput: "main",
			TargetNodeID: nodes[i+1].ID, TargetInput: "main",
		})
	}
	return &Workflow{ID: wfID, UserID: uuid.New(), Name: "wf", Nodes: nodes, Connections: conns, Settings: Settings{DefaultRetryPolicy: DefaultRetryPolicy()}}
}

func waitForTerminal(t *testing.T, repo *memRepo, executionID uuid.UUID) *ExecutionRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, _ := repo.GetExecution(context.Background(), executionID)
		if rec != nil && rec.FinishedAt != nil {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("execution did not reach a terminal state in time")
	return nil
}

// Scenario: linear success A->B->C.
func TestLinearSuccess(t *testing.T) {
	repo := newMemRepo()
	wf := simpleWorkflow("pass", "pass", "pass")
	repo.workflows[wf.ID] = wf
	SetTriggerClassifier(func(n *Node) bool { return true }, func(n *Node, tt string) bool { return true })

	eng := New(repo, testRegistry(map[string]core.Node{"pass": passthroughNode{}}), testStore(t), events.NewBus(nil), NewCancellationManager(nil), nil, DefaultOptions())
	execID, err := eng.Submit(context.Background(), ExecutionRequest{WorkflowID: wf.ID, UserID: wf.UserID, TriggerData: map[string]interface{}{"value": 1}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := waitForTerminal(t, repo, execID)
	if rec.Status != ExecutionSuccess {
		t.Fatalf("expected SUCCESS, got %s (err=%v)", rec.Status, rec.Error)
	}
}

// Scenario: deterministic failure with default maxAttempts=1.
func TestDeterministicFailureNoRetryByDefault(t *testing.T) {
	repo := newMemRepo()
	wf := simpleWorkflow("pass", "fail", "pass")
	repo.workflows[wf.ID] = wf
	SetTriggerClassifier(func(n *Node) bool { return true }, func(n *Node, tt string) bool { return true })

	eng := New(repo, testRegistry(map[string]core.Node{"pass": passthroughNode{}, "fail": failingNode{}}), testStore(t), events.NewBus(nil), NewCancellationManager(nil), nil, DefaultOptions())
	execID, err := eng.Submit(context.Background(), ExecutionRequest{WorkflowID: wf.ID, UserID: wf.UserID})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := waitForTerminal(t, repo, execID)
	if rec.Status != ExecutionFailed {
		t.Fatalf("expected ERROR, got %s", rec.Status)
	}
	nodes, _ := repo.ListNodeExecutions(context.Background(), execID)
	var failNodeAttempts, skippedCount int
	for _, n := range nodes {
		if n.NodeID == "n1" {
			failNodeAttempts = n.AttemptCount
		}
		if n.Status == NodeSkipped {
			skippedCount++
		}
	}
	if failNodeAttempts != 1 {
		t.Fatalf("expected 1 attempt under the default retry policy, got %d", failNodeAttempts)
	}
	if skippedCount != 1 {
		t.Fatalf("expected the unreachable downstream node to be SKIPPED, got %d skipped", skippedCount)
	}
}

// Scenario: retry flake recovers under an explicit retry policy.
func TestRetryRecoversFlakyNode(t *testing.T) {
	repo := newMemRepo()
	wf := simpleWorkflow("flaky")
	wf.Settings.DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, InitialDelayMs: 1, BackoffMultiplier: 1, MaxDelayMs: 10, RetryableKinds: []ErrorKind{ErrNodeExecutionError}}
	repo.workflows[wf.ID] = wf
	SetTriggerClassifier(func(n *Node) bool { return true }, func(n *Node, tt string) bool { return true })

	flaky := &flakyNode{failures: 2}
	eng := New(repo, testRegistry(map[string]core.Node{"flaky": flaky}), testStore(t), events.NewBus(nil), NewCancellationManager(nil), nil, DefaultOptions())
	execID, err := eng.Submit(context.Background(), ExecutionRequest{WorkflowID: wf.ID, UserID: wf.UserID})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := waitForTerminal(t, repo, execID)
	if rec.Status != ExecutionSuccess {
		t.Fatalf("expected SUCCESS after retries, got %s (err=%v)", rec.Status, rec.Error)
	}
}

// Scenario: cancellation of a slow node.
func TestCancellationOfSlowNode(t *testing.T) {
	repo := newMemRepo()
	wf := simpleWorkflow("sleep")
	repo.workflows[wf.ID] = wf
	SetTriggerClassifier(func(n *Node) bool { return true }, func(n *Node, tt string) bool { return true })

	eng := New(repo, testRegistry(map[string]core.Node{"sleep": sleepNode{d: 2 * time.Second}}), testStore(t), events.NewBus(nil), NewCancellationManager(nil), nil, DefaultOptions())
	execID, err := eng.Submit(context.Background(), ExecutionRequest{WorkflowID: wf.ID, UserID: wf.UserID})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	eng.Cancel(context.Background(), execID, "user requested")
	rec := waitForTerminal(t, repo, execID)
	if rec.Status != ExecutionCancelled {
		t.Fatalf("expected CANCELLED, got %s", rec.Status)
	}
}
