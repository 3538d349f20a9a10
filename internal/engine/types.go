// Package engine implements the execution engine: topology
// analysis, ready-set scheduling, per-node invocation, retries, cancellation
// and progress events, unified into one internally consistent component
// rather than split across separate processor/executor stages.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

// ExecutionStatus is the terminal/non-terminal status of an ExecutionRecord.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionSuccess   ExecutionStatus = "SUCCESS"
	ExecutionFailed    ExecutionStatus = "ERROR"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

// NodeStatus is the status of a single NodeExecutionRecord.
type NodeStatus string

const (
	NodeQueued    NodeStatus = "QUEUED"
	NodeRunning   NodeStatus = "RUNNING"
	NodeSuccess   NodeStatus = "SUCCESS"
	NodeError     NodeStatus = "ERROR"
	NodeCancelled NodeStatus = "CANCELLED"
	NodeSkipped   NodeStatus = "SKIPPED"
)

// ErrorKind enumerates the error taxonomy the engine surfaces to callers.
type ErrorKind string

const (
	ErrNotFound             ErrorKind = "NotFound"
	ErrNoTriggerAvailable   ErrorKind = "NoTriggerAvailable"
	ErrCycle                ErrorKind = "Cycle"
	ErrValidationFailed     ErrorKind = "ValidationFailed"
	ErrExpressionFailed     ErrorKind = "ExpressionFailed"
	ErrCredentialUnavailable ErrorKind = "CredentialUnavailable"
	ErrNodeExecutionError   ErrorKind = "NodeExecutionError"
	ErrCancelled            ErrorKind = "Cancelled"
	ErrTimeout              ErrorKind = "Timeout"
	ErrBadCiphertext        ErrorKind = "BadCiphertext"
	ErrBadKey               ErrorKind = "BadKey"
)

// EngineError carries an ErrorKind alongside a human-readable message, and
// optionally the node it originated on.
type EngineError struct {
	Kind   ErrorKind
	NodeID string
	Err    error
}

func (e *EngineError) Error() string {
	if e.NodeID != "" {
		return string(e.Kind) + " on node " + e.NodeID + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewError builds an *EngineError.
func NewError(kind ErrorKind, nodeID string, err error) *EngineError {
	return &EngineError{Kind: kind, NodeID: nodeID, Err: err}
}

// Node is one vertex of a Workflow.
type Node struct {
	ID            string
	Type          string
	Name          string
	Parameters    map[string]interface{}
	CredentialIDs []uuid.UUID
	Disabled      bool
	Settings      *NodeSettings
}

// NodeSettings are per-node overrides of workflow-wide execution settings.
type NodeSettings struct {
	MaxAttempts        *int
	InitialDelayMs     *int
	BackoffMultiplier  *float64
	MaxDelayMs         *int
	RetryableKinds     []ErrorKind
}

// Connection is an edge from one node's output port to another's input
// port.
type Connection struct {
	ID           string
	SourceNodeID string
	SourceOutput string
	TargetNodeID string
	TargetInput  string
}

// Settings is workflow-wide execution configuration.
type Settings struct {
	Timezone             string
	ErrorWorkflowID       string
	SaveExecutionData    string // "all" | "none"
	ExecutionTimeout     time.Duration
	DefaultRetryPolicy   RetryPolicy
}

// RetryPolicy is the per-node retry configuration: attempts, backoff shape
// and which error kinds are eligible for retry.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelayMs    int
	BackoffMultiplier float64
	MaxDelayMs        int
	RetryableKinds    []ErrorKind
}

// Retryable reports whether kind is in the policy's retryable set.
func (p RetryPolicy) Retryable(kind ErrorKind) bool {
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// DefaultRetryPolicy is maxAttempts=1: effectively no retry unless a
// workflow or node overrides it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, InitialDelayMs: 100, BackoffMultiplier: 2, MaxDelayMs: 30_000, RetryableKinds: []ErrorKind{ErrNodeExecutionError}}
}

// Workflow is the static definition snapshotted at execution start.
type Workflow struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Nodes       []Node
	Connections []Connection
	Settings    Settings
	Active      bool
}

// ExecutionRecord is the top-level execution row.
type ExecutionRecord struct {
	ID          uuid.UUID
	WorkflowID  uuid.UUID
	Workflow    Workflow // immutable snapshot
	TriggerData map[string]interface{}
	Status      ExecutionStatus
	StartedAt   time.Time
	FinishedAt  *time.Time
	Error       *ExecutionError
}

// ExecutionError is the terminal-transition summary error.
type ExecutionError struct {
	Kind   ErrorKind
	NodeID string
	Message string
}

// NodeExecutionRecord is the per-node row.
type NodeExecutionRecord struct {
	ExecutionID  uuid.UUID
	NodeID       string
	Status       NodeStatus
	StartedAt    *time.Time
	FinishedAt   *time.Time
	InputData    core.PortData
	OutputData   core.PortData
	Error        *ExecutionError
	AttemptCount int
}

// ExecutionRequest is the Submit() input.
type ExecutionRequest struct {
	WorkflowID  uuid.UUID
	UserID      uuid.UUID
	TriggerData map[string]interface{}
}

// ExecutionProgress mirrors getExecutionProgress's return shape.
type ExecutionProgress struct {
	ExecutionID    uuid.UUID
	TotalNodes     int
	CompletedNodes int
	FailedNodes    int
	Status         ExecutionStatus
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// Stats mirrors getExecutionStats's return shape.
type Stats struct {
	TotalExecutions      int64
	Running              int64
	Completed            int64
	Failed               int64
	Cancelled            int64
	AverageExecutionTime time.Duration
	QueueSize            int
}
