package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

// Repository is the minimal persistence contract the engine is built
// against. The engine neither assumes a specific schema nor performs
// joins outside this interface; a GORM-backed adapter lives in
// internal/repository, but any conforming backend can substitute
// for it, including an in-memory fake for tests.
type Repository interface {
	LoadWorkflow(ctx context.Context, id uuid.UUID) (*Workflow, error)

	CreateExecution(ctx context.Context, rec *ExecutionRecord) error
	UpdateExecution(ctx context.Context, id uuid.UUID, patch ExecutionPatch) error
	GetExecution(ctx context.Context, id uuid.UUID) (*ExecutionRecord, error)

	CreateNodeExecution(ctx context.Context, rec *NodeExecutionRecord) error
	UpdateNodeExecution(ctx context.Context, executionID uuid.UUID, nodeID string, patch NodeExecutionPatch) error
	ListNodeExecutions(ctx context.Context, executionID uuid.UUID) ([]NodeExecutionRecord, error)
}

// ExecutionPatch carries the fields updateExecution may mutate. A
// nil pointer field means "leave unchanged".
type ExecutionPatch struct {
	Status     *ExecutionStatus
	FinishedAt *time.Time
	Error      *ExecutionError
}

// NodeExecutionPatch carries the fields updateNodeExecution may mutate. A
// nil pointer field means "leave unchanged".
type NodeExecutionPatch struct {
	Status       *NodeStatus
	StartedAt    *time.Time
	FinishedAt   *time.Time
	InputData    core.PortData
	OutputData   core.PortData
	Error        *ExecutionError
	AttemptCount *int
}
