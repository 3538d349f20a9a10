package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linkflow-ai/linkflow/internal/domain/models"
	"github.com/linkflow-ai/linkflow/internal/domain/repositories"
	"github.com/linkflow-ai/linkflow/internal/engine"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

// EngineRepository satisfies engine.Repository against the
// Workflow/Execution/NodeExecution tables. Node/connection lists are stored
// in the existing jsonb array columns; this adapter is the only place that
// knows their shape.
type EngineRepository struct {
	workflows *repositories.BaseRepository[models.Workflow]
	execs     *repositories.BaseRepository[models.Execution]
	nodeExecs *repositories.BaseRepository[models.NodeExecution]
	db        *gorm.DB
}

func NewEngineRepository(db *gorm.DB) *EngineRepository {
	return &EngineRepository{
		workflows: repositories.NewBaseRepository[models.Workflow](db),
		execs:     repositories.NewBaseRepository[models.Execution](db),
		nodeExecs: repositories.NewBaseRepository[models.NodeExecution](db),
		db:        db,
	}
}

// nodeDTO/connectionDTO are the on-disk shape of Workflow.Nodes/Connections.
type nodeDTO struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Name          string                 `json:"name"`
	Parameters    map[string]interface{} `json:"parameters"`
	CredentialIDs []uuid.UUID            `json:"credentialIds"`
	Disabled      bool                   `json:"disabled"`
	Settings      *nodeSettingsDTO       `json:"settings,omitempty"`
}

type nodeSettingsDTO struct {
	MaxAttempts       *int     `json:"maxAttempts,omitempty"`
	InitialDelayMs    *int     `json:"initialDelayMs,omitempty"`
	BackoffMultiplier *float64 `json:"backoffMultiplier,omitempty"`
	MaxDelayMs        *int     `json:"maxDelayMs,omitempty"`
	RetryableKinds    []string `json:"retryableKinds,omitempty"`
}

type connectionDTO struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"sourceNodeId"`
	SourceOutput string `json:"sourceOutput"`
	TargetNodeID string `json:"targetNodeId"`
	TargetInput  string `json:"targetInput"`
}

func decodeArray[T any](arr models.JSONArray) ([]T, error) {
	if len(arr) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]interface{}(arr))
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toEngineWorkflow(m *models.Workflow) (*engine.Workflow, error) {
	nodeDTOs, err := decodeArray[nodeDTO](m.Nodes)
	if err != nil {
		return nil, err
	}
	connDTOs, err := decodeArray[connectionDTO](m.Connections)
	if err != nil {
		return nil, err
	}

	nodes := make([]engine.Node, len(nodeDTOs))
	for i, d := range nodeDTOs {
		nodes[i] = engine.Node{
			ID: d.ID, Type: d.Type, Name: d.Name, Parameters: d.Parameters,
			CredentialIDs: d.CredentialIDs, Disabled: d.Disabled, Settings: toEngineNodeSettings(d.Settings),
		}
	}
	conns := make([]engine.Connection, len(connDTOs))
	for i, d := range connDTOs {
		conns[i] = engine.Connection{
			ID: d.ID, SourceNodeID: d.SourceNodeID, SourceOutput: d.SourceOutput,
			TargetNodeID: d.TargetNodeID, TargetInput: d.TargetInput,
		}
	}

	var settings engine.Settings
	if m.Settings != nil {
		if s, ok := m.Settings["timezone"].(string); ok {
			settings.Timezone = s
		}
		if s, ok := m.Settings["errorWorkflowId"].(string); ok {
			settings.ErrorWorkflowID = s
		}
		if s, ok := m.Settings["saveExecutionData"].(string); ok {
			settings.SaveExecutionData = s
		}
		if s, ok := m.Settings["executionTimeoutSeconds"].(float64); ok {
			settings.ExecutionTimeout = time.Duration(s) * time.Second
		}
	}

	return &engine.Workflow{
		ID: m.ID, UserID: m.CreatedBy, Name: m.Name, Nodes: nodes, Connections: conns,
		Settings: settings, Active: m.Status == models.WorkflowStatusActive,
	}, nil
}

func toEngineNodeSettings(d *nodeSettingsDTO) *engine.NodeSettings {
	if d == nil {
		return nil
	}
	kinds := make([]engine.ErrorKind, len(d.RetryableKinds))
	for i, k := range d.RetryableKinds {
		kinds[i] = engine.ErrorKind(k)
	}
	return &engine.NodeSettings{
		MaxAttempts: d.MaxAttempts, InitialDelayMs: d.InitialDelayMs,
		BackoffMultiplier: d.BackoffMultiplier, MaxDelayMs: d.MaxDelayMs, RetryableKinds: kinds,
	}
}

func (r *EngineRepository) LoadWorkflow(ctx context.Context, id uuid.UUID) (*engine.Workflow, error) {
	m, err := r.workflows.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toEngineWorkflow(m)
}

func portDataToJSON(pd core.PortData) models.JSON {
	if pd == nil {
		return nil
	}
	b, err := json.Marshal(pd)
	if err != nil {
		return nil
	}
	var j models.JSON
	_ = json.Unmarshal(b, &j)
	return j
}

func jsonToPortData(j models.JSON) core.PortData {
	if j == nil {
		return nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil
	}
	var pd core.PortData
	_ = json.Unmarshal(b, &pd)
	return pd
}

func execErrToModel(e *engine.ExecutionError) (*string, *string) {
	if e == nil {
		return nil, nil
	}
	msg := string(e.Kind) + ": " + e.Message
	node := e.NodeID
	return &msg, &node
}

func (r *EngineRepository) CreateExecution(ctx context.Context, rec *engine.ExecutionRecord) error {
	msg, nodeID := execErrToModel(rec.Error)
	m := &models.Execution{
		ID: rec.ID, WorkflowID: rec.WorkflowID, WorkspaceID: rec.Workflow.UserID,
		TriggeredBy: &rec.Workflow.UserID, WorkflowVersion: 1,
		Status: toModelExecutionStatus(rec.Status), TriggerType: triggerTypeOf(rec.TriggerData),
		TriggerData: models.JSON(rec.TriggerData), StartedAt: &rec.StartedAt, CompletedAt: rec.FinishedAt,
		ErrorMessage: msg, ErrorNodeID: nodeID, QueuedAt: rec.StartedAt,
	}
	return r.execs.Create(ctx, m)
}

func triggerTypeOf(triggerData map[string]interface{}) string {
	if t, ok := triggerData["trigger"].(string); ok && t != "" {
		return t
	}
	return "manual"
}

func toModelExecutionStatus(s engine.ExecutionStatus) string {
	switch s {
	case engine.ExecutionRunning:
		return models.ExecutionStatusRunning
	case engine.ExecutionSuccess:
		return models.ExecutionStatusCompleted
	case engine.ExecutionFailed:
		return models.ExecutionStatusFailed
	case engine.ExecutionCancelled:
		return models.ExecutionStatusCancelled
	default:
		return models.ExecutionStatusQueued
	}
}

func fromModelExecutionStatus(s string) engine.ExecutionStatus {
	switch s {
	case models.ExecutionStatusRunning:
		return engine.ExecutionRunning
	case models.ExecutionStatusCompleted:
		return engine.ExecutionSuccess
	case models.ExecutionStatusFailed, models.ExecutionStatusTimeout:
		return engine.ExecutionFailed
	case models.ExecutionStatusCancelled:
		return engine.ExecutionCancelled
	default:
		return engine.ExecutionRunning
	}
}

func (r *EngineRepository) UpdateExecution(ctx context.Context, id uuid.UUID, patch engine.ExecutionPatch) error {
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = toModelExecutionStatus(*patch.Status)
	}
	if patch.FinishedAt != nil {
		updates["completed_at"] = *patch.FinishedAt
	}
	if patch.Error != nil {
		msg, nodeID := execErrToModel(patch.Error)
		updates["error_message"] = *msg
		updates["error_node_id"] = *nodeID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Execution{}).Where("id = ?", id).Updates(updates).Error
}

func (r *EngineRepository) GetExecution(ctx context.Context, id uuid.UUID) (*engine.ExecutionRecord, error) {
	m, err := r.execs.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	wf, err := r.LoadWorkflow(ctx, m.WorkflowID)
	if err != nil {
		return nil, err
	}
	rec := &engine.ExecutionRecord{
		ID: m.ID, WorkflowID: m.WorkflowID, TriggerData: m.TriggerData,
		Status: fromModelExecutionStatus(m.Status), FinishedAt: m.CompletedAt,
	}
	if wf != nil {
		rec.Workflow = *wf
	}
	if m.StartedAt != nil {
		rec.StartedAt = *m.StartedAt
	} else {
		rec.StartedAt = m.QueuedAt
	}
	if m.ErrorMessage != nil {
		nodeID := ""
		if m.ErrorNodeID != nil {
			nodeID = *m.ErrorNodeID
		}
		rec.Error = &engine.ExecutionError{Message: *m.ErrorMessage, NodeID: nodeID}
	}
	return rec, nil
}

func toModelNodeStatus(s engine.NodeStatus) string {
	switch s {
	case engine.NodeRunning:
		return models.NodeStatusRunning
	case engine.NodeSuccess:
		return models.NodeStatusCompleted
	case engine.NodeError, engine.NodeCancelled:
		return models.NodeStatusFailed
	case engine.NodeSkipped:
		return models.NodeStatusSkipped
	default:
		return models.NodeStatusPending
	}
}

func fromModelNodeStatus(s string) engine.NodeStatus {
	switch s {
	case models.NodeStatusRunning:
		return engine.NodeRunning
	case models.NodeStatusCompleted:
		return engine.NodeSuccess
	case models.NodeStatusFailed:
		return engine.NodeError
	case models.NodeStatusSkipped:
		return engine.NodeSkipped
	default:
		return engine.NodeQueued
	}
}

func (r *EngineRepository) CreateNodeExecution(ctx context.Context, rec *engine.NodeExecutionRecord) error {
	m := &models.NodeExecution{
		ExecutionID: rec.ExecutionID, NodeID: rec.NodeID, NodeType: "",
		Status: toModelNodeStatus(rec.Status), InputData: portDataToJSON(rec.InputData),
		OutputData: portDataToJSON(rec.OutputData), StartedAt: rec.StartedAt, CompletedAt: rec.FinishedAt,
		RetryCount: rec.AttemptCount,
	}
	if rec.Error != nil {
		msg := string(rec.Error.Kind) + ": " + rec.Error.Message
		m.ErrorMessage = &msg
	}
	return r.nodeExecs.Create(ctx, m)
}

func (r *EngineRepository) UpdateNodeExecution(ctx context.Context, executionID uuid.UUID, nodeID string, patch engine.NodeExecutionPatch) error {
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = toModelNodeStatus(*patch.Status)
	}
	if patch.StartedAt != nil {
		updates["started_at"] = *patch.StartedAt
	}
	if patch.FinishedAt != nil {
		updates["completed_at"] = *patch.FinishedAt
	}
	if patch.InputData != nil {
		updates["input_data"] = portDataToJSON(patch.InputData)
	}
	if patch.OutputData != nil {
		updates["output_data"] = portDataToJSON(patch.OutputData)
	}
	if patch.AttemptCount != nil {
		updates["retry_count"] = *patch.AttemptCount
	}
	if patch.Error != nil {
		msg := string(patch.Error.Kind) + ": " + patch.Error.Message
		updates["error_message"] = msg
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.NodeExecution{}).
		Where("execution_id = ? AND node_id = ?", executionID, nodeID).Updates(updates).Error
}

func (r *EngineRepository) ListNodeExecutions(ctx context.Context, executionID uuid.UUID) ([]engine.NodeExecutionRecord, error) {
	var rows []models.NodeExecution
	if err := r.db.WithContext(ctx).Where("execution_id = ?", executionID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.NodeExecutionRecord, len(rows))
	for i, m := range rows {
		rec := engine.NodeExecutionRecord{
			ExecutionID: m.ExecutionID, NodeID: m.NodeID, Status: fromModelNodeStatus(m.Status),
			StartedAt: m.StartedAt, FinishedAt: m.CompletedAt, InputData: jsonToPortData(m.InputData),
			OutputData: jsonToPortData(m.OutputData), AttemptCount: m.RetryCount,
		}
		if m.ErrorMessage != nil {
			rec.Error = &engine.ExecutionError{Message: *m.ErrorMessage}
		}
		out[i] = rec
	}
	return out, nil
}
