package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/linkflow-ai/linkflow/internal/engine"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
	"github.com/linkflow-ai/linkflow/internal/engine/events"
	"github.com/linkflow-ai/linkflow/internal/pkg/config"
	"github.com/linkflow-ai/linkflow/internal/pkg/email"
	"github.com/linkflow-ai/linkflow/internal/pkg/queue"
)

// concurrency is the asynq server's worker-goroutine pool size; the engine
// itself fans a single execution's nodes out further (engine.Options.WorkerCount).
const concurrency = 10

// Worker consumes asynq tasks and drives them through the execution engine.
// It keeps the same asynq-server shape as before, but the separate
// processor/executor/cache pipeline is gone because the engine owns
// retries, timeouts and result propagation itself (see DESIGN.md).
type Worker struct {
	server   *queue.Server
	engine   *engine.Engine
	cancel   *engine.CancellationManager
	bus      *events.Bus
	emailSvc *email.Service
}

// New constructs a worker around an already-wired engine.
func New(cfg *config.Config, eng *engine.Engine, cancelMgr *engine.CancellationManager, bus *events.Bus, emailSvc *email.Service) *Worker {
	server := queue.NewServer(&cfg.Redis, concurrency)

	w := &Worker{
		server:   server,
		engine:   eng,
		cancel:   cancelMgr,
		bus:      bus,
		emailSvc: emailSvc,
	}

	server.HandleFunc(queue.TypeWorkflowExecution, w.handleWorkflowExecution)
	server.HandleFunc(queue.TypeNotification, w.handleNotification)
	server.HandleFunc(queue.TypeWebhookDelivery, w.handleWebhookDelivery)
	server.HandleFunc("email:send", w.handleEmailSend)
	server.HandleFunc("workflow:cancel", w.handleWorkflowCancel)

	return w
}

// ClassifyTriggers builds the two closures dag.SetTriggerClassifier needs,
// backed by the real node registry instead of the package's permissive
// stub defaults. cmd/ calls this once at startup.
func ClassifyTriggers(reg *core.Registry) (func(n *engine.Node) bool, func(n *engine.Node, triggerType string) bool) {
	isTrigger := func(n *engine.Node) bool {
		nt, ok := reg.Get(n.Type)
		return ok && nt.IsTrigger()
	}
	matches := func(n *engine.Node, triggerType string) bool {
		nt, ok := reg.Get(n.Type)
		if !ok {
			return false
		}
		return string(nt.TriggerType) == triggerType
	}
	return isTrigger, matches
}

// Start starts the worker's asynq server and the cancellation bridge.
func (w *Worker) Start() error {
	log.Info().Msg("Starting worker...")
	go w.cancel.Listen(context.Background())
	return w.server.Start()
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown() {
	log.Info().Msg("Shutting down worker...")
	w.server.Shutdown()
}

func (w *Worker) handleWorkflowExecution(ctx context.Context, task *asynq.Task) error {
	var payload queue.WorkflowExecutionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	triggerData := map[string]interface{}{"trigger": payload.TriggerType}
	for k, v := range payload.TriggerData {
		triggerData[k] = v
	}
	if _, ok := triggerData["data"]; !ok {
		triggerData["data"] = map[string]interface{}(payload.InputData)
	}

	log.Info().
		Str("workflow_id", payload.WorkflowID.String()).
		Str("trigger_type", payload.TriggerType).
		Msg("Submitting workflow execution")

	var userID uuid.UUID
	if payload.TriggeredBy != nil {
		userID = *payload.TriggeredBy
	}

	_, err := w.engine.Submit(ctx, engine.ExecutionRequest{
		WorkflowID:  payload.WorkflowID,
		UserID:      userID,
		TriggerData: triggerData,
	})
	return err
}

func (w *Worker) handleNotification(ctx context.Context, task *asynq.Task) error {
	var payload queue.NotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	log.Info().Str("type", payload.Type).Str("recipient", payload.Recipient).Msg("Sending notification")

	if payload.Type == "email" && w.emailSvc != nil {
		return w.emailSvc.Send(ctx, &email.Email{
			To:      []string{payload.Recipient},
			Subject: payload.Subject,
			Body:    payload.Message,
		})
	}
	return nil
}

func (w *Worker) handleWebhookDelivery(ctx context.Context, task *asynq.Task) error {
	var payload queue.WebhookDeliveryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	log.Info().Str("url", payload.URL).Str("method", payload.Method).Msg("Delivering webhook")
	return deliverWebhookRequest(ctx, payload)
}

func (w *Worker) handleEmailSend(ctx context.Context, task *asynq.Task) error {
	if w.emailSvc == nil {
		log.Warn().Msg("Email service not configured")
		return nil
	}
	var emailData email.Email
	if err := json.Unmarshal(task.Payload(), &emailData); err != nil {
		return err
	}
	return w.emailSvc.Send(ctx, &emailData)
}

func (w *Worker) handleWorkflowCancel(ctx context.Context, task *asynq.Task) error {
	var payload struct {
		ExecutionID string `json:"execution_id"`
		Reason      string `json:"reason"`
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	id, err := uuid.Parse(payload.ExecutionID)
	if err != nil {
		return err
	}
	w.cancel.Cancel(ctx, id, payload.Reason)
	return nil
}

func deliverWebhookRequest(ctx context.Context, payload queue.WebhookDeliveryPayload) error {
	var body io.Reader
	if payload.Body != "" {
		body = bytes.NewReader([]byte(payload.Body))
	}

	req, err := http.NewRequestWithContext(ctx, payload.Method, payload.URL, body)
	if err != nil {
		return err
	}
	for k, v := range payload.Headers {
		req.Header.Set(k, v)
	}
	if payload.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", payload.URL).Msg("Webhook delivery failed")
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	log.Info().
		Str("url", payload.URL).
		Int("status", resp.StatusCode).
		Int("response_size", len(respBody)).
		Msg("Webhook delivered")
	return nil
}
