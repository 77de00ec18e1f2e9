package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// Workflow: исполнение способности на стороне бэкенда.
type Workflow struct {
	ID           string           `json:"id"`
	Status       domain.RunStatus `json:"status"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	AgentID      string           `json:"agent_id"`
	TargetID     string           `json:"target_id"`
	CapabilityID string           `json:"capability_id"`
	Input        map[string]any   `json:"input"`
	Output       map[string]any   `json:"output,omitempty"`
	Error        string           `json:"error,omitempty"`
}

type workflowRequest struct {
	AgentID      string         `json:"agent_id"`
	TargetID     string         `json:"target_id"`
	CapabilityID string         `json:"capability_id"`
	Input        map[string]any `json:"input"`
}

func (c *Client) StartWorkflow(ctx context.Context, req domain.ExecutionRequest) (Workflow, error) {
	body := workflowRequest{
		AgentID:      req.AgentID,
		TargetID:     req.TargetID,
		CapabilityID: req.CapabilityID.String(),
		Input:        map[string]any{"prompt": req.Input},
	}
	var out struct {
		Workflow Workflow `json:"workflow"`
	}
	err := c.call(ctx, "start workflow", http.MethodPost, "/workflows", body, &out)
	return out.Workflow, err
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (Workflow, error) {
	var out struct {
		Workflow Workflow `json:"workflow"`
	}
	err := c.call(ctx, "get workflow", http.MethodGet, "/workflows/"+url.PathEscape(id), nil, &out)
	return out.Workflow, err
}

func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var out struct {
		Workflows []Workflow `json:"workflows"`
	}
	err := c.call(ctx, "list workflows", http.MethodGet, "/workflows", nil, &out)
	return out.Workflows, err
}

func (c *Client) CancelWorkflow(ctx context.Context, id string) error {
	return c.call(ctx, "cancel workflow", http.MethodPost, "/workflows/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// Типы сообщений потока /workflows/{id}/events
const (
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventCancelled = "cancelled"
)

// WorkflowEvent: одно сообщение websocket-потока.
type WorkflowEvent struct {
	Type     string         `json:"type"`
	Progress int            `json:"progress,omitempty"`
	Message  string         `json:"message,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// WorkflowExecutor исполняет запуск через бэкенд: POST /workflows, затем читает
// поток событий. Если поток недоступен, опрашивает GET /workflows/{id}.
type WorkflowExecutor struct {
	client       *Client
	dialer       *websocket.Dialer
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewWorkflowExecutor(client *Client, pollInterval time.Duration, logger *zap.Logger) *WorkflowExecutor {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &WorkflowExecutor{
		client:       client,
		dialer:       &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		pollInterval: pollInterval,
		logger:       logger.Named("workflow_executor"),
	}
}

func (e *WorkflowExecutor) Execute(ctx context.Context, req domain.ExecutionRequest, progress domain.ProgressFunc) (map[string]any, error) {
	// 1. Создаем workflow на бэкенде
	wf, err := e.client.StartWorkflow(ctx, req)
	if err != nil {
		return nil, err
	}
	log := e.logger.With(zap.String("run_id", req.RunID), zap.String("workflow_id", wf.ID))

	// 2. Подписываемся на поток событий, при неудаче, опрос
	out, err := e.stream(ctx, wf.ID, progress)
	if errors.Is(err, errStreamUnavailable) {
		log.Warn("event stream unavailable, falling back to polling", zap.Error(err))
		out, err = e.poll(ctx, wf.ID)
	}

	// 3. Отмена: сообщаем бэкенду, даже если наш контекст уже мертв
	if ctx.Err() != nil {
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cErr := e.client.CancelWorkflow(cancelCtx, wf.ID); cErr != nil {
			log.Warn("failed to cancel backend workflow", zap.Error(cErr))
		}
		return nil, ctx.Err()
	}
	return out, err
}

var errStreamUnavailable = errors.New("workflow event stream unavailable")

func (e *WorkflowExecutor) streamURL(id string) (string, error) {
	u, err := url.Parse(e.client.BaseURL() + "/workflows/" + url.PathEscape(id) + "/events")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (e *WorkflowExecutor) stream(ctx context.Context, id string, progress domain.ProgressFunc) (map[string]any, error) {
	addr, err := e.streamURL(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStreamUnavailable, err)
	}
	header := http.Header{}
	if tok := e.client.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, _, err := e.dialer.DialContext(ctx, addr, header)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", errStreamUnavailable, err)
	}
	defer func() { _ = conn.Close() }()

	// ReadJSON не принимает контекст: закрываем соединение при отмене
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var ev WorkflowEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil, &domain.NetworkError{Op: "workflow events", Err: errors.New("stream closed before workflow finished")}
			}
			return nil, &domain.NetworkError{Op: "workflow events", Err: err}
		}

		switch ev.Type {
		case EventProgress:
			if progress != nil {
				progress(ev.Progress, ev.Message)
			}
		case EventCompleted:
			return ev.Output, nil
		case EventFailed, EventCancelled:
			return nil, errors.New(failureReason(ev.Error, ev.Type))
		}
	}
}

// poll не знает процентов: прогресс приходит только из потока.
func (e *WorkflowExecutor) poll(ctx context.Context, id string) (map[string]any, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		wf, err := e.client.GetWorkflow(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		switch wf.Status {
		case domain.RunCompleted:
			return wf.Output, nil
		case domain.RunFailed, domain.RunCancelled:
			return nil, errors.New(failureReason(wf.Error, string(wf.Status)))
		}
	}
}

func failureReason(msg, status string) string {
	if strings.TrimSpace(msg) != "" {
		return msg
	}
	return "workflow " + status
}
