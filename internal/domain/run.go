package domain

import "time"

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// CancelledByUser: текст ошибки отмененного запуска.
const CancelledByUser = "cancelled by user"

// Run: эфемерный запуск способности. Живет только в памяти процесса.
// Инвариант: EndTime != nil <=> статус терминальный; Output только у completed,
// Error только у failed/cancelled.
type Run struct {
	ID           string         `json:"id"`
	Status       RunStatus      `json:"status"`
	AgentID      string         `json:"agent_id"`
	TargetID     string         `json:"target_id"`
	CapabilityID CapabilityID   `json:"capability_id"`
	Input        string         `json:"input"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`

	// Прогресс исполнения 0..100
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// Clone копирует запуск, чтобы наружу не утекали внутренние указатели.
func (r Run) Clone() Run {
	c := r
	if r.EndTime != nil {
		t := *r.EndTime
		c.EndTime = &t
	}
	if r.Output != nil {
		c.Output = make(map[string]any, len(r.Output))
		for k, v := range r.Output {
			c.Output[k] = v
		}
	}
	return c
}

// Submission описывает готовый к запуску выбор: агент, цель, способность, ввод.
type Submission struct {
	Agent      *Agent
	Target     *Target
	Capability *Capability
	Input      string
}

// ExecutionRequest: то, что исполнитель получает для одного запуска.
type ExecutionRequest struct {
	RunID        string       `json:"run_id"`
	AgentID      string       `json:"agent_id"`
	TargetID     string       `json:"target_id"`
	CapabilityID CapabilityID `json:"capability_id"`
	Input        string       `json:"input"`
}

// ProgressFunc: колбэк прогресса (0..100) от исполнителя.
type ProgressFunc func(percent int, message string)
