package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// ErrShuttingDown: новые запуски не принимаются.
var ErrShuttingDown = errors.New("tracker is shutting down")

const shutdownReason = "cancelled: console shutdown"

type TrackerOption func(*Tracker)

// WithExclusiveAgents запрещает второй running-запуск на одном агенте.
func WithExclusiveAgents(on bool) TrackerOption {
	return func(t *Tracker) { t.exclusive = on }
}

// WithClock подменяет часы (для тестов длительности).
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// Tracker: жизненный цикл запусков. Запуски живут только в памяти процесса.
// Из терминального статуса запуск не выходит: повторные complete/fail/cancel, no-op.
type Tracker struct {
	mu      sync.RWMutex
	runs    map[string]*domain.Run
	order   []string
	cancels map[string]context.CancelFunc
	closed  bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	exec      ExecutionProvider
	auditor   audit.Auditor
	metrics   *Metrics
	logger    *zap.Logger
	exclusive bool
	now       func() time.Time
}

func NewTracker(exec ExecutionProvider, auditor audit.Auditor, metrics *Metrics, logger *zap.Logger, opts ...TrackerOption) *Tracker {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		runs:       make(map[string]*domain.Run),
		cancels:    make(map[string]context.CancelFunc),
		baseCtx:    ctx,
		baseCancel: cancel,
		exec:       exec,
		auditor:    auditor,
		metrics:    metrics,
		logger:     logger.Named("tracker"),
		now:        time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start создает запуск в running и сразу возвращает его ID.
// Невалидный ввод не создает запись.
func (t *Tracker) Start(sub domain.Submission) (string, error) {
	// 1. Валидация
	switch {
	case sub.Agent == nil:
		return "", &domain.ValidationError{Field: "agent", Message: "agent is required"}
	case sub.Target == nil:
		return "", &domain.ValidationError{Field: "target", Message: "target is required"}
	case sub.Capability == nil:
		return "", &domain.ValidationError{Field: "capability", Message: "capability is required"}
	case strings.TrimSpace(sub.Input) == "":
		return "", &domain.ValidationError{Field: "input", Message: "input is required"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", ErrShuttingDown
	}

	// 2. Эксклюзивность агента (если включена)
	if t.exclusive {
		for _, r := range t.runs {
			if r.AgentID == sub.Agent.ID && r.Status == domain.RunRunning {
				return "", &domain.ConflictError{Op: "start run", Reason: fmt.Sprintf("agent %s already has running run %s", sub.Agent.ID, r.ID)}
			}
		}
	}

	// 3. Создание записи
	run := &domain.Run{
		ID:           uuid.New().String(),
		Status:       domain.RunRunning,
		AgentID:      sub.Agent.ID,
		TargetID:     sub.Target.ID,
		CapabilityID: sub.Capability.ID,
		Input:        sub.Input,
		StartTime:    t.now(),
	}
	t.runs[run.ID] = run
	t.order = append(t.order, run.ID)

	t.metrics.RunsStarted.WithLabelValues(string(run.CapabilityID)).Inc()
	t.record(run, "run.started", audit.StatusSuccess)
	t.logger.Info("run started",
		zap.String("run_id", run.ID),
		zap.String("agent_id", run.AgentID),
		zap.String("target_id", run.TargetID),
		zap.String("capability_id", string(run.CapabilityID)))

	return run.ID, nil
}

// Launch стартует запуск и исполняет его в фоне через ExecutionProvider.
// Cancel отменяет контекст исполнителя.
func (t *Tracker) Launch(sub domain.Submission) (string, error) {
	if t.exec == nil {
		return "", errors.New("tracker: no execution provider configured")
	}
	id, err := t.Start(sub)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(t.baseCtx)
	t.mu.Lock()
	t.cancels[id] = cancel
	run := t.runs[id]
	req := domain.ExecutionRequest{
		RunID:        id,
		AgentID:      run.AgentID,
		TargetID:     run.TargetID,
		CapabilityID: run.CapabilityID,
		Input:        run.Input,
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer cancel()

		out, execErr := t.exec.Execute(runCtx, req, func(pct int, msg string) {
			_ = t.Progress(id, pct, msg)
		})

		switch {
		case runCtx.Err() != nil:
			// Отменен пользователем или остановкой консоли: статус уже выставлен
		case execErr != nil:
			_ = t.Fail(id, execErr.Error())
		default:
			_ = t.Complete(id, out)
		}
	}()

	return id, nil
}

// Complete допустим только из running.
func (t *Tracker) Complete(id string, output map[string]any) error {
	return t.finish(id, domain.RunCompleted, output, "")
}

// Fail допустим только из running.
func (t *Tracker) Fail(id string, reason string) error {
	if reason == "" {
		reason = "run failed"
	}
	return t.finish(id, domain.RunFailed, nil, reason)
}

// Cancel допустим только из running; отменяет исполнителя, если он есть.
func (t *Tracker) Cancel(id string) error {
	return t.finish(id, domain.RunCancelled, nil, domain.CancelledByUser)
}

func (t *Tracker) finish(id string, status domain.RunStatus, output map[string]any, reason string) error {
	t.mu.Lock()
	run, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if run.Status != domain.RunRunning {
		// Повторный переход: no-op, состояние не меняется
		t.mu.Unlock()
		t.logger.Debug("transition ignored: run is not running",
			zap.String("run_id", id),
			zap.String("status", string(run.Status)),
			zap.String("requested", string(status)))
		return nil
	}

	end := t.now()
	run.Status = status
	run.EndTime = &end
	switch status {
	case domain.RunCompleted:
		run.Output = output
		run.Progress = 100
	default:
		run.Error = reason
	}

	cancel := t.cancels[id]
	delete(t.cancels, id)
	snapshot := run.Clone()
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	t.metrics.RunsFinished.WithLabelValues(string(snapshot.CapabilityID), string(status)).Inc()
	t.metrics.RunDuration.WithLabelValues(string(snapshot.CapabilityID), string(status)).Observe(end.Sub(snapshot.StartTime).Seconds())

	eventStatus := audit.StatusSuccess
	if status != domain.RunCompleted {
		eventStatus = audit.StatusFailed
	}
	t.record(&snapshot, "run."+string(status), eventStatus)
	t.logger.Info("run finished",
		zap.String("run_id", id),
		zap.String("status", string(status)),
		zap.String("duration", FormatDuration(snapshot)))
	return nil
}

// Progress обновляет прогресс running-запуска; у терминального, игнорируется.
func (t *Tracker) Progress(id string, percent int, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if run.Status != domain.RunRunning {
		return nil
	}
	run.Progress = min(max(percent, 0), 100)
	run.Message = message
	return nil
}

func (t *Tracker) Get(id string) (domain.Run, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	run, ok := t.runs[id]
	if !ok {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return run.Clone(), nil
}

// List возвращает запуски в порядке создания.
func (t *Tracker) List() []domain.Run {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Run, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.runs[id].Clone())
	}
	return out
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}

// Stats: сводка по статусам для дашборда.
func (t *Tracker) Stats() domain.RunStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := domain.RunStats{Total: len(t.runs), ByStatus: make(map[domain.RunStatus]int)}
	for _, r := range t.runs {
		s.ByStatus[r.Status]++
	}
	return s
}

// Shutdown отменяет все running-запуски и ждет завершения исполнителей.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	var running []string
	for _, id := range t.order {
		if t.runs[id].Status == domain.RunRunning {
			running = append(running, id)
		}
	}
	t.mu.Unlock()

	for _, id := range running {
		_ = t.finish(id, domain.RunCancelled, nil, shutdownReason)
	}
	t.baseCancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("tracker stopped", zap.Int("cancelled", len(running)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tracker shutdown: %w", ctx.Err())
	}
}

func (t *Tracker) record(run *domain.Run, action, status string) {
	if t.auditor == nil {
		return
	}
	var durationMs int64
	if run.EndTime != nil {
		durationMs = run.EndTime.Sub(run.StartTime).Milliseconds()
	}
	t.auditor.Log(audit.Event{
		Kind:     audit.KindRun,
		Action:   action,
		EntityID: run.ID,
		Payload: map[string]any{
			"agent_id":      run.AgentID,
			"target_id":     run.TargetID,
			"capability_id": string(run.CapabilityID),
		},
		Status:     status,
		Error:      run.Error,
		DurationMs: durationMs,
	})
}

// FormatDuration: <1s -> "Nms", <1m -> "Ns", иначе "Nm Ns". Без EndTime, "In progress".
func FormatDuration(run domain.Run) string {
	if run.EndTime == nil {
		return "In progress"
	}
	return formatDuration(run.EndTime.Sub(run.StartTime))
}

func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%ds", int64(math.Round(float64(ms)/1000)))
	}
	minutes := ms / 60000
	seconds := int64(math.Round(float64(ms%60000) / 1000))
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
