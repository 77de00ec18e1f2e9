package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/catalog"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/engine"
	"github.com/xela07ax/nft-agents-console/internal/matcher"
	"go.uber.org/zap"
)

// AgentBackend описывает операции бэкенда над агентами
type AgentBackend interface {
	ListAgents(ctx context.Context, owner string) ([]domain.Agent, []string, error)
	CreateAgent(ctx context.Context, a domain.Agent) (domain.Agent, error)
	UpdateAgent(ctx context.Context, a domain.Agent) (domain.Agent, error)
	DeleteAgent(ctx context.Context, id string) error
	DeployAgent(ctx context.Context, agentID, targetID string, capID domain.CapabilityID) (domain.Agent, error)
	StopAgent(ctx context.Context, agentID string) (domain.Agent, error)
}

// Session: то, что сервисам нужно от хранилища сессии.
type Session interface {
	User() (domain.User, bool)
	Expire(ctx context.Context, reason string) error
}

// Имена операций в журнале и метриках
const (
	OpCreate  = "create_agent"
	OpDeploy  = "deploy_agent"
	OpStop    = "stop_agent"
	OpUpdate  = "update_agent"
	OpDelete  = "delete_agent"
	OpRefresh = "refresh_agents"
)

// AgentService: шлюз мутаций агентов. Единственный, кто пишет в каталог агентов:
// оптимистичное изменение, вызов бэкенда, затем серверная форма или откат.
type AgentService struct {
	catalog *catalog.Catalog
	backend AgentBackend
	session Session
	auditor audit.Auditor
	metrics *engine.Metrics
	opts    matcher.Options
	ownerID string
	logger  *zap.Logger

	// mu сериализует запись в каталог и выдачу номеров последовательности
	mu      sync.Mutex
	seq     map[string]uint64
	pending map[string]*pendingState
}

func NewAgentService(
	cat *catalog.Catalog,
	backend AgentBackend,
	session Session,
	auditor audit.Auditor,
	metrics *engine.Metrics,
	opts matcher.Options,
	ownerID string,
	logger *zap.Logger,
) *AgentService {
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	return &AgentService{
		catalog: cat,
		backend: backend,
		session: session,
		auditor: auditor,
		metrics: metrics,
		opts:    opts,
		ownerID: ownerID,
		logger:  logger.Named("agent-service"),
		seq:     make(map[string]uint64),
		pending: make(map[string]*pendingState),
	}
}

func (s *AgentService) ListAgents() []domain.Agent {
	return s.catalog.Agents()
}

func (s *AgentService) GetAgent(id string) (domain.Agent, error) {
	return s.catalog.Agent(id)
}

// RefreshAgents перечитывает список агентов с бэкенда.
func (s *AgentService) RefreshAgents(ctx context.Context) ([]domain.Agent, error) {
	start := time.Now()
	agents, skipped, err := s.backend.ListAgents(ctx, s.ownerID)
	if err != nil {
		s.finish(ctx, OpRefresh, "", nil, audit.StatusFailed, err, start)
		return nil, err
	}
	for _, id := range skipped {
		s.logger.Warn("agent with unreadable config skipped", zap.String("agent_id", id))
	}

	s.mu.Lock()
	s.catalog.ReplaceAgents(s.mergeInFlight(agents))
	s.mu.Unlock()

	s.finish(ctx, OpRefresh, "", map[string]any{"count": len(agents), "skipped": len(skipped)}, audit.StatusSuccess, nil, start)
	return s.catalog.Agents(), nil
}

// mergeInFlight: агенты с запросами в полете остаются в каталоге как есть (оптимистично
// или удаленными), а список с сервера становится их подтвержденным состоянием. Вызывается под s.mu.
func (s *AgentService) mergeInFlight(fresh []domain.Agent) []domain.Agent {
	if len(s.pending) == 0 {
		return fresh
	}
	seen := make(map[string]bool, len(s.pending))
	out := make([]domain.Agent, 0, len(fresh))
	for _, a := range fresh {
		p, ok := s.pending[a.ID]
		if !ok {
			out = append(out, a)
			continue
		}
		seen[a.ID] = true
		p.base, p.present, p.baseSeq = a.Clone(), true, s.seq[a.ID]
		if cur, err := s.catalog.Agent(a.ID); err == nil {
			out = append(out, cur)
		}
	}
	for id, p := range s.pending {
		if seen[id] {
			continue
		}
		// На сервере агента уже нет
		p.present, p.baseSeq = false, s.seq[id]
		if cur, err := s.catalog.Agent(id); err == nil {
			out = append(out, cur)
		}
	}
	return out
}

// CreateAgent: форма проверяется локально, агент попадает в каталог только в серверной форме.
func (s *AgentService) CreateAgent(ctx context.Context, draft domain.AgentDraft) (domain.Agent, error) {
	start := time.Now()
	if err := draft.Validate(); err != nil {
		s.finish(ctx, OpCreate, "", nil, audit.StatusRejected, err, start)
		return domain.Agent{}, err
	}

	agent := draft.Agent()
	agent.OwnerID = s.ownerID
	created, err := s.backend.CreateAgent(ctx, agent)
	if err != nil {
		s.finish(ctx, OpCreate, "", nil, audit.StatusFailed, err, start)
		return domain.Agent{}, err
	}

	s.mu.Lock()
	putErr := s.catalog.PutAgent(created)
	s.mu.Unlock()
	if putErr != nil {
		err := fmt.Errorf("backend returned invalid agent: %w", putErr)
		s.finish(ctx, OpCreate, created.ID, nil, audit.StatusFailed, err, start)
		return domain.Agent{}, err
	}

	s.finish(ctx, OpCreate, created.ID, map[string]any{"name": created.Name}, audit.StatusSuccess, nil, start)
	return created, nil
}

// DeployAgent привязывает агента к цели со способностью.
func (s *AgentService) DeployAgent(ctx context.Context, agentID, targetID string, capID domain.CapabilityID) (domain.Agent, error) {
	start := time.Now()
	capID = domain.NewCapabilityID(string(capID))
	payload := map[string]any{"target_id": targetID, "capability_id": capID.String()}

	// 1. Локальная проверка, до сети не доходит
	agent, err := s.validateDeploy(agentID, targetID, capID)
	if err != nil {
		s.finish(ctx, OpDeploy, agentID, payload, audit.StatusRejected, err, start)
		return domain.Agent{}, err
	}

	// 2. Оптимистичное изменение + вызов бэкенда
	optimistic := agent.Clone()
	optimistic.Engage(targetID, capID)
	return s.mutate(ctx, OpDeploy, agent, &optimistic, payload, start, func(ctx context.Context) (domain.Agent, error) {
		return s.backend.DeployAgent(ctx, agentID, targetID, capID)
	})
}

func (s *AgentService) validateDeploy(agentID, targetID string, capID domain.CapabilityID) (domain.Agent, error) {
	agent, err := s.catalog.Agent(agentID)
	if err != nil {
		return domain.Agent{}, &domain.ValidationError{Field: "agent", Message: fmt.Sprintf("unknown agent %q", agentID)}
	}
	target, err := s.catalog.Target(targetID)
	if err != nil {
		return domain.Agent{}, &domain.ValidationError{Field: "target", Message: fmt.Sprintf("unknown target %q", targetID)}
	}
	if !target.Deployable() {
		return domain.Agent{}, &domain.ValidationError{Field: "target", Message: fmt.Sprintf("target %s has no permissions granted", target.Name)}
	}
	if len(agent.TargetTypes) > 0 && !agent.SupportsTargetType(string(target.Type)) {
		return domain.Agent{}, &domain.ValidationError{Field: "target", Message: fmt.Sprintf("agent does not support %s targets", target.Type)}
	}
	if !matcher.IsCompatible(&agent, &target, s.catalog.Capabilities(), capID) {
		return domain.Agent{}, &domain.ValidationError{Field: "capability", Message: fmt.Sprintf("capability %s is not compatible with %s", capID, target.Name)}
	}

	switch {
	case agent.Status.IsEngaged():
		return domain.Agent{}, &domain.ConflictError{Op: OpDeploy, Reason: fmt.Sprintf("agent is already %s on %s", agent.Status, deref(agent.CurrentTarget))}
	case agent.Status == domain.AgentMaintenance:
		return domain.Agent{}, &domain.ConflictError{Op: OpDeploy, Reason: "agent is under maintenance"}
	}
	return agent, nil
}

// StopAgent возвращает агента в idle.
func (s *AgentService) StopAgent(ctx context.Context, agentID string) (domain.Agent, error) {
	start := time.Now()
	agent, err := s.catalog.Agent(agentID)
	if err != nil {
		s.finish(ctx, OpStop, agentID, nil, audit.StatusRejected, err, start)
		return domain.Agent{}, err
	}

	optimistic := agent.Clone()
	optimistic.Release()
	return s.mutate(ctx, OpStop, agent, &optimistic, nil, start, func(ctx context.Context) (domain.Agent, error) {
		return s.backend.StopAgent(ctx, agentID)
	})
}

// UpdateAgentConfig накладывает патч и отправляет полный config.
func (s *AgentService) UpdateAgentConfig(ctx context.Context, agentID string, patch domain.AgentPatch) (domain.Agent, error) {
	start := time.Now()
	if err := patch.Validate(); err != nil {
		s.finish(ctx, OpUpdate, agentID, nil, audit.StatusRejected, err, start)
		return domain.Agent{}, err
	}
	agent, err := s.catalog.Agent(agentID)
	if err != nil {
		s.finish(ctx, OpUpdate, agentID, nil, audit.StatusRejected, err, start)
		return domain.Agent{}, err
	}

	next := patch.Apply(agent)
	return s.mutate(ctx, OpUpdate, agent, &next, nil, start, func(ctx context.Context) (domain.Agent, error) {
		return s.backend.UpdateAgent(ctx, next)
	})
}

// DeleteAgent убирает агента сразу и возвращает его при ошибке бэкенда.
func (s *AgentService) DeleteAgent(ctx context.Context, agentID string) error {
	start := time.Now()
	agent, err := s.catalog.Agent(agentID)
	if err != nil {
		s.finish(ctx, OpDelete, agentID, nil, audit.StatusRejected, err, start)
		return err
	}
	if agent.Status.IsEngaged() {
		err := &domain.ConflictError{Op: OpDelete, Reason: fmt.Sprintf("agent is %s, stop it first", agent.Status)}
		s.finish(ctx, OpDelete, agentID, nil, audit.StatusRejected, err, start)
		return err
	}

	_, err = s.mutate(ctx, OpDelete, agent, nil, nil, start, func(ctx context.Context) (domain.Agent, error) {
		return domain.Agent{}, s.backend.DeleteAgent(ctx, agentID)
	})
	return err
}

// pendingState: агент, по которому есть запросы в полете.
// base: последнее подтвержденное сервером состояние, к нему откатывается неудавшийся последний запрос.
type pendingState struct {
	inflight int
	base     domain.Agent
	present  bool   // false: на сервере агента нет (удален)
	baseSeq  uint64 // номер запроса (или refresh), после которого base не старее
}

// mutate: общий цикл оптимистичной мутации.
// optimistic == nil означает удаление. Ответ на устаревший запрос каталог не трогает,
// но успешный устаревший ответ обновляет подтвержденное состояние.
func (s *AgentService) mutate(
	ctx context.Context,
	op string,
	snapshot domain.Agent,
	optimistic *domain.Agent,
	payload map[string]any,
	start time.Time,
	call func(ctx context.Context) (domain.Agent, error),
) (domain.Agent, error) {
	id := snapshot.ID

	// 1. Номер запроса и оптимистичная запись под одной блокировкой
	s.mu.Lock()
	p := s.pending[id]
	if p == nil {
		// Запросов в полете нет: каталог держит подтвержденное состояние
		p = &pendingState{base: snapshot.Clone(), present: true}
	}
	if optimistic == nil {
		s.catalog.RemoveAgent(id)
	} else if err := s.catalog.PutAgent(*optimistic); err != nil {
		s.mu.Unlock()
		s.finish(ctx, op, id, payload, audit.StatusRejected, err, start)
		return domain.Agent{}, err
	}
	s.seq[id]++
	seq := s.seq[id]
	p.inflight++
	s.pending[id] = p
	s.mu.Unlock()

	// 2. Сеть
	result, callErr := call(ctx)

	// Серверная форма; с нарушенным инвариантом остается оптимистичная версия
	if callErr == nil && optimistic != nil {
		if result.ID == "" {
			result = *optimistic
		} else if err := result.Validate(); err != nil {
			s.logger.Warn("server shape rejected, keeping optimistic state",
				zap.String("agent_id", id), zap.String("op", op), zap.Error(err))
			result = *optimistic
		}
	}

	// 3. Подтвержденное состояние и, если запрос последний, каталог
	s.mu.Lock()
	latest := s.seq[id] == seq
	if callErr == nil && seq > p.baseSeq {
		p.baseSeq = seq
		p.present = optimistic != nil
		p.base = result.Clone()
	}
	var applyErr error
	if latest {
		switch {
		case callErr != nil && p.present:
			applyErr = s.catalog.PutAgent(p.base)
		case callErr != nil:
			s.catalog.RemoveAgent(id)
		case optimistic != nil:
			applyErr = s.catalog.PutAgent(result)
		}
	}
	p.inflight--
	if p.inflight == 0 {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if applyErr != nil {
		s.logger.Error("rollback failed", zap.String("agent_id", id), zap.Error(applyErr))
	}

	if !latest {
		s.metrics.StaleDiscarded.WithLabelValues(op).Inc()
		s.logger.Info("stale response discarded",
			zap.String("agent_id", id),
			zap.String("op", op),
			zap.Uint64("seq", seq))
		s.finish(ctx, op, id, payload, audit.StatusDiscarded, callErr, start)
		if callErr != nil {
			return domain.Agent{}, callErr
		}
		return result, nil
	}

	if callErr != nil {
		s.finish(ctx, op, id, payload, audit.StatusRolledBack, callErr, start)
		return domain.Agent{}, callErr
	}
	s.finish(ctx, op, id, payload, audit.StatusSuccess, nil, start)
	return result, nil
}

// finish пишет журнал и метрики; при AuthError сбрасывает сессию.
func (s *AgentService) finish(ctx context.Context, op, agentID string, payload map[string]any, status string, err error, start time.Time) {
	s.metrics.Mutations.WithLabelValues(op, engine.Outcome(err)).Inc()
	expireOnAuth(ctx, s.session, s.logger, err)

	ev := audit.Event{
		TraceID:    engine.TraceID(ctx),
		Kind:       audit.KindMutation,
		Action:     op,
		EntityID:   agentID,
		ActorID:    actorID(s.session),
		Payload:    payload,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if s.auditor != nil {
		s.auditor.Log(ev)
	}

	log := s.logger.With(zap.String("op", op), zap.String("agent_id", agentID), zap.String("status", status))
	switch {
	case err == nil:
		log.Info("agent mutation applied")
	case domain.IsValidation(err) || domain.IsConflict(err) || errors.Is(err, domain.ErrNotFound):
		log.Info("agent mutation rejected", zap.Error(err))
	default:
		log.Warn("agent mutation failed", zap.Error(err))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
