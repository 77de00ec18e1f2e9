package service

import (
	"context"

	"github.com/xela07ax/nft-agents-console/internal/catalog"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/selection"
	"go.uber.org/zap"
)

// RunTracker: жизненный цикл запусков (engine.Tracker).
type RunTracker interface {
	Launch(sub domain.Submission) (string, error)
	Get(id string) (domain.Run, error)
	List() []domain.Run
	Cancel(id string) error
}

// RunService ведет выбор агент -> цель -> способность -> ввод и запускает его.
// Выбор хранится отдельно для каждого пользователя сессии.
type RunService struct {
	catalog    *catalog.Catalog
	selections *selection.Registry
	tracker    RunTracker
	session    Session
	logger     *zap.Logger
}

func NewRunService(cat *catalog.Catalog, selections *selection.Registry, tracker RunTracker, session Session, logger *zap.Logger) *RunService {
	return &RunService{
		catalog:    cat,
		selections: selections,
		tracker:    tracker,
		session:    session,
		logger:     logger.Named("run-service"),
	}
}

const anonymous = "anonymous"

func (s *RunService) machine() *selection.Machine {
	key := actorID(s.session)
	if key == "" {
		key = anonymous
	}
	return s.selections.For(key)
}

func (s *RunService) Selection() selection.Snapshot {
	return s.machine().Snapshot()
}

func (s *RunService) Options() []selection.Option {
	return s.machine().Options()
}

func (s *RunService) SelectAgent(agentID string) (selection.Snapshot, error) {
	a, err := s.catalog.Agent(agentID)
	if err != nil {
		return selection.Snapshot{}, err
	}
	m := s.machine()
	m.SelectAgent(a)
	return m.Snapshot(), nil
}

func (s *RunService) DeselectAgent() selection.Snapshot {
	m := s.machine()
	m.DeselectAgent()
	return m.Snapshot()
}

func (s *RunService) SelectTarget(targetID string) (selection.Snapshot, error) {
	t, err := s.catalog.Target(targetID)
	if err != nil {
		return selection.Snapshot{}, err
	}
	m := s.machine()
	if err := m.SelectTarget(t); err != nil {
		return selection.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

func (s *RunService) SelectCapability(id domain.CapabilityID) (selection.Snapshot, error) {
	m := s.machine()
	if err := m.SelectCapability(id); err != nil {
		return selection.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

func (s *RunService) SetInput(text string) (selection.Snapshot, error) {
	m := s.machine()
	if err := m.SetInput(text); err != nil {
		return selection.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// ResetSelection забывает выбор текущего пользователя (выход из сессии).
func (s *RunService) ResetSelection() {
	if key := actorID(s.session); key != "" {
		s.selections.Drop(key)
	}
	s.selections.Drop(anonymous)
}

// Submit запускает текущий выбор. Выбор остается, чтобы повторить запуск с другим вводом.
func (s *RunService) Submit(ctx context.Context) (domain.Run, error) {
	sub, err := s.machine().Submit()
	if err != nil {
		return domain.Run{}, err
	}
	id, err := s.tracker.Launch(sub)
	if err != nil {
		return domain.Run{}, err
	}
	s.logger.Info("run submitted",
		zap.String("run_id", id),
		zap.String("agent_id", sub.Agent.ID),
		zap.String("actor_id", actorID(s.session)))
	return s.tracker.Get(id)
}

func (s *RunService) Runs() []domain.Run {
	return s.tracker.List()
}

func (s *RunService) Run(id string) (domain.Run, error) {
	return s.tracker.Get(id)
}

func (s *RunService) CancelRun(id string) (domain.Run, error) {
	if err := s.tracker.Cancel(id); err != nil {
		return domain.Run{}, err
	}
	return s.tracker.Get(id)
}
